package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/backlinkscan/internal/config"
	"github.com/nao1215/backlinkscan/internal/log"
	"github.com/nao1215/backlinkscan/internal/metrics"
	"github.com/nao1215/backlinkscan/internal/server"
)

// scheduledJobTimeout bounds one scheduled reindex or report batch.
const scheduledJobTimeout = 10 * time.Minute

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background schedules",
		Long: `Serve starts the HTTP API:

  POST /api/v1/scan                   on-demand scan {"target": "...", "mode": "basic|pro"}
  GET  /api/v1/targets/{domain}/links backlink index and metrics
  GET  /api/v1/quota                  daily scan quota of the caller
  POST /api/v1/cron/reindex           one reindex batch (cron secret required)
  POST /api/v1/cron/reports           one report batch (cron secret required)
  GET  /healthz                       health check
  GET  /metrics                       Prometheus metrics

Callers authenticate with "Authorization: Bearer <api key>"; requests without
a key are served with the anonymous plan. Reindex and report batches also run
on the schedules of the configuration file.

Examples:
  backlinkscan serve
  backlinkscan serve --addr 127.0.0.1:9000 --trust-proxy`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("addr", "a", config.DefaultListenAddr, "Listen address")
	cmd.Flags().Bool("trust-proxy", false,
		"Take the client address from X-Forwarded-For (only behind a reverse proxy)")
	cmd.Flags().Float64("rate", config.DefaultRateLimit, "Sustained API requests per second per client")
	cmd.Flags().Int("burst", config.DefaultRateBurst, "API request burst per client")
	cmd.Flags().Duration("scan-timeout", config.DefaultScanTimeout, "Timeout of one on-demand scan")
	cmd.Flags().Bool("no-schedule", false, "Do not run the reindex and report schedules")
	addCrawlFlags(cmd)

	return cmd
}

// applyServeFlags copies the serve flags into cfg.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.ListenAddr, err = cmd.Flags().GetString("addr"); err != nil {
		return err
	}
	if cfg.TrustProxy, err = cmd.Flags().GetBool("trust-proxy"); err != nil {
		return err
	}
	if cfg.RateLimit, err = cmd.Flags().GetFloat64("rate"); err != nil {
		return err
	}
	if cfg.RateBurst, err = cmd.Flags().GetInt("burst"); err != nil {
		return err
	}
	if cfg.ScanTimeout, err = cmd.Flags().GetDuration("scan-timeout"); err != nil {
		return err
	}
	return applyCrawlFlags(cmd, cfg)
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyServeFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureJSONLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	m := metrics.New()
	a, err := newApp(cfg, logger, m)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Env.CronSecret == "" {
		logger.Warn("cron secret not configured, cron endpoints are disabled")
	}
	if !cfg.Env.SMTP.Configured() {
		logger.Warn("smtp not configured, reports will be logged instead of sent")
	}

	if !flagBool(cmd, "no-schedule") {
		sched, err := newScheduler(ctx, cfg.File.Schedule(), a.reindexer, a.reporter, scheduledJobTimeout, logger)
		if err != nil {
			return err
		}
		sched.Start()
		defer func() {
			cancel()
			<-sched.Stop().Done()
		}()
		logger.Info("schedules started",
			"reindex", cfg.File.Schedule().Reindex,
			"reports", cfg.File.Schedule().Reports,
		)
	}

	srv := server.New(server.Dependencies{
		Scanner:   a.scanner,
		Reindexer: a.reindexer,
		Reporter:  a.reporter,
		Store:     a.db,
		Plans:     a.plans,
		Quota:     a.quota,
	}, server.Config{
		CronSecret:  cfg.Env.CronSecret,
		RateLimit:   cfg.RateLimit,
		RateBurst:   cfg.RateBurst,
		TrustProxy:  cfg.TrustProxy,
		ScanTimeout: cfg.ScanTimeout,
	},
		server.WithLogger(logger),
		server.WithObserver(m),
		server.WithMetricsHandler(m.Handler()),
	)

	return srv.ListenAndServe(ctx, cfg.ListenAddr)
}
