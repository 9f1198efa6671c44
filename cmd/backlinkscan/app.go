package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/backlinkscan/internal/config"
	"github.com/nao1215/backlinkscan/internal/database"
	"github.com/nao1215/backlinkscan/internal/indexer"
	"github.com/nao1215/backlinkscan/internal/log"
	"github.com/nao1215/backlinkscan/internal/metrics"
	"github.com/nao1215/backlinkscan/internal/pipeline"
	"github.com/nao1215/backlinkscan/internal/plan"
	"github.com/nao1215/backlinkscan/internal/quota"
	"github.com/nao1215/backlinkscan/internal/report"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *database.LinkDB

	catalog   plan.Catalog
	plans     *plan.Resolver
	quota     *quota.Service
	scanner   *pipeline.Scanner
	reindexer *indexer.Reindexer
	reporter  *report.Reporter
}

// newApp opens the database and wires every component. m may be nil; when
// set, scan, reindex and report outcomes are recorded in it.
func newApp(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*app, error) {
	catalog, err := cfg.File.Catalog()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	fetchers, err := newSiteFetchers(cfg, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		catalog: catalog,
		plans:   plan.NewResolver(db, catalog),
		quota:   quota.NewService(db),
	}

	scanOpts := []pipeline.ScannerOption{
		pipeline.WithScannerLogger(logger),
		pipeline.WithSiteOptions(cfg.SpiderOptions),
	}
	reindexOpts := []indexer.Option{
		indexer.WithBatchSize(cfg.ReindexBatchSize),
		indexer.WithStaleAfter(cfg.StaleAfter),
		indexer.WithLogger(logger),
	}
	reportOpts := []report.Option{
		report.WithBatchSize(cfg.ReportBatchSize),
		report.WithInterval(cfg.ReportInterval),
		report.WithLogger(logger),
	}
	if m != nil {
		scanOpts = append(scanOpts, pipeline.WithObserver(m))
		reindexOpts = append(reindexOpts, indexer.WithObserver(m))
		reportOpts = append(reportOpts, report.WithObserver(m))
	}

	a.scanner = pipeline.NewScanner(pipeline.Dependencies{
		Plans:    a.plans,
		Quota:    a.quota,
		Fetchers: fetchers,
		Store:    db,
	}, scanOpts...)
	a.reindexer = indexer.NewReindexer(db, reindexOpts...)
	a.reporter = report.NewReporter(db, newMailer(cfg.Env.SMTP, logger), catalog.ReportTiers(), reportOpts...)

	return a, nil
}

// Close releases the database.
func (a *app) Close() error {
	return a.db.Close()
}

// newMailer returns an SMTP mailer when SMTP is configured, otherwise a
// mailer that logs reports instead of sending them.
func newMailer(cfg report.SMTPConfig, logger *slog.Logger) report.Mailer {
	if !cfg.Configured() {
		return report.NewLogMailer(logger)
	}
	return report.NewSMTPMailer(cfg)
}

// loadConfig builds a Config from the global flags, the configuration file
// and the environment. Command-specific flags are applied by the caller.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = flagBool(cmd, "verbose")
	cfg.ConfigFilePath = flagString(cmd, "config")
	if dir := flagString(cmd, "db-dir"); dir != "" {
		cfg.DBDir = dir
	}

	// If the user explicitly specified a config file path, error if not found.
	// If no path specified, silently run without a file.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.File = file
	case explicitConfigPath:
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	env, err := config.LoadEnv(os.LookupEnv, config.DefaultEnvFiles()...)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	cfg.Env = env

	return cfg, nil
}

// addCrawlFlags registers the crawl bound flags shared by scan and serve.
func addCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each page request")
	cmd.Flags().IntP("depth", "d", config.DefaultCrawlDepth,
		"Maximum same-site link depth")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to crawl per scan")
	cmd.Flags().Int("max-links", config.DefaultMaxLinks,
		"Maximum number of outbound links collected per scan")
	cmd.Flags().Duration("crawl-delay", config.DefaultCrawlDelay,
		"Delay between requests of one scan")
}

// applyCrawlFlags copies the crawl flags into cfg.
func applyCrawlFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.Timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
		return err
	}
	if cfg.CrawlDepth, err = cmd.Flags().GetInt("depth"); err != nil {
		return err
	}
	cfg.CrawlDepthSet = cmd.Flags().Changed("depth")
	if cfg.MaxPages, err = cmd.Flags().GetInt("max-pages"); err != nil {
		return err
	}
	if cfg.MaxLinks, err = cmd.Flags().GetInt("max-links"); err != nil {
		return err
	}
	if cfg.CrawlDelay, err = cmd.Flags().GetDuration("crawl-delay"); err != nil {
		return err
	}
	return nil
}

// flagString returns the value of a local or inherited flag, or "" when
// the command has no such flag.
func flagString(cmd *cobra.Command, name string) string {
	if f := cmd.Flag(name); f != nil {
		return f.Value.String()
	}
	return ""
}

// flagBool returns the value of a local or inherited bool flag.
func flagBool(cmd *cobra.Command, name string) bool {
	v, err := strconv.ParseBool(flagString(cmd, name))
	return err == nil && v
}

// setupLogger creates the CLI logger. Output goes to stderr so stdout stays
// parseable when --json is used.
func setupLogger(verbose bool) *slog.Logger {
	return log.NewSecureLogger(os.Stderr, verbose)
}

// newCLIApp is the common prologue of the database-backed commands.
func newCLIApp(cmd *cobra.Command, apply func(cfg *config.Config) error) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if apply != nil {
		if err := apply(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg.Verbose)
	slog.SetDefault(logger)
	return newApp(cfg, logger, nil)
}

// formatTime renders a timestamp for terminal output.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

// writeLine writes one formatted line, ignoring write errors like fmt.Printf.
func writeLine(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}
