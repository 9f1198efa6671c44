package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/nao1215/backlinkscan/internal/indexer"
	"github.com/nao1215/backlinkscan/internal/model"
	"github.com/nao1215/backlinkscan/internal/pipeline"
	"github.com/nao1215/backlinkscan/internal/plan"
	"github.com/nao1215/backlinkscan/internal/report"
)

// Scanner runs on-demand scans.
type Scanner interface {
	Scan(ctx context.Context, req pipeline.ScanRequest) (*model.ScanResult, error)
}

// Reindexer runs one reindex batch.
type Reindexer interface {
	Run(ctx context.Context) (*indexer.BatchResult, error)
}

// Reporter runs one report batch.
type Reporter interface {
	Run(ctx context.Context) (*report.BatchResult, error)
}

// Store is the read side the API needs.
type Store interface {
	LookupAPIKey(ctx context.Context, keyHash string) (model.Caller, error)
	GetTarget(ctx context.Context, domain string) (*model.Target, error)
	ListIndexedLinks(ctx context.Context, targetDomain string) ([]model.IndexedLink, error)
	ListScans(ctx context.Context, domain string, limit int) ([]model.Scan, error)
	Ping(ctx context.Context) error
}

// PlanResolver resolves the effective plan of a caller.
type PlanResolver interface {
	ForCaller(ctx context.Context, caller model.Caller) (plan.Plan, error)
}

// QuotaReader reports daily usage.
type QuotaReader interface {
	Usage(ctx context.Context, key string, limit int) (model.QuotaUsage, error)
}

// Observer receives request metrics.
type Observer interface {
	ObserveRequest(route, method string, code int, elapsed time.Duration)
	ObserveRateLimited()
}

// Dependencies are the collaborators of a Server.
type Dependencies struct {
	Scanner   Scanner
	Reindexer Reindexer
	Reporter  Reporter
	Store     Store
	Plans     PlanResolver
	Quota     QuotaReader
}

// Config holds the HTTP-level settings.
type Config struct {
	// CronSecret authorizes the cron routes. Empty disables them.
	CronSecret string

	// RateLimit is the sustained requests per second allowed per client.
	// Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the bucket size per client.
	RateBurst int

	// TrustProxy takes the client IP from X-Forwarded-For.
	TrustProxy bool

	// ScanTimeout bounds one on-demand scan.
	ScanTimeout time.Duration
}

// DefaultConfig returns the default HTTP settings.
func DefaultConfig() Config {
	return Config{
		RateLimit:   2,
		RateBurst:   10,
		ScanTimeout: 90 * time.Second,
	}
}

// Server serves the HTTP API.
type Server struct {
	deps     Dependencies
	cfg      Config
	router   *mux.Router
	limiter  *clientLimiter
	logger   *slog.Logger
	observer Observer
	metrics  http.Handler
	now      func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithObserver reports request metrics to o.
func WithObserver(o Observer) Option {
	return func(s *Server) {
		s.observer = o
	}
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithClock overrides the time source used by the rate limiter.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// New creates a Server and registers its routes.
func New(deps Dependencies, cfg Config, opts ...Option) *Server {
	s := &Server{
		deps:   deps,
		cfg:    cfg,
		router: mux.NewRouter(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.RateLimit > 0 {
		burst := max(cfg.RateBurst, 1)
		s.limiter = newClientLimiter(rate.Limit(cfg.RateLimit), burst, s.now)
	}
	s.routes()
	return s
}

// routes registers every route and middleware.
func (s *Server) routes() {
	s.router.Use(s.recoverMiddleware, s.observeMiddleware)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.rateLimitMiddleware)

	cron := api.PathPrefix("/cron").Subrouter()
	cron.Use(s.cronAuthMiddleware)
	cron.HandleFunc("/reindex", s.handleReindex).Methods(http.MethodPost)
	cron.HandleFunc("/reports", s.handleReports).Methods(http.MethodPost)

	// Caller routes sit directly on api so a method mismatch still reaches
	// MethodNotAllowedHandler.
	api.Handle("/scan", s.callerMiddleware(http.HandlerFunc(s.handleScan))).Methods(http.MethodPost)
	api.Handle("/targets/{domain}/links", s.callerMiddleware(http.HandlerFunc(s.handleLinks))).Methods(http.MethodGet)
	api.Handle("/quota", s.callerMiddleware(http.HandlerFunc(s.handleQuota))).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeFailure(w, http.StatusNotFound, codeNotFound, "Not found.")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeFailure(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "Method not allowed.")
	})
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 30 * time.Second

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	s.logger.Info("server exited gracefully")
	return nil
}
