package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/backlinkscan/internal/crawler"
	"github.com/nao1215/backlinkscan/internal/model"
)

// Store is the persistence a Scanner needs.
type Store interface {
	ScanStore
	EventRecorder
}

// ScanObserver receives the outcome of every scan, typically for metrics.
type ScanObserver interface {
	ObserveScan(mode model.ScanMode, outcome string, elapsed time.Duration)
}

// Scan outcomes reported to a ScanObserver.
const (
	OutcomeSuccess   = "success"
	OutcomeInvalid   = "invalid"
	OutcomePlan      = "plan_required"
	OutcomeQuota     = "quota_exceeded"
	OutcomeBlocked   = "blocked"
	OutcomeTransient = "transient"
	OutcomeStorage   = "storage"
	OutcomeCancelled = "cancelled"
)

// Outcome maps a scan error to its outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrInvalidInput):
		return OutcomeInvalid
	case errors.Is(err, ErrPlanRequired):
		return OutcomePlan
	case errors.Is(err, ErrQuotaExceeded):
		return OutcomeQuota
	case errors.Is(err, ErrUpstreamBlocked):
		return OutcomeBlocked
	case errors.Is(err, ErrUpstreamTransient):
		return OutcomeTransient
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	default:
		return OutcomeStorage
	}
}

// Dependencies are the collaborators of a Scanner.
type Dependencies struct {
	Plans    PlanResolver
	Quota    QuotaReserver
	Fetchers FetcherSource
	Store    Store
}

// Scanner runs on-demand scans.
type Scanner struct {
	pipeline *Pipeline
	observer ScanObserver
	logger   *slog.Logger

	spiderOptions func(domain string) []crawler.SpiderOption
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithScannerLogger sets the logger used by the scanner and its steps.
func WithScannerLogger(logger *slog.Logger) ScannerOption {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// WithObserver reports scan outcomes to o.
func WithObserver(o ScanObserver) ScannerOption {
	return func(s *Scanner) {
		s.observer = o
	}
}

// WithSiteOptions sets per-domain crawl settings.
func WithSiteOptions(fn func(domain string) []crawler.SpiderOption) ScannerOption {
	return func(s *Scanner) {
		s.spiderOptions = fn
	}
}

// NewScanner wires the scan steps in their fixed order.
func NewScanner(deps Dependencies, opts ...ScannerOption) *Scanner {
	s := &Scanner{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	s.pipeline = New(WithLogger(s.logger))
	s.pipeline.AddSteps(
		ValidateStep{},
		NewAuthorizeStep(deps.Plans),
		NewReserveQuotaStep(deps.Quota, s.logger),
		NewCrawlStep(deps.Fetchers,
			WithSpiderOptions(s.spiderOptions),
			WithCrawlLogger(s.logger),
		),
		NewPersistStep(deps.Store),
		NewRecordStep(deps.Store, s.logger),
	)
	return s
}

// Steps returns the step names in execution order.
func (s *Scanner) Steps() []string {
	return s.pipeline.StepNames()
}

// Scan runs one on-demand scan.
func (s *Scanner) Scan(ctx context.Context, req ScanRequest) (*model.ScanResult, error) {
	job := NewScanJob(req)
	err := s.pipeline.Execute(ctx, job)

	if s.observer != nil {
		s.observer.ObserveScan(job.Request.Mode, Outcome(err), time.Since(job.StartedAt))
	}
	if err != nil {
		return nil, err
	}
	return job.Result(), nil
}
