package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/backlinkscan/internal/crawler"
	"github.com/nao1215/backlinkscan/internal/fetcher"
	"github.com/nao1215/backlinkscan/internal/log"
	"github.com/nao1215/backlinkscan/internal/model"
	"github.com/nao1215/backlinkscan/internal/plan"
	"github.com/nao1215/backlinkscan/internal/quota"
	"github.com/nao1215/backlinkscan/internal/urlnorm"
)

// ValidateStep normalizes the requested target. It never touches the
// network, so malformed input is rejected before any cost is incurred.
type ValidateStep struct{}

// Name returns the step name.
func (ValidateStep) Name() string { return "validate" }

// Do executes the validation step.
func (ValidateStep) Do(_ context.Context, job *ScanJob) error {
	domain := urlnorm.Normalize(job.Request.Target)
	if domain == "" {
		return fmt.Errorf("%w: %q is not a domain or URL", ErrInvalidInput, job.Request.Target)
	}

	switch job.Request.Mode {
	case "":
		job.Request.Mode = model.ScanModeBasic
	case model.ScanModeBasic, model.ScanModePro:
	default:
		return fmt.Errorf("%w: unknown scan mode %q", ErrInvalidInput, job.Request.Mode)
	}

	job.Domain = domain
	return nil
}

// PlanResolver resolves the plan that applies to a caller.
type PlanResolver interface {
	ForCaller(ctx context.Context, caller model.Caller) (plan.Plan, error)
}

// AuthorizeStep resolves the caller's plan and gates pro scans.
type AuthorizeStep struct {
	plans PlanResolver
}

// NewAuthorizeStep creates an AuthorizeStep.
func NewAuthorizeStep(plans PlanResolver) *AuthorizeStep {
	return &AuthorizeStep{plans: plans}
}

// Name returns the step name.
func (s *AuthorizeStep) Name() string { return "authorize" }

// Do executes the authorization step.
func (s *AuthorizeStep) Do(ctx context.Context, job *ScanJob) error {
	p, err := s.plans.ForCaller(ctx, job.Request.Caller)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	job.Plan = p

	if job.Request.Mode == model.ScanModePro && !p.ProScans && !job.Request.Caller.IsAdmin {
		return fmt.Errorf("%w: pro scans are not included in the %s plan", ErrPlanRequired, p.Tier)
	}
	return nil
}

// QuotaReserver reserves and returns daily quota units.
type QuotaReserver interface {
	Reserve(ctx context.Context, key string, limit int) (quota.Reservation, error)
	Rollback(ctx context.Context, r quota.Reservation) error
}

// ReserveQuotaStep takes one unit of the caller's daily quota and registers
// its rollback in case a later step fails. Admins are not metered.
type ReserveQuotaStep struct {
	quota  QuotaReserver
	logger *slog.Logger
}

// NewReserveQuotaStep creates a ReserveQuotaStep.
func NewReserveQuotaStep(q QuotaReserver, logger *slog.Logger) *ReserveQuotaStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReserveQuotaStep{quota: q, logger: logger}
}

// Name returns the step name.
func (s *ReserveQuotaStep) Name() string { return "reserve_quota" }

// Do executes the reservation step.
func (s *ReserveQuotaStep) Do(ctx context.Context, job *ScanJob) error {
	caller := job.Request.Caller
	if caller.IsAdmin {
		return nil
	}

	r, err := s.quota.Reserve(ctx, caller.QuotaKey(), job.Plan.DailyScans)
	if err != nil {
		if errors.Is(err, quota.ErrQuotaExceeded) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	job.Reservation = &r

	job.OnFailure(func(ctx context.Context) {
		log.BestEffort(ctx, s.logger, "rollback quota", func(ctx context.Context) error {
			return s.quota.Rollback(ctx, r)
		})
	})
	return nil
}

// FetcherSource returns the fetcher to use for a domain and mode.
type FetcherSource interface {
	FetcherFor(domain string, mode model.ScanMode) fetcher.Fetcher
}

// ModeFetchers selects between a direct and a rendering fetcher by mode.
type ModeFetchers struct {
	Direct fetcher.Fetcher
	Render fetcher.Fetcher
	Logger *slog.Logger
}

// FetcherFor implements FetcherSource.
func (m ModeFetchers) FetcherFor(_ string, mode model.ScanMode) fetcher.Fetcher {
	return fetcher.ForMode(mode, m.Direct, m.Render, m.Logger)
}

// CrawlStep crawls the target site and deduplicates the collected links.
type CrawlStep struct {
	fetchers FetcherSource

	// spiderOptions returns per-domain crawl settings.
	spiderOptions func(domain string) []crawler.SpiderOption

	logger *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithSpiderOptions sets a function returning crawl settings per domain.
func WithSpiderOptions(fn func(domain string) []crawler.SpiderOption) CrawlStepOption {
	return func(s *CrawlStep) {
		s.spiderOptions = fn
	}
}

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a CrawlStep.
func NewCrawlStep(fetchers FetcherSource, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		fetchers: fetchers,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string { return "crawl" }

// Do executes the crawl step.
//
// A seed page refused by the site is reported as ErrUpstreamBlocked. A crawl
// that fetched no page at all for any other reason is ErrUpstreamTransient.
// Partial crawls succeed with their per-page errors attached.
func (s *CrawlStep) Do(ctx context.Context, job *ScanJob) error {
	opts := []crawler.SpiderOption{crawler.WithLogger(s.logger)}
	if s.spiderOptions != nil {
		opts = append(opts, s.spiderOptions(job.Domain)...)
	}

	spider := crawler.NewSpider(s.fetchers.FetcherFor(job.Domain, job.Request.Mode), opts...)
	result, err := spider.Crawl(ctx, urlnorm.SeedURL(job.Domain))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", ErrUpstreamTransient, err)
	}
	job.Crawl = result

	if result.Blocked {
		return fmt.Errorf("%w: %s", ErrUpstreamBlocked, job.Domain)
	}
	if result.PagesCrawled == 0 {
		return fmt.Errorf("%w: no page of %s could be fetched", ErrUpstreamTransient, job.Domain)
	}

	job.Links = crawler.Dedupe(result.Links)

	s.logger.Info("crawl completed",
		"target", job.Domain,
		"mode", job.Request.Mode,
		"pages", result.PagesCrawled,
		"links", len(job.Links),
		"errors", len(result.Errors),
	)
	return nil
}

// ScanStore persists scans.
type ScanStore interface {
	SaveScan(ctx context.Context, scan model.Scan, links []model.LinkObservation) error
}

// PersistStep stores the target, the scan and its observations atomically.
type PersistStep struct {
	store ScanStore
	now   func() time.Time
	newID func() (string, error)
}

// NewPersistStep creates a PersistStep.
func NewPersistStep(store ScanStore) *PersistStep {
	return &PersistStep{
		store: store,
		now:   time.Now,
		newID: newScanID,
	}
}

// newScanID returns a time-ordered UUID so scan ids sort by creation.
func newScanID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Name returns the step name.
func (s *PersistStep) Name() string { return "persist" }

// Do executes the persistence step.
func (s *PersistStep) Do(ctx context.Context, job *ScanJob) error {
	id, err := s.newID()
	if err != nil {
		return fmt.Errorf("%w: failed to generate scan id: %w", ErrStorage, err)
	}

	pages := 0
	if job.Crawl != nil {
		pages = job.Crawl.PagesCrawled
	}

	scan := model.Scan{
		ID:           id,
		Domain:       job.Domain,
		UserID:       job.Request.Caller.UserID,
		Mode:         job.Request.Mode,
		CreatedAt:    s.now().UTC(),
		TotalLinks:   len(job.Links),
		RefDomains:   countReferringDomains(job.Links),
		PagesCrawled: pages,
	}

	if err := s.store.SaveScan(ctx, scan, job.Links); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	job.Scan = &scan
	return nil
}

// countReferringDomains counts distinct registrable domains among link hosts.
func countReferringDomains(links []model.LinkObservation) int {
	seen := make(map[string]struct{}, len(links))
	for _, l := range links {
		if l.TargetDomain != "" {
			seen[urlnorm.RegistrableDomain(l.TargetDomain)] = struct{}{}
		}
	}
	return len(seen)
}

// Scan event names.
const (
	EventScanCompleted = "scan_completed"
)

// EventRecorder appends scan history rows.
type EventRecorder interface {
	RecordScanEvent(ctx context.Context, scanID, userID, event, detail string, at time.Time) error
}

// RecordStep writes a history row for the finished scan. It never fails:
// the scan is already stored and the user must get the result.
type RecordStep struct {
	events EventRecorder
	logger *slog.Logger
	now    func() time.Time
}

// NewRecordStep creates a RecordStep.
func NewRecordStep(events EventRecorder, logger *slog.Logger) *RecordStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordStep{events: events, logger: logger, now: time.Now}
}

// Name returns the step name.
func (s *RecordStep) Name() string { return "record" }

// Do executes the history step.
func (s *RecordStep) Do(ctx context.Context, job *ScanJob) error {
	if job.Scan == nil {
		return nil
	}
	detail := fmt.Sprintf("mode=%s pages=%d links=%d", job.Scan.Mode, job.Scan.PagesCrawled, job.Scan.TotalLinks)
	log.BestEffort(ctx, s.logger, "record scan event", func(ctx context.Context) error {
		return s.events.RecordScanEvent(ctx, job.Scan.ID, job.Scan.UserID, EventScanCompleted, detail, s.now().UTC())
	})
	return nil
}
