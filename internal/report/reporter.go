package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/backlinkscan/internal/analysis"
	"github.com/nao1215/backlinkscan/internal/log"
	"github.com/nao1215/backlinkscan/internal/model"
	"github.com/nao1215/backlinkscan/internal/pipeline"
)

// Defaults for a report pass.
const (
	// DefaultBatchSize is the number of subscribers handled per pass.
	DefaultBatchSize = 3

	// DefaultInterval is the minimum time between two reports to one user.
	DefaultInterval = 7 * 24 * time.Hour
)

// Outcome labels reported to the Observer.
const (
	OutcomeSent    = "sent"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

// ErrNoRecipient is returned when a subscriber has no email address.
var ErrNoRecipient = errors.New("subscriber has no email address")

// Store is the persistence the reporter needs.
type Store interface {
	ListActiveSubscriptions(ctx context.Context, plans []string, sentBefore time.Time, limit int) ([]model.Subscription, error)
	ListMonitoredDomains(ctx context.Context, userID string) ([]string, error)
	ListIndexedLinks(ctx context.Context, targetDomain string) ([]model.IndexedLink, error)
	ListScans(ctx context.Context, domain string, limit int) ([]model.Scan, error)
	MarkReportSent(ctx context.Context, userID string, at time.Time) error
}

// Observer receives the outcome of every report delivery.
type Observer interface {
	ObserveReport(outcome string)
}

// UserResult is the outcome of reporting to one subscriber.
type UserResult struct {
	UserID  string `json:"user_id"`
	Domains int    `json:"domains"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// BatchResult is the outcome of one report pass.
type BatchResult struct {
	StartedAt time.Time    `json:"started_at"`
	Users     []UserResult `json:"users"`
	Sent      int          `json:"sent"`
	Failed    int          `json:"failed"`
}

// Reporter delivers periodic digests to subscribers in small batches.
type Reporter struct {
	store     Store
	mailer    Mailer
	plans     []string
	batchSize int
	interval  time.Duration
	window    time.Duration
	now       func() time.Time
	logger    *slog.Logger
	observer  Observer
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithBatchSize sets the number of subscribers per pass.
func WithBatchSize(n int) Option {
	return func(r *Reporter) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithInterval sets the minimum time between two reports to one user.
func WithInterval(d time.Duration) Option {
	return func(r *Reporter) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithVelocityWindow sets the window used for link velocity.
func WithVelocityWindow(d time.Duration) Option {
	return func(r *Reporter) {
		if d > 0 {
			r.window = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) {
		r.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reporter) {
		r.logger = logger
	}
}

// WithObserver reports per-user outcomes to o.
func WithObserver(o Observer) Option {
	return func(r *Reporter) {
		r.observer = o
	}
}

// NewReporter creates a Reporter. plans lists the plan tiers entitled to
// reports; subscribers on other plans are never selected.
func NewReporter(store Store, mailer Mailer, plans []string, opts ...Option) *Reporter {
	r := &Reporter{
		store:     store,
		mailer:    mailer,
		plans:     plans,
		batchSize: DefaultBatchSize,
		interval:  DefaultInterval,
		window:    analysis.DefaultWindow,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run delivers up to one batch of due reports, never-reported users first.
// A failing user is reported in its result and does not stop the batch.
// The returned error is set only when the batch could not be selected or ctx
// was cancelled.
func (r *Reporter) Run(ctx context.Context) (*BatchResult, error) {
	started := r.now().UTC()

	subs, err := r.store.ListActiveSubscriptions(ctx, r.plans, started.Add(-r.interval), r.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to select subscribers: %w", err)
	}

	ids := make([]string, len(subs))
	byID := make(map[string]model.Subscription, len(subs))
	for i, sub := range subs {
		ids[i] = sub.UserID
		byID[sub.UserID] = sub
	}

	var mu sync.Mutex
	results := make(map[string]UserResult, len(ids))
	bp := pipeline.NewBatchProcessor(pipeline.WithBatchLogger(r.logger))
	items, batchErr := bp.ProcessBatch(ctx, ids, func(ctx context.Context, id string) error {
		res, err := r.Deliver(ctx, byID[id])
		mu.Lock()
		results[id] = res
		mu.Unlock()
		return err
	})

	batch := &BatchResult{StartedAt: started, Users: make([]UserResult, 0, len(items))}
	for _, item := range items {
		res, ok := results[item.Item]
		if !ok {
			res = UserResult{UserID: item.Item, Outcome: OutcomeError}
		}
		if item.Err != nil {
			res.Error = item.Err.Error()
			batch.Failed++
		} else if res.Outcome == OutcomeSent {
			batch.Sent++
		}
		batch.Users = append(batch.Users, res)
	}

	r.logger.Info("report batch complete",
		"users", len(batch.Users),
		"sent", batch.Sent,
		"failed", batch.Failed,
	)
	return batch, batchErr
}

// Deliver builds and sends the digest of one subscriber, then marks it sent.
// Subscribers without an email address or without monitored domains are
// marked sent without a mail so they rotate to the back of the queue.
func (r *Reporter) Deliver(ctx context.Context, sub model.Subscription) (UserResult, error) {
	res := UserResult{UserID: sub.UserID}

	outcome, err := r.deliver(ctx, sub, &res)
	res.Outcome = outcome
	if r.observer != nil {
		r.observer.ObserveReport(outcome)
	}
	if err != nil {
		res.Error = err.Error()
		return res, err
	}

	r.logger.Debug("report delivered",
		"user", sub.UserID,
		"outcome", outcome,
		"domains", res.Domains,
	)
	return res, nil
}

func (r *Reporter) deliver(ctx context.Context, sub model.Subscription, res *UserResult) (string, error) {
	now := r.now().UTC()

	domains, err := r.store.ListMonitoredDomains(ctx, sub.UserID)
	if err != nil {
		return OutcomeError, err
	}
	res.Domains = len(domains)

	if sub.Email == "" || len(domains) == 0 {
		if sub.Email == "" {
			r.logger.Warn("skipping report", "user", sub.UserID, "error", ErrNoRecipient)
		}
		if err := r.store.MarkReportSent(ctx, sub.UserID, now); err != nil {
			return OutcomeError, err
		}
		return OutcomeSkipped, nil
	}

	digest, err := r.Build(ctx, domains)
	if err != nil {
		return OutcomeError, err
	}
	digest.UserID = sub.UserID
	digest.Email = sub.Email
	digest.Plan = sub.Plan

	var body bytes.Buffer
	if _, err := NewMarkdownWriter(&body).Write(digest); err != nil {
		return OutcomeError, fmt.Errorf("failed to render report: %w", err)
	}

	msg := Message{
		To:      sub.Email,
		Subject: subject(digest),
		Body:    body.String(),
	}
	if err := r.mailer.Send(ctx, msg); err != nil {
		return OutcomeError, err
	}

	// The mail is out. A failed mark only means a duplicate next run.
	log.BestEffort(ctx, r.logger.With("user", sub.UserID), "mark report sent", func(ctx context.Context) error {
		return r.store.MarkReportSent(ctx, sub.UserID, now)
	})
	return OutcomeSent, nil
}

// Build assembles the digest of domains for the period ending now.
func (r *Reporter) Build(ctx context.Context, domains []string) (*Digest, error) {
	now := r.now().UTC()
	digest := &Digest{
		PeriodStart: now.Add(-r.interval),
		PeriodEnd:   now,
		Domains:     make([]DomainDigest, 0, len(domains)),
	}

	for _, domain := range domains {
		links, err := r.store.ListIndexedLinks(ctx, domain)
		if err != nil {
			return nil, err
		}
		scans, err := r.store.ListScans(ctx, domain, 0)
		if err != nil {
			return nil, err
		}
		digest.Domains = append(digest.Domains,
			NewDomainDigest(domain, links, scans, digest.PeriodStart, now, r.window))
	}
	return digest, nil
}

// subject renders the mail subject of digest.
func subject(d *Digest) string {
	if len(d.Domains) == 1 {
		return fmt.Sprintf("Backlink report for %s: %d new links", d.Domains[0].Summary.Target, d.TotalNewLinks())
	}
	return fmt.Sprintf("Backlink report for %d domains: %d new links", len(d.Domains), d.TotalNewLinks())
}
