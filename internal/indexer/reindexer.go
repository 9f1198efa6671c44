package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/backlinkscan/internal/model"
	"github.com/nao1215/backlinkscan/internal/pipeline"
)

// Defaults for a reindex pass.
const (
	// DefaultBatchSize is the number of targets handled per pass. Small
	// batches keep one cron invocation short; the next run picks up the rest.
	DefaultBatchSize = 5

	// DefaultStaleAfter is how long an index stays fresh without new scans.
	DefaultStaleAfter = 24 * time.Hour
)

// ErrEmptyDomain is returned when ReindexDomain is called without a domain.
var ErrEmptyDomain = errors.New("domain is required")

// Store is the persistence the reindexer needs.
type Store interface {
	StaleTargets(ctx context.Context, staleBefore time.Time, limit int) ([]model.Target, error)
	ScanCount(ctx context.Context, domain string) (int, error)
	IndexObservations(ctx context.Context, domain string) ([]model.IndexObservation, error)
	ReplaceIndexedLinks(ctx context.Context, targetDomain string, links []model.IndexedLink) error
	MarkIndexed(ctx context.Context, domain string, at time.Time) error
}

// Observer receives the outcome of every reindexed target.
type Observer interface {
	ObserveReindex(outcome string, rows int)
}

// TargetResult is the outcome of reindexing one target.
type TargetResult struct {
	Domain        string `json:"domain"`
	RowsWritten   int    `json:"rows_written"`
	ScansConsumed int    `json:"scans_consumed"`
	Error         string `json:"error,omitempty"`
}

// BatchResult is the outcome of one reindex pass.
type BatchResult struct {
	StartedAt time.Time      `json:"started_at"`
	Targets   []TargetResult `json:"targets"`
	Failed    int            `json:"failed"`
}

// Reindexer rebuilds the index of stale targets in small batches.
type Reindexer struct {
	store      Store
	batchSize  int
	staleAfter time.Duration
	now        func() time.Time
	logger     *slog.Logger
	observer   Observer
}

// Option configures a Reindexer.
type Option func(*Reindexer)

// WithBatchSize sets the number of targets per pass.
func WithBatchSize(n int) Option {
	return func(r *Reindexer) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithStaleAfter sets how long an index stays fresh without new scans.
func WithStaleAfter(d time.Duration) Option {
	return func(r *Reindexer) {
		if d > 0 {
			r.staleAfter = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Reindexer) {
		r.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reindexer) {
		r.logger = logger
	}
}

// WithObserver reports per-target outcomes to o.
func WithObserver(o Observer) Option {
	return func(r *Reindexer) {
		r.observer = o
	}
}

// NewReindexer creates a Reindexer over store.
func NewReindexer(store Store, opts ...Option) *Reindexer {
	r := &Reindexer{
		store:      store,
		batchSize:  DefaultBatchSize,
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reindexes up to one batch of stale targets, never-indexed ones first.
// A failing target is reported in its result and does not stop the batch.
// The returned error is set only when the batch could not be selected or ctx
// was cancelled.
func (r *Reindexer) Run(ctx context.Context) (*BatchResult, error) {
	started := r.now().UTC()

	targets, err := r.store.StaleTargets(ctx, started.Add(-r.staleAfter), r.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to select targets: %w", err)
	}

	domains := make([]string, len(targets))
	for i, t := range targets {
		domains[i] = t.Domain
	}

	var mu sync.Mutex
	byDomain := make(map[string]TargetResult, len(domains))
	bp := pipeline.NewBatchProcessor(pipeline.WithBatchLogger(r.logger))
	items, batchErr := bp.ProcessBatch(ctx, domains, func(ctx context.Context, domain string) error {
		res, err := r.ReindexDomain(ctx, domain)
		mu.Lock()
		byDomain[domain] = res
		mu.Unlock()
		return err
	})

	result := &BatchResult{StartedAt: started, Targets: make([]TargetResult, 0, len(items))}
	for _, item := range items {
		res, ok := byDomain[item.Item]
		if !ok {
			res = TargetResult{Domain: item.Item}
		}
		if item.Err != nil {
			res.Error = item.Err.Error()
			result.Failed++
		}
		result.Targets = append(result.Targets, res)
	}

	r.logger.Info("reindex batch complete",
		"targets", len(result.Targets),
		"failed", result.Failed,
	)
	return result, batchErr
}

// ReindexDomain rebuilds the index of one target. A target without scans is
// marked indexed with no rows so it is not selected again on every pass.
func (r *Reindexer) ReindexDomain(ctx context.Context, domain string) (TargetResult, error) {
	res := TargetResult{Domain: domain}

	err := r.reindex(ctx, domain, &res)
	if r.observer != nil {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		r.observer.ObserveReindex(outcome, res.RowsWritten)
	}
	if err != nil {
		res.Error = err.Error()
		return res, err
	}

	r.logger.Debug("target reindexed",
		"domain", domain,
		"rows", res.RowsWritten,
		"scans", res.ScansConsumed,
	)
	return res, nil
}

func (r *Reindexer) reindex(ctx context.Context, domain string, res *TargetResult) error {
	if domain == "" {
		return ErrEmptyDomain
	}

	scans, err := r.store.ScanCount(ctx, domain)
	if err != nil {
		return err
	}
	res.ScansConsumed = scans

	if scans > 0 {
		obs, err := r.store.IndexObservations(ctx, domain)
		if err != nil {
			return err
		}
		links := Reduce(domain, obs)
		if err := r.store.ReplaceIndexedLinks(ctx, domain, links); err != nil {
			return err
		}
		res.RowsWritten = len(links)
	}

	return r.store.MarkIndexed(ctx, domain, r.now().UTC())
}
