package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency processes batch items one at a time. Reindexing and
// report delivery both share a single SQLite writer, so parallelism buys
// little by default.
const DefaultBatchConcurrency = 1

// ItemResult is the outcome of one batch item.
type ItemResult struct {
	// Item is the input value (a domain or a user id).
	Item string

	// Err is the item's failure, or nil.
	Err error

	// Elapsed is how long the item took.
	Elapsed time.Duration
}

// BatchProcessor runs independent items with bounded concurrency.
//
// Design decision: BatchProcessor is separate from Pipeline because batch
// jobs are not scans. It only guarantees ordering of results and isolation
// of failures, and leaves the per-item work to the caller.
type BatchProcessor struct {
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of items processed at once.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{concurrency: DefaultBatchConcurrency}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch calls fn for every item and returns one result per item in
// input order. A failing item is recorded in its result and never stops the
// others. The returned error is only set when ctx is cancelled; items that
// had not started by then carry the context error.
func (bp *BatchProcessor) ProcessBatch(
	ctx context.Context,
	items []string,
	fn func(ctx context.Context, item string) error,
) ([]ItemResult, error) {
	bp.logger.Debug("starting batch",
		"items", len(items),
		"concurrency", bp.concurrency,
	)

	start := time.Now()
	results := make([]ItemResult, len(items))

	g := new(errgroup.Group)
	g.SetLimit(bp.concurrency)

	for i, item := range items {
		results[i].Item = item
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}

			itemStart := time.Now()
			err := fn(ctx, item)
			results[i].Err = err
			results[i].Elapsed = time.Since(itemStart)

			if err != nil {
				bp.logger.Warn("batch item failed",
					"item", item,
					"error", err,
				)
			}
			return nil
		})
	}

	// Items never return errors to the group.
	_ = g.Wait() //nolint:errcheck

	bp.logger.Debug("batch complete",
		"items", len(items),
		"elapsed", time.Since(start),
	)
	return results, ctx.Err()
}

// Failed counts results that carry an error.
func Failed(results []ItemResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
