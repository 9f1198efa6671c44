package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nao1215/backlinkscan/internal/config"
	"github.com/nao1215/backlinkscan/internal/indexer"
	"github.com/nao1215/backlinkscan/internal/report"
)

// batchRunner runs one reindex or report batch.
type batchRunner[T any] interface {
	Run(ctx context.Context) (T, error)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

// Info implements cron.Logger. Scheduler chatter is logged at debug level.
func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

// Error implements cron.Logger.
func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

// newScheduler registers the reindex and report jobs. An empty schedule
// disables its job. Jobs run in UTC, never overlap with themselves and are
// bounded by jobTimeout.
func newScheduler(ctx context.Context, sched config.Schedules, reindexer batchRunner[*indexer.BatchResult], reporter batchRunner[*report.BatchResult], jobTimeout time.Duration, logger *slog.Logger) (*cron.Cron, error) {
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithParser(config.ScheduleParser()),
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	if sched.Reindex != "" {
		if _, err := c.AddFunc(sched.Reindex, func() {
			runScheduled(ctx, "reindex", jobTimeout, logger, func(ctx context.Context) (int, error) {
				res, err := reindexer.Run(ctx)
				if res == nil {
					return 0, err
				}
				return res.Failed, err
			})
		}); err != nil {
			return nil, fmt.Errorf("%w: reindex: %v", config.ErrInvalidSchedule, err)
		}
	}

	if sched.Reports != "" {
		if _, err := c.AddFunc(sched.Reports, func() {
			runScheduled(ctx, "reports", jobTimeout, logger, func(ctx context.Context) (int, error) {
				res, err := reporter.Run(ctx)
				if res == nil {
					return 0, err
				}
				return res.Failed, err
			})
		}); err != nil {
			return nil, fmt.Errorf("%w: reports: %v", config.ErrInvalidSchedule, err)
		}
	}

	return c, nil
}

// runScheduled runs one scheduled batch and logs its outcome. fn returns
// the number of failed items.
func runScheduled(ctx context.Context, job string, timeout time.Duration, logger *slog.Logger, fn func(ctx context.Context) (int, error)) {
	if ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	failed, err := fn(ctx)
	if err != nil {
		logger.Error("scheduled job failed", "job", job, "error", err)
		return
	}
	logger.Info("scheduled job finished",
		"job", job,
		"failed", failed,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
}
