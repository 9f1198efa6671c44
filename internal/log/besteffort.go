package log

import (
	"context"
	"log/slog"
)

// BestEffort runs fn and swallows its error after logging it at warn level
// together with op. Use it only for writes the caller's result must not
// depend on; a panic in fn is not recovered.
func BestEffort(ctx context.Context, logger *slog.Logger, op string, fn func(ctx context.Context) error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := fn(ctx); err != nil {
		logger.WarnContext(ctx, "best-effort write failed",
			"op", op,
			"error", err,
		)
	}
}
