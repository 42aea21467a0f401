package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/cascade/workflow"
)

// Timeout returns middleware that enforces a per-attempt deadline. The
// step's own Timeout wins; fallback applies when the step declares
// none. When the deadline is exceeded the context is cancelled and the
// handler should return context.DeadlineExceeded.
func Timeout(logger *slog.Logger, fallback time.Duration) Middleware {
	return func(ctx context.Context, sr *workflow.StepRun, next Handler) error {
		timeout := sr.Step.Timeout
		if timeout <= 0 {
			timeout = fallback
		}
		if timeout > 0 {
			logger.Debug("step timeout set",
				slog.String("step_id", sr.Step.ID),
				slog.Duration("timeout", timeout),
			)
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return next(ctx)
	}
}
