package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/workflow"
)

// Recover returns middleware that recovers from panics in the handler
// chain. Panics are converted to system-kind errors and logged with a
// stack trace.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, sr *workflow.StepRun, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("step handler panicked",
					slog.String("execution_id", sr.Execution.ID.String()),
					slog.String("step_id", sr.Step.ID),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				retErr = cascade.WithKind(cascade.KindSystem,
					fmt.Errorf("panic in step %s: %v", sr.Step.ID, r))
			}
		}()
		return next(ctx)
	}
}
