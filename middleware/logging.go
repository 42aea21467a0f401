package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/cascade/workflow"
)

// Logging returns middleware that logs each step attempt's start and
// completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, sr *workflow.StepRun, next Handler) error {
		logger.Debug("step started",
			slog.String("execution_id", sr.Execution.ID.String()),
			slog.String("workflow_id", sr.Execution.WorkflowID),
			slog.String("step_id", sr.Step.ID),
			slog.String("kind", sr.Step.Kind),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("step failed",
				slog.String("execution_id", sr.Execution.ID.String()),
				slog.String("workflow_id", sr.Execution.WorkflowID),
				slog.String("step_id", sr.Step.ID),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("step completed",
				slog.String("execution_id", sr.Execution.ID.String()),
				slog.String("workflow_id", sr.Execution.WorkflowID),
				slog.String("step_id", sr.Step.ID),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
