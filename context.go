package cascade

import (
	"context"

	"github.com/xraph/cascade/id"
)

type ctxKey int

const (
	executionIDKey ctxKey = iota
	stepIDKey
)

// WithExecutionID returns a context carrying the execution id. The
// engine attaches it before invoking step handlers so handlers and
// connectors can correlate their work with the owning run.
func WithExecutionID(ctx context.Context, execID id.ExecutionID) context.Context {
	return context.WithValue(ctx, executionIDKey, execID)
}

// ExecutionIDFrom extracts the execution id from the context.
func ExecutionIDFrom(ctx context.Context) (id.ExecutionID, bool) {
	execID, ok := ctx.Value(executionIDKey).(id.ExecutionID)
	return execID, ok
}

// WithStepID returns a context carrying the id of the step being executed.
func WithStepID(ctx context.Context, stepID string) context.Context {
	return context.WithValue(ctx, stepIDKey, stepID)
}

// StepIDFrom extracts the step id from the context.
func StepIDFrom(ctx context.Context) (string, bool) {
	stepID, ok := ctx.Value(stepIDKey).(string)
	return stepID, ok
}
