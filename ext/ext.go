// Package ext defines the extension system for Cascade.
// Extensions are notified of lifecycle events (execution started,
// step failed, message queued, etc.) and can react to them — logging,
// metrics, tracing, etc.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/xraph/cascade/breaker"
	"github.com/xraph/cascade/dlq"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/workflow"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Execution lifecycle hooks
// ──────────────────────────────────────────────────

// ExecutionStarted is called when a run begins executing.
type ExecutionStarted interface {
	OnExecutionStarted(ctx context.Context, exec *workflow.Execution) error
}

// ExecutionFinished is called when a run reaches a terminal status.
// The status on the execution tells completed from failed, cancelled,
// and timeout.
type ExecutionFinished interface {
	OnExecutionFinished(ctx context.Context, exec *workflow.Execution, elapsed time.Duration) error
}

// StepCompleted is called after a step completes successfully.
type StepCompleted interface {
	OnStepCompleted(ctx context.Context, exec *workflow.Execution, stepID string, elapsed time.Duration) error
}

// StepFailed is called when a step fails terminally within its run.
type StepFailed interface {
	OnStepFailed(ctx context.Context, exec *workflow.Execution, stepID string, err error) error
}

// StepRetried is called when a step attempt fails and a retry is
// scheduled after the given delay.
type StepRetried interface {
	OnStepRetried(ctx context.Context, exec *workflow.Execution, stepID string, attempt int, delay time.Duration) error
}

// ──────────────────────────────────────────────────
// Reliability hooks
// ──────────────────────────────────────────────────

// BreakerStateChanged is called when a backend's circuit breaker
// transitions between states.
type BreakerStateChanged interface {
	OnBreakerStateChanged(ctx context.Context, backend string, from, to breaker.State) error
}

// MessageQueued is called when an execution is moved to the dead
// letter queue.
type MessageQueued interface {
	OnMessageQueued(ctx context.Context, msg *dlq.Message) error
}

// MessageRequeued is called when a DLQ message is resubmitted
// successfully.
type MessageRequeued interface {
	OnMessageRequeued(ctx context.Context, msg *dlq.Message) error
}

// MessageExpired is called when a DLQ message passes its TTL and is
// dropped.
type MessageExpired interface {
	OnMessageExpired(ctx context.Context, msg *dlq.Message) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// ScheduleFired is called when a schedule entry fires and submits a run.
type ScheduleFired interface {
	OnScheduleFired(ctx context.Context, entryName string, execID id.ExecutionID) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
