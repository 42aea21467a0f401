package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/cascade/breaker"
	"github.com/xraph/cascade/dlq"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/workflow"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type executionStartedEntry struct {
	name string
	hook ExecutionStarted
}

type executionFinishedEntry struct {
	name string
	hook ExecutionFinished
}

type stepCompletedEntry struct {
	name string
	hook StepCompleted
}

type stepFailedEntry struct {
	name string
	hook StepFailed
}

type stepRetriedEntry struct {
	name string
	hook StepRetried
}

type breakerStateChangedEntry struct {
	name string
	hook BreakerStateChanged
}

type messageQueuedEntry struct {
	name string
	hook MessageQueued
}

type messageRequeuedEntry struct {
	name string
	hook MessageRequeued
}

type messageExpiredEntry struct {
	name string
	hook MessageExpired
}

type scheduleFiredEntry struct {
	name string
	hook ScheduleFired
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	executionStarted    []executionStartedEntry
	executionFinished   []executionFinishedEntry
	stepCompleted       []stepCompletedEntry
	stepFailed          []stepFailedEntry
	stepRetried         []stepRetriedEntry
	breakerStateChanged []breakerStateChangedEntry
	messageQueued       []messageQueuedEntry
	messageRequeued     []messageRequeuedEntry
	messageExpired      []messageExpiredEntry
	scheduleFired       []scheduleFiredEntry
	shutdown            []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(ExecutionStarted); ok {
		r.executionStarted = append(r.executionStarted, executionStartedEntry{name, h})
	}
	if h, ok := e.(ExecutionFinished); ok {
		r.executionFinished = append(r.executionFinished, executionFinishedEntry{name, h})
	}
	if h, ok := e.(StepCompleted); ok {
		r.stepCompleted = append(r.stepCompleted, stepCompletedEntry{name, h})
	}
	if h, ok := e.(StepFailed); ok {
		r.stepFailed = append(r.stepFailed, stepFailedEntry{name, h})
	}
	if h, ok := e.(StepRetried); ok {
		r.stepRetried = append(r.stepRetried, stepRetriedEntry{name, h})
	}
	if h, ok := e.(BreakerStateChanged); ok {
		r.breakerStateChanged = append(r.breakerStateChanged, breakerStateChangedEntry{name, h})
	}
	if h, ok := e.(MessageQueued); ok {
		r.messageQueued = append(r.messageQueued, messageQueuedEntry{name, h})
	}
	if h, ok := e.(MessageRequeued); ok {
		r.messageRequeued = append(r.messageRequeued, messageRequeuedEntry{name, h})
	}
	if h, ok := e.(MessageExpired); ok {
		r.messageExpired = append(r.messageExpired, messageExpiredEntry{name, h})
	}
	if h, ok := e.(ScheduleFired); ok {
		r.scheduleFired = append(r.scheduleFired, scheduleFiredEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Execution event emitters
// ──────────────────────────────────────────────────

// EmitExecutionStarted notifies all extensions that implement ExecutionStarted.
func (r *Registry) EmitExecutionStarted(ctx context.Context, exec *workflow.Execution) {
	for _, e := range r.executionStarted {
		if err := e.hook.OnExecutionStarted(ctx, exec); err != nil {
			r.logHookError("OnExecutionStarted", e.name, err)
		}
	}
}

// EmitExecutionFinished notifies all extensions that implement ExecutionFinished.
func (r *Registry) EmitExecutionFinished(ctx context.Context, exec *workflow.Execution, elapsed time.Duration) {
	for _, e := range r.executionFinished {
		if err := e.hook.OnExecutionFinished(ctx, exec, elapsed); err != nil {
			r.logHookError("OnExecutionFinished", e.name, err)
		}
	}
}

// EmitStepCompleted notifies all extensions that implement StepCompleted.
func (r *Registry) EmitStepCompleted(ctx context.Context, exec *workflow.Execution, stepID string, elapsed time.Duration) {
	for _, e := range r.stepCompleted {
		if err := e.hook.OnStepCompleted(ctx, exec, stepID, elapsed); err != nil {
			r.logHookError("OnStepCompleted", e.name, err)
		}
	}
}

// EmitStepFailed notifies all extensions that implement StepFailed.
func (r *Registry) EmitStepFailed(ctx context.Context, exec *workflow.Execution, stepID string, stepErr error) {
	for _, e := range r.stepFailed {
		if err := e.hook.OnStepFailed(ctx, exec, stepID, stepErr); err != nil {
			r.logHookError("OnStepFailed", e.name, err)
		}
	}
}

// EmitStepRetried notifies all extensions that implement StepRetried.
func (r *Registry) EmitStepRetried(ctx context.Context, exec *workflow.Execution, stepID string, attempt int, delay time.Duration) {
	for _, e := range r.stepRetried {
		if err := e.hook.OnStepRetried(ctx, exec, stepID, attempt, delay); err != nil {
			r.logHookError("OnStepRetried", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Reliability event emitters
// ──────────────────────────────────────────────────

// EmitBreakerStateChanged notifies all extensions that implement BreakerStateChanged.
func (r *Registry) EmitBreakerStateChanged(ctx context.Context, backend string, from, to breaker.State) {
	for _, e := range r.breakerStateChanged {
		if err := e.hook.OnBreakerStateChanged(ctx, backend, from, to); err != nil {
			r.logHookError("OnBreakerStateChanged", e.name, err)
		}
	}
}

// EmitMessageQueued notifies all extensions that implement MessageQueued.
func (r *Registry) EmitMessageQueued(ctx context.Context, msg *dlq.Message) {
	for _, e := range r.messageQueued {
		if err := e.hook.OnMessageQueued(ctx, msg); err != nil {
			r.logHookError("OnMessageQueued", e.name, err)
		}
	}
}

// EmitMessageRequeued notifies all extensions that implement MessageRequeued.
func (r *Registry) EmitMessageRequeued(ctx context.Context, msg *dlq.Message) {
	for _, e := range r.messageRequeued {
		if err := e.hook.OnMessageRequeued(ctx, msg); err != nil {
			r.logHookError("OnMessageRequeued", e.name, err)
		}
	}
}

// EmitMessageExpired notifies all extensions that implement MessageExpired.
func (r *Registry) EmitMessageExpired(ctx context.Context, msg *dlq.Message) {
	for _, e := range r.messageExpired {
		if err := e.hook.OnMessageExpired(ctx, msg); err != nil {
			r.logHookError("OnMessageExpired", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Other event emitters
// ──────────────────────────────────────────────────

// EmitScheduleFired notifies all extensions that implement ScheduleFired.
func (r *Registry) EmitScheduleFired(ctx context.Context, entryName string, execID id.ExecutionID) {
	for _, e := range r.scheduleFired {
		if err := e.hook.OnScheduleFired(ctx, entryName, execID); err != nil {
			r.logHookError("OnScheduleFired", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block the engine.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
