package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/admission"
	"github.com/xraph/cascade/breaker"
	"github.com/xraph/cascade/dag"
	"github.com/xraph/cascade/dlq"
	"github.com/xraph/cascade/ext"
	"github.com/xraph/cascade/id"
	mw "github.com/xraph/cascade/middleware"
	"github.com/xraph/cascade/retry"
	"github.com/xraph/cascade/schedule"
	"github.com/xraph/cascade/workflow"
)

// activeRun pairs a live execution record with the lock that serializes
// its mutation. The run loop and Cancel/Status share it.
type activeRun struct {
	mu   sync.Mutex
	exec *workflow.Execution
}

// Engine executes workflow definitions. It owns the active-executions
// registry, the per-backend breaker group, the optional DLQ and
// scheduler, and the per-step middleware chain. An Engine is safe for
// concurrent use.
type Engine struct {
	cfg          cascade.Config
	logger       *slog.Logger
	registry     *workflow.Registry
	breakers     *breaker.Group
	retryDefault retry.Policy
	queue        *dlq.Queue
	gate         *admission.Gate
	sched        *schedule.Scheduler
	hooks        *ext.Registry
	chain        mw.Middleware
	metrics      *engineMetrics

	mu      sync.Mutex
	active  map[id.ExecutionID]*activeRun
	defs    map[string]*workflow.Definition
	started bool
	closed  bool
}

// New creates an Engine from functional options. Without options the
// engine runs with defaults: slog.Default(), the default retry policy,
// a breaker group with default thresholds, no DLQ, no scheduler, and
// no admission gate.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:          cascade.DefaultConfig(),
		logger:       slog.Default(),
		registry:     workflow.NewRegistry(),
		retryDefault: retry.DefaultPolicy(),
		active:       make(map[id.ExecutionID]*activeRun),
		defs:         make(map[string]*workflow.Definition),
	}

	var b builder
	for _, opt := range opts {
		if err := opt(e, &b); err != nil {
			return nil, err
		}
	}

	// The hook registry is created after options so it picks up the
	// configured logger regardless of option order.
	e.hooks = ext.NewRegistry(e.logger)
	for _, x := range b.extensions {
		e.hooks.Register(x)
	}

	if e.breakers == nil {
		e.breakers = breaker.NewGroup(breaker.DefaultConfig())
	}
	for key, cfg := range b.breakerConfigs {
		e.breakers.SetConfig(key, cfg)
	}
	e.breakers.OnStateChange(func(key string, from, to breaker.State) {
		e.logger.Warn("circuit breaker state changed",
			slog.String("backend", key),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
		e.hooks.EmitBreakerStateChanged(context.Background(), key, from, to)
	})

	for _, h := range b.handlers {
		if err := e.registry.Register(h.kind, h.fn); err != nil {
			return nil, err
		}
	}

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if b.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(b.tracerProvider.Tracer(scopeName))
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if b.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(b.meterProvider.Meter(scopeName))
	} else {
		metricsMw = mw.Metrics()
	}

	// Default middleware stack: recover → tracing → metrics → logging → timeout.
	all := []mw.Middleware{
		mw.Recover(e.logger),
		tracingMw,
		metricsMw,
		mw.Logging(e.logger),
		mw.Timeout(e.logger, e.cfg.DefaultStepTimeout),
	}
	all = append(all, b.middlewares...)
	e.chain = mw.Chain(all...)

	if b.dlqConfig != nil {
		e.queue = dlq.New(*b.dlqConfig, e.logger)
		e.queue.SetEmitter(e.hooks)
		e.queue.SetRequeueFunc(e.Requeuer())
	}

	if b.schedEnabled {
		submit := func(ctx context.Context, def *workflow.Definition, payload json.RawMessage) (id.ExecutionID, error) {
			exec, err := e.Execute(ctx, def, payload)
			if err != nil {
				return id.Nil, err
			}
			return exec.ID, nil
		}
		e.sched = schedule.NewScheduler(submit, e.hooks, e.logger, b.schedOpts...)
	}

	e.metrics = newEngineMetrics(b.meterProvider, e)

	return e, nil
}

// Start launches the engine's background loops: the DLQ sweeper and
// the cron scheduler, when configured. Calling Start twice is an error.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return cascade.ErrEngineClosed
	}
	if e.started {
		return cascade.ErrEngineStarted
	}

	if e.queue != nil {
		if err := e.queue.Start(ctx); err != nil {
			return fmt.Errorf("start dlq sweeper: %w", err)
		}
	}
	if e.sched != nil {
		if err := e.sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	e.started = true
	e.logger.Info("engine started")
	return nil
}

// Stop shuts the engine down: background loops are stopped, the
// shutdown hook fires, and further Execute calls fail with
// ErrEngineClosed. In-flight executions run to completion; Stop does
// not wait for them (cancellation is the caller's decision). Stop is
// idempotent.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	started := e.started
	e.mu.Unlock()

	if e.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ShutdownTimeout)
		defer cancel()
	}

	if started {
		if e.sched != nil {
			if err := e.sched.Stop(ctx); err != nil {
				e.logger.Error("scheduler stop error", slog.String("error", err.Error()))
			}
		}
		if e.queue != nil {
			if err := e.queue.Stop(ctx); err != nil {
				e.logger.Error("dlq sweeper stop error", slog.String("error", err.Error()))
			}
		}
	}

	e.hooks.EmitShutdown(ctx)
	e.logger.Info("engine stopped")
	return nil
}

// RegisterWorkflow validates a definition (including cycle detection)
// and remembers it by workflow id so DLQ requeues can resolve it.
// Re-registering an id replaces the stored definition.
func (e *Engine) RegisterWorkflow(def *workflow.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	if _, err := dag.Sort(def.Steps); err != nil {
		return err
	}

	e.mu.Lock()
	e.defs[def.ID] = def
	e.mu.Unlock()
	return nil
}

// Definition returns the stored definition for a workflow id.
func (e *Engine) Definition(workflowID string) (*workflow.Definition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	def, ok := e.defs[workflowID]
	if !ok {
		return nil, fmt.Errorf("%w: no definition for workflow %q", cascade.ErrInvalidDefinition, workflowID)
	}
	return def, nil
}

// Execute runs one workflow against the payload and returns the final
// execution record. Step-level failures never surface as an error:
// they are captured on the record and reflected in its status. Execute
// returns an error only for invalid definitions, rejected admission,
// or a closed engine — in those cases no execution record is created.
func (e *Engine) Execute(ctx context.Context, def *workflow.Definition, payload json.RawMessage) (*workflow.Execution, error) {
	return e.execute(ctx, def, payload, id.Nil, 0)
}

func (e *Engine) execute(ctx context.Context, def *workflow.Definition, payload json.RawMessage, parentID id.ExecutionID, retryCount int) (*workflow.Execution, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, cascade.ErrEngineClosed
	}

	// Validation failures reject the submission before any execution
	// record exists.
	if err := def.Validate(); err != nil {
		return nil, err
	}
	order, err := dag.Sort(def.Steps)
	if err != nil {
		return nil, err
	}
	for i := range def.Steps {
		if _, ok := e.registry.Handler(def.Steps[i].Kind); !ok {
			return nil, fmt.Errorf("%w: kind %q (step %q)",
				cascade.ErrHandlerNotFound, def.Steps[i].Kind, def.Steps[i].ID)
		}
	}

	if e.gate != nil {
		if !e.gate.Acquire(def.ID) {
			return nil, fmt.Errorf("%w: workflow %q", cascade.ErrTooManyExecutions, def.ID)
		}
		defer e.gate.Release(def.ID)
	}

	exec := workflow.NewExecution(def, payload)
	exec.ParentID = parentID
	exec.RetryCount = retryCount
	run := &activeRun{exec: exec}

	e.mu.Lock()
	e.defs[def.ID] = def
	e.active[exec.ID] = run
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.active, exec.ID)
		e.mu.Unlock()
	}()

	e.run(ctx, def, run, order)
	return exec, nil
}

// run drives one execution through its step order, checking for
// cancellation and the run deadline at every step boundary.
func (e *Engine) run(ctx context.Context, def *workflow.Definition, run *activeRun, order []string) {
	exec := run.exec

	run.mu.Lock()
	exec.Status = workflow.StatusRunning
	exec.StartedAt = time.Now().UTC()
	exec.Touch()
	run.mu.Unlock()

	e.logger.Info("execution started",
		slog.String("execution_id", exec.ID.String()),
		slog.String("workflow_id", exec.WorkflowID),
		slog.Int("steps", len(order)),
	)
	e.hooks.EmitExecutionStarted(ctx, exec)

	runTimeout := def.Timeout
	if runTimeout <= 0 {
		runTimeout = e.cfg.DefaultRunTimeout
	}
	runCtx := cascade.WithExecutionID(ctx, exec.ID)
	if runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, runTimeout)
		defer cancel()
	}

	for i, stepID := range order {
		if e.checkpoint(run, runCtx, runTimeout) {
			e.skipRemaining(run, order[i:])
			break
		}
		e.runStep(runCtx, def, run, def.StepByID(stepID))
	}
	// A deadline or cancellation that landed during the last step
	// still decides the final status.
	e.checkpoint(run, runCtx, runTimeout)

	e.finalize(ctx, run)
}

// checkpoint inspects cancellation and the run deadline between steps.
// It reports true when the run must stop. Cooperative only: an
// in-flight step is never interrupted, the next boundary observes the
// condition.
func (e *Engine) checkpoint(run *activeRun, runCtx context.Context, timeout time.Duration) bool {
	run.mu.Lock()
	defer run.mu.Unlock()

	exec := run.exec
	if exec.Status.Terminal() {
		// Cancel already flipped the record.
		return true
	}

	err := runCtx.Err()
	if err == nil {
		return false
	}

	now := time.Now().UTC()
	if errors.Is(err, context.DeadlineExceeded) {
		exec.Errors = append(exec.Errors, workflow.ExecutionError{
			Kind:    cascade.KindTimeout,
			Message: fmt.Sprintf("workflow execution timed out after %s", timeout),
			At:      now,
		})
		exec.Status = workflow.StatusTimeout
	} else {
		exec.Status = workflow.StatusCancelled
		exec.CancelReason = "context cancelled"
	}
	exec.CompletedAt = &now
	exec.Touch()
	return true
}

// skipRemaining records the steps the run never reached.
func (e *Engine) skipRemaining(run *activeRun, rest []string) {
	run.mu.Lock()
	defer run.mu.Unlock()
	for _, stepID := range rest {
		run.exec.Steps = append(run.exec.Steps, workflow.StepResult{
			StepID: stepID,
			Status: workflow.StepSkipped,
		})
	}
	run.exec.Touch()
}

// runStep invokes one step through the middleware chain, wrapped by
// the step's retry policy and, when the step names a backend, that
// backend's circuit breaker. The result is recorded whatever the
// outcome; a failed step does not abort the run.
func (e *Engine) runStep(ctx context.Context, def *workflow.Definition, run *activeRun, step *workflow.Step) {
	exec := run.exec
	handler, _ := e.registry.Handler(step.Kind) // presence checked at submission

	start := time.Now().UTC()
	run.mu.Lock()
	exec.Steps = append(exec.Steps, workflow.StepResult{
		StepID:    step.ID,
		Status:    workflow.StepRunning,
		StartedAt: start,
	})
	// Steps was allocated with capacity for every step, so this
	// pointer stays valid across later appends.
	result := &exec.Steps[len(exec.Steps)-1]
	run.mu.Unlock()

	sr := &workflow.StepRun{Execution: exec, Step: step, Result: result}
	stepCtx := cascade.WithStepID(ctx, step.ID)

	var output json.RawMessage
	attempt := func(ctx context.Context) error {
		return e.chain(ctx, sr, func(ctx context.Context) error {
			out, err := handler(ctx, step, exec.Payload)
			if err != nil {
				return err
			}
			output = out
			return nil
		})
	}

	op := attempt
	if step.Backend != "" {
		brk := e.breakers.Breaker(step.Backend)
		op = func(ctx context.Context) error {
			return brk.Execute(ctx, attempt)
		}
	}

	policy := e.retryDefault
	if def.Retry != nil {
		policy = *def.Retry
	}
	if step.Retry != nil {
		policy = *step.Retry
	}

	res, err := retry.Do(stepCtx, policy, op)

	now := time.Now().UTC()
	run.mu.Lock()
	result.RetryCount = res.Retries()
	result.CompletedAt = &now
	if err == nil {
		result.Status = workflow.StepCompleted
		result.Output = output
	} else {
		if errors.Is(err, context.DeadlineExceeded) {
			result.Status = workflow.StepTimeout
		} else {
			result.Status = workflow.StepFailed
		}
		result.Error = err.Error()
		exec.Errors = append(exec.Errors, workflow.ExecutionError{
			StepID:  step.ID,
			Kind:    cascade.KindOf(err),
			Message: err.Error(),
			At:      now,
		})
	}
	exec.Touch()
	run.mu.Unlock()

	for _, a := range res.Attempts {
		if a.Delay > 0 {
			e.hooks.EmitStepRetried(ctx, exec, step.ID, a.Index, a.Delay)
		}
	}
	e.metrics.recordRetries(ctx, res, err)

	if err == nil {
		e.hooks.EmitStepCompleted(ctx, exec, step.ID, now.Sub(start))
	} else {
		e.hooks.EmitStepFailed(ctx, exec, step.ID, err)
	}
}

// finalize settles the terminal status, emits the lifecycle hook, and
// hands recovery candidates to the DLQ.
func (e *Engine) finalize(ctx context.Context, run *activeRun) {
	run.mu.Lock()
	exec := run.exec
	if !exec.Status.Terminal() {
		if len(exec.Errors) > 0 || exec.Failed() {
			exec.Status = workflow.StatusFailed
		} else {
			exec.Status = workflow.StatusCompleted
		}
	}
	if exec.CompletedAt == nil {
		now := time.Now().UTC()
		exec.CompletedAt = &now
	}
	exec.Touch()
	status := exec.Status
	elapsed := exec.Duration()
	run.mu.Unlock()

	e.metrics.recordExecution(ctx, status)

	switch status {
	case workflow.StatusCompleted:
		e.logger.Info("execution completed",
			slog.String("execution_id", exec.ID.String()),
			slog.String("workflow_id", exec.WorkflowID),
			slog.Duration("elapsed", elapsed),
		)
	default:
		e.logger.Warn("execution ended",
			slog.String("execution_id", exec.ID.String()),
			slog.String("workflow_id", exec.WorkflowID),
			slog.String("status", string(status)),
			slog.Int("errors", len(exec.Errors)),
			slog.Duration("elapsed", elapsed),
		)
	}

	e.hooks.EmitExecutionFinished(ctx, exec, elapsed)

	// Requeued children never re-enter the queue: the originating
	// message owns the retry budget and is retained by the DLQ on a
	// failed requeue, so adding the child would duplicate the lineage.
	if e.queue != nil && exec.ParentID.IsNil() &&
		(status == workflow.StatusFailed || status == workflow.StatusTimeout) {
		cause := workflow.ExecutionError{
			Kind:    cascade.KindExecution,
			Message: fmt.Sprintf("execution ended %s", status),
			At:      time.Now().UTC(),
		}
		if n := len(exec.Errors); n > 0 {
			cause = exec.Errors[n-1]
		}
		meta := map[string]string{"workflow_name": exec.WorkflowName}
		if _, addErr := e.queue.Add(ctx, exec, cause, "", dlq.WithMetadata(meta)); addErr != nil {
			e.logger.Warn("dlq hand-off failed",
				slog.String("execution_id", exec.ID.String()),
				slog.String("error", addErr.Error()),
			)
		}
	}
}

// Cancel marks an active execution cancelled. Cancellation is
// cooperative: an in-flight step call is not interrupted, the run
// observes the flipped status at its next step boundary. Cancelling an
// unknown (or already cleaned up) execution returns
// ErrExecutionNotFound; cancelling one that just reached a terminal
// status returns ErrExecutionTerminal. Neither corrupts state.
func (e *Engine) Cancel(execID id.ExecutionID, reason string) error {
	e.mu.Lock()
	run, ok := e.active[execID]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", cascade.ErrExecutionNotFound, execID)
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	if run.exec.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", cascade.ErrExecutionTerminal, execID, run.exec.Status)
	}

	now := time.Now().UTC()
	run.exec.Status = workflow.StatusCancelled
	run.exec.CancelReason = reason
	run.exec.CompletedAt = &now
	run.exec.Touch()

	e.logger.Info("execution cancelled",
		slog.String("execution_id", execID.String()),
		slog.String("reason", reason),
	)
	return nil
}

// Status returns a copy of an active execution's record. Terminal
// executions are removed from the registry, so Status on a finished id
// returns ErrExecutionNotFound — callers keep the record Execute
// returned instead.
func (e *Engine) Status(execID id.ExecutionID) (*workflow.Execution, error) {
	e.mu.Lock()
	run, ok := e.active[execID]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", cascade.ErrExecutionNotFound, execID)
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	return run.exec.Clone(), nil
}

// Active returns copies of every currently active execution record.
func (e *Engine) Active() []*workflow.Execution {
	e.mu.Lock()
	runs := make([]*activeRun, 0, len(e.active))
	for _, run := range e.active {
		runs = append(runs, run)
	}
	e.mu.Unlock()

	out := make([]*workflow.Execution, 0, len(runs))
	for _, run := range runs {
		run.mu.Lock()
		out = append(out, run.exec.Clone())
		run.mu.Unlock()
	}
	return out
}

// Requeuer returns the callback that resubmits a DLQ message as a
// child execution of the one that failed. The child carries the
// message's retry count, so a workflow that keeps failing runs out of
// requeue budget instead of cycling through the queue forever.
func (e *Engine) Requeuer() dlq.RequeueFunc {
	return func(ctx context.Context, msg *dlq.Message) error {
		def, err := e.Definition(msg.WorkflowID)
		if err != nil {
			return err
		}
		exec, err := e.execute(ctx, def, msg.Payload, msg.ExecutionID, msg.RetryCount)
		if err != nil {
			return err
		}
		if exec.Status != workflow.StatusCompleted {
			return fmt.Errorf("requeued execution %s ended %s", exec.ID, exec.Status)
		}
		return nil
	}
}

// Registry returns the step handler registry.
func (e *Engine) Registry() *workflow.Registry { return e.registry }

// Breakers returns the per-backend circuit breaker group.
func (e *Engine) Breakers() *breaker.Group { return e.breakers }

// DLQ returns the dead letter queue, or nil when none is configured.
func (e *Engine) DLQ() *dlq.Queue { return e.queue }

// Scheduler returns the cron scheduler, or nil when none is configured.
func (e *Engine) Scheduler() *schedule.Scheduler { return e.sched }

// Extensions returns the lifecycle hook registry.
func (e *Engine) Extensions() *ext.Registry { return e.hooks }
