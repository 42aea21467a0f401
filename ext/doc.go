// Package ext defines the extension system for Cascade.
//
// Extensions are notified of lifecycle events and can react to them —
// recording metrics, emitting webhooks, writing audit logs, etc.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnExecutionFinished(ctx context.Context, exec *workflow.Execution, elapsed time.Duration) error {
//	    log.Printf("run %s finished %s in %s", exec.ID, exec.Status, elapsed)
//	    return nil
//	}
//
// # Execution Lifecycle Hooks
//
//   - [ExecutionStarted] — a run began executing
//   - [ExecutionFinished] — a run reached a terminal status
//   - [StepCompleted] — a step finished successfully
//   - [StepFailed] — a step failed terminally within its run
//   - [StepRetried] — a step attempt failed and will be retried
//
// # Reliability Hooks
//
//   - [BreakerStateChanged] — a backend's circuit breaker transitioned
//   - [MessageQueued] — an execution was moved to the dead letter queue
//   - [MessageRequeued] — a DLQ message was resubmitted successfully
//   - [MessageExpired] — a DLQ message passed its TTL and was dropped
//
// # Other Hooks
//
//   - [ScheduleFired] — a schedule entry was triggered and a run submitted
//   - [Shutdown] — the engine is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package ext
