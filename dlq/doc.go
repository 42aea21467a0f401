// Package dlq provides the dead letter queue for executions whose
// recovery has been exhausted. It supports inspection, requeue, and
// expiration.
//
// When a run fails terminally, the engine calls [Queue.Add] to move it
// into the DLQ. The payload snapshot, triggering error, and retry
// counts are preserved for debugging.
//
// # Message
//
// A [Message] captures:
//   - WorkflowID / ExecutionID: identity of the failed run
//   - Payload: the raw JSON payload at time of failure
//   - Cause: the triggering execution error, classified by kind
//   - RetryCount: requeue attempts consumed so far
//   - Priority: critical > high > normal > low, drives read order
//   - ExpiresAt: messages past this instant are dead for good
//
// # Queue
//
// [Queue] is a bounded in-memory store:
//
//	q := dlq.New(dlq.DefaultConfig(), logger)
//	q.SetRequeueFunc(requeue)
//
//	// Add is called by the engine on terminal failure.
//	msg, err := q.Add(ctx, exec, cause, dlq.PriorityHigh)
//
//	// Inspect and requeue by hand.
//	q.Messages(dlq.Filter{Priority: dlq.PriorityCritical})
//	q.Retry(ctx, msg.ID)
//
// Reads are ordered by priority, then by creation time ascending.
// Expired messages are never returned by [Queue.Messages].
//
// # Sweeper
//
// Start launches a background loop that periodically drops expired
// messages and requeues a bounded batch of eligible ones. Ticks never
// overlap. Stop waits for the loop to exit.
package dlq
