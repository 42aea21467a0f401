// Package engine orchestrates workflow executions. It validates
// definitions, orders steps by their dependency edges, and drives each
// step through the per-attempt middleware chain, wrapped by the step's
// retry policy and — when the step targets an external backend — that
// backend's circuit breaker. Executions that end failed or timed out
// are handed to the dead letter queue when one is configured.
//
// The engine package sits above every subsystem package and below the
// application layer; it is where the breaker group, DLQ, scheduler,
// admission gate, and extension hooks are wired together.
//
// # Building an Engine
//
//	eng, err := engine.New(
//	    engine.WithHandler("charge", chargeHandler),
//	    engine.WithDLQ(dlq.DefaultConfig()),
//	    engine.WithScheduler(),
//	    engine.WithBreakerConfig("payments", breaker.Config{FailureThreshold: 3}),
//	)
//
// # Running Workflows
//
//	exec, err := eng.Execute(ctx, def, payload)
//	if err != nil {
//	    // rejected before a record was created: invalid definition,
//	    // admission, or closed engine
//	}
//	if exec.Status != workflow.StatusCompleted {
//	    // step-level failures are on exec.Errors, never returned as err
//	}
//
// Execute always returns the full execution record for accepted
// submissions; callers inspect its Status and Errors rather than rely
// on control flow.
package engine
