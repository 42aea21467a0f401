// Package admission gates workflow submission with rate limiting and
// concurrency caps.
//
// The engine asks the gate before creating an execution. A gate-wide
// config bounds total concurrent executions; per-workflow configs add
// tighter limits for individual definitions.
//
// # Configuration
//
// Use [Config] for both levels:
//
//	admission.Config{
//	    MaxConcurrent: 50,   // at most 50 executions in flight
//	    RateLimit:     20,   // max 20 submissions/s
//	    RateBurst:     40,   // allow bursts up to 40
//	}
//
// Pass the gate when building the engine:
//
//	gate := admission.NewGate(
//	    admission.Config{MaxConcurrent: 50},
//	    admission.Config{Name: "bulk-import", MaxConcurrent: 2},
//	)
//	engine.New(engine.WithAdmission(gate))
//
// # Gate
//
// [Gate] enforces limits at submission time. It uses a token-bucket
// rate limiter (golang.org/x/time/rate) and an active-count gate for
// concurrency limits.
//
//	if gate.Acquire(workflowID) {
//	    defer gate.Release(workflowID)
//	    // run the execution
//	}
//
// Workflows without a [Config] are bounded only by the gate-wide level.
package admission
