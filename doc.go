// Package cascade provides a workflow execution and reliability engine
// for Go. It runs multi-step task graphs with dependency ordering,
// per-step timeouts, retry with backoff, circuit-breaker protection of
// external backends, and a dead letter queue for runs that exhaust
// recovery.
//
// Cascade is designed as a library, not a service. Import it, register
// step handlers as ordinary Go functions, and submit workflow
// definitions for execution in-process.
//
// # Quick Start
//
//	eng, err := engine.New(
//	    engine.WithHandler("charge", chargeHandler),
//	    engine.WithDLQ(dlq.DefaultConfig()),
//	)
//	exec, err := eng.Execute(ctx, def, payload)
//
// # Architecture
//
// Each reliability concern is its own package: backoff (delay
// strategies), breaker (per-dependency circuit breakers), retry
// (attempt bookkeeping), dag (dependency ordering), dlq (dead
// lettering), admission (submission gating), schedule (cron triggers).
// The engine package composes them around a per-step middleware chain.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package cascade
