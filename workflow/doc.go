// Package workflow defines workflow definitions, steps, execution
// records, and the step handler registry.
//
// A Definition is a declarative graph: each Step names the steps it
// depends on, and the engine derives a total execution order from
// those edges. Steps are invoked through handlers registered by kind,
// so a definition stays pure data and can be marshaled, stored, and
// replayed.
package workflow
