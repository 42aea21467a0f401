package workflow

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/breaker"
	"github.com/xraph/cascade/retry"
)

// Definition is a declarative workflow: a set of steps with dependency
// edges plus run-level policy defaults. A definition is immutable once
// an execution starts.
type Definition struct {
	// ID uniquely identifies the workflow.
	ID string `json:"id"`

	// Name is the human-readable workflow name.
	Name string `json:"name"`

	// Steps is the step set. Order in the slice does not matter;
	// execution order is derived from DependsOn edges and Order hints.
	Steps []Step `json:"steps"`

	// Timeout bounds the whole run. Zero means the engine default.
	Timeout time.Duration `json:"timeout,omitempty"`

	// Retry is the run-level default retry policy for steps that do
	// not declare their own. Nil means the engine default.
	Retry *retry.Policy `json:"retry,omitempty"`

	// Breaker is the run-level default circuit breaker config for
	// steps that target a backend. Nil means the engine default.
	Breaker *breaker.Config `json:"breaker,omitempty"`

	// MaxConcurrent caps concurrent executions of this workflow
	// admitted by the engine. Zero means the engine default.
	MaxConcurrent int `json:"max_concurrent,omitempty"`
}

// Step is one node in the workflow graph.
type Step struct {
	// ID is unique within the definition.
	ID string `json:"id"`

	// Kind selects the registered handler that runs this step.
	Kind string `json:"kind"`

	// Config is the handler-specific configuration blob.
	Config json.RawMessage `json:"config,omitempty"`

	// DependsOn lists step IDs that must complete before this step.
	DependsOn []string `json:"depends_on,omitempty"`

	// Order is a hint used to break ties between steps that the
	// dependency edges leave unordered. Lower runs first.
	Order int `json:"order,omitempty"`

	// Retry overrides the run-level retry policy for this step.
	Retry *retry.Policy `json:"retry,omitempty"`

	// Timeout bounds a single handler invocation. Zero means the
	// engine default.
	Timeout time.Duration `json:"timeout,omitempty"`

	// Backend names the external dependency this step calls. Steps
	// sharing a backend share one circuit breaker; empty means the
	// step is not routed through a breaker.
	Backend string `json:"backend,omitempty"`
}

// Validate checks the definition's local invariants: identity fields,
// a non-empty step set, per-step id/kind, unique step IDs, well-formed
// config JSON, and that every dependency references a known step.
// Cycle detection is the scheduler's job and is not performed here.
// All violations wrap cascade.ErrInvalidDefinition.
func (d *Definition) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: definition is nil", cascade.ErrInvalidDefinition)
	}
	if d.ID == "" {
		return fmt.Errorf("%w: workflow id is required", cascade.ErrInvalidDefinition)
	}
	if d.Name == "" {
		return fmt.Errorf("%w: workflow name is required", cascade.ErrInvalidDefinition)
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("%w: workflow %q has no steps", cascade.ErrInvalidDefinition, d.ID)
	}

	seen := make(map[string]struct{}, len(d.Steps))
	for i := range d.Steps {
		s := &d.Steps[i]
		if s.ID == "" {
			return fmt.Errorf("%w: step %d has no id", cascade.ErrInvalidDefinition, i)
		}
		if s.Kind == "" {
			return fmt.Errorf("%w: step %q has no kind", cascade.ErrInvalidDefinition, s.ID)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("%w: duplicate step id %q", cascade.ErrInvalidDefinition, s.ID)
		}
		seen[s.ID] = struct{}{}

		if len(s.Config) > 0 && !json.Valid(s.Config) {
			return fmt.Errorf("%w: step %q config is not valid JSON", cascade.ErrInvalidDefinition, s.ID)
		}
	}

	for i := range d.Steps {
		s := &d.Steps[i]
		for _, dep := range s.DependsOn {
			if dep == s.ID {
				return fmt.Errorf("%w: step %q depends on itself", cascade.ErrInvalidDefinition, s.ID)
			}
			if _, ok := seen[dep]; !ok {
				return fmt.Errorf("%w: step %q depends on unknown step %q", cascade.ErrInvalidDefinition, s.ID, dep)
			}
		}
	}

	return nil
}

// StepByID returns the step with the given id, or nil.
func (d *Definition) StepByID(id string) *Step {
	for i := range d.Steps {
		if d.Steps[i].ID == id {
			return &d.Steps[i]
		}
	}
	return nil
}
