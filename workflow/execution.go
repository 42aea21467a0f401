package workflow

import (
	"encoding/json"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
)

// Execution is the aggregate record of one workflow run. It is created
// at submission, mutated only by the engine that owns it, and immutable
// once its status is terminal.
type Execution struct {
	cascade.Entity

	ID           id.ExecutionID   `json:"id"`
	WorkflowID   string           `json:"workflow_id"`
	WorkflowName string           `json:"workflow_name"`
	Status       Status           `json:"status"`
	Payload      json.RawMessage  `json:"payload,omitempty"`
	Steps        []StepResult     `json:"steps"`
	Errors       []ExecutionError `json:"errors,omitempty"`
	RetryCount   int              `json:"retry_count"`
	ParentID     id.ExecutionID   `json:"parent_id,omitempty"`
	CancelReason string           `json:"cancel_reason,omitempty"`
	StartedAt    time.Time        `json:"started_at"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
}

// NewExecution creates a pending execution record for the definition
// with a snapshot of the payload.
func NewExecution(def *Definition, payload json.RawMessage) *Execution {
	return &Execution{
		Entity:       cascade.NewEntity(),
		ID:           id.NewExecutionID(),
		WorkflowID:   def.ID,
		WorkflowName: def.Name,
		Status:       StatusPending,
		Payload:      payload,
		Steps:        make([]StepResult, 0, len(def.Steps)),
	}
}

// Failed reports whether any recorded step ended failed or timed out.
func (e *Execution) Failed() bool {
	for i := range e.Steps {
		switch e.Steps[i].Status {
		case StepFailed, StepTimeout:
			return true
		}
	}
	return false
}

// StepResult returns the recorded result for a step id, or nil.
func (e *Execution) StepResult(stepID string) *StepResult {
	for i := range e.Steps {
		if e.Steps[i].StepID == stepID {
			return &e.Steps[i]
		}
	}
	return nil
}

// Duration returns the wall time of the run so far, or the final run
// time once the execution completed.
func (e *Execution) Duration() time.Duration {
	if e.StartedAt.IsZero() {
		return 0
	}
	if e.CompletedAt != nil {
		return e.CompletedAt.Sub(e.StartedAt)
	}
	return time.Since(e.StartedAt)
}

// Clone returns a deep copy of the execution. The engine hands clones
// to callers so the live record stays owned by the run that mutates it.
func (e *Execution) Clone() *Execution {
	out := *e
	out.Steps = make([]StepResult, len(e.Steps))
	copy(out.Steps, e.Steps)
	out.Errors = make([]ExecutionError, len(e.Errors))
	copy(out.Errors, e.Errors)
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

// StepResult records the outcome of one step within an execution.
type StepResult struct {
	StepID      string          `json:"step_id"`
	Status      StepStatus      `json:"status"`
	Output      json.RawMessage `json:"output,omitempty"`
	Error       string          `json:"error,omitempty"`
	RetryCount  int             `json:"retry_count"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// ExecutionError captures one step's terminal failure, classified by
// error kind.
type ExecutionError struct {
	StepID  string            `json:"step_id,omitempty"`
	Kind    cascade.ErrorKind `json:"kind"`
	Message string            `json:"message"`
	At      time.Time         `json:"at"`
}

// StepRun is the unit the per-step middleware chain operates on: one
// step invocation within one execution. Handlers read Execution and
// Step and write Result.
type StepRun struct {
	Execution *Execution
	Step      *Step
	Result    *StepResult
}
