package workflow

// Status represents the lifecycle state of a workflow execution.
type Status string

const (
	// StatusPending means the execution record exists but has not
	// started running.
	StatusPending Status = "pending"
	// StatusRunning means the engine is currently driving the
	// execution.
	StatusRunning Status = "running"
	// StatusCompleted means every step finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed means at least one step ended failed.
	StatusFailed Status = "failed"
	// StatusCancelled means the execution was cancelled by a caller.
	StatusCancelled Status = "cancelled"
	// StatusTimeout means the run-level timeout elapsed.
	StatusTimeout Status = "timeout"
)

// Terminal reports whether the status permits no further mutation.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimeout:
		return true
	default:
		return false
	}
}

// StepStatus represents the lifecycle state of a single step within
// an execution.
type StepStatus string

const (
	// StepPending means the step has not started.
	StepPending StepStatus = "pending"
	// StepRunning means the step handler is executing.
	StepRunning StepStatus = "running"
	// StepCompleted means the step finished successfully.
	StepCompleted StepStatus = "completed"
	// StepFailed means the step failed after exhausting its retries.
	StepFailed StepStatus = "failed"
	// StepSkipped means the step never ran because the run aborted
	// before reaching it.
	StepSkipped StepStatus = "skipped"
	// StepTimeout means the step's own timeout elapsed.
	StepTimeout StepStatus = "timeout"
)
