package cascade

import "errors"

var (
	// Definition errors.
	ErrInvalidDefinition = errors.New("cascade: invalid workflow definition")
	ErrKindRegistered    = errors.New("cascade: handler kind already registered")
	ErrHandlerNotFound   = errors.New("cascade: no handler registered for step kind")

	// Not found errors.
	ErrExecutionNotFound = errors.New("cascade: execution not found")
	ErrMessageNotFound   = errors.New("cascade: dlq message not found")
	ErrScheduleNotFound  = errors.New("cascade: schedule entry not found")

	// State errors.
	ErrExecutionTerminal  = errors.New("cascade: execution already terminal")
	ErrMaxRetriesExceeded = errors.New("cascade: max retries exceeded")
	ErrMessageExpired     = errors.New("cascade: dlq message expired")
	ErrEngineClosed       = errors.New("cascade: engine closed")
	ErrEngineStarted      = errors.New("cascade: engine already started")

	// Capacity errors.
	ErrDLQFull           = errors.New("cascade: dead letter queue full")
	ErrTooManyExecutions = errors.New("cascade: too many concurrent executions")

	// Breaker errors.
	ErrCircuitOpen = errors.New("cascade: circuit breaker open")
)
