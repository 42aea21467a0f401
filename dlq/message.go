package dlq

import (
	"encoding/json"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/workflow"
)

// Priority orders messages for reads and automatic requeue.
type Priority string

// Priority levels, highest first.
const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// rank maps a priority to its sort position. Lower sorts first.
func (p Priority) rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	default:
		return 2
	}
}

// Valid reports whether p is one of the defined levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow:
		return true
	default:
		return false
	}
}

// ParsePriority maps a string to a Priority. Unknown or empty input
// falls back to PriorityNormal.
func ParsePriority(s string) Priority {
	p := Priority(s)
	if !p.Valid() {
		return PriorityNormal
	}
	return p
}

// PriorityForKind derives a default priority from the kind of the
// triggering error. Faults needing operator attention rank critical,
// likely-transient faults rank high, and failures a requeue cannot fix
// rank low.
func PriorityForKind(kind cascade.ErrorKind) Priority {
	switch kind {
	case cascade.KindSystem, cascade.KindAuthentication, cascade.KindAuthorization:
		return PriorityCritical
	case cascade.KindTimeout, cascade.KindNetwork:
		return PriorityHigh
	case cascade.KindValidation:
		return PriorityLow
	default:
		return PriorityNormal
	}
}

// Message represents an execution whose recovery was exhausted, held
// for inspection or requeue until it expires.
type Message struct {
	cascade.Entity

	ID          id.MessageID            `json:"id"`
	WorkflowID  string                  `json:"workflow_id"`
	ExecutionID id.ExecutionID          `json:"execution_id"`
	Payload     json.RawMessage         `json:"payload,omitempty"`
	Cause       workflow.ExecutionError `json:"cause"`
	RetryCount  int                     `json:"retry_count"`
	Priority    Priority                `json:"priority"`
	ExpiresAt   time.Time               `json:"expires_at"`
	Metadata    map[string]string       `json:"metadata,omitempty"`
}

// Expired reports whether the message is past its expiry at the given
// instant.
func (m *Message) Expired(now time.Time) bool {
	return now.After(m.ExpiresAt)
}

// clone returns a copy safe to hand to callers. The metadata map is
// duplicated; payload bytes are shared and treated as read-only.
func (m *Message) clone() *Message {
	cp := *m
	if m.Metadata != nil {
		cp.Metadata = make(map[string]string, len(m.Metadata))
		for k, v := range m.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// Filter narrows Messages queries. Zero fields match everything.
type Filter struct {
	// WorkflowID matches messages from one workflow definition.
	WorkflowID string
	// Priority matches one priority level.
	Priority Priority
	// Kind matches on the kind of the triggering error.
	Kind cascade.ErrorKind
	// Limit caps the number of messages returned. Zero means no limit.
	Limit int
}

// matches reports whether the message passes every set field.
func (f Filter) matches(m *Message) bool {
	if f.WorkflowID != "" && m.WorkflowID != f.WorkflowID {
		return false
	}
	if f.Priority != "" && m.Priority != f.Priority {
		return false
	}
	if f.Kind != "" && m.Cause.Kind != f.Kind {
		return false
	}
	return true
}
