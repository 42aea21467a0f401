package schedule

import (
	"encoding/json"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/workflow"
)

// Entry represents a scheduled workflow submission.
type Entry struct {
	cascade.Entity

	ID         id.ScheduleID        `json:"id"`
	Name       string               `json:"name"`
	Expr       string               `json:"expr"`
	Definition *workflow.Definition `json:"definition"`
	Payload    json.RawMessage      `json:"payload,omitempty"`
	Enabled    bool                 `json:"enabled"`
	LastRun    *time.Time           `json:"last_run,omitempty"`
	NextRun    *time.Time           `json:"next_run,omitempty"`
}

// clone returns a copy safe to hand to callers. The definition pointer
// is shared and treated as read-only.
func (e *Entry) clone() *Entry {
	cp := *e
	if e.LastRun != nil {
		last := *e.LastRun
		cp.LastRun = &last
	}
	if e.NextRun != nil {
		next := *e.NextRun
		cp.NextRun = &next
	}
	return &cp
}
