package cascade

import "time"

// Entity provides common timestamp metadata embedded by Cascade
// entities (executions, DLQ messages, schedule entries).
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity returns an Entity with both timestamps set to now (UTC).
func NewEntity() Entity {
	now := time.Now().UTC()
	return Entity{CreatedAt: now, UpdatedAt: now}
}

// Touch sets UpdatedAt to now (UTC). Called on every mutation.
func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}
