// Package types provides common types shared across the quota core packages.
package types

import "time"

// Entity is the base type for all quota-core documents with timestamps.
// Embed this in any document type to get CreatedAt/UpdatedAt bookkeeping.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity creates a new Entity with current UTC timestamps.
func NewEntity() Entity {
	now := time.Now().UTC()
	return Entity{CreatedAt: now, UpdatedAt: now}
}

// Touch updates the UpdatedAt timestamp to now.
func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}
