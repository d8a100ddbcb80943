// Package types provides the value types shared by settlement entities.
package types

import "time"

// Entity carries the timestamps every stored record has.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity creates an Entity stamped with the current UTC time.
func NewEntity() Entity {
	now := time.Now().UTC()
	return Entity{
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch updates UpdatedAt to now.
func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}

// IsStale reports whether the record has not been updated for at least d.
func (e Entity) IsStale(d time.Duration) bool {
	return time.Since(e.UpdatedAt) >= d
}
