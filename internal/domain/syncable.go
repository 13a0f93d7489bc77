package domain

import "time"

// Syncable carries the identifier and timestamps shared by persisted entities.
type Syncable struct {
	ID        string    `json:"id" bson:"_id"`
	CreatedAt time.Time `json:"created_at" bson:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" bson:"updatedAt"`
}

// InitTimestamps sets both timestamps to now.
func (s *Syncable) InitTimestamps(now time.Time) {
	s.CreatedAt = now
	s.UpdatedAt = now
}

// Touch bumps UpdatedAt.
func (s *Syncable) Touch(now time.Time) {
	s.UpdatedAt = now
}
