package domain

import (
	"slices"
	"time"
)

// Team is a worship team sharing a service calendar.
type Team struct {
	Syncable
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	JoinCode    string   `json:"join_code"`
	Members     []string `json:"members"`
	Admins      []string `json:"admins"`
}

// IsMember reports whether userID belongs to the team.
func (t *Team) IsMember(userID string) bool {
	return slices.Contains(t.Members, userID)
}

// IsAdmin reports whether userID administers the team.
func (t *Team) IsAdmin(userID string) bool {
	return slices.Contains(t.Admins, userID)
}

// TeamEvent assigns a setlist to one calendar date of a team. There is at most
// one event per team per date.
type TeamEvent struct {
	TeamID      string    `json:"team_id"`
	Date        string    `json:"date"`
	SetlistID   string    `json:"setlist_id"`
	SetlistName string    `json:"setlist_name"`
	AssignedBy  string    `json:"assigned_by"`
	UpdatedAt   time.Time `json:"updated_at"`
}
