// Package sse pushes library, setlist and team calendar changes to connected
// browsers over Server-Sent Events.
package sse

import (
	"time"

	"github.com/contiapp/conti-server/internal/domain"
)

// EventType names an SSE event.
type EventType string

// Event types.
const (
	EventSheetCreated EventType = "sheet.created"
	EventSheetUpdated EventType = "sheet.updated"
	EventSheetDeleted EventType = "sheet.deleted"

	// Setlist events go to the owner only.
	EventSetlistCreated EventType = "setlist.created"
	EventSetlistUpdated EventType = "setlist.updated"
	EventSetlistDeleted EventType = "setlist.deleted"

	// Team events go to team members only.
	EventTeamMemberJoined EventType = "team.member_joined"
	EventTeamEventSet     EventType = "team.event.updated"
	EventTeamEventDeleted EventType = "team.event.deleted"

	EventHeartbeat EventType = "heartbeat"
)

// Event is one message to deliver.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// Audience restricts delivery to these user ids. Empty means everyone.
	Audience []string `json:"-"`
}

// SheetEventData carries the sheet after a create or update.
type SheetEventData struct {
	Sheet *domain.SongSheet `json:"sheet"`
}

// SheetDeletedEventData identifies a deleted sheet.
type SheetDeletedEventData struct {
	SheetID   string    `json:"sheet_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// SetlistEventData carries the setlist after a change.
type SetlistEventData struct {
	Setlist *domain.Setlist `json:"setlist"`
}

// SetlistDeletedEventData identifies a deleted setlist.
type SetlistDeletedEventData struct {
	SetlistID string    `json:"setlist_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// TeamMemberEventData announces a new member.
type TeamMemberEventData struct {
	TeamID string `json:"team_id"`
	UserID string `json:"user_id"`
}

// TeamEventData carries a calendar assignment.
type TeamEventData struct {
	Event *domain.TeamEvent `json:"event"`
}

// TeamEventDeletedData identifies a removed assignment.
type TeamEventDeletedData struct {
	TeamID string `json:"team_id"`
	Date   string `json:"date"`
}

// HeartbeatEventData keeps idle connections open through proxies.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

func newEvent(t EventType, data any, audience ...string) Event {
	return Event{Type: t, Data: data, Timestamp: time.Now(), Audience: audience}
}

// NewSheetCreatedEvent is broadcast to everyone.
func NewSheetCreatedEvent(s *domain.SongSheet) Event {
	return newEvent(EventSheetCreated, SheetEventData{Sheet: s})
}

// NewSheetUpdatedEvent is broadcast to everyone.
func NewSheetUpdatedEvent(s *domain.SongSheet) Event {
	return newEvent(EventSheetUpdated, SheetEventData{Sheet: s})
}

// NewSheetDeletedEvent is broadcast to everyone.
func NewSheetDeletedEvent(sheetID string) Event {
	return newEvent(EventSheetDeleted, SheetDeletedEventData{SheetID: sheetID, DeletedAt: time.Now()})
}

// NewSetlistEvent targets the setlist owner.
func NewSetlistEvent(t EventType, s *domain.Setlist) Event {
	return newEvent(t, SetlistEventData{Setlist: s}, s.OwnerID)
}

// NewSetlistDeletedEvent targets the former owner.
func NewSetlistDeletedEvent(ownerID, setlistID string) Event {
	return newEvent(EventSetlistDeleted, SetlistDeletedEventData{SetlistID: setlistID, DeletedAt: time.Now()}, ownerID)
}

// NewTeamMemberJoinedEvent targets the team's members.
func NewTeamMemberJoinedEvent(team *domain.Team, userID string) Event {
	return newEvent(EventTeamMemberJoined, TeamMemberEventData{TeamID: team.ID, UserID: userID}, team.Members...)
}

// NewTeamEventSetEvent targets the team's members.
func NewTeamEventSetEvent(team *domain.Team, ev *domain.TeamEvent) Event {
	return newEvent(EventTeamEventSet, TeamEventData{Event: ev}, team.Members...)
}

// NewTeamEventDeletedEvent targets the team's members.
func NewTeamEventDeletedEvent(team *domain.Team, date string) Event {
	return newEvent(EventTeamEventDeleted, TeamEventDeletedData{TeamID: team.ID, Date: date}, team.Members...)
}

// NewHeartbeatEvent creates a heartbeat.
func NewHeartbeatEvent() Event {
	return newEvent(EventHeartbeat, HeartbeatEventData{ServerTime: time.Now()})
}
