package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/contiapp/conti-server/internal/domain"
	"github.com/contiapp/conti-server/internal/service"
)

func (s *Server) registerTeamRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createTeam",
		Method:        http.MethodPost,
		Path:          "/api/v1/teams",
		Summary:       "Create team",
		Description:   "Creates a team with a fresh join code. The creator becomes its first member and admin.",
		Tags:          []string{"Teams"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateTeam)

	huma.Register(s.api, huma.Operation{
		OperationID: "joinTeam",
		Method:      http.MethodPost,
		Path:        "/api/v1/teams/join",
		Summary:     "Join team",
		Description: "Joins the team with the given join code",
		Tags:        []string{"Teams"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleJoinTeam)

	huma.Register(s.api, huma.Operation{
		OperationID: "listTeams",
		Method:      http.MethodGet,
		Path:        "/api/v1/teams",
		Summary:     "List my teams",
		Description: "Returns the teams the current user belongs to",
		Tags:        []string{"Teams"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListTeams)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTeam",
		Method:      http.MethodGet,
		Path:        "/api/v1/teams/{id}",
		Summary:     "Get team",
		Description: "Returns a team by ID. Members only.",
		Tags:        []string{"Teams"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetTeam)

	huma.Register(s.api, huma.Operation{
		OperationID: "listTeamEvents",
		Method:      http.MethodGet,
		Path:        "/api/v1/teams/{id}/events",
		Summary:     "List team events",
		Description: "Returns the team calendar in date order",
		Tags:        []string{"Teams"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListTeamEvents)

	huma.Register(s.api, huma.Operation{
		OperationID: "setTeamEvent",
		Method:      http.MethodPut,
		Path:        "/api/v1/teams/{id}/events/{date}",
		Summary:     "Assign setlist to date",
		Description: "Assigns one of the current user's setlists to a calendar date, replacing any earlier assignment",
		Tags:        []string{"Teams"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSetTeamEvent)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteTeamEvent",
		Method:        http.MethodDelete,
		Path:          "/api/v1/teams/{id}/events/{date}",
		Summary:       "Clear date",
		Description:   "Removes the setlist assigned to a calendar date",
		Tags:          []string{"Teams"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteTeamEvent)
}

// === DTOs ===

// TeamResponse contains team data in API responses.
type TeamResponse struct {
	ID          string    `json:"id" doc:"Team ID"`
	Name        string    `json:"name" doc:"Team name"`
	Description string    `json:"description,omitempty" doc:"Team description"`
	JoinCode    string    `json:"join_code" doc:"Code others use to join"`
	Members     []string  `json:"members" doc:"Member user IDs"`
	Admins      []string  `json:"admins" doc:"Admin user IDs"`
	CreatedAt   time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt   time.Time `json:"updated_at" doc:"Last update time"`
}

// TeamOutput wraps a team response for Huma.
type TeamOutput struct {
	Body TeamResponse
}

// CreateTeamInput wraps the create request for Huma.
type CreateTeamInput struct {
	Body struct {
		Name        string `json:"name" minLength:"1" maxLength:"100" doc:"Team name"`
		Description string `json:"description,omitempty" maxLength:"500" doc:"Team description"`
	}
}

// JoinTeamInput wraps the join request for Huma.
type JoinTeamInput struct {
	Body struct {
		Code string `json:"code" doc:"Join code, case insensitive"`
	}
}

// ListTeamsResponse contains a list of teams.
type ListTeamsResponse struct {
	Teams []TeamResponse `json:"teams" doc:"Teams"`
}

// ListTeamsOutput wraps the list response for Huma.
type ListTeamsOutput struct {
	Body ListTeamsResponse
}

// TeamIDInput addresses one team.
type TeamIDInput struct {
	ID string `path:"id" doc:"Team ID"`
}

// TeamEventResponse is one calendar entry.
type TeamEventResponse struct {
	TeamID      string    `json:"team_id" doc:"Team ID"`
	Date        string    `json:"date" doc:"Calendar date (YYYY-MM-DD)"`
	SetlistID   string    `json:"setlist_id" doc:"Assigned setlist"`
	SetlistName string    `json:"setlist_name" doc:"Setlist name when assigned"`
	AssignedBy  string    `json:"assigned_by" doc:"User who assigned the setlist"`
	UpdatedAt   time.Time `json:"updated_at" doc:"Assignment time"`
}

// TeamEventOutput wraps a calendar entry for Huma.
type TeamEventOutput struct {
	Body TeamEventResponse
}

// ListTeamEventsInput bounds the calendar query.
type ListTeamEventsInput struct {
	ID   string `path:"id" doc:"Team ID"`
	From string `query:"from" doc:"First date, inclusive (YYYY-MM-DD)"`
	To   string `query:"to" doc:"Last date, inclusive (YYYY-MM-DD)"`
}

// ListTeamEventsResponse contains calendar entries.
type ListTeamEventsResponse struct {
	Events []TeamEventResponse `json:"events" doc:"Events in date order"`
}

// ListTeamEventsOutput wraps the calendar for Huma.
type ListTeamEventsOutput struct {
	Body ListTeamEventsResponse
}

// SetTeamEventInput assigns a setlist to a date.
type SetTeamEventInput struct {
	ID   string `path:"id" doc:"Team ID"`
	Date string `path:"date" doc:"Calendar date (YYYY-MM-DD)"`
	Body struct {
		SetlistID string `json:"setlist_id" doc:"One of the current user's setlists"`
	}
}

// TeamEventInput addresses one calendar date.
type TeamEventInput struct {
	ID   string `path:"id" doc:"Team ID"`
	Date string `path:"date" doc:"Calendar date (YYYY-MM-DD)"`
}

// === Handlers ===

func (s *Server) handleCreateTeam(ctx context.Context, input *CreateTeamInput) (*TeamOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	team, err := s.services.Team.Create(ctx, userID, service.CreateTeamRequest{
		Name:        input.Body.Name,
		Description: input.Body.Description,
	})
	if err != nil {
		return nil, err
	}
	return &TeamOutput{Body: mapTeam(team)}, nil
}

func (s *Server) handleJoinTeam(ctx context.Context, input *JoinTeamInput) (*TeamOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	team, err := s.services.Team.Join(ctx, userID, input.Body.Code)
	if err != nil {
		return nil, err
	}
	return &TeamOutput{Body: mapTeam(team)}, nil
}

func (s *Server) handleListTeams(ctx context.Context, _ *struct{}) (*ListTeamsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	teams, err := s.services.Team.ListMine(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := ListTeamsResponse{Teams: make([]TeamResponse, len(teams))}
	for i, t := range teams {
		resp.Teams[i] = mapTeam(t)
	}
	return &ListTeamsOutput{Body: resp}, nil
}

func (s *Server) handleGetTeam(ctx context.Context, input *TeamIDInput) (*TeamOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	team, err := s.services.Team.Get(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	return &TeamOutput{Body: mapTeam(team)}, nil
}

func (s *Server) handleListTeamEvents(ctx context.Context, input *ListTeamEventsInput) (*ListTeamEventsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	events, err := s.services.Team.ListEvents(ctx, userID, input.ID, input.From, input.To)
	if err != nil {
		return nil, err
	}

	resp := ListTeamEventsResponse{Events: make([]TeamEventResponse, len(events))}
	for i, ev := range events {
		resp.Events[i] = mapTeamEvent(ev)
	}
	return &ListTeamEventsOutput{Body: resp}, nil
}

func (s *Server) handleSetTeamEvent(ctx context.Context, input *SetTeamEventInput) (*TeamEventOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	ev, err := s.services.Team.SetEvent(ctx, userID, input.ID, service.SetEventRequest{
		Date:      input.Date,
		SetlistID: input.Body.SetlistID,
	})
	if err != nil {
		return nil, err
	}
	return &TeamEventOutput{Body: mapTeamEvent(ev)}, nil
}

func (s *Server) handleDeleteTeamEvent(ctx context.Context, input *TeamEventInput) (*struct{}, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Team.DeleteEvent(ctx, userID, input.ID, input.Date); err != nil {
		return nil, err
	}
	return nil, nil
}

// === Helpers ===

func mapTeam(t *domain.Team) TeamResponse {
	return TeamResponse{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		JoinCode:    t.JoinCode,
		Members:     nonNil(t.Members),
		Admins:      nonNil(t.Admins),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func mapTeamEvent(ev *domain.TeamEvent) TeamEventResponse {
	return TeamEventResponse{
		TeamID:      ev.TeamID,
		Date:        ev.Date,
		SetlistID:   ev.SetlistID,
		SetlistName: ev.SetlistName,
		AssignedBy:  ev.AssignedBy,
		UpdatedAt:   ev.UpdatedAt,
	}
}
