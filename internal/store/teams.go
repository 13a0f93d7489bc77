package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/contiapp/conti-server/internal/domain"
)

func normalizeJoinCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func teamEventID(teamID, date string) string {
	return teamID + ":" + date
}

// CreateTeam persists a new team. A join code collision fails with ErrAlreadyExists.
func (s *Store) CreateTeam(ctx context.Context, team *domain.Team) error {
	team.JoinCode = normalizeJoinCode(team.JoinCode)
	if err := s.Teams.Create(ctx, team.ID, team); err != nil {
		return fmt.Errorf("create team: %w", err)
	}
	return nil
}

// GetTeam loads one team.
func (s *Store) GetTeam(ctx context.Context, teamID string) (*domain.Team, error) {
	t, err := s.Teams.Get(ctx, teamID)
	if err != nil {
		return nil, translate(err, ErrTeamNotFound)
	}
	return t, nil
}

// GetTeamByJoinCode loads a team by its join code, ignoring case and surrounding spaces.
func (s *Store) GetTeamByJoinCode(ctx context.Context, code string) (*domain.Team, error) {
	t, err := s.Teams.GetByIndex(ctx, "join_code", code)
	if err != nil {
		return nil, translate(err, ErrTeamNotFound)
	}
	return t, nil
}

// MutateTeam applies fn to a team inside one transaction.
func (s *Store) MutateTeam(ctx context.Context, teamID string, fn func(*domain.Team) error) (*domain.Team, error) {
	t, err := s.Teams.Mutate(ctx, teamID, fn)
	if err != nil {
		return nil, translate(err, ErrTeamNotFound)
	}
	return t, nil
}

// ListTeamsByMember returns the teams userID belongs to.
func (s *Store) ListTeamsByMember(ctx context.Context, userID string) ([]*domain.Team, error) {
	return s.Teams.ListByIndex(ctx, "member", userID)
}

// PutTeamEvent creates or replaces the event of a team on ev.Date.
func (s *Store) PutTeamEvent(ctx context.Context, ev *domain.TeamEvent) error {
	if err := s.TeamEvents.Put(ctx, teamEventID(ev.TeamID, ev.Date), ev); err != nil {
		return fmt.Errorf("put team event: %w", err)
	}
	return nil
}

// GetTeamEvent loads the event of a team on date.
func (s *Store) GetTeamEvent(ctx context.Context, teamID, date string) (*domain.TeamEvent, error) {
	ev, err := s.TeamEvents.Get(ctx, teamEventID(teamID, date))
	if err != nil {
		return nil, translate(err, ErrEventNotFound)
	}
	return ev, nil
}

// DeleteTeamEvent removes the event of a team on date.
func (s *Store) DeleteTeamEvent(ctx context.Context, teamID, date string) error {
	return s.TeamEvents.Delete(ctx, teamEventID(teamID, date))
}

// ListTeamEvents returns all events of a team.
func (s *Store) ListTeamEvents(ctx context.Context, teamID string) ([]*domain.TeamEvent, error) {
	return s.TeamEvents.ListByIndex(ctx, "team", teamID)
}
