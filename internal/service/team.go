package service

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/contiapp/conti-server/internal/domain"
	domainerrors "github.com/contiapp/conti-server/internal/errors"
	"github.com/contiapp/conti-server/internal/id"
	"github.com/contiapp/conti-server/internal/normalize"
	"github.com/contiapp/conti-server/internal/sse"
	"github.com/contiapp/conti-server/internal/store"
	"github.com/contiapp/conti-server/internal/validation"
)

// joinCodeAttempts bounds retries on join code collisions.
const joinCodeAttempts = 5

// ErrAlreadyMember is returned when joining a team twice.
var ErrAlreadyMember = domainerrors.Conflict("already a member of this team")

// TeamService manages teams and their service calendar.
type TeamService struct {
	store     *store.Store
	events    EventEmitter
	validator *validation.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewTeamService creates a team service.
func NewTeamService(store *store.Store, events EventEmitter, validator *validation.Validator, logger *slog.Logger) *TeamService {
	return &TeamService{
		store:     store,
		events:    emitterOrDiscard(events),
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateTeamRequest creates a team.
type CreateTeamRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

// Create makes a team with userID as its first member and admin.
func (s *TeamService) Create(ctx context.Context, userID string, req CreateTeamRequest) (*domain.Team, error) {
	req.Name = normalize.Text(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	teamID, err := id.Generate(id.PrefixTeam)
	if err != nil {
		return nil, err
	}
	team := &domain.Team{
		Name:        req.Name,
		Description: req.Description,
		Members:     []string{userID},
		Admins:      []string{userID},
	}
	team.ID = teamID
	team.InitTimestamps(s.now())

	for attempt := 1; ; attempt++ {
		code, err := id.JoinCode()
		if err != nil {
			return nil, err
		}
		team.JoinCode = code

		err = s.store.CreateTeam(ctx, team)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrAlreadyExists) || attempt == joinCodeAttempts {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to create team")
		}
		s.logger.Debug("Join code collision, retrying", "attempt", attempt)
	}

	s.logger.Info("Created team", "team_id", team.ID, "created_by", userID)
	return team, nil
}

// Join adds userID to the team holding code.
func (s *TeamService) Join(ctx context.Context, userID, code string) (*domain.Team, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domainerrors.BadRequest("join code is required")
	}
	found, err := s.store.GetTeamByJoinCode(ctx, code)
	if err != nil {
		return nil, err
	}

	team, err := s.store.MutateTeam(ctx, found.ID, func(t *domain.Team) error {
		if t.IsMember(userID) {
			return ErrAlreadyMember
		}
		t.Members = append(t.Members, userID)
		t.Touch(s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("User joined team", "team_id", team.ID, "user_id", userID)
	s.events.Emit(sse.NewTeamMemberJoinedEvent(team, userID))
	return team, nil
}

// ListMine returns the teams userID belongs to, by name.
func (s *TeamService) ListMine(ctx context.Context, userID string) ([]*domain.Team, error) {
	teams, err := s.store.ListTeamsByMember(ctx, userID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to list teams")
	}
	slices.SortFunc(teams, func(a, b *domain.Team) int {
		return cmp.Or(normalize.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return teams, nil
}

// Get loads a team userID belongs to. Non-members get a not found error so
// team ids cannot be probed.
func (s *TeamService) Get(ctx context.Context, userID, teamID string) (*domain.Team, error) {
	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if !team.IsMember(userID) {
		return nil, store.ErrTeamNotFound
	}
	return team, nil
}

// SetEventRequest assigns a setlist to a date.
type SetEventRequest struct {
	Date      string `json:"date" validate:"required,date"`
	SetlistID string `json:"setlist_id" validate:"required"`
}

// SetEvent assigns one of userID's setlists to a date on the team calendar,
// replacing any previous assignment for that date.
func (s *TeamService) SetEvent(ctx context.Context, userID, teamID string, req SetEventRequest) (*domain.TeamEvent, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	team, err := s.Get(ctx, userID, teamID)
	if err != nil {
		return nil, err
	}

	setlist, err := s.store.GetSetlist(ctx, req.SetlistID)
	if err != nil {
		return nil, err
	}
	if setlist.OwnerID != userID {
		return nil, domainerrors.Forbidden("only your own setlists can be assigned")
	}

	ev := &domain.TeamEvent{
		TeamID:      team.ID,
		Date:        req.Date,
		SetlistID:   setlist.ID,
		SetlistName: setlist.Name,
		AssignedBy:  userID,
		UpdatedAt:   s.now(),
	}
	if err := s.store.PutTeamEvent(ctx, ev); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to save team event")
	}

	s.logger.Info("Assigned setlist to team date", "team_id", team.ID, "date", req.Date, "setlist_id", setlist.ID)
	s.events.Emit(sse.NewTeamEventSetEvent(team, ev))
	return ev, nil
}

// ListEvents returns the team calendar in date order. from and to bound the
// dates inclusively when set.
func (s *TeamService) ListEvents(ctx context.Context, userID, teamID, from, to string) ([]*domain.TeamEvent, error) {
	if !domain.ValidDate(from) || !domain.ValidDate(to) {
		return nil, domainerrors.Validation("from and to must be dates formatted YYYY-MM-DD")
	}
	if _, err := s.Get(ctx, userID, teamID); err != nil {
		return nil, err
	}

	events, err := s.store.ListTeamEvents(ctx, teamID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to list team events")
	}
	events = slices.DeleteFunc(events, func(ev *domain.TeamEvent) bool {
		return (from != "" && ev.Date < from) || (to != "" && ev.Date > to)
	})
	slices.SortFunc(events, func(a, b *domain.TeamEvent) int {
		return cmp.Compare(a.Date, b.Date)
	})
	return events, nil
}

// DeleteEvent clears a date on the team calendar.
func (s *TeamService) DeleteEvent(ctx context.Context, userID, teamID, date string) error {
	if date == "" || !domain.ValidDate(date) {
		return domainerrors.Validation("date must be formatted YYYY-MM-DD")
	}
	team, err := s.Get(ctx, userID, teamID)
	if err != nil {
		return err
	}
	if _, err := s.store.GetTeamEvent(ctx, teamID, date); err != nil {
		return err
	}
	if err := s.store.DeleteTeamEvent(ctx, teamID, date); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to delete team event")
	}
	s.events.Emit(sse.NewTeamEventDeletedEvent(team, date))
	return nil
}
