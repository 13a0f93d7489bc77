package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contiapp/conti-server/internal/domain"
	"github.com/contiapp/conti-server/internal/store"
)

func TestTeams_JoinCodeLookup(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	team := &domain.Team{Syncable: domain.Syncable{ID: "team-1"}, Name: "청년부", JoinCode: "abc234", Members: []string{"u1"}, Admins: []string{"u1"}}
	require.NoError(t, s.CreateTeam(ctx, team))
	assert.Equal(t, "ABC234", team.JoinCode)

	got, err := s.GetTeamByJoinCode(ctx, "  abc234 ")
	require.NoError(t, err)
	assert.Equal(t, "team-1", got.ID)

	_, err = s.GetTeamByJoinCode(ctx, "ZZZZZZ")
	assert.ErrorIs(t, err, store.ErrTeamNotFound)
}

func TestTeams_MutateMembership(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	require.NoError(t, s.CreateTeam(ctx, &domain.Team{Syncable: domain.Syncable{ID: "team-1"}, JoinCode: "AAAAAA", Members: []string{"u1"}}))

	_, err := s.MutateTeam(ctx, "team-1", func(tm *domain.Team) error {
		tm.Members = append(tm.Members, "u2")
		return nil
	})
	require.NoError(t, err)

	teams, err := s.ListTeamsByMember(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, "team-1", teams[0].ID)
}

func TestTeamEvents_OnePerDate(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	ev := &domain.TeamEvent{TeamID: "team-1", Date: "2026-03-01", SetlistID: "set-1", SetlistName: "1부", UpdatedAt: time.Now()}
	require.NoError(t, s.PutTeamEvent(ctx, ev))

	ev2 := *ev
	ev2.SetlistID = "set-2"
	ev2.SetlistName = "2부"
	require.NoError(t, s.PutTeamEvent(ctx, &ev2))
	require.NoError(t, s.PutTeamEvent(ctx, &domain.TeamEvent{TeamID: "team-1", Date: "2026-03-08", SetlistID: "set-3"}))
	require.NoError(t, s.PutTeamEvent(ctx, &domain.TeamEvent{TeamID: "team-2", Date: "2026-03-01", SetlistID: "set-9"}))

	events, err := s.ListTeamEvents(ctx, "team-1")
	require.NoError(t, err)
	assert.Len(t, events, 2)

	got, err := s.GetTeamEvent(ctx, "team-1", "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, "set-2", got.SetlistID)

	require.NoError(t, s.DeleteTeamEvent(ctx, "team-1", "2026-03-01"))
	_, err = s.GetTeamEvent(ctx, "team-1", "2026-03-01")
	assert.ErrorIs(t, err, store.ErrEventNotFound)
}

func TestUsers_KakaoAndRole(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	u := &domain.User{Syncable: domain.Syncable{ID: "usr-1"}, KakaoID: "12345", DisplayName: "민수", Role: domain.RoleUser}
	require.NoError(t, s.CreateUser(ctx, u))

	got, err := s.GetUserByKakaoID(ctx, "12345")
	require.NoError(t, err)
	assert.Equal(t, "usr-1", got.ID)

	updated, err := s.SetUserRole(ctx, "usr-1", domain.RoleManager)
	require.NoError(t, err)
	assert.True(t, updated.IsManager())

	managers, err := s.ListUsersByRole(ctx, domain.RoleManager)
	require.NoError(t, err)
	assert.Len(t, managers, 1)
	users, err := s.ListUsersByRole(ctx, domain.RoleUser)
	require.NoError(t, err)
	assert.Empty(t, users)

	_, err = s.SetUserRole(ctx, "usr-missing", domain.RoleManager)
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestSessions_ExpiredCleanup(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	now := time.Now()

	require.NoError(t, s.CreateSession(ctx, &domain.Session{ID: "sess-1", UserID: "usr-1", RefreshTokenHash: "h1", ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, s.CreateSession(ctx, &domain.Session{ID: "sess-2", UserID: "usr-1", RefreshTokenHash: "h2", ExpiresAt: now.Add(time.Hour)}))

	removed, err := s.DeleteExpiredSessions(ctx, "usr-1", now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = s.GetSessionByRefreshToken(ctx, "h1")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
	got, err := s.GetSessionByRefreshToken(ctx, "h2")
	require.NoError(t, err)
	assert.Equal(t, "sess-2", got.ID)
}
