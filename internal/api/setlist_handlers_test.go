package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contiapp/conti-server/internal/domain"
)

func (ts *testServer) createSetlist(t *testing.T, authHeader string, body map[string]any) SetlistResponse {
	t.Helper()
	resp := ts.api.Post("/api/v1/setlists", authHeader, body)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return decode[SetlistResponse](t, resp.Body.Bytes()).Data
}

func TestSetlist_Lifecycle(t *testing.T) {
	ts := setupTestServer(t)
	manager := ts.createUser(t, "mgr", domain.RoleManager)
	member := ts.createUser(t, "member", domain.RoleUser)

	grace := ts.submitSheet(t, manager, amazingGrace, 2)
	maker := ts.submitSheet(t, manager, withFields(amazingGrace, map[string]any{"song_name": "Way Maker"}), 1)

	setlist := ts.createSetlist(t, member, map[string]any{
		"name":        "주일 2부",
		"target_date": "2026-11-01",
		"sheet_ids":   []string{maker.SheetID, grace.SheetID},
	})
	assert.Equal(t, "member", setlist.OwnerID)
	require.Len(t, setlist.Songs, 2)
	assert.Equal(t, "Way Maker", setlist.Songs[0].SongName)
	assert.Equal(t, grace.SheetID, setlist.Songs[1].SheetID)

	t.Run("slides flatten pages", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/setlists/"+setlist.ID+"/slides", member)
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

		slides := decode[SlidesResponse](t, resp.Body.Bytes()).Data.Slides
		require.Len(t, slides, 3)
		assert.Equal(t, maker.SheetID, slides[0].SheetID)
		assert.Equal(t, 1, slides[2].PageIndex)
		assert.Equal(t, 2, slides[2].TotalPages)
	})

	t.Run("listed for owner only", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/setlists", member)
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Len(t, decode[ListSetlistsResponse](t, resp.Body.Bytes()).Data.Setlists, 1)

		resp = ts.api.Get("/api/v1/setlists", manager)
		assert.Empty(t, decode[ListSetlistsResponse](t, resp.Body.Bytes()).Data.Setlists)
	})

	t.Run("readable by others but not writable", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/setlists/"+setlist.ID, manager)
		assert.Equal(t, http.StatusOK, resp.Code)

		resp = ts.api.Patch("/api/v1/setlists/"+setlist.ID, manager, map[string]any{"name": "hijack"})
		assert.Equal(t, http.StatusForbidden, resp.Code)

		resp = ts.api.Delete("/api/v1/setlists/"+setlist.ID, manager)
		assert.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("reorders songs", func(t *testing.T) {
		resp := ts.api.Patch("/api/v1/setlists/"+setlist.ID, member, map[string]any{
			"sheet_ids": []string{grace.SheetID, maker.SheetID},
		})
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

		updated := decode[SetlistResponse](t, resp.Body.Bytes()).Data
		require.Len(t, updated.Songs, 2)
		assert.Equal(t, grace.SheetID, updated.Songs[0].SheetID)
		assert.Equal(t, "주일 2부", updated.Name)
	})

	t.Run("deletes", func(t *testing.T) {
		resp := ts.api.Delete("/api/v1/setlists/"+setlist.ID, member)
		assert.Equal(t, http.StatusNoContent, resp.Code)

		resp = ts.api.Get("/api/v1/setlists/"+setlist.ID, member)
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

func TestSetlist_SnapshotSurvivesSheetDelete(t *testing.T) {
	ts := setupTestServer(t)
	manager := ts.createUser(t, "mgr", domain.RoleManager)
	grace := ts.submitSheet(t, manager, amazingGrace, 1)

	setlist := ts.createSetlist(t, manager, map[string]any{
		"name":      "Wednesday",
		"sheet_ids": []string{grace.SheetID},
	})

	resp := ts.api.Delete("/api/v1/sheets/"+grace.SheetID, manager)
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = ts.api.Get("/api/v1/setlists/"+setlist.ID, manager)
	require.Equal(t, http.StatusOK, resp.Code)
	got := decode[SetlistResponse](t, resp.Body.Bytes()).Data
	require.Len(t, got.Songs, 1)
	assert.Equal(t, "Amazing Grace", got.Songs[0].SongName)
}

func TestSetlist_Validation(t *testing.T) {
	ts := setupTestServer(t)
	member := ts.createUser(t, "member", domain.RoleUser)

	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{"empty name", map[string]any{"name": ""}, http.StatusBadRequest},
		{"bad date", map[string]any{"name": "x", "target_date": "11/01/2026"}, http.StatusBadRequest},
		{"unknown sheet", map[string]any{"name": "x", "sheet_ids": []string{"missing"}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post("/api/v1/setlists", member, tt.body)
			assert.Equal(t, tt.status, resp.Code, resp.Body.String())
			assert.False(t, decode[any](t, resp.Body.Bytes()).Success)
		})
	}

	resp := ts.api.Get("/api/v1/setlists")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}
