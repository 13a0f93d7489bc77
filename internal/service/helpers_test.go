package service

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/contiapp/conti-server/internal/domain"
	"github.com/contiapp/conti-server/internal/search"
	"github.com/contiapp/conti-server/internal/sse"
	"github.com/contiapp/conti-server/internal/store"
	"github.com/contiapp/conti-server/internal/validation"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func setupTestIndex(t *testing.T) *search.SearchIndex {
	t.Helper()
	idx, err := search.NewSearchIndex(search.Options{
		Path:   filepath.Join(t.TempDir(), "search", "sheets.bleve"),
		Logger: discardLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *recordingEmitter) Emit(ev sse.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingEmitter) types() []sse.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sse.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recordingEmitter) last() sse.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type recordingDeleter struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (d *recordingDeleter) DeleteFiles(_ context.Context, ids []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deleted = append(d.deleted, ids...)
	return d.err
}

func (d *recordingDeleter) ids() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.deleted...)
}

func newValidator() *validation.Validator {
	return validation.New()
}

func pages(ids ...string) []domain.Page {
	out := make([]domain.Page, len(ids))
	for i, id := range ids {
		out[i] = domain.Page{URL: "/uploads/" + id + ".png", FilePath: "uploads/" + id + ".png", FileID: id}
	}
	return out
}

func createUser(t *testing.T, s *store.Store, userID string, role domain.Role) *domain.User {
	t.Helper()
	u := &domain.User{KakaoID: "k-" + userID, DisplayName: userID, Role: role}
	u.ID = userID
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}
