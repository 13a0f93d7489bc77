package store

import (
	"context"
	"fmt"

	"github.com/contiapp/conti-server/internal/domain"
)

// CreateSetlist persists a new setlist.
func (s *Store) CreateSetlist(ctx context.Context, setlist *domain.Setlist) error {
	if err := s.Setlists.Create(ctx, setlist.ID, setlist); err != nil {
		return fmt.Errorf("create setlist: %w", err)
	}
	return nil
}

// GetSetlist loads one setlist.
func (s *Store) GetSetlist(ctx context.Context, setlistID string) (*domain.Setlist, error) {
	sl, err := s.Setlists.Get(ctx, setlistID)
	if err != nil {
		return nil, translate(err, ErrSetlistNotFound)
	}
	return sl, nil
}

// UpdateSetlist replaces a setlist.
func (s *Store) UpdateSetlist(ctx context.Context, setlist *domain.Setlist) error {
	if err := s.Setlists.Update(ctx, setlist.ID, setlist); err != nil {
		return translate(err, ErrSetlistNotFound)
	}
	return nil
}

// DeleteSetlist removes a setlist.
func (s *Store) DeleteSetlist(ctx context.Context, setlistID string) error {
	return s.Setlists.Delete(ctx, setlistID)
}

// ListSetlistsByOwner returns the setlists owned by userID.
func (s *Store) ListSetlistsByOwner(ctx context.Context, userID string) ([]*domain.Setlist, error) {
	return s.Setlists.ListByIndex(ctx, "owner", userID)
}
