package store

import (
	"context"
	"fmt"
	"time"

	"github.com/contiapp/conti-server/internal/domain"
)

// CreateSession stores a refresh session.
func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	if err := s.Sessions.Create(ctx, session.ID, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSessionByRefreshToken loads the session holding tokenHash.
func (s *Store) GetSessionByRefreshToken(ctx context.Context, tokenHash string) (*domain.Session, error) {
	session, err := s.Sessions.GetByIndex(ctx, "token", tokenHash)
	if err != nil {
		return nil, translate(err, ErrSessionNotFound)
	}
	return session, nil
}

// DeleteSession removes a session.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	return s.Sessions.Delete(ctx, sessionID)
}

// DeleteExpiredSessions removes a user's expired sessions and reports how many were removed.
func (s *Store) DeleteExpiredSessions(ctx context.Context, userID string, now time.Time) (int, error) {
	sessions, err := s.Sessions.ListByIndex(ctx, "user", userID)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, session := range sessions {
		if !session.Expired(now) {
			continue
		}
		if err := s.Sessions.Delete(ctx, session.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// PruneExpiredSessions removes every expired session and reports how many
// were removed.
func (s *Store) PruneExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	sessions, err := s.Sessions.Collect(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, session := range sessions {
		if !session.Expired(now) {
			continue
		}
		if err := s.Sessions.Delete(ctx, session.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
