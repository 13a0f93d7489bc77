package store

import (
	"context"
	"fmt"

	"github.com/contiapp/conti-server/internal/domain"
)

// CreateUser persists a new user.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	if err := s.Users.Create(ctx, user.ID, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUser loads a user by id.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.Users.Get(ctx, userID)
	if err != nil {
		return nil, translate(err, ErrUserNotFound)
	}
	return u, nil
}

// GetUserByKakaoID loads the user linked to a Kakao account.
func (s *Store) GetUserByKakaoID(ctx context.Context, kakaoID string) (*domain.User, error) {
	u, err := s.Users.GetByIndex(ctx, "kakao", kakaoID)
	if err != nil {
		return nil, translate(err, ErrUserNotFound)
	}
	return u, nil
}

// UpdateUser replaces a user.
func (s *Store) UpdateUser(ctx context.Context, user *domain.User) error {
	if err := s.Users.Update(ctx, user.ID, user); err != nil {
		return translate(err, ErrUserNotFound)
	}
	return nil
}

// SetUserRole changes a user's role atomically.
func (s *Store) SetUserRole(ctx context.Context, userID string, role domain.Role) (*domain.User, error) {
	u, err := s.Users.Mutate(ctx, userID, func(u *domain.User) error {
		u.Role = role
		return nil
	})
	if err != nil {
		return nil, translate(err, ErrUserNotFound)
	}
	return u, nil
}

// ListUsers returns every user.
func (s *Store) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.Users.Collect(ctx)
}

// ListUsersByRole returns users holding role.
func (s *Store) ListUsersByRole(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	return s.Users.ListByIndex(ctx, "role", string(role))
}
