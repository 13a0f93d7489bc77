package service

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/contiapp/conti-server/internal/domain"
	domainerrors "github.com/contiapp/conti-server/internal/errors"
	"github.com/contiapp/conti-server/internal/store"
)

// UserService reads accounts and changes roles.
type UserService struct {
	store  *store.Store
	logger *slog.Logger
}

// NewUserService creates a user service.
func NewUserService(store *store.Store, logger *slog.Logger) *UserService {
	return &UserService{store: store, logger: logger}
}

// Get loads one user.
func (s *UserService) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.store.GetUser(ctx, userID)
}

// List returns every user, oldest account first.
func (s *UserService) List(ctx context.Context) ([]*domain.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to list users")
	}
	slices.SortFunc(users, func(a, b *domain.User) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return users, nil
}

// SetRole grants or revokes manager rights.
func (s *UserService) SetRole(ctx context.Context, userID string, role domain.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, domainerrors.Validationf("unknown role %q", role)
	}
	user, err := s.store.SetUserRole(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Changed user role", "user_id", userID, "role", role)
	return user, nil
}
