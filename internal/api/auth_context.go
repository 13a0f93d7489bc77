package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/contiapp/conti-server/internal/domain"
	domainerrors "github.com/contiapp/conti-server/internal/errors"
	"github.com/contiapp/conti-server/internal/service"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

// userKey is the context key for the authenticated user.
const userKey ctxKey = "user"

// GetUserID returns the authenticated user ID from context.
// Returns 401 error if user is not authenticated.
func GetUserID(ctx context.Context) (string, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// RequireUser returns the authenticated user from context.
func RequireUser(ctx context.Context) (*domain.User, error) {
	user, ok := ctx.Value(userKey).(*domain.User)
	if !ok || user == nil {
		return nil, domainerrors.Unauthorized("Authentication required")
	}
	return user, nil
}

// RequireManager validates the user is authenticated and may manage the sheet library.
func RequireManager(ctx context.Context) (*domain.User, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsManager() {
		return nil, domainerrors.Forbidden("Manager access required")
	}
	return user, nil
}

func setUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// bearerToken extracts the token of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// authMiddleware returns a middleware that validates Bearer tokens and stores the user in context.
// If no token is present or invalid, continues without user in context.
// Handlers use RequireUser to check authentication.
func authMiddleware(auth *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, _, err := auth.VerifyAccessToken(r.Context(), token)
			if err != nil {
				// Invalid token - continue without user (handler will reject if auth required)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(setUser(r.Context(), user)))
		})
	}
}

// authenticateStream resolves the user of an event stream. Browsers cannot
// set headers on EventSource, so ?token= is accepted as well.
func (s *Server) authenticateStream(r *http.Request) (string, error) {
	if user, err := RequireUser(r.Context()); err == nil {
		return user.ID, nil
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		return "", domainerrors.Unauthorized("Authentication required")
	}
	user, _, err := s.services.Auth.VerifyAccessToken(r.Context(), token)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}
