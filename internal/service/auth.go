package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/contiapp/conti-server/internal/auth"
	"github.com/contiapp/conti-server/internal/domain"
	domainerrors "github.com/contiapp/conti-server/internal/errors"
	"github.com/contiapp/conti-server/internal/id"
	"github.com/contiapp/conti-server/internal/normalize"
	"github.com/contiapp/conti-server/internal/store"
)

// KakaoProvider runs the Kakao authorization code flow. *auth.KakaoClient implements it.
type KakaoProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.KakaoProfile, error)
}

// AuthService logs users in through Kakao and verifies access tokens.
type AuthService struct {
	store          *store.Store
	tokenService   *auth.TokenService
	sessionService *SessionService
	kakao          KakaoProvider
	logger         *slog.Logger
	now            func() time.Time
}

// NewAuthService creates a new authentication service. kakao may be nil when
// Kakao login is not configured.
func NewAuthService(
	store *store.Store,
	tokenService *auth.TokenService,
	sessionService *SessionService,
	kakao KakaoProvider,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		store:          store,
		tokenService:   tokenService,
		sessionService: sessionService,
		kakao:          kakao,
		logger:         logger,
		now:            time.Now,
	}
}

// AuthResponse contains authentication tokens and user data.
type AuthResponse struct {
	User *domain.User `json:"user"`
	SessionResponse
}

// LoginURL returns the Kakao consent page URL and the state value embedded in it.
func (s *AuthService) LoginURL() (loginURL, state string, err error) {
	if s.kakao == nil {
		return "", "", domainerrors.Unavailable("kakao login is not configured")
	}
	state, err = auth.GenerateState()
	if err != nil {
		return "", "", err
	}
	return s.kakao.AuthCodeURL(state), state, nil
}

// KakaoCallback exchanges an authorization code, creates the user on first
// login and starts a session.
func (s *AuthService) KakaoCallback(ctx context.Context, code string) (*AuthResponse, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domainerrors.BadRequest("authorization code is required")
	}
	if s.kakao == nil {
		return nil, domainerrors.Unavailable("kakao login is not configured")
	}

	profile, err := s.kakao.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("Kakao token exchange failed", "error", err)
		return nil, domainerrors.Internal("Token exchange failed").WithCause(err)
	}

	user, err := s.upsertKakaoUser(ctx, profile)
	if err != nil {
		return nil, err
	}

	session, err := s.sessionService.CreateSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User logged in", "user_id", user.ID, "role", user.Role)
	return &AuthResponse{User: user, SessionResponse: *session}, nil
}

func (s *AuthService) upsertKakaoUser(ctx context.Context, profile *auth.KakaoProfile) (*domain.User, error) {
	now := s.now()
	displayName := normalize.Text(profile.Nickname)

	user, err := s.store.GetUserByKakaoID(ctx, profile.ID)
	switch {
	case err == nil:
		if displayName != "" {
			user.DisplayName = displayName
		}
		if profile.ProfileImageURL != "" {
			user.ProfileImageURL = profile.ProfileImageURL
		}
		if profile.Email != "" {
			user.Email = profile.Email
		}
		user.LastLoginAt = now
		user.Touch(now)
		if err := s.store.UpdateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
		return user, nil

	case errors.Is(err, store.ErrUserNotFound):
		userID, err := id.Generate(id.PrefixUser)
		if err != nil {
			return nil, fmt.Errorf("generate user ID: %w", err)
		}
		if displayName == "" {
			displayName = "Kakao " + profile.ID
		}
		user = &domain.User{
			KakaoID:         profile.ID,
			Email:           profile.Email,
			DisplayName:     displayName,
			ProfileImageURL: profile.ProfileImageURL,
			Role:            domain.RoleUser,
			LastLoginAt:     now,
		}
		user.ID = userID
		user.InitTimestamps(now)
		if err := s.store.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		s.logger.Info("Created user on first login", "user_id", user.ID, "kakao_id", profile.ID)
		return user, nil

	default:
		return nil, fmt.Errorf("get user: %w", err)
	}
}

// RefreshTokens rotates a refresh token into a new session.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, domainerrors.BadRequest("refresh_token is required")
	}
	session, user, err := s.sessionService.RefreshSession(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{User: user, SessionResponse: *session}, nil
}

// Logout revokes the session holding refreshToken.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.sessionService.RevokeRefreshToken(ctx, refreshToken)
}

// VerifyAccessToken validates a token and returns the current user record, so
// role changes apply without waiting for the token to expire.
func (s *AuthService) VerifyAccessToken(ctx context.Context, tokenString string) (*domain.User, *auth.AccessClaims, error) {
	claims, err := s.tokenService.VerifyAccessToken(tokenString)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, nil, domainerrors.TokenExpired("access token expired")
		}
		return nil, nil, domainerrors.Unauthorized("invalid access token").WithCause(err)
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, nil, domainerrors.Unauthorized("user not found")
		}
		return nil, nil, fmt.Errorf("get user: %w", err)
	}
	return user, claims, nil
}
