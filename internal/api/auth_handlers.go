package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/contiapp/conti-server/internal/domain"
	"github.com/contiapp/conti-server/internal/service"
)

func (s *Server) registerAuthRoutes() {
	limited := huma.Middlewares{s.rateLimited(s.authRateLimiter)}

	huma.Register(s.api, huma.Operation{
		OperationID: "kakaoLogin",
		Method:      http.MethodGet,
		Path:        "/api/v1/auth/kakao/login",
		Summary:     "Start Kakao login",
		Description: "Returns the Kakao consent page URL and the state value the client must verify on callback",
		Tags:        []string{"Authentication"},
		Middlewares: limited,
	}, s.handleKakaoLogin)

	huma.Register(s.api, huma.Operation{
		OperationID: "kakaoCallback",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/kakao/callback",
		Summary:     "Finish Kakao login",
		Description: "Exchanges a Kakao authorization code for Conti access and refresh tokens. The first login creates the account.",
		Tags:        []string{"Authentication"},
		Middlewares: limited,
	}, s.handleKakaoCallback)

	huma.Register(s.api, huma.Operation{
		OperationID: "refresh",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/refresh",
		Summary:     "Refresh tokens",
		Description: "Exchanges a refresh token for new tokens. The old refresh token stops working.",
		Tags:        []string{"Authentication"},
		Middlewares: limited,
	}, s.handleRefresh)

	huma.Register(s.api, huma.Operation{
		OperationID:   "logout",
		Method:        http.MethodPost,
		Path:          "/api/v1/auth/logout",
		Summary:       "Logout",
		Description:   "Revokes the session of a refresh token",
		Tags:          []string{"Authentication"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleLogout)
}

// === DTOs ===

// LoginURLResponse points the client at the Kakao consent page.
type LoginURLResponse struct {
	URL   string `json:"url" doc:"Kakao authorization URL"`
	State string `json:"state" doc:"Opaque state embedded in the URL"`
}

// LoginURLOutput wraps the login URL response for Huma.
type LoginURLOutput struct {
	Body LoginURLResponse
}

// KakaoCallbackRequest is the request body for finishing a Kakao login.
type KakaoCallbackRequest struct {
	Code string `json:"code" doc:"Authorization code returned by Kakao"`
}

// KakaoCallbackInput wraps the callback request for Huma.
type KakaoCallbackInput struct {
	Body KakaoCallbackRequest
}

// RefreshRequest is the request body for token refresh and logout.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" doc:"Refresh token"`
}

// RefreshInput wraps the refresh request for Huma.
type RefreshInput struct {
	Body RefreshRequest
}

// UserResponse contains user information in API responses.
type UserResponse struct {
	ID              string    `json:"id" doc:"User ID"`
	Email           string    `json:"email,omitempty" doc:"Kakao account email, when shared"`
	DisplayName     string    `json:"display_name" doc:"Display name"`
	ProfileImageURL string    `json:"profile_image_url,omitempty" doc:"Profile image URL"`
	Role            string    `json:"role" enum:"user,manager" doc:"Permission level"`
	CreatedAt       time.Time `json:"created_at" doc:"Creation timestamp"`
	LastLoginAt     time.Time `json:"last_login_at" doc:"Last login timestamp"`
}

// AuthResponse contains authentication tokens and user info.
type AuthResponse struct {
	AccessToken  string       `json:"access_token" doc:"PASETO access token"`
	RefreshToken string       `json:"refresh_token" doc:"Refresh token"`
	SessionID    string       `json:"session_id" doc:"Session identifier"`
	TokenType    string       `json:"token_type" doc:"Token type (Bearer)"`
	ExpiresIn    int          `json:"expires_in" doc:"Token expiry in seconds"`
	User         UserResponse `json:"user" doc:"Authenticated user"`
}

// AuthOutput wraps the auth response for Huma.
type AuthOutput struct {
	Body AuthResponse
}

// === Handlers ===

func (s *Server) handleKakaoLogin(_ context.Context, _ *struct{}) (*LoginURLOutput, error) {
	url, state, err := s.services.Auth.LoginURL()
	if err != nil {
		return nil, err
	}
	return &LoginURLOutput{Body: LoginURLResponse{URL: url, State: state}}, nil
}

func (s *Server) handleKakaoCallback(ctx context.Context, input *KakaoCallbackInput) (*AuthOutput, error) {
	resp, err := s.services.Auth.KakaoCallback(ctx, input.Body.Code)
	if err != nil {
		return nil, err
	}
	return &AuthOutput{Body: mapAuthResponse(resp)}, nil
}

func (s *Server) handleRefresh(ctx context.Context, input *RefreshInput) (*AuthOutput, error) {
	resp, err := s.services.Auth.RefreshTokens(ctx, input.Body.RefreshToken)
	if err != nil {
		return nil, err
	}
	return &AuthOutput{Body: mapAuthResponse(resp)}, nil
}

func (s *Server) handleLogout(ctx context.Context, input *RefreshInput) (*struct{}, error) {
	if err := s.services.Auth.Logout(ctx, input.Body.RefreshToken); err != nil {
		return nil, err
	}
	return nil, nil
}

// === Helpers ===

func mapAuthResponse(resp *service.AuthResponse) AuthResponse {
	return AuthResponse{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		SessionID:    resp.SessionID,
		TokenType:    resp.TokenType,
		ExpiresIn:    resp.ExpiresIn,
		User:         mapUser(resp.User),
	}
}

func mapUser(u *domain.User) UserResponse {
	return UserResponse{
		ID:              u.ID,
		Email:           u.Email,
		DisplayName:     u.DisplayName,
		ProfileImageURL: u.ProfileImageURL,
		Role:            string(u.Role),
		CreatedAt:       u.CreatedAt,
		LastLoginAt:     u.LastLoginAt,
	}
}
