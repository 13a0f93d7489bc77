package domain

import "time"

// Role is a user's permission level.
type Role string

const (
	// RoleUser can browse the library and build setlists.
	RoleUser Role = "user"
	// RoleManager can additionally upload, edit and delete song sheets.
	RoleManager Role = "manager"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleManager
}

// User is an account created on first Kakao login.
type User struct {
	Syncable
	KakaoID         string    `json:"kakao_id"`
	Email           string    `json:"email,omitempty"`
	DisplayName     string    `json:"display_name"`
	ProfileImageURL string    `json:"profile_image_url,omitempty"`
	Role            Role      `json:"role"`
	LastLoginAt     time.Time `json:"last_login_at"`
}

// IsManager reports whether the user may manage the sheet library.
func (u *User) IsManager() bool {
	return u.Role == RoleManager
}

// Session is a refresh token issued to a user. Only the token hash is stored.
type Session struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	RefreshTokenHash string    `json:"refresh_token_hash"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// Expired reports whether the session can no longer be refreshed.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
