package providers

import (
	"github.com/samber/do/v2"

	"github.com/contiapp/conti-server/internal/auth"
	"github.com/contiapp/conti-server/internal/config"
	"github.com/contiapp/conti-server/internal/logger"
)

// AuthKey wraps the authentication key bytes.
type AuthKey []byte

// ProvideAuthKey loads or generates the authentication key.
func ProvideAuthKey(i do.Injector) (AuthKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	key, err := auth.LoadOrGenerateKey(cfg.KeyPath())
	if err != nil {
		return nil, err
	}

	// Update config with the loaded key
	cfg.Auth.AccessTokenKey = key

	log.Info("Authentication key loaded",
		"access_token_duration", cfg.Auth.AccessTokenDuration,
		"refresh_token_duration", cfg.Auth.RefreshTokenDuration,
	)

	return AuthKey(key), nil
}

// ProvideTokenService provides the PASETO token service.
func ProvideTokenService(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	authKey := do.MustInvoke[AuthKey](i)

	return auth.NewTokenService([]byte(authKey), cfg.Auth.AccessTokenDuration, cfg.Auth.RefreshTokenDuration)
}

// KakaoClientHandle holds the Kakao OAuth client. Client is nil when Kakao
// login is not configured.
type KakaoClientHandle struct {
	Client *auth.KakaoClient
}

// ProvideKakaoClient provides the Kakao OAuth client.
func ProvideKakaoClient(i do.Injector) (*KakaoClientHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Kakao.Enabled() {
		log.Warn("Kakao login disabled: KAKAO_CLIENT_ID or KAKAO_REDIRECT_URI not set")
		return &KakaoClientHandle{}, nil
	}

	client := auth.NewKakaoClient(auth.KakaoOptions{
		ClientID:     cfg.Kakao.ClientID,
		ClientSecret: cfg.Kakao.ClientSecret,
		RedirectURL:  cfg.Kakao.RedirectURL,
	})
	log.Info("Kakao login enabled", "redirect_url", cfg.Kakao.RedirectURL)

	return &KakaoClientHandle{Client: client}, nil
}
