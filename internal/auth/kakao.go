package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
)

// Kakao endpoints.
const (
	KakaoAuthURL    = "https://kauth.kakao.com/oauth/authorize"
	KakaoTokenURL   = "https://kauth.kakao.com/oauth/token"
	KakaoProfileURL = "https://kapi.kakao.com/v2/user/me"
)

// ErrKakaoExchange is returned when the authorization code cannot be traded
// for a Kakao profile.
var ErrKakaoExchange = errors.New("kakao token exchange failed")

// KakaoOptions configures a KakaoClient. Empty URLs fall back to the public
// Kakao endpoints.
type KakaoOptions struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	AuthURL    string
	TokenURL   string
	ProfileURL string
	HTTPClient *http.Client
}

// KakaoProfile is the subset of /v2/user/me used to provision accounts.
type KakaoProfile struct {
	ID              string
	Email           string
	Nickname        string
	ProfileImageURL string
}

// KakaoClient runs the server side of the Kakao authorization code flow.
type KakaoClient struct {
	config     *oauth2.Config
	profileURL string
	httpClient *http.Client
}

// NewKakaoClient creates a client.
func NewKakaoClient(opts KakaoOptions) *KakaoClient {
	authURL := opts.AuthURL
	if authURL == "" {
		authURL = KakaoAuthURL
	}
	tokenURL := opts.TokenURL
	if tokenURL == "" {
		tokenURL = KakaoTokenURL
	}
	profileURL := opts.ProfileURL
	if profileURL == "" {
		profileURL = KakaoProfileURL
	}

	return &KakaoClient{
		config: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		profileURL: profileURL,
		httpClient: opts.HTTPClient,
	}
}

// AuthCodeURL returns the Kakao consent page URL carrying state.
func (c *KakaoClient) AuthCodeURL(state string) string {
	return c.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for the user's Kakao profile.
func (c *KakaoClient) Exchange(ctx context.Context, code string) (*KakaoProfile, error) {
	if c.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	}

	token, err := c.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKakaoExchange, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.profileURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKakaoExchange, err)
	}
	resp, err := c.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch profile: %w", ErrKakaoExchange, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: profile status %d: %s", ErrKakaoExchange, resp.StatusCode, body)
	}

	var payload kakaoUser
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode profile: %w", ErrKakaoExchange, err)
	}
	if payload.ID == 0 {
		return nil, fmt.Errorf("%w: profile without id", ErrKakaoExchange)
	}
	return payload.profile(), nil
}

type kakaoUser struct {
	ID         int64 `json:"id"`
	Properties struct {
		Nickname     string `json:"nickname"`
		ProfileImage string `json:"profile_image"`
	} `json:"properties"`
	KakaoAccount struct {
		Email   string `json:"email"`
		Profile struct {
			Nickname        string `json:"nickname"`
			ProfileImageURL string `json:"profile_image_url"`
		} `json:"profile"`
	} `json:"kakao_account"`
}

func (u kakaoUser) profile() *KakaoProfile {
	p := &KakaoProfile{
		ID:              strconv.FormatInt(u.ID, 10),
		Email:           u.KakaoAccount.Email,
		Nickname:        u.KakaoAccount.Profile.Nickname,
		ProfileImageURL: u.KakaoAccount.Profile.ProfileImageURL,
	}
	if p.Nickname == "" {
		p.Nickname = u.Properties.Nickname
	}
	if p.ProfileImageURL == "" {
		p.ProfileImageURL = u.Properties.ProfileImage
	}
	return p
}

// GenerateState returns a random value for the OAuth state parameter.
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
