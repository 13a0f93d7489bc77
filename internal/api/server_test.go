package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/contiapp/conti-server/internal/auth"
	"github.com/contiapp/conti-server/internal/domain"
	"github.com/contiapp/conti-server/internal/media/images"
	"github.com/contiapp/conti-server/internal/resolver"
	"github.com/contiapp/conti-server/internal/search"
	"github.com/contiapp/conti-server/internal/service"
	"github.com/contiapp/conti-server/internal/sse"
	"github.com/contiapp/conti-server/internal/store"
	"github.com/contiapp/conti-server/internal/validation"
)

// testEnvelope mirrors response.Envelope with typed data for decoding.
type testEnvelope[T any] struct {
	V       int    `json:"v"`
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details"`
}

type fakeKakao struct {
	profile *auth.KakaoProfile
	err     error
}

func (f *fakeKakao) AuthCodeURL(state string) string {
	return "https://kauth.example/oauth/authorize?state=" + state
}

func (f *fakeKakao) Exchange(_ context.Context, _ string) (*auth.KakaoProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	p := *f.profile
	return &p, nil
}

type testServer struct {
	*Server
	api        humatest.TestAPI
	tokens     *auth.TokenService
	kakao      *fakeKakao
	index      *search.SearchIndex
	storage    *images.Storage
	storageDir string
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// setupTestServer creates a test server with all dependencies on temp directories.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	return setupTestServerWithOptions(t, Options{})
}

func setupTestServerWithOptions(t *testing.T, opts Options) *testServer {
	t.Helper()
	tmpDir := t.TempDir()
	logger := testLogger()

	st, err := store.New(filepath.Join(tmpDir, "db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	index, err := search.NewSearchIndex(search.Options{
		Path:   filepath.Join(tmpDir, "search", "sheets.bleve"),
		Logger: logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	uploadDir := filepath.Join(tmpDir, "uploads")
	pages, err := images.NewStorage(uploadDir, "/uploads", 64, logger)
	require.NoError(t, err)

	tokens, err := auth.NewTokenService(bytes.Repeat([]byte{7}, 32), 15*time.Minute, 30*24*time.Hour)
	require.NoError(t, err)

	kakao := &fakeKakao{profile: &auth.KakaoProfile{
		ID:       "777",
		Email:    "worship@example.com",
		Nickname: "예배팀",
	}}

	sseManager := sse.NewManager(logger)
	validator := validation.New()
	sessions := service.NewSessionService(st, tokens, logger)

	services := &Services{
		Auth:    service.NewAuthService(st, tokens, sessions, kakao, logger),
		User:    service.NewUserService(st, logger),
		Sheet:   service.NewSheetService(st, resolver.New(st, pages, logger), pages, index, sseManager, validator, logger),
		Setlist: service.NewSetlistService(st, st, sseManager, validator, logger),
		Team:    service.NewTeamService(st, sseManager, validator, logger),
		Search:  index,
	}

	s := NewServer(st, services, &StorageServices{Pages: pages}, sseManager, opts, logger)
	t.Cleanup(s.Shutdown)

	return &testServer{
		Server:     s,
		api:        humatest.Wrap(t, s.api),
		tokens:     tokens,
		kakao:      kakao,
		index:      index,
		storage:    pages,
		storageDir: uploadDir,
	}
}

// createUser stores a user with role and returns a bearer header for it.
func (ts *testServer) createUser(t *testing.T, userID string, role domain.Role) string {
	t.Helper()
	user := &domain.User{KakaoID: "kakao-" + userID, DisplayName: userID, Role: role}
	user.ID = userID
	require.NoError(t, ts.store.CreateUser(context.Background(), user))

	token, err := ts.tokens.GenerateAccessToken(user)
	require.NoError(t, err)
	return "Authorization: Bearer " + token
}

// uploadPage stores a generated PNG through the upload endpoint.
func (ts *testServer) uploadPage(t *testing.T, authHeader string) images.Upload {
	t.Helper()
	body, contentType := multipartImage(t, pngBytes(t))

	resp := ts.api.Post("/api/v1/uploads", authHeader, "Content-Type: "+contentType, body)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	env := decode[images.Upload](t, resp.Body.Bytes())
	return env.Data
}

// submitSheet posts a submission using freshly uploaded pages.
func (ts *testServer) submitSheet(t *testing.T, authHeader string, fields map[string]any, pageCount int) SubmitSheetResponse {
	t.Helper()
	pages := make([]map[string]any, pageCount)
	for i := range pages {
		up := ts.uploadPage(t, authHeader)
		pages[i] = map[string]any{
			"url":           up.URL,
			"thumbnail_url": up.ThumbnailURL,
			"file_path":     up.FilePath,
			"file_id":       up.FileID,
		}
	}
	body := map[string]any{"pages": pages}
	for k, v := range fields {
		body[k] = v
	}

	resp := ts.api.Post("/api/v1/sheets", authHeader, body)
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, resp.Code, resp.Body.String())
	return decode[SubmitSheetResponse](t, resp.Body.Bytes()).Data
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: uint8(y * 4), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartImage(t *testing.T, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "page.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func decode[T any](t *testing.T, body []byte) testEnvelope[T] {
	t.Helper()
	var env testEnvelope[T]
	require.NoError(t, json.Unmarshal(body, &env), string(body))
	return env
}

var amazingGrace = map[string]any{
	"song_name":     "Amazing Grace",
	"song_artist":   "Newton",
	"song_key":      "G",
	"song_category": "상향",
	"song_bpm":      "72",
	"song_language": "영어",
}

func withFields(base map[string]any, overrides map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
