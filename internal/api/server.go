// Package api provides the HTTP API server and handlers for the Conti application.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/contiapp/conti-server/internal/sse"
	"github.com/contiapp/conti-server/internal/store"
)

// Options holds the HTTP settings the server needs from configuration.
type Options struct {
	Version        string
	CORSOrigins    []string
	MaxUploadBytes int64
	AuthPerMinute  int
	AuthBurst      int
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store           *store.Store
	services        *Services
	storage         *StorageServices
	router          *chi.Mux
	api             huma.API
	logger          *slog.Logger
	sseManager      *sse.Manager
	authRateLimiter *RateLimiter
	opts            Options
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(
	st *store.Store,
	services *Services,
	storage *StorageServices,
	sseManager *sse.Manager,
	opts Options,
	logger *slog.Logger,
) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = MaxUploadSize
	}
	if opts.AuthPerMinute <= 0 {
		opts.AuthPerMinute = 20
	}
	if opts.AuthBurst <= 0 {
		opts.AuthBurst = 5
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}

	router := chi.NewRouter()

	s := &Server{
		store:           st,
		services:        services,
		storage:         storage,
		router:          router,
		logger:          logger,
		sseManager:      sseManager,
		authRateLimiter: NewRateLimiter(opts.AuthPerMinute, time.Minute, opts.AuthBurst),
		opts:            opts,
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("Conti API", opts.Version)
	humaConfig.Info.Description = "Song sheet library, setlists and team calendars for worship teams"
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.registerRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for OpenAPI generation.
func (s *Server) API() huma.API {
	return s.api
}

// Shutdown releases background resources owned by the server.
func (s *Server) Shutdown() {
	s.authRateLimiter.Stop()
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if s.services != nil && s.services.Auth != nil {
		s.router.Use(authMiddleware(s.services.Auth))
	}
}

func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerUserRoutes()
	s.registerSheetRoutes()
	s.registerUploadRoutes()
	s.registerSetlistRoutes()
	s.registerTeamRoutes()

	if s.sseManager != nil && s.services != nil && s.services.Auth != nil {
		handler := sse.NewHandler(s.sseManager, sse.AuthenticatorFunc(s.authenticateStream), s.logger)
		s.router.Get("/api/v1/events", handler.ServeHTTP)
	}
}
