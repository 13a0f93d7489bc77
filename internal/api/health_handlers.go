package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// Component states, ordered from best to worst.
const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Reports database, upload storage, search index and event stream status",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Time the probe took"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Worst component status"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	components := map[string]ComponentHealth{
		"database": s.checkDatabase(ctx),
		"uploads":  s.checkUploads(),
		"search":   s.checkSearchIndex(),
		"sse":      s.checkSSEManager(),
	}

	overall := statusHealthy
	for _, c := range components {
		overall = worseStatus(overall, c.Status)
	}

	return &HealthOutput{Body: HealthResponse{Status: overall, Components: components}}, nil
}

func worseStatus(a, b string) string {
	rank := func(status string) int {
		switch status {
		case statusUnhealthy:
			return 2
		case statusDegraded:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

// probe times fn and reports failure as unhealthy with the given message.
func probe(failure string, fn func() (string, error)) ComponentHealth {
	start := time.Now()
	message, err := fn()
	latency := time.Since(start).String()
	if err != nil {
		return ComponentHealth{Status: statusUnhealthy, Latency: latency, Message: failure}
	}
	return ComponentHealth{Status: statusHealthy, Latency: latency, Message: message}
}

func (s *Server) checkDatabase(ctx context.Context) ComponentHealth {
	if s.store == nil {
		return ComponentHealth{Status: statusDegraded, Message: "database not configured"}
	}
	return probe("database read failed", func() (string, error) {
		return "", s.store.Ping(ctx)
	})
}

func (s *Server) checkUploads() ComponentHealth {
	if s.storage == nil || s.storage.Pages == nil {
		return ComponentHealth{Status: statusDegraded, Message: "upload storage not configured"}
	}
	return probe("upload directory unavailable", func() (string, error) {
		return "", s.storage.Pages.Ping()
	})
}

// A missing index only degrades the server; sheets stay reachable by listing.
func (s *Server) checkSearchIndex() ComponentHealth {
	if s.services == nil || s.services.Search == nil {
		return ComponentHealth{Status: statusDegraded, Message: "search index not configured"}
	}
	return probe("search index unreachable", func() (string, error) {
		count, err := s.services.Search.DocumentCount()
		return strconv.FormatUint(count, 10) + " sheets indexed", err
	})
}

func (s *Server) checkSSEManager() ComponentHealth {
	if s.sseManager == nil {
		return ComponentHealth{Status: statusDegraded, Message: "event stream not configured"}
	}
	return ComponentHealth{Status: statusHealthy, Message: formatSSEStatus(s.sseManager.ClientCount())}
}

func formatSSEStatus(count int) string {
	switch count {
	case 0:
		return "no connected clients"
	case 1:
		return "1 connected client"
	default:
		return strconv.Itoa(count) + " connected clients"
	}
}
