package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Nijal-AI/brest-mcp-server/internal/domain"
	"github.com/Nijal-AI/brest-mcp-server/internal/platform/version"
	"github.com/labstack/echo/v4"
)

const (
	startupProbeTimeout   = 2 * time.Second
	readinessProbeTimeout = 5 * time.Second
)

// HealthCheck is a named probe. Any error takes the instance out of rotation.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Probes configures the health endpoints. Startup gates the first readiness
// pass; Readiness is rechecked on every call. StaleFeeds only downgrades the
// readiness body to "degraded": cached data stays servable while a feed is down.
type Probes struct {
	Startup    []HealthCheck
	Readiness  []HealthCheck
	StaleFeeds func() []domain.FeedType
}

type probeFailure struct {
	Status      string `json:"status"`
	FailedCheck string `json:"failed_check"`
	Error       string `json:"error"`
}

type readiness struct {
	Status     string            `json:"status"`
	StaleFeeds []domain.FeedType `json:"stale_feeds,omitempty"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.handleStartup)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

func (s *Server) handleStartup(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), startupProbeTimeout)
	defer cancel()

	if failed := runChecks(ctx, s.probes.Startup); failed != nil {
		return writeJSON(c, http.StatusServiceUnavailable, failed)
	}
	return writeJSON(c, http.StatusOK, readiness{Status: "started"})
}

func (s *Server) handleLiveness(c echo.Context) error {
	return writeJSON(c, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": s.clock.Since(s.startTime).Seconds(),
	})
}

func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessProbeTimeout)
	defer cancel()

	if failed := runChecks(ctx, s.probes.Readiness); failed != nil {
		slog.WarnContext(ctx, "Readiness check failed", "check", failed.FailedCheck, "error", failed.Error)
		return writeJSON(c, http.StatusServiceUnavailable, failed)
	}

	body := readiness{Status: "ready"}
	if s.probes.StaleFeeds != nil {
		if stale := s.probes.StaleFeeds(); len(stale) > 0 {
			body.Status = "degraded"
			body.StaleFeeds = stale
		}
	}
	return writeJSON(c, http.StatusOK, body)
}

func (s *Server) handleVersion(c echo.Context) error {
	return writeJSON(c, http.StatusOK, version.Get())
}

// runChecks stops at the first failing check.
func runChecks(ctx context.Context, checks []HealthCheck) *probeFailure {
	for _, hc := range checks {
		if err := hc.Check(ctx); err != nil {
			return &probeFailure{Status: "unhealthy", FailedCheck: hc.Name, Error: err.Error()}
		}
	}
	return nil
}

func writeJSON(c echo.Context, status int, body any) error {
	if err := c.JSON(status, body); err != nil {
		return fmt.Errorf("failed to write %s response: %w", c.Path(), err)
	}
	return nil
}
