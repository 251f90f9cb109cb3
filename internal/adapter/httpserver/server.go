package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Nijal-AI/brest-mcp-server/internal/adapter/github"
	"github.com/Nijal-AI/brest-mcp-server/internal/adapter/metrics"
	"github.com/Nijal-AI/brest-mcp-server/internal/auth"
	"github.com/Nijal-AI/brest-mcp-server/internal/platform/config"
	"github.com/gorilla/sessions"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"golang.org/x/net/http2"
)

// oauthClient runs the provider side of the authorization-code flow.
type oauthClient interface {
	AuthorizeURL(state string) string
	Authenticate(ctx context.Context, code string) (*github.User, error)
}

type tokenIssuer interface {
	Issue(login string) (auth.Token, error)
	Verify(raw string) (*auth.Claims, error)
}

// Deps are the collaborators the server routes to.
type Deps struct {
	MCPHandler     http.Handler
	OAuth          oauthClient
	Tokens         tokenIssuer
	MetricsHandler http.Handler
	HTTPMetrics    *metrics.HTTPMetrics
	Probes         Probes
	Clock          clockwork.Clock
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	clock  clockwork.Clock

	mcpHandler         http.Handler
	streamWriteTimeout time.Duration
	metricsHandler     http.Handler

	oauthClient  oauthClient
	tokens       tokenIssuer
	sessionStore *sessions.CookieStore

	httpMetrics *metrics.HTTPMetrics
	probes      Probes
	startTime   time.Time
}

func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.MCPHandler == nil {
		return nil, errors.New("server needs an MCP handler")
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:               e,
		config:             cfg,
		clock:              deps.Clock,
		mcpHandler:         deps.MCPHandler,
		streamWriteTimeout: cfg.StreamWriteTimeout,
		metricsHandler:     deps.MetricsHandler,
		oauthClient:        deps.OAuth,
		tokens:             deps.Tokens,
		sessionStore:       setupSessionStore(cfg),
		httpMetrics:        deps.HTTPMetrics,
		probes:             deps.Probes,
		startTime:          deps.Clock.Now(),
	}

	srv.registerRoutes()

	return srv, nil
}

// Start serves until Shutdown. With H2C enabled, HTTP/2 is accepted over cleartext.
func (s *Server) Start() error {
	addr := ":" + s.config.Port
	slog.Info("Starting server", "port", s.config.Port, "h2c", s.config.H2CEnabled)

	var err error
	if s.config.H2CEnabled {
		err = s.echo.StartH2CServer(addr, &http2.Server{MaxConcurrentStreams: 250})
	} else {
		err = s.echo.Start(addr)
	}
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Session keys
const (
	sessionName          = "transit-session"
	sessionKeyLogin      = "login"
	sessionKeyOAuthState = "oauth_state"
)

func setupSessionStore(cfg *config.Config) *sessions.CookieStore {
	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
	return sessionStore
}
