package httpserver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Nijal-AI/brest-mcp-server/internal/auth"
	apperrors "github.com/Nijal-AI/brest-mcp-server/internal/platform/errors"
	"github.com/Nijal-AI/brest-mcp-server/internal/platform/logging"
	"github.com/labstack/echo/v4"
)

const oauthTimeout = 15 * time.Second

func (s *Server) registerAuthRoutes(rateLimiter echo.MiddlewareFunc) {
	s.echo.GET("/auth/login", s.handleLogin, rateLimiter)
	s.echo.GET("/auth/callback", s.handleOAuthCallback, rateLimiter)
	s.echo.POST("/auth/logout", s.handleLogout, rateLimiter, s.requireAuth)
}

// requireAuth admits requests carrying a valid bearer token or a logged-in session.
// A malformed or expired bearer token is rejected even if a session is present.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if header := c.Request().Header.Get(echo.HeaderAuthorization); header != "" {
			scheme, raw, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || raw == "" {
				return apperrors.UnauthorizedError("malformed Authorization header")
			}
			claims, err := s.tokens.Verify(raw)
			if err != nil {
				slog.DebugContext(c.Request().Context(), "Bearer token rejected", "error", err)
				return apperrors.UnauthorizedError("invalid or expired token")
			}
			authenticate(c, claims.Login)
			return next(c)
		}

		login, ok := s.sessionLogin(c)
		if !ok {
			return apperrors.UnauthorizedError("authentication required")
		}
		authenticate(c, login)
		return next(c)
	}
}

// authenticate tags the request context with the caller so later log lines carry the login.
func authenticate(c echo.Context, login string) {
	c.SetRequest(c.Request().WithContext(logging.WithLogin(c.Request().Context(), login)))
}

func (s *Server) sessionLogin(c echo.Context) (string, bool) {
	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		return "", false
	}
	login, ok := session.Values[sessionKeyLogin].(string)
	return login, ok && login != ""
}

func generateOAuthState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate OAuth state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// handleLogin starts the GitHub flow. Browsers are redirected; API clients asking
// for JSON receive the authorization URL instead.
func (s *Server) handleLogin(c echo.Context) error {
	state, err := generateOAuthState()
	if err != nil {
		return apperrors.InternalError("failed to generate OAuth state", err)
	}

	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		slog.WarnContext(c.Request().Context(), "Discarding unreadable session", "error", err)
	}

	session.Values[sessionKeyOAuthState] = state
	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.InternalError("failed to save OAuth state session", err)
	}

	authURL := s.oauthClient.AuthorizeURL(state)

	if strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON) {
		if err := c.JSON(http.StatusOK, map[string]string{"status": "success", "url": authURL}); err != nil {
			return fmt.Errorf("failed to write login response: %w", err)
		}
		return nil
	}

	if err := c.Redirect(http.StatusFound, authURL); err != nil {
		return fmt.Errorf("failed to redirect: %w", err)
	}
	return nil
}

type callbackResponse struct {
	Status string `json:"status"`
	Login  string `json:"login"`
	auth.Token
}

func (s *Server) handleOAuthCallback(c echo.Context) error {
	code := c.QueryParam("code")
	if code == "" {
		return apperrors.ValidationError("missing code parameter")
	}

	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		return apperrors.ValidationError("invalid session")
	}

	expectedState, ok := session.Values[sessionKeyOAuthState].(string)
	if !ok || expectedState == "" {
		return apperrors.ValidationError("missing OAuth state")
	}
	if c.QueryParam("state") != expectedState {
		return apperrors.ValidationError("invalid OAuth state")
	}
	delete(session.Values, sessionKeyOAuthState)

	ctx, cancel := context.WithTimeout(c.Request().Context(), oauthTimeout)
	defer cancel()

	user, err := s.oauthClient.Authenticate(ctx, code)
	if err != nil {
		return apperrors.ExternalError("failed to authenticate with GitHub", err)
	}

	token, err := s.tokens.Issue(user.Login)
	if err != nil {
		return apperrors.InternalError("failed to issue access token", err).WithField("login", user.Login)
	}

	// Replace the pre-login session rather than promoting it.
	session.Options.MaxAge = -1
	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.InternalError("failed to invalidate old session", err)
	}

	session, err = s.sessionStore.New(c.Request(), sessionName)
	if err != nil {
		return apperrors.InternalError("failed to create new session", err)
	}

	session.Values[sessionKeyLogin] = user.Login
	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.InternalError("failed to save session", err)
	}

	slog.InfoContext(ctx, "User logged in", "login", user.Login, "github_id", user.ID)

	if err := c.JSON(http.StatusOK, callbackResponse{Status: "success", Login: user.Login, Token: token}); err != nil {
		return fmt.Errorf("failed to write token response: %w", err)
	}
	return nil
}

func (s *Server) handleLogout(c echo.Context) error {
	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		slog.WarnContext(c.Request().Context(), "Failed to get session during logout", "error", err)
		session, err = s.sessionStore.New(c.Request(), sessionName)
		if err != nil {
			return apperrors.InternalError("failed to create new session during logout", err)
		}
	}
	session.Options.MaxAge = -1

	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.InternalError("failed to save logout session", err)
	}

	slog.InfoContext(c.Request().Context(), "User logged out")

	return c.NoContent(http.StatusNoContent)
}
