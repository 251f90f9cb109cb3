package httpserver

import (
	"log/slog"
	"net/url"
	"strings"

	apperrors "github.com/Nijal-AI/brest-mcp-server/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

// originGuard refuses browser requests from foreign origins, which would otherwise
// let any page drive a logged-in user's MCP session. Requests without an Origin
// header (non-browser clients) and requests from the app's own origin pass.
// Development additionally allows localhost, and extra lists further origins.
func originGuard(appURL string, isDevelopment bool, extra ...string) echo.MiddlewareFunc {
	allowed := newOriginCheck(appURL, isDevelopment, extra...)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			origin := c.Request().Header.Get(echo.HeaderOrigin)
			if !allowed(origin) {
				slog.WarnContext(c.Request().Context(), "Origin rejected", "origin", origin, "remote_addr", c.RealIP())
				return apperrors.ForbiddenError("origin not allowed").WithField("origin", origin)
			}
			return next(c)
		}
	}
}

func newOriginCheck(appURL string, isDevelopment bool, extra ...string) func(origin string) bool {
	appOrigin := extractOrigin(appURL)
	allowed := make(map[string]struct{}, len(extra))
	for _, o := range extra {
		if origin := extractOrigin(o); origin != "" {
			allowed[origin] = struct{}{}
		}
	}

	return func(origin string) bool {
		if origin == "" || origin == appOrigin {
			return true
		}
		if _, ok := allowed[strings.TrimSuffix(origin, "/")]; ok {
			return true
		}
		return isDevelopment && isLocalhostOrigin(origin)
	}
}

func extractOrigin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func isLocalhostOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1"
}
