package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/Nijal-AI/brest-mcp-server/internal/platform/errors"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOriginCheck(t *testing.T) {
	appURL := "https://transit.example.com/auth/callback"

	tests := []struct {
		name          string
		origin        string
		isDevelopment bool
		want          bool
	}{
		// Always allowed
		{"empty origin", "", false, true},
		{"app origin", "https://transit.example.com", false, true},

		// Rejected in production
		{"different host", "https://evil.com", false, false},
		{"different port", "https://transit.example.com:9090", false, false},
		{"http instead of https", "http://transit.example.com", false, false},
		{"subdomain", "https://sub.transit.example.com", false, false},

		// Localhost: allowed in dev, rejected in prod
		{"localhost dev", "http://localhost:8080", true, true},
		{"localhost no port dev", "http://localhost", true, true},
		{"127.0.0.1 dev", "http://127.0.0.1:3000", true, true},
		{"localhost prod rejected", "http://localhost:8080", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, newOriginCheck(appURL, tt.isDevelopment)(tt.origin))
		})
	}
}

func TestOriginCheck_Extra(t *testing.T) {
	check := newOriginCheck("https://transit.example.com", false, "https://maps.example.org/embed", "not a url")

	assert.True(t, check("https://maps.example.org"))
	assert.False(t, check("https://other.example.org"))
}

func TestOriginGuard_Forbidden(t *testing.T) {
	e := echo.New()
	guard := originGuard("https://transit.example.com", false)

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set(echo.HeaderOrigin, "https://evil.com")
	err := guard(okHandler)(e.NewContext(req, httptest.NewRecorder()))

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.TypeForbidden, appErr.Type)
	assert.Equal(t, http.StatusForbidden, appErr.HTTPStatus())

	req.Header.Set(echo.HeaderOrigin, "https://transit.example.com")
	rec := httptest.NewRecorder()
	require.NoError(t, guard(okHandler)(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExtractOrigin(t *testing.T) {
	tests := []struct {
		name   string
		rawURL string
		want   string
	}{
		{"full URL with path", "https://example.com/auth/callback", "https://example.com"},
		{"URL with port", "https://example.com:8443/path", "https://example.com:8443"},
		{"http URL", "http://localhost:8080/callback", "http://localhost:8080"},
		{"empty string", "", ""},
		{"no host", "mailto:user@example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractOrigin(tt.rawURL))
		})
	}
}
