package mcpserver

import (
	"context"
	"testing"
	"time"

	"github.com/Nijal-AI/brest-mcp-server/internal/auth"
	mcpauth "github.com/ggoodman/mcp-server-go/auth"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTokenSecret = "0123456789abcdef0123456789abcdef"

func TestAuthenticator_AcceptsIssuedToken(t *testing.T) {
	issuer := auth.NewIssuer(testTokenSecret, 30*time.Minute, clockwork.NewRealClock())
	tok, err := issuer.Issue("octocat")
	require.NoError(t, err)

	info, err := NewAuthenticator(issuer).CheckAuthentication(context.Background(), tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "octocat", info.UserID())

	var claims auth.Claims
	require.NoError(t, info.Claims(&claims))
	assert.Equal(t, "octocat", claims.Login)
	assert.NotNil(t, claims.ExpiresAt)
}

func TestAuthenticator_RejectsBadTokens(t *testing.T) {
	clock := clockwork.NewFakeClock()
	issuer := auth.NewIssuer(testTokenSecret, time.Minute, clock)
	expired, err := issuer.Issue("octocat")
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	other := auth.NewIssuer("fedcba9876543210fedcba9876543210", time.Minute, clock)
	foreign, err := other.Issue("octocat")
	require.NoError(t, err)

	authn := NewAuthenticator(issuer)
	for name, raw := range map[string]string{
		"garbage":        "not-a-jwt",
		"expired":        expired.AccessToken,
		"foreign secret": foreign.AccessToken,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := authn.CheckAuthentication(context.Background(), raw)
			require.ErrorIs(t, err, mcpauth.ErrUnauthorized)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}
