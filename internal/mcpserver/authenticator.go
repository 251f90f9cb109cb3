package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Nijal-AI/brest-mcp-server/internal/auth"
	mcpauth "github.com/ggoodman/mcp-server-go/auth"
)

// TokenVerifier checks the access tokens issued by the GitHub OAuth callback.
type TokenVerifier interface {
	Verify(raw string) (*auth.Claims, error)
}

// Authenticator admits bearer tokens minted by our own issuer. The session
// owner is the GitHub login, so a session id is only usable by that login.
type Authenticator struct {
	tokens TokenVerifier
}

var _ mcpauth.Authenticator = (*Authenticator)(nil)

func NewAuthenticator(tokens TokenVerifier) *Authenticator {
	return &Authenticator{tokens: tokens}
}

func (a *Authenticator) CheckAuthentication(ctx context.Context, tok string) (mcpauth.UserInfo, error) {
	claims, err := a.tokens.Verify(tok)
	if err != nil {
		slog.DebugContext(ctx, "Bearer token rejected", "error", err)
		return nil, fmt.Errorf("%w: %w", mcpauth.ErrUnauthorized, err)
	}
	return userInfo{claims: claims}, nil
}

type userInfo struct {
	claims *auth.Claims
}

func (u userInfo) UserID() string { return u.claims.Login }

func (u userInfo) Claims(ref any) error {
	raw, err := json.Marshal(u.claims)
	if err != nil {
		return fmt.Errorf("encode claims: %w", err)
	}
	if err := json.Unmarshal(raw, ref); err != nil {
		return fmt.Errorf("decode claims: %w", err)
	}
	return nil
}
