package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Nijal-AI/brest-mcp-server/internal/platform/version"
	mcpauth "github.com/ggoodman/mcp-server-go/auth"
	"github.com/ggoodman/mcp-server-go/mcpservice"
	"github.com/ggoodman/mcp-server-go/sessions"
	"github.com/ggoodman/mcp-server-go/streaminghttp"
)

const realm = "transit"

// NewHandler serves the streamable HTTP transport at endpoint, the public URL of
// the MCP route. The engine behind it runs until ctx is cancelled.
func NewHandler(ctx context.Context, endpoint string, host sessions.SessionHost, caps mcpservice.ServerCapabilities, authn mcpauth.Authenticator, logger *slog.Logger) (http.Handler, error) {
	h, err := streaminghttp.New(ctx, endpoint, host, caps, authn,
		streaminghttp.WithServerName(version.Name),
		streaminghttp.WithRealm(realm),
		streaminghttp.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create MCP handler: %w", err)
	}
	return h, nil
}
