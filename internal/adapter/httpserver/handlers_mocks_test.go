package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Nijal-AI/brest-mcp-server/internal/adapter/github"
	"github.com/Nijal-AI/brest-mcp-server/internal/auth"
	"github.com/Nijal-AI/brest-mcp-server/internal/broadcast"
	"github.com/Nijal-AI/brest-mcp-server/internal/feedcache"
	"github.com/Nijal-AI/brest-mcp-server/internal/mcpserver"
	"github.com/Nijal-AI/brest-mcp-server/internal/platform/config"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockOAuthClient struct {
	authenticateFn func(ctx context.Context, code string) (*github.User, error)
}

func (m *mockOAuthClient) AuthorizeURL(state string) string {
	return "https://github.example/login/oauth/authorize?state=" + state
}

func (m *mockOAuthClient) Authenticate(ctx context.Context, code string) (*github.User, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, code)
	}
	return nil, errors.New("not implemented")
}

const testTokenSecret = "0123456789abcdef0123456789abcdef"

type testServer struct {
	*Server
	hub    *broadcast.Hub
	cache  *feedcache.Cache
	issuer *auth.Issuer
	oauth  *mockOAuthClient
}

const testAppURL = "http://transit.test"

func newTestServer(t *testing.T, opts ...func(*Deps)) *testServer {
	t.Helper()
	return newTestServerWithHub(t, broadcast.Config{}, opts...)
}

// newTestServerWithHub wires the real MCP engine over an in-memory cache and the given hub.
func newTestServerWithHub(t *testing.T, hubCfg broadcast.Config, opts ...func(*Deps)) *testServer {
	t.Helper()

	clock := clockwork.NewRealClock()
	hubCfg.Encoder = mcpserver.EncodeChangeNotification
	hub := broadcast.NewHub(clock, hubCfg)
	t.Cleanup(hub.Stop)

	cache := feedcache.New()
	issuer := auth.NewIssuer(testTokenSecret, 30*time.Minute, clock)
	oauth := &mockOAuthClient{}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	mcpHandler, err := mcpserver.NewHandler(ctx, testAppURL+mcpPath,
		mcpserver.NewSessionHost(hub, nil),
		mcpserver.NewService(cache, nil, clock, "bibus", nil).Capabilities(),
		mcpserver.NewAuthenticator(issuer),
		slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	cfg := &config.Config{
		Port:               "0",
		AppURL:             testAppURL,
		SessionSecret:      "test-secret-key-32-bytes-long!!!",
		SessionMaxAge:      time.Hour,
		StreamWriteTimeout: 10 * time.Second,
	}
	deps := Deps{
		MCPHandler: mcpHandler,
		OAuth:      oauth,
		Tokens:     issuer,
		Clock:      clock,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv, err := NewServer(cfg, deps)
	require.NoError(t, err)

	return &testServer{Server: srv, hub: hub, cache: cache, issuer: issuer, oauth: oauth}
}

func withProbes(p Probes) func(*Deps) {
	return func(d *Deps) {
		d.Probes = p
	}
}

func withOAuthClient(oauth oauthClient) func(*Deps) {
	return func(d *Deps) {
		d.OAuth = oauth
	}
}

// serve runs req through the full middleware chain.
func (ts *testServer) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	return rec
}

// bearer returns an Authorization header value for login.
func (ts *testServer) bearer(t *testing.T, login string) string {
	t.Helper()
	tok, err := ts.issuer.Issue(login)
	require.NoError(t, err)
	return "Bearer " + tok.AccessToken
}

// sessionCookies logs login in through the session store and returns the cookies to send.
func (ts *testServer) sessionCookies(t *testing.T, login string) []*http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	session, err := ts.sessionStore.Get(req, sessionName)
	require.NoError(t, err)
	session.Values[sessionKeyLogin] = login
	require.NoError(t, session.Save(req, rec))
	return rec.Result().Cookies()
}
