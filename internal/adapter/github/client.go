// Package github implements the GitHub OAuth authorization-code exchange.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Nijal-AI/brest-mcp-server/internal/platform/retry"
	"github.com/jonboulle/clockwork"
)

const (
	defaultAuthorizeURL = "https://github.com/login/oauth/authorize"
	defaultTokenURL     = "https://github.com/login/oauth/access_token"
	defaultUserURL      = "https://api.github.com/user"
	defaultScope        = "read:user"

	httpCallTimeout = 10 * time.Second
	maxBodyBytes    = 1 << 20
)

// Endpoints overrides the GitHub URLs, mostly for tests.
type Endpoints struct {
	AuthorizeURL string
	TokenURL     string
	UserURL      string
}

// User is the authenticated GitHub account.
type User struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
}

// StatusError is a non-2xx answer from GitHub.
type StatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("github %s returned status %d", e.Endpoint, e.StatusCode)
}

type Client struct {
	clientID     string
	clientSecret string
	redirectURI  string
	endpoints    Endpoints
	httpClient   *http.Client
	retryPolicy  retry.Policy
}

func NewClient(clientID, clientSecret, redirectURI string, clock clockwork.Clock, endpoints Endpoints) *Client {
	if endpoints.AuthorizeURL == "" {
		endpoints.AuthorizeURL = defaultAuthorizeURL
	}
	if endpoints.TokenURL == "" {
		endpoints.TokenURL = defaultTokenURL
	}
	if endpoints.UserURL == "" {
		endpoints.UserURL = defaultUserURL
	}

	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		endpoints:    endpoints,
		httpClient:   &http.Client{Timeout: httpCallTimeout},
		retryPolicy: retry.Policy{
			MaxAttempts:      3,
			InitialBackoff:   200 * time.Millisecond,
			RateLimitBackoff: 2 * time.Second,
			Clock:            clock,
			OnRetry: func(attempt int, err error, backoff time.Duration) {
				slog.Warn("GitHub call failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
			},
		},
	}
}

// AuthorizeURL builds the URL the user is redirected to for consent.
func (c *Client) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.clientID)
	q.Set("redirect_uri", c.redirectURI)
	q.Set("scope", defaultScope)
	q.Set("state", state)
	return c.endpoints.AuthorizeURL + "?" + q.Encode()
}

// Authenticate exchanges an authorization code and resolves the account behind it.
func (c *Client) Authenticate(ctx context.Context, code string) (*User, error) {
	token, err := retry.Do(ctx, c.retryPolicy, classify, func() (string, error) {
		return c.exchangeCode(ctx, code)
	})
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	user, err := retry.Do(ctx, c.retryPolicy, classify, func() (*User, error) {
		return c.fetchUser(ctx, token)
	})
	if err != nil {
		return nil, fmt.Errorf("user info fetch failed: %w", err)
	}
	return user, nil
}

// errRejected is a well-formed answer that refuses the exchange. Retrying cannot help.
var errRejected = errors.New("github rejected the authorization code")

func classify(err error) retry.Action {
	if errors.Is(err, errRejected) {
		return retry.Stop
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return retry.After
		case statusErr.StatusCode >= 500:
			return retry.Retry
		default:
			return retry.Stop
		}
	}
	return retry.Retry
}

func (c *Client) exchangeCode(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", c.redirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var tokenResp struct {
		AccessToken      string `json:"access_token"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := c.doJSON(req, "token", &tokenResp); err != nil {
		return "", err
	}

	// GitHub reports exchange failures with a 200 and an error field.
	if tokenResp.AccessToken == "" {
		if tokenResp.Error != "" {
			return "", fmt.Errorf("%w: %s: %s", errRejected, tokenResp.Error, tokenResp.ErrorDescription)
		}
		return "", fmt.Errorf("%w: no access token in response", errRejected)
	}
	return tokenResp.AccessToken, nil
}

func (c *Client) fetchUser(ctx context.Context, accessToken string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoints.UserURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	var user User
	if err := c.doJSON(req, "user", &user); err != nil {
		return nil, err
	}
	if user.Login == "" {
		return nil, fmt.Errorf("%w: user response has no login", errRejected)
	}
	return &user, nil
}

func (c *Client) doJSON(req *http.Request, endpoint string, into any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute %s request: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(into); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}
