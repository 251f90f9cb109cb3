// Package feed fetches GTFS-realtime feeds over HTTP and decodes them into snapshots.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Nijal-AI/brest-mcp-server/internal/domain"
	"github.com/jonboulle/clockwork"
)

const maxBodyBytes = 32 << 20

// Client pulls one upstream URL per feed. It holds no state between fetches.
type Client struct {
	httpClient *http.Client
	urls       map[domain.FeedType]string
	clock      clockwork.Clock
	language   string
}

type Option func(*Client)

// WithLanguage selects the preferred translation for alert texts.
// Without it, or when no translation matches, the first translation is used.
func WithLanguage(lang string) Option {
	return func(c *Client) { c.language = lang }
}

// WithHTTPClient replaces the underlying HTTP client. Its timeout is left as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(urls map[domain.FeedType]string, timeout time.Duration, clock clockwork.Clock, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		urls:       urls,
		clock:      clock,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch downloads and decodes feed. Failures are *domain.FetchError values:
// Transient for transport problems and non-2xx statuses, Malformed for undecodable payloads.
func (c *Client) Fetch(ctx context.Context, feed domain.FeedType) (*domain.Snapshot, error) {
	url, ok := c.urls[feed]
	if !ok || url == "" {
		return nil, fmt.Errorf("%w: no URL configured for %s", domain.ErrUnknownFeed, feed)
	}

	body, err := c.download(ctx, url)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.Transient, Feed: feed, Err: err}
	}

	snap, err := decode(feed, body, c.clock.Now(), c.language)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.Malformed, Feed: feed, Err: err}
	}

	slog.DebugContext(ctx, "Feed fetched", "feed", feed, "bytes", len(body), "entities", snap.Len())
	return snap, nil
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/x-protobuf")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, errors.New("response body exceeds size limit")
	}
	return body, nil
}

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}
