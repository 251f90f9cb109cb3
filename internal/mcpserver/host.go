package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Nijal-AI/brest-mcp-server/internal/adapter/metrics"
	"github.com/Nijal-AI/brest-mcp-server/internal/broadcast"
	"github.com/ggoodman/mcp-server-go/sessions"
	"github.com/ggoodman/mcp-server-go/sessions/memoryhost"
	"golang.org/x/sync/errgroup"
)

// ErrStreamEvicted ends a session stream whose client fell behind the change feed.
var ErrStreamEvicted = errors.New("session stream evicted")

// Subscriber is the part of the broadcast hub a session stream needs.
type Subscriber interface {
	Subscribe() (*broadcast.Subscription, error)
	Unsubscribe(sub *broadcast.Subscription)
}

// SessionHost keeps sessions in process memory and joins every open session
// stream to the hub, so each stream carries the engine's messages for its
// session plus every committed feed change.
type SessionHost struct {
	*memoryhost.Host
	hub     Subscriber
	metrics *metrics.MCPMetrics
}

var _ sessions.SessionHost = (*SessionHost)(nil)

// NewSessionHost creates the host. m may be nil.
func NewSessionHost(hub Subscriber, m *metrics.MCPMetrics) *SessionHost {
	return &SessionHost{Host: memoryhost.New(), hub: hub, metrics: m}
}

type disconnectKey struct{}

// WithDisconnect attaches fn to ctx. When the hub evicts the stream served under
// ctx, fn is called so that a write blocked on the stalled client fails at once.
func WithDisconnect(ctx context.Context, fn func()) context.Context {
	return context.WithValue(ctx, disconnectKey{}, fn)
}

func disconnectFrom(ctx context.Context) func() {
	fn, _ := ctx.Value(disconnectKey{}).(func())
	return fn
}

// SubscribeSession serves one open stream. The hub subscription lives exactly as
// long as the stream; it is released on every exit path.
func (h *SessionHost) SubscribeSession(ctx context.Context, sessionID, lastEventID string, handler sessions.MessageHandlerFunction) error {
	sub, err := h.hub.Subscribe()
	if err != nil {
		slog.WarnContext(ctx, "Session stream refused", "session_id", sessionID, "error", err)
		return fmt.Errorf("subscribe to change feed: %w", err)
	}
	defer h.hub.Unsubscribe(sub)

	if h.metrics != nil {
		h.metrics.ActiveStreams.Inc()
		defer h.metrics.ActiveStreams.Dec()
	}

	slog.InfoContext(ctx, "Session stream opened", "session_id", sessionID, "subscription_id", sub.ID())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return h.Host.SubscribeSession(gctx, sessionID, lastEventID, handler)
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case msg := <-sub.Messages():
				if err := handler(gctx, "", msg.Payload); err != nil {
					return fmt.Errorf("relay %s v%d: %w", msg.Feed, msg.Version, err)
				}
			}
		}
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-sub.Done():
		}

		reason := sub.Reason()
		if reason != broadcast.ReasonOverflow {
			slog.InfoContext(ctx, "Session stream closed by hub", "session_id", sessionID, "reason", reason)
			return errHubClosed
		}

		if h.metrics != nil {
			h.metrics.SessionsEvicted.Inc()
		}
		slog.WarnContext(ctx, "Session stream evicted, client too slow", "session_id", sessionID)
		if disconnect := disconnectFrom(ctx); disconnect != nil {
			disconnect()
		}
		return ErrStreamEvicted
	})

	err = g.Wait()
	switch {
	case sub.Reason() == broadcast.ReasonOverflow:
		// The relay may report the aborted write first.
		return ErrStreamEvicted
	case errors.Is(err, errHubClosed):
		return nil
	}
	return err
}

// errHubClosed unwinds the group when the hub shuts the subscription down.
var errHubClosed = errors.New("change feed closed")
