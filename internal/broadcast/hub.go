package broadcast

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Nijal-AI/brest-mcp-server/internal/adapter/metrics"
	"github.com/Nijal-AI/brest-mcp-server/internal/domain"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	commandTimeout   = 5 * time.Second  // actor reply timeout
	stopTimeout      = 10 * time.Second // graceful shutdown timeout
	commandQueueSize = 256

	DefaultQueueSize = 64
)

var (
	ErrHubFull    = errors.New("subscriber limit reached")
	ErrHubStopped = errors.New("hub stopped")
)

// Encoder serializes a change event into the frame written to subscribers.
type Encoder func(domain.ChangeEvent) ([]byte, error)

// hubCmd is the command interface for the Hub actor.
type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type subscribeCmd struct {
	baseHubCmd
	replyChannel chan subscribeReply
}

type subscribeReply struct {
	sub *Subscription
	err error
}

type unsubscribeCmd struct {
	baseHubCmd
	sub *Subscription
}

type publishCmd struct {
	baseHubCmd
	msg Message
}

type countCmd struct {
	baseHubCmd
	replyChannel chan int
}

type stopCmd struct {
	baseHubCmd
}

type Config struct {
	QueueSize      int
	MaxSubscribers int
	Encoder        Encoder
	Metrics        *metrics.HubMetrics
}

// Hub owns the set of stream subscribers and fans change events out to them.
type Hub struct {
	cmdCh   chan hubCmd
	clock   clockwork.Clock
	encode  Encoder
	metrics *metrics.HubMetrics

	subscribers    map[uuid.UUID]*Subscription
	queueSize      int
	maxSubscribers int

	done     chan struct{}
	stopOnce sync.Once
}

// NewHub starts the hub actor. Zero config values fall back to defaults:
// a queue of DefaultQueueSize, no subscriber limit and plain JSON encoding.
func NewHub(clock clockwork.Clock, cfg Config) *Hub {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Encoder == nil {
		cfg.Encoder = func(ev domain.ChangeEvent) ([]byte, error) { return json.Marshal(ev) }
	}

	h := &Hub{
		cmdCh:          make(chan hubCmd, commandQueueSize),
		clock:          clock,
		encode:         cfg.Encoder,
		metrics:        cfg.Metrics,
		subscribers:    make(map[uuid.UUID]*Subscription),
		queueSize:      cfg.QueueSize,
		maxSubscribers: cfg.MaxSubscribers,
		done:           make(chan struct{}),
	}
	go h.run()
	return h
}

// send delivers cmd to the actor unless the hub has stopped.
func (h *Hub) send(cmd hubCmd) bool {
	select {
	case h.cmdCh <- cmd:
		return true
	case <-h.done:
		return false
	}
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() (*Subscription, error) {
	replyCh := make(chan subscribeReply, 1)
	if !h.send(subscribeCmd{replyChannel: replyCh}) {
		return nil, ErrHubStopped
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case r := <-replyCh:
		return r.sub, r.err
	case <-h.done:
		return nil, ErrHubStopped
	case <-timer.Chan():
		return nil, fmt.Errorf("subscribe command timed out after %v", commandTimeout)
	}
}

// Unsubscribe removes sub and closes it. Safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.send(unsubscribeCmd{sub: sub})
}

// Publish serializes ev once and hands it to the actor. It never waits on subscribers.
func (h *Hub) Publish(ev domain.ChangeEvent) {
	payload, err := h.encode(ev)
	if err != nil {
		slog.Error("Failed to encode change event", "feed", ev.Feed, "version", ev.Version, "error", err)
		return
	}
	h.send(publishCmd{msg: Message{Feed: ev.Feed, Version: ev.Version, Payload: payload}})
}

// Count returns the number of subscribers, or -1 if the actor did not answer in time.
func (h *Hub) Count() int {
	replyCh := make(chan int, 1)
	if !h.send(countCmd{replyChannel: replyCh}) {
		return 0
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case n := <-replyCh:
		return n
	case <-h.done:
		return 0
	case <-timer.Chan():
		slog.Warn("Hub count timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop closes every subscription with ReasonShutdown and stops the actor.
// It blocks until the actor has exited or the stop timeout elapses.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		if !h.send(stopCmd{}) {
			return
		}

		timeout := h.clock.NewTimer(stopTimeout)
		defer timeout.Stop()

		select {
		case <-h.done:
			slog.Info("Hub stopped gracefully")
		case <-timeout.Chan():
			slog.Warn("Hub stop timeout exceeded", "timeout", stopTimeout)
		}
	})
}

func (h *Hub) run() {
	defer close(h.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Hub panic recovered", "panic", r)
			h.closeAll(ReasonShutdown)
		}
	}()

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case subscribeCmd:
			c.replyChannel <- h.handleSubscribe()
		case unsubscribeCmd:
			h.remove(c.sub, ReasonUnsubscribed)
		case publishCmd:
			h.handlePublish(c.msg)
		case countCmd:
			c.replyChannel <- len(h.subscribers)
		case stopCmd:
			h.handleStop()
			return
		default:
			slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (h *Hub) handleSubscribe() subscribeReply {
	if h.maxSubscribers > 0 && len(h.subscribers) >= h.maxSubscribers {
		slog.Warn("Rejecting subscriber: limit reached", "max_subscribers", h.maxSubscribers)
		if h.metrics != nil {
			h.metrics.Rejected.Inc()
		}
		return subscribeReply{err: fmt.Errorf("%w (%d)", ErrHubFull, h.maxSubscribers)}
	}

	sub := newSubscription(h.queueSize)
	h.subscribers[sub.id] = sub
	h.updateGauge()

	slog.Debug("Subscriber registered", "subscriber_id", sub.id.String(), "total_subscribers", len(h.subscribers))
	return subscribeReply{sub: sub}
}

func (h *Hub) handlePublish(msg Message) {
	if h.metrics != nil {
		h.metrics.EventsPublished.WithLabelValues(string(msg.Feed)).Inc()
	}

	var overflowed []*Subscription
	delivered := 0
	for _, sub := range h.subscribers {
		enqueued, ok := sub.offer(msg)
		if !ok {
			overflowed = append(overflowed, sub)
			continue
		}
		if enqueued {
			delivered++
		}
	}

	if h.metrics != nil {
		h.metrics.MessagesDelivered.Add(float64(delivered))
	}

	for _, sub := range overflowed {
		slog.Warn("Disconnecting slow subscriber, queue full",
			"subscriber_id", sub.id.String(),
			"feed", msg.Feed,
			"version", msg.Version,
			"queue_size", h.queueSize,
		)
		if h.metrics != nil {
			h.metrics.Evictions.Inc()
		}
		h.remove(sub, ReasonOverflow)
	}
}

func (h *Hub) remove(sub *Subscription, reason CloseReason) {
	if _, ok := h.subscribers[sub.id]; !ok {
		return
	}
	delete(h.subscribers, sub.id)
	sub.close(reason)
	h.updateGauge()

	slog.Debug("Subscriber removed", "subscriber_id", sub.id.String(), "reason", reason, "remaining", len(h.subscribers))
}

func (h *Hub) handleStop() {
	slog.Info("Hub shutting down", "subscribers", len(h.subscribers))
	h.closeAll(ReasonShutdown)
}

func (h *Hub) closeAll(reason CloseReason) {
	for id, sub := range h.subscribers {
		sub.close(reason)
		delete(h.subscribers, id)
	}
	h.updateGauge()
}

func (h *Hub) updateGauge() {
	if h.metrics != nil {
		h.metrics.Subscribers.Set(float64(len(h.subscribers)))
	}
}
