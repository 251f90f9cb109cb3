package broadcast

import (
	"sync"

	"github.com/Nijal-AI/brest-mcp-server/internal/domain"
	"github.com/google/uuid"
)

// CloseReason tells a subscriber's transport why its stream ended.
type CloseReason string

const (
	ReasonUnsubscribed CloseReason = "unsubscribed"
	ReasonOverflow     CloseReason = "overflow"
	ReasonShutdown     CloseReason = "shutdown"
)

// Message is one pre-serialized change event ready to be written to a client.
type Message struct {
	Feed    domain.FeedType
	Version uint64
	Payload []byte
}

// Subscription is a subscriber's handle on the hub.
// Messages arrive in publish order per feed until Done is closed.
type Subscription struct {
	id    uuid.UUID
	queue chan Message
	done  chan struct{}

	mu      sync.Mutex
	reason  CloseReason
	cursors map[domain.FeedType]uint64
}

func newSubscription(queueSize int) *Subscription {
	return &Subscription{
		id:      uuid.New(),
		queue:   make(chan Message, queueSize),
		done:    make(chan struct{}),
		cursors: make(map[domain.FeedType]uint64),
	}
}

func (s *Subscription) ID() uuid.UUID { return s.id }

// Messages is never closed; select on Done as well.
func (s *Subscription) Messages() <-chan Message { return s.queue }

func (s *Subscription) Done() <-chan struct{} { return s.done }

// Reason is empty while the subscription is open.
func (s *Subscription) Reason() CloseReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Cursor returns the last version of feed enqueued to this subscriber.
func (s *Subscription) Cursor(feed domain.FeedType) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursors[feed]
}

// offer enqueues msg without blocking. It reports false when the queue is full.
// Versions not newer than the feed's cursor are dropped and reported as accepted.
func (s *Subscription) offer(msg Message) (enqueued, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.Version <= s.cursors[msg.Feed] {
		return false, true
	}

	select {
	case s.queue <- msg:
		s.cursors[msg.Feed] = msg.Version
		return true, true
	default:
		return false, false
	}
}

// close is called only by the hub actor.
func (s *Subscription) close(reason CloseReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reason != "" {
		return
	}
	s.reason = reason
	close(s.done)
}
