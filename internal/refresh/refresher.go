// Package refresh keeps the feed cache current by polling each upstream feed on its own timer.
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Nijal-AI/brest-mcp-server/internal/adapter/metrics"
	"github.com/Nijal-AI/brest-mcp-server/internal/domain"
	"github.com/Nijal-AI/brest-mcp-server/internal/platform/logging"
	"github.com/jonboulle/clockwork"
)

// ErrInFlight is returned by Tick when the feed's previous cycle has not finished.
var ErrInFlight = errors.New("refresh already in flight")

// staleAfter is how many intervals a feed may go without a successful refresh
// before it is reported stale.
const staleAfter = 3

// Refresher is the only writer of the feed cache. Each feed runs on an independent
// ticker; a tick that fires while that feed's previous cycle is running is skipped.
type Refresher struct {
	fetcher   domain.FeedFetcher
	store     domain.SnapshotStore
	publisher domain.ChangePublisher
	clock     clockwork.Clock
	metrics   *metrics.FeedMetrics

	feeds   map[domain.FeedType]*feedState
	wg      sync.WaitGroup
	running atomic.Bool
}

type feedState struct {
	interval time.Duration
	inFlight atomic.Bool

	mu     sync.Mutex
	status domain.FeedStatus
}

// New creates a refresher for the feeds in intervals. m may be nil.
func New(
	fetcher domain.FeedFetcher,
	store domain.SnapshotStore,
	publisher domain.ChangePublisher,
	clock clockwork.Clock,
	intervals map[domain.FeedType]time.Duration,
	m *metrics.FeedMetrics,
) *Refresher {
	feeds := make(map[domain.FeedType]*feedState, len(intervals))
	for feed, interval := range intervals {
		feeds[feed] = &feedState{
			interval: interval,
			status:   domain.FeedStatus{Feed: feed, Interval: interval},
		}
	}

	return &Refresher{
		fetcher:   fetcher,
		store:     store,
		publisher: publisher,
		clock:     clock,
		metrics:   m,
		feeds:     feeds,
	}
}

// Run refreshes every feed once immediately and then on its interval.
// It blocks until ctx is cancelled and all in-flight cycles have returned.
func (r *Refresher) Run(ctx context.Context) {
	r.running.Store(true)
	defer r.running.Store(false)

	var loops sync.WaitGroup
	for feed, st := range r.feeds {
		loops.Add(1)
		go func() {
			defer loops.Done()
			r.loop(ctx, feed, st)
		}()
	}

	loops.Wait()
	r.wg.Wait()
}

func (r *Refresher) loop(ctx context.Context, feed domain.FeedType, st *feedState) {
	slog.InfoContext(ctx, "Refresher started", "feed", feed, "interval", st.interval)

	r.trigger(ctx, feed, st)

	ticker := r.clock.NewTicker(st.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Refresher stopped", "feed", feed)
			return
		case <-ticker.Chan():
			r.trigger(ctx, feed, st)
		}
	}
}

// trigger starts a cycle in the background unless one is already running for feed.
func (r *Refresher) trigger(ctx context.Context, feed domain.FeedType, st *feedState) {
	if !st.inFlight.CompareAndSwap(false, true) {
		r.skipped(ctx, feed, st)
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer st.inFlight.Store(false)
		_ = r.cycle(ctx, feed, st)
	}()
}

// Tick runs one refresh cycle for feed synchronously and returns its fetch error.
func (r *Refresher) Tick(ctx context.Context, feed domain.FeedType) error {
	st, ok := r.feeds[feed]
	if !ok {
		return domain.ErrUnknownFeed
	}
	if !st.inFlight.CompareAndSwap(false, true) {
		r.skipped(ctx, feed, st)
		return ErrInFlight
	}
	defer st.inFlight.Store(false)

	return r.cycle(ctx, feed, st)
}

func (r *Refresher) skipped(ctx context.Context, feed domain.FeedType, st *feedState) {
	st.mu.Lock()
	st.status.SkippedTicks++
	st.mu.Unlock()

	if r.metrics != nil {
		r.metrics.SkippedTicks.WithLabelValues(string(feed)).Inc()
	}
	slog.WarnContext(ctx, "Refresh tick skipped, previous cycle still running", "feed", feed)
}

func (r *Refresher) cycle(ctx context.Context, feed domain.FeedType, st *feedState) error {
	ctx = logging.WithTraceID(ctx, logging.NewTraceID())

	start := r.clock.Now()
	st.mu.Lock()
	st.status.LastAttempt = start
	st.mu.Unlock()

	next, err := r.fetcher.Fetch(ctx, feed)
	elapsed := r.clock.Since(start)
	if err != nil {
		r.fail(ctx, feed, st, err, elapsed)
		return err
	}
	r.observeFetch(feed, "success", elapsed)

	// Single writer per feed: nothing commits between this read and the commit below.
	prev := r.store.Get(feed)
	ev := Diff(prev, next)

	committed := r.store.Commit(feed, next)
	ev.Feed = feed
	ev.Version = committed.Version
	ev.FetchedAt = committed.FetchedAt

	publish := !ev.Empty()

	st.mu.Lock()
	st.status.LastSuccess = r.clock.Now()
	st.status.LastError = ""
	st.status.ConsecutiveFailures = 0
	if publish {
		st.status.EventsPublished++
	}
	st.mu.Unlock()

	if r.metrics != nil {
		r.metrics.ConsecutiveFailures.WithLabelValues(string(feed)).Set(0)
		r.metrics.SnapshotVersion.WithLabelValues(string(feed)).Set(float64(committed.Version))
		r.metrics.Entities.WithLabelValues(string(feed)).Set(float64(committed.Len()))
	}

	if !publish {
		slog.DebugContext(ctx, "Feed refreshed, no changes", "feed", feed, "version", committed.Version, "entities", committed.Len())
		return nil
	}

	r.publisher.Publish(ev)
	if r.metrics != nil {
		r.metrics.ChangeEvents.WithLabelValues(string(feed)).Inc()
	}
	slog.InfoContext(ctx, "Feed refreshed",
		"feed", feed,
		"version", committed.Version,
		"entities", committed.Len(),
		"added", len(ev.Added),
		"updated", len(ev.Updated),
		"removed", len(ev.Removed),
		"duration_ms", elapsed.Milliseconds(),
	)
	return nil
}

func (r *Refresher) fail(ctx context.Context, feed domain.FeedType, st *feedState, err error, elapsed time.Duration) {
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		slog.DebugContext(ctx, "Refresh aborted by shutdown", "feed", feed)
		return
	}

	kind := domain.Transient
	var fetchErr *domain.FetchError
	if errors.As(err, &fetchErr) {
		kind = fetchErr.Kind
	}

	st.mu.Lock()
	st.status.LastError = err.Error()
	st.status.ConsecutiveFailures++
	st.status.TotalFailures++
	consecutive := st.status.ConsecutiveFailures
	st.mu.Unlock()

	r.observeFetch(feed, "error", elapsed)
	if r.metrics != nil {
		r.metrics.FetchErrors.WithLabelValues(string(feed), kind.String()).Inc()
		r.metrics.ConsecutiveFailures.WithLabelValues(string(feed)).Set(float64(consecutive))
	}

	attrs := []any{"feed", feed, "error", err, "consecutive_failures", consecutive}
	if kind == domain.Malformed {
		slog.ErrorContext(ctx, "Feed payload malformed, keeping previous snapshot", attrs...)
		return
	}
	slog.WarnContext(ctx, "Feed fetch failed, keeping previous snapshot", attrs...)
}

func (r *Refresher) observeFetch(feed domain.FeedType, result string, elapsed time.Duration) {
	if r.metrics != nil {
		r.metrics.FetchDuration.WithLabelValues(string(feed), result).Observe(elapsed.Seconds())
	}
}

// Status returns the refresh health of feed.
func (r *Refresher) Status(feed domain.FeedType) (domain.FeedStatus, bool) {
	st, ok := r.feeds[feed]
	if !ok {
		return domain.FeedStatus{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.status, true
}

// Running reports whether Run is active. Reads are served from whatever the
// cache holds, so this rather than feed freshness gates startup and readiness.
func (r *Refresher) Running() bool {
	return r.running.Load()
}

// Stale reports whether feed has gone staleAfter intervals without a successful
// refresh, counting from its first attempt when it never succeeded.
func (r *Refresher) Stale(feed domain.FeedType) bool {
	st, ok := r.feeds[feed]
	if !ok {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	since := st.status.LastSuccess
	if since.IsZero() {
		since = st.status.LastAttempt
	}
	if since.IsZero() {
		return false
	}
	return r.clock.Since(since) > staleAfter*st.interval
}

// StaleFeeds lists the stale feeds in domain.AllFeeds order.
func (r *Refresher) StaleFeeds() []domain.FeedType {
	var stale []domain.FeedType
	for _, feed := range domain.AllFeeds {
		if r.Stale(feed) {
			stale = append(stale, feed)
		}
	}
	return stale
}
