package domain

import (
	"context"
	"time"
)

// FeedFetcher retrieves and decodes one feed. The returned snapshot is unversioned.
type FeedFetcher interface {
	Fetch(ctx context.Context, feed FeedType) (*Snapshot, error)
}

// SnapshotReader is the read side of the feed cache. Get never blocks.
type SnapshotReader interface {
	Get(feed FeedType) *Snapshot
}

// SnapshotStore is the cache as seen by its single writer.
type SnapshotStore interface {
	SnapshotReader
	Commit(feed FeedType, snap *Snapshot) *Snapshot
}

// ChangePublisher fans change events out to subscribers. Publish must not block on them.
type ChangePublisher interface {
	Publish(event ChangeEvent)
}

// FeedStatus is the refresh health of one feed.
type FeedStatus struct {
	Feed                FeedType
	Interval            time.Duration
	LastAttempt         time.Time
	LastSuccess         time.Time
	LastError           string
	ConsecutiveFailures int
	TotalFailures       int
	SkippedTicks        int
	EventsPublished     int
}

type StatusSource interface {
	Status(feed FeedType) (FeedStatus, bool)
}
