// Package feedcache holds the latest committed snapshot of every feed.
package feedcache

import (
	"fmt"
	"sync/atomic"

	"github.com/Nijal-AI/brest-mcp-server/internal/domain"
)

// Cache maps each feed to an atomically swapped snapshot pointer.
// Readers never block and never observe a partially built snapshot.
type Cache struct {
	slots map[domain.FeedType]*atomic.Pointer[domain.Snapshot]
}

// New creates a cache with one empty version-0 slot per feed.
// The slot map is fixed at construction and only read afterwards.
func New(feeds ...domain.FeedType) *Cache {
	if len(feeds) == 0 {
		feeds = domain.AllFeeds
	}
	c := &Cache{slots: make(map[domain.FeedType]*atomic.Pointer[domain.Snapshot], len(feeds))}
	for _, f := range feeds {
		p := &atomic.Pointer[domain.Snapshot]{}
		p.Store(domain.EmptySnapshot(f))
		c.slots[f] = p
	}
	return c
}

// Get returns the last committed snapshot, or an empty version-0 snapshot.
func (c *Cache) Get(feed domain.FeedType) *domain.Snapshot {
	slot, ok := c.slots[feed]
	if !ok {
		return domain.EmptySnapshot(feed)
	}
	return slot.Load()
}

// Commit stores snap as the next version of feed and returns the stored snapshot.
// The version is assigned here as previous+1 whatever snap.Version holds.
func (c *Cache) Commit(feed domain.FeedType, snap *domain.Snapshot) *domain.Snapshot {
	slot, ok := c.slots[feed]
	if !ok {
		panic(fmt.Sprintf("feedcache: commit to unregistered feed %q", feed))
	}

	for {
		prev := slot.Load()
		next := snap.WithVersion(prev.Version + 1)
		next.Feed = feed
		if slot.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// Versions returns the current version of every feed.
func (c *Cache) Versions() map[domain.FeedType]uint64 {
	out := make(map[domain.FeedType]uint64, len(c.slots))
	for f, slot := range c.slots {
		out[f] = slot.Load().Version
	}
	return out
}
