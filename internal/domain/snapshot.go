package domain

import (
	"sort"
	"time"
)

// Snapshot is an immutable, fully-decoded view of one feed at one version.
// The entity map is never mutated after construction.
type Snapshot struct {
	Feed          FeedType
	Version       uint64
	FetchedAt     time.Time
	FeedTimestamp time.Time

	entities map[string]Entity
}

// NewSnapshot takes ownership of entities; callers must not modify the map afterwards.
func NewSnapshot(feed FeedType, fetchedAt, feedTimestamp time.Time, entities map[string]Entity) *Snapshot {
	if entities == nil {
		entities = map[string]Entity{}
	}
	return &Snapshot{
		Feed:          feed,
		FetchedAt:     fetchedAt,
		FeedTimestamp: feedTimestamp,
		entities:      entities,
	}
}

// EmptySnapshot is the version-0 snapshot served before the first successful refresh.
func EmptySnapshot(feed FeedType) *Snapshot {
	return NewSnapshot(feed, time.Time{}, time.Time{}, nil)
}

// WithVersion returns a copy stamped with version v. The entity map is shared.
func (s *Snapshot) WithVersion(v uint64) *Snapshot {
	cp := *s
	cp.Version = v
	return &cp
}

func (s *Snapshot) Len() int { return len(s.entities) }

func (s *Snapshot) Get(key string) (Entity, bool) {
	e, ok := s.entities[key]
	return e, ok
}

// Keys returns entity keys in ascending order.
func (s *Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.entities))
	for k := range s.entities {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Entities returns entities ordered by key.
func (s *Snapshot) Entities() []Entity {
	out := make([]Entity, 0, len(s.entities))
	for _, k := range s.Keys() {
		out = append(out, s.entities[k])
	}
	return out
}

// Age is the time elapsed since the snapshot was fetched, or zero if it never was.
func (s *Snapshot) Age(now time.Time) time.Duration {
	if s.FetchedAt.IsZero() {
		return 0
	}
	return now.Sub(s.FetchedAt)
}

// EntitiesOf returns the snapshot's entities of type T ordered by key.
func EntitiesOf[T Entity](s *Snapshot) []T {
	out := make([]T, 0, len(s.entities))
	for _, e := range s.Entities() {
		if t, ok := e.(T); ok {
			out = append(out, t)
		}
	}
	return out
}
