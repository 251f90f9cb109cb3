package refresh

import "github.com/Nijal-AI/brest-mcp-server/internal/domain"

// Diff compares two snapshots of one feed by entity key.
// The returned event carries sorted id lists and no version; the caller stamps it after commit.
func Diff(prev, next *domain.Snapshot) domain.ChangeEvent {
	ev := domain.ChangeEvent{
		Feed:    next.Feed,
		Added:   []string{},
		Updated: []string{},
		Removed: []string{},
	}

	for _, key := range next.Keys() {
		cur, _ := next.Get(key)
		old, existed := prev.Get(key)
		switch {
		case !existed:
			ev.Added = append(ev.Added, key)
		case !old.Equal(cur):
			ev.Updated = append(ev.Updated, key)
		}
	}

	for _, key := range prev.Keys() {
		if _, still := next.Get(key); !still {
			ev.Removed = append(ev.Removed, key)
		}
	}

	return ev
}
