package domain

import "time"

// ChangeEvent describes how a committed snapshot differs from its predecessor.
// Id lists are sorted; the event never carries entity payloads.
type ChangeEvent struct {
	Feed      FeedType  `json:"feed"`
	Version   uint64    `json:"version"`
	FetchedAt time.Time `json:"fetched_at"`
	Added     []string  `json:"added"`
	Updated   []string  `json:"updated"`
	Removed   []string  `json:"removed"`
}

func (e ChangeEvent) Empty() bool {
	return len(e.Added) == 0 && len(e.Updated) == 0 && len(e.Removed) == 0
}
