package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownFeed = errors.New("unknown feed")
	ErrTransient   = errors.New("transient fetch failure")
	ErrMalformed   = errors.New("malformed feed payload")
)

type FetchErrorKind int

const (
	// Transient covers network errors, timeouts and non-2xx responses.
	Transient FetchErrorKind = iota
	// Malformed covers payloads that fail to decode.
	Malformed
)

func (k FetchErrorKind) String() string {
	if k == Malformed {
		return "malformed"
	}
	return "transient"
}

// FetchError is returned by a FeedFetcher. errors.Is matches ErrTransient or ErrMalformed by kind.
type FetchError struct {
	Kind FetchErrorKind
	Feed FeedType
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.Feed, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrTransient:
		return e.Kind == Transient
	case ErrMalformed:
		return e.Kind == Malformed
	}
	return false
}
