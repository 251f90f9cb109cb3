// Package domain defines the core transit types and the contracts between components.
//
// Concept-oriented files (feed.go, entity.go, snapshot.go, event.go, ...) hold shared
// value types and the interfaces consumers depend on. No I/O lives here.
package domain
