// Package broadcast fans feed change events out to streaming subscribers.
//
// A single actor goroutine owns the subscriber set. Every subscriber has a bounded
// queue; a subscriber whose queue is full when an event arrives is disconnected
// instead of slowing down the publisher or the other subscribers.
package broadcast
