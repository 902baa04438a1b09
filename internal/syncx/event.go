// Package syncx provides synchronization primitives used between the frame pump
// and the goroutines that consume its notifications.
package syncx

import "sync"

// Event is a manually reset boolean condition. Set wakes every current and future
// waiter until Clear is called. Setting an already set Event is a no-op, so a
// controller can force-set it to release waiters during shutdown.
type Event struct {
	mu  sync.Mutex
	set bool
	ch  chan struct{}
}

// NewEvent returns a cleared Event.
func NewEvent() *Event {
	return &Event{ch: make(chan struct{})}
}

// Set marks the event and releases all waiters.
func (e *Event) Set() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.set {
		e.set = true
		close(e.ch)
	}
}

// Clear resets the event so later waiters block again.
func (e *Event) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.set {
		e.set = false
		e.ch = make(chan struct{})
	}
}

// IsSet reports whether the event is currently set.
func (e *Event) IsSet() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.set
}

// Done returns a channel closed once the event is set. The channel belongs to the
// current generation; after Clear a new call returns a fresh channel.
func (e *Event) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ch
}
