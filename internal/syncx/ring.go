package syncx

import "sync"

// Ring is a fixed-capacity circular buffer that overwrites its oldest entry
// when full. It is safe for concurrent use.
type Ring[T any] struct {
	mu       sync.RWMutex
	buffer   []T
	size     int
	writePos int
	full     bool
}

// NewRing creates a ring holding at most size entries. size < 1 is treated as 1.
func NewRing[T any](size int) *Ring[T] {
	if size < 1 {
		size = 1
	}
	return &Ring[T]{
		buffer: make([]T, size),
		size:   size,
	}
}

// Push appends v, evicting the oldest entry when the ring is full.
func (r *Ring[T]) Push(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer[r.writePos] = v
	r.writePos = (r.writePos + 1) % r.size
	if r.writePos == 0 {
		r.full = true
	}
}

// Len returns the number of stored entries.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.len()
}

func (r *Ring[T]) len() int {
	if r.full {
		return r.size
	}
	return r.writePos
}

// Latest returns up to n of the most recent entries, oldest first.
// n <= 0 returns everything stored.
func (r *Ring[T]) Latest(n int) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := r.len()
	if n <= 0 || n > count {
		n = count
	}
	out := make([]T, 0, n)
	start := (r.writePos - n + r.size) % r.size
	for i := 0; i < n; i++ {
		out = append(out, r.buffer[(start+i)%r.size])
	}
	return out
}

// Last returns the most recent entry.
func (r *Ring[T]) Last() (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var zero T
	if r.len() == 0 {
		return zero, false
	}
	return r.buffer[(r.writePos-1+r.size)%r.size], true
}

// Reset empties the ring.
func (r *Ring[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	for i := range r.buffer {
		r.buffer[i] = zero
	}
	r.writePos = 0
	r.full = false
}
