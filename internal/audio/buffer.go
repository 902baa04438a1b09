package audio

import "sync"

// UtteranceBuffer accumulates the frames of one utterance in arrival order.
// It is safe for concurrent use.
type UtteranceBuffer struct {
	mu     sync.RWMutex
	frames [][]int16
	total  int
}

// NewUtteranceBuffer creates an empty buffer
func NewUtteranceBuffer() *UtteranceBuffer {
	return &UtteranceBuffer{}
}

// Start discards any previous content and makes samples the first frame.
func (b *UtteranceBuffer) Start(samples []int16) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.frames = [][]int16{samples}
	b.total = len(samples)
}

// Append adds a frame to the end of the buffer
func (b *UtteranceBuffer) Append(samples []int16) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.frames = append(b.frames, samples)
	b.total += len(samples)
}

// Samples returns all frames concatenated into one new slice.
func (b *UtteranceBuffer) Samples() []int16 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]int16, 0, b.total)
	for _, f := range b.frames {
		out = append(out, f...)
	}
	return out
}

// Frames returns the number of buffered frames
func (b *UtteranceBuffer) Frames() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.frames)
}

// Len returns the number of buffered samples
func (b *UtteranceBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.total
}

// Reset returns the buffer to its zero-length state
func (b *UtteranceBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.frames = nil
	b.total = 0
}
