package detect

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emmett/voxwake/internal/audio"
)

const (
	frameSize = 1280
	// trigger marks a frame the fake scorer treats as the wake word.
	trigger int16 = 12345
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSource serves frames pushed on a channel. Once the channel is closed it
// returns readErr, or blocks until ctx is done when readErr is nil.
type fakeSource struct {
	frames  chan audio.Frame
	openErr error
	readErr error
	closes  atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{frames: make(chan audio.Frame, 256)}
}

func (s *fakeSource) Open(context.Context) error { return s.openErr }

func (s *fakeSource) ReadFrame(ctx context.Context) (audio.Frame, error) {
	select {
	case f, ok := <-s.frames:
		if ok {
			return f, nil
		}
		if s.readErr != nil {
			return audio.Frame{}, s.readErr
		}
		<-ctx.Done()
		return audio.Frame{}, ctx.Err()
	case <-ctx.Done():
		return audio.Frame{}, ctx.Err()
	}
}

func (s *fakeSource) Close() error {
	s.closes.Add(1)
	return nil
}

func (s *fakeSource) push(frames ...[]int16) {
	for _, f := range frames {
		s.frames <- audio.Frame{Samples: f, Timestamp: time.Now()}
	}
}

// fakeScorer scores 0.9 on frames starting with trigger, 0 otherwise.
type fakeScorer struct {
	resets   atomic.Int32
	predicts atomic.Int32
	err      error
}

func (s *fakeScorer) Predict(samples []int16) (map[string]float64, error) {
	s.predicts.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	if len(samples) > 0 && samples[0] == trigger {
		return map[string]float64{"hey_jarvis": 0.9, "alexa": 0.1}, nil
	}
	return map[string]float64{"hey_jarvis": 0.01, "alexa": 0.0}, nil
}

func (s *fakeScorer) Reset() { s.resets.Add(1) }

type fakeTranscriber struct {
	mu      sync.Mutex
	text    string
	err     error
	block   chan struct{}
	samples [][]int16
}

func (t *fakeTranscriber) Transcribe(_ context.Context, pcm []int16) (string, error) {
	if t.block != nil {
		<-t.block
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples = append(t.samples, pcm)
	if t.err != nil {
		return "", t.err
	}
	return t.text, nil
}

func (t *fakeTranscriber) calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.samples)
}

// constant frame: value 3 is about -80 dB, 3277 about -20 dB.
func constFrame(v int16) []int16 {
	f := make([]int16, frameSize)
	for i := range f {
		f[i] = v
	}
	return f
}

func silentFrame() []int16 { return constFrame(3) }

func voicedFrame(i int) []int16 { return constFrame(int16(3000 + i)) }

func triggerFrame() []int16 {
	f := constFrame(3277)
	f[0] = trigger
	return f
}

var errBoom = errors.New("boom")
