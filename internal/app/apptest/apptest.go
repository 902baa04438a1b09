// Package apptest builds an app.Service over fake audio for tests of the
// control surfaces.
package apptest

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/emmett/voxwake/internal/app"
	"github.com/emmett/voxwake/internal/audio"
	"github.com/emmett/voxwake/internal/detect"
)

const (
	FrameSize = 1280
	// Trigger as the first sample marks a frame the fake scorer accepts.
	Trigger int16 = 12345
)

// Source serves frames pushed with Push and blocks when none are queued.
type Source struct {
	frames chan audio.Frame
}

func NewSource() *Source {
	return &Source{frames: make(chan audio.Frame, 256)}
}

func (s *Source) Open(context.Context) error { return nil }

func (s *Source) ReadFrame(ctx context.Context) (audio.Frame, error) {
	select {
	case f := <-s.frames:
		return f, nil
	case <-ctx.Done():
		return audio.Frame{}, ctx.Err()
	}
}

func (s *Source) Close() error { return nil }

// Push queues frames
func (s *Source) Push(frames ...[]int16) {
	for _, f := range frames {
		s.frames <- audio.Frame{Samples: f, Timestamp: time.Now()}
	}
}

// Utterance queues a wake word, some speech and enough silence to close it.
func (s *Source) Utterance() {
	s.Push(TriggerFrame(), VoicedFrame(), VoicedFrame(), SilentFrame(), SilentFrame(), SilentFrame())
}

// Scorer scores 0.9 on trigger frames
type Scorer struct{}

func (Scorer) Predict(samples []int16) (map[string]float64, error) {
	if len(samples) > 0 && samples[0] == Trigger {
		return map[string]float64{"hey_jarvis": 0.9}, nil
	}
	return map[string]float64{"hey_jarvis": 0}, nil
}

func (Scorer) Reset() {}

// Transcriber returns Text, or Err when set
type Transcriber struct {
	Text string
	Err  error
}

func (t Transcriber) Transcribe(_ context.Context, pcm []int16) (string, error) {
	if t.Err != nil {
		return "", t.Err
	}
	return t.Text, nil
}

func constFrame(v int16) []int16 {
	f := make([]int16, FrameSize)
	for i := range f {
		f[i] = v
	}
	return f
}

func SilentFrame() []int16 { return constFrame(3) }

func VoicedFrame() []int16 { return constFrame(3000) }

func TriggerFrame() []int16 {
	f := constFrame(3277)
	f[0] = Trigger
	return f
}

// Fixture is a running service over a fake source
type Fixture struct {
	Service *app.Service
	Source  *Source
	Runner  *detect.Runner
}

// New starts a service dispatching events until the test ends. Three silent
// frames close an utterance.
func New(tb testing.TB, tr Transcriber, opts ...app.ServiceOption) *Fixture {
	tb.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	src := NewSource()

	cfg := detect.DefaultConfig()
	cfg.SilenceDuration = 3 * cfg.FrameDuration()
	engine, err := detect.New(cfg, func() audio.FrameSource { return src }, Scorer{}, tr, detect.WithLogger(log))
	if err != nil {
		tb.Fatalf("detect.New: %v", err)
	}
	runner := detect.NewRunner(engine, detect.WithRunnerLogger(log), detect.WithStopTimeout(2*time.Second))
	svc := app.NewService(runner, append([]app.ServiceOption{app.WithServiceLogger(log)}, opts...)...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Run(ctx)
	}()
	tb.Cleanup(func() {
		_ = svc.StopListening()
		cancel()
		<-done
	})
	return &Fixture{Service: svc, Source: src, Runner: runner}
}

// WaitFor reads events from ch until one of type t arrives.
func WaitFor(tb testing.TB, ch <-chan detect.Event, t detect.EventType) detect.Event {
	tb.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				tb.Fatalf("event channel closed waiting for %s", t)
			}
			if ev.Type == t {
				return ev
			}
		case <-timeout:
			tb.Fatalf("timed out waiting for %s", t)
		}
	}
}
