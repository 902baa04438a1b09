package detect

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emmett/voxwake/internal/syncx"
)

// EventType names a notification emitted by a Runner.
type EventType string

const (
	EventKeywordDetected     EventType = "keyword_detected"
	EventTranscriptionReady  EventType = "transcription_ready"
	EventTranscriptionFailed EventType = "transcription_failed"
	EventSilenceDetected     EventType = "silence_detected"
	EventState               EventType = "state"
	EventError               EventType = "error"
)

// Listening states carried by EventState.
const (
	StateActive   = "active"
	StateInactive = "inactive"
)

// Event is one asynchronous notification from the detector.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Text      string    `json:"text,omitempty"`
	State     string    `json:"state,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// Audio is the utterance behind a transcription event.
	Audio      []int16 `json:"-"`
	SampleRate int     `json:"-"`
}

// DefaultStopTimeout bounds how long Stop waits for the loop to exit.
const DefaultStopTimeout = 5 * time.Second

// ErrStopTimeout is returned by Runner.Stop when the loop did not exit in time.
var ErrStopTimeout = errors.New("detector loop did not stop in time")

// ErrLoopBusy is returned by Runner.Start while the loop of a timed-out Stop
// is still running.
var ErrLoopBusy = errors.New("previous detector loop still running")

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithStopTimeout overrides DefaultStopTimeout.
func WithStopTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.stopTimeout = d }
}

// WithEventBuffer sets the capacity of the events channel.
func WithEventBuffer(n int) RunnerOption {
	return func(r *Runner) { r.events = make(chan Event, n) }
}

// WithRunnerLogger sets the runner logger.
func WithRunnerLogger(log *slog.Logger) RunnerOption {
	return func(r *Runner) { r.log = log }
}

// Runner drives an Engine and turns its two events into Event values on a
// channel. One cycle emits, in order: keyword_detected, state(active),
// transcription_ready or transcription_failed, silence_detected,
// state(inactive).
type Runner struct {
	engine      *Engine
	events      chan Event
	stopTimeout time.Duration
	log         *slog.Logger

	// lifecycle serializes Start and Stop
	lifecycle sync.Mutex

	mu     sync.Mutex
	stopCh chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
	// stale is the done channel of a loop that outlived Stop
	stale chan struct{}
}

// NewRunner creates a runner for engine
func NewRunner(engine *Engine, opts ...RunnerOption) *Runner {
	r := &Runner{
		engine:      engine,
		events:      make(chan Event, 64),
		stopTimeout: DefaultStopTimeout,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	return r
}

// Events returns the notification channel. It stays open across restarts.
func (r *Runner) Events() <-chan Event {
	return r.events
}

// Engine returns the driven engine.
func (r *Runner) Engine() *Engine {
	return r.engine
}

// Running reports whether the loop is active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// Start starts the engine and the notification loop. It is a no-op while the
// loop runs. A loop that ended on an engine error is cleaned up first.
func (r *Runner) Start(ctx context.Context) error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.mu.Lock()
	prev, stale := r.done, r.stale
	r.mu.Unlock()
	if prev != nil {
		select {
		case <-prev:
		default:
			return nil
		}
	}
	if stale != nil {
		if err := r.awaitStale(ctx, stale); err != nil {
			return err
		}
	}

	// release the device of a run that ended on its own
	r.engine.Stop()
	if err := r.engine.Start(ctx); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stopCh := make(chan struct{})
	done := make(chan struct{})

	r.mu.Lock()
	r.stopCh = stopCh
	r.cancel = cancel
	r.done = done
	r.mu.Unlock()

	go r.loop(loopCtx, stopCh, done, r.engine.Done())
	return nil
}

func (r *Runner) loop(ctx context.Context, stopCh <-chan struct{}, done chan struct{}, engineDone <-chan struct{}) {
	defer close(done)

	keyword := r.engine.KeywordDetected()
	silence := r.engine.SilenceDetected()

	for !stopped(stopCh) {
		if !r.wait(keyword, stopCh, engineDone) {
			return
		}
		r.emit(stopCh, Event{Type: EventKeywordDetected})
		r.emit(stopCh, Event{Type: EventState, State: StateActive})

		if !r.wait(silence, stopCh, engineDone) {
			return
		}

		pcm := r.engine.AudioData()
		text, err := r.engine.Transcribe(ctx, pcm)
		// the engine may belong to a newer run by now
		if stopped(stopCh) {
			return
		}
		if err != nil {
			r.log.Warn("transcription failed", "error", err, "samples", len(pcm))
			r.emit(stopCh, Event{Type: EventTranscriptionFailed, Error: err.Error(), Audio: pcm, SampleRate: r.engine.Config().SampleRate})
		} else {
			r.emit(stopCh, Event{Type: EventTranscriptionReady, Text: text, Audio: pcm, SampleRate: r.engine.Config().SampleRate})
		}
		r.engine.ResetAudioData()

		r.emit(stopCh, Event{Type: EventSilenceDetected})
		r.emit(stopCh, Event{Type: EventState, State: StateInactive})

		// keyword first: the pump only scores again once silence is cleared
		keyword.Clear()
		silence.Clear()
	}
}

// wait blocks on ev and reports whether the loop should go on.
func (r *Runner) wait(ev *syncx.Event, stopCh <-chan struct{}, engineDone <-chan struct{}) bool {
	select {
	case <-ev.Done():
	case <-engineDone:
	case <-stopCh:
		return false
	}
	if stopped(stopCh) {
		return false
	}
	if err := r.engine.Err(); err != nil {
		r.emit(stopCh, Event{Type: EventError, Error: err.Error()})
		return false
	}
	return r.engine.Running()
}

func (r *Runner) emit(stopCh <-chan struct{}, ev Event) {
	if stopped(stopCh) {
		return
	}
	ev.ID = uuid.NewString()
	ev.Timestamp = time.Now()
	select {
	case r.events <- ev:
	case <-stopCh:
	}
}

// Stop marks the runner as stopping, wakes the loop, waits for it to exit and
// then stops the engine. A loop that outlives the stop timeout is logged and
// reported as ErrStopTimeout; the engine is stopped regardless.
func (r *Runner) Stop() error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.mu.Lock()
	stopCh, cancel, done := r.stopCh, r.cancel, r.done
	r.stopCh, r.cancel, r.done = nil, nil, nil
	r.mu.Unlock()

	if done == nil {
		return nil
	}

	close(stopCh)
	r.engine.RequestStop()
	r.engine.KeywordDetected().Set()
	r.engine.SilenceDetected().Set()
	cancel()

	var err error
	select {
	case <-done:
	case <-time.After(r.stopTimeout):
		r.log.Warn("detector loop did not stop in time, audio device may remain open", "timeout", r.stopTimeout)
		err = ErrStopTimeout
		r.mu.Lock()
		r.stale = done
		r.mu.Unlock()
	}
	r.engine.Stop()
	return err
}

// awaitStale gives a loop left behind by a timed-out Stop up to the stop
// timeout to exit.
func (r *Runner) awaitStale(ctx context.Context, stale <-chan struct{}) error {
	select {
	case <-stale:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(r.stopTimeout):
		return ErrLoopBusy
	}
	r.mu.Lock()
	r.stale = nil
	r.mu.Unlock()
	return nil
}

func stopped(stopCh <-chan struct{}) bool {
	select {
	case <-stopCh:
		return true
	default:
		return false
	}
}
