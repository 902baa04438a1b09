// Package detect implements the wake-word → silence → transcription pump.
//
// An Engine reads fixed-size frames from an audio source on its own goroutine.
// While Idle it scores every frame for the wake word; once a model scores above
// the threshold it switches to Capturing, buffering every frame until a run of
// silent frames long enough to close the utterance. The two transitions are
// published through manually reset events that a consumer waits on.
package detect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emmett/voxwake/internal/apperr"
	"github.com/emmett/voxwake/internal/audio"
	"github.com/emmett/voxwake/internal/observe"
	"github.com/emmett/voxwake/internal/syncx"
	"github.com/emmett/voxwake/internal/wakeword"
)

// State is the detector state.
type State int32

const (
	// Idle waits for the wake word.
	Idle State = iota
	// Capturing buffers an utterance until trailing silence.
	Capturing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	default:
		return "unknown"
	}
}

// Config holds the detection parameters
type Config struct {
	SampleRate int
	FrameSize  int

	// Threshold is the wake-word score a model must exceed to activate.
	Threshold float64

	// SilenceThreshold is the loudness in dB below which a frame is silent.
	SilenceThreshold float64

	// SilenceDuration is the trailing silence that closes an utterance.
	SilenceDuration time.Duration
}

// DefaultConfig returns the default detection parameters
func DefaultConfig() Config {
	return Config{
		SampleRate:       16000,
		FrameSize:        1280,
		Threshold:        wakeword.DefaultThreshold,
		SilenceThreshold: -50,
		SilenceDuration:  1200 * time.Millisecond,
	}
}

// FrameDuration returns the duration of one frame
func (c Config) FrameDuration() time.Duration {
	return audio.FrameDuration(c.FrameSize, c.SampleRate)
}

// Validate checks the configuration
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return apperr.Newf(apperr.InvalidArgument, "sample rate must be positive, got %d", c.SampleRate)
	case c.FrameSize <= 0:
		return apperr.Newf(apperr.InvalidArgument, "frame size must be positive, got %d", c.FrameSize)
	case c.Threshold < 0 || c.Threshold >= 1:
		return apperr.Newf(apperr.InvalidArgument, "wake-word threshold must be in [0, 1), got %v", c.Threshold)
	case c.SilenceDuration <= 0:
		return apperr.Newf(apperr.InvalidArgument, "silence duration must be positive, got %v", c.SilenceDuration)
	}
	return nil
}

// SourceFactory returns a fresh, unopened frame source for one run.
type SourceFactory func() audio.FrameSource

// Transcriber turns utterance samples into text.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []int16) (string, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine is the frame pump and state machine.
type Engine struct {
	config        Config
	frameDuration time.Duration
	newSource     SourceFactory
	scorer        wakeword.Scorer
	gate          *audio.Gate
	buffer        *audio.UtteranceBuffer
	transcriber   Transcriber
	log           *slog.Logger
	metrics       *observe.Metrics

	keyword *syncx.Event
	silence *syncx.Event

	state       atomic.Int32
	running     atomic.Bool
	activations atomic.Uint64
	utterances  atomic.Uint64

	mu          sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
	closeDevice func()
	err         error
}

// New creates an engine. The source factory is called on every Start so a
// stopped engine can be started again with a fresh device handle.
func New(config Config, newSource SourceFactory, scorer wakeword.Scorer, transcriber Transcriber, opts ...Option) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if newSource == nil || scorer == nil {
		return nil, apperr.New(apperr.InvalidArgument, "source factory and scorer are required")
	}
	e := &Engine{
		config:        config,
		frameDuration: config.FrameDuration(),
		newSource:     newSource,
		scorer:        scorer,
		gate:          audio.NewGate(audio.GateConfig{SilenceThreshold: config.SilenceThreshold}),
		buffer:        audio.NewUtteranceBuffer(),
		transcriber:   transcriber,
		log:           slog.Default(),
		keyword:       syncx.NewEvent(),
		silence:       syncx.NewEvent(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	return e, nil
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.config
}

// Start opens the audio device, resets per-run state and starts the pump.
// Calling Start on a running engine is a no-op, as is calling it after the pump
// stopped on an error but before Stop. A device that cannot be opened is
// returned as an apperr.DeviceOpen error.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.done != nil {
		return nil
	}

	source := e.newSource()
	if err := source.Open(ctx); err != nil {
		e.metrics.RecordError(ctx, "device_open")
		return apperr.Wrap(err, apperr.DeviceOpen, "open audio device")
	}

	e.gate.Reset()
	e.scorer.Reset()
	e.buffer.Reset()
	e.keyword.Clear()
	e.silence.Clear()
	e.state.Store(int32(Idle))
	e.err = nil

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	var once sync.Once
	closeDevice := func() {
		once.Do(func() {
			if err := source.Close(); err != nil {
				e.log.Warn("closing audio device failed", "error", err)
			}
			if d, ok := source.(droppedCounter); ok && d.Dropped() > 0 {
				e.metrics.RecordDropped(context.Background(), d.Dropped())
				e.log.Warn("audio frames dropped during run", "dropped", d.Dropped())
			}
		})
	}

	e.cancel = cancel
	e.done = done
	e.closeDevice = closeDevice
	e.running.Store(true)
	e.metrics.SetListening(ctx, true)

	go e.run(runCtx, source, done, closeDevice)

	e.log.Info("detector started",
		"frame_size", e.config.FrameSize,
		"sample_rate", e.config.SampleRate,
		"silence_duration", e.config.SilenceDuration)
	return nil
}

// droppedCounter is implemented by sources that discard audio when the pump
// falls behind, such as audio.MalgoSource.
type droppedCounter interface {
	Dropped() int64
}

func (e *Engine) run(ctx context.Context, source audio.FrameSource, done chan struct{}, closeDevice func()) {
	defer close(done)
	defer closeDevice()

	for e.running.Load() {
		frame, err := source.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil || !e.running.Load() {
				return
			}
			e.fail(ctx, apperr.Wrap(err, apperr.FrameRead, "read audio frame"))
			return
		}
		if err := e.step(ctx, frame.Samples); err != nil {
			e.fail(ctx, err)
			return
		}
	}
}

// step advances the state machine by one frame.
func (e *Engine) step(ctx context.Context, samples []int16) error {
	// the consumer has not handled the previous utterance yet
	if e.silence.IsSet() {
		return nil
	}

	state := e.State()
	e.metrics.RecordFrame(ctx, state.String())

	switch state {
	case Idle:
		scores, err := e.scorer.Predict(samples)
		if err != nil {
			return apperr.Wrap(err, apperr.Scoring, "score frame")
		}
		model, score := wakeword.Best(scores)
		if score <= e.config.Threshold {
			return nil
		}
		e.buffer.Start(samples)
		e.scorer.Reset()
		e.gate.Reset()
		e.state.Store(int32(Capturing))
		e.activations.Add(1)
		e.metrics.RecordActivation(ctx, model)
		e.log.Info("wake word detected", "model", model, "score", score)
		e.keyword.Set()

	case Capturing:
		e.buffer.Append(samples)
		e.gate.Observe(samples)
		if time.Duration(e.gate.SilentFrames())*e.frameDuration < e.config.SilenceDuration {
			return nil
		}
		frames := e.buffer.Frames()
		level, threshold := e.gate.Level(), e.gate.Threshold()
		e.gate.Reset()
		e.scorer.Reset()
		e.state.Store(int32(Idle))
		e.utterances.Add(1)
		e.metrics.RecordUtterance(ctx, time.Duration(frames)*e.frameDuration)
		e.log.Info("silence detected", "frames", frames, "level_db", level, "threshold_db", threshold)
		e.silence.Set()
	}
	return nil
}

func (e *Engine) fail(ctx context.Context, err error) {
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()

	e.running.Store(false)
	e.metrics.RecordError(ctx, apperr.CodeOf(err).String())
	e.log.Error("detector loop stopped", "error", err)
	e.keyword.Set()
	e.silence.Set()
}

// RequestStop clears the running flag. The pump exits after its current frame.
func (e *Engine) RequestStop() {
	e.running.Store(false)
}

// Stop ends the pump, wakes every waiter and closes the audio device. It
// returns once the pump goroutine has exited. Stop on an engine that was never
// started is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	done, cancel, closeDevice := e.done, e.cancel, e.closeDevice
	e.done, e.cancel, e.closeDevice = nil, nil, nil
	e.mu.Unlock()

	if done == nil {
		return
	}

	e.running.Store(false)
	cancel()
	e.keyword.Set()
	e.silence.Set()
	<-done
	closeDevice()
	e.metrics.SetListening(context.Background(), false)
	e.log.Info("detector stopped")
}

// Running reports whether the pump is running.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Done returns a channel closed when the current run's pump exits. It is
// already closed when the engine is not started.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return e.done
}

// Err returns the error that stopped the pump, if any.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// State returns the current detector state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// KeywordDetected is set when the wake word activates capturing.
func (e *Engine) KeywordDetected() *syncx.Event {
	return e.keyword
}

// SilenceDetected is set when trailing silence closes the utterance.
func (e *Engine) SilenceDetected() *syncx.Event {
	return e.silence
}

// AudioData returns the buffered utterance as one contiguous slice.
func (e *Engine) AudioData() []int16 {
	return e.buffer.Samples()
}

// ResetAudioData discards the buffered utterance.
func (e *Engine) ResetAudioData() {
	e.buffer.Reset()
}

// Transcribe converts samples to text with the configured transcriber.
func (e *Engine) Transcribe(ctx context.Context, pcm []int16) (string, error) {
	if e.transcriber == nil {
		return "", apperr.New(apperr.Unavailable, "no transcriber configured")
	}
	return e.transcriber.Transcribe(ctx, pcm)
}

// Stats is a snapshot of engine counters.
type Stats struct {
	Running     bool
	State       State
	Activations uint64
	Utterances  uint64
	Err         error
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Running:     e.Running(),
		State:       e.State(),
		Activations: e.activations.Load(),
		Utterances:  e.utterances.Load(),
		Err:         e.Err(),
	}
}

// String implements fmt.Stringer for logging.
func (s Stats) String() string {
	return fmt.Sprintf("running=%t state=%s activations=%d utterances=%d", s.Running, s.State, s.Activations, s.Utterances)
}
