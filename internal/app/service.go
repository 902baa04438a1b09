package app

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/emmett/voxwake/internal/detect"
	"github.com/emmett/voxwake/internal/syncx"
)

// Sink consumes detector events
type Sink interface {
	Handle(ctx context.Context, ev detect.Event) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, ev detect.Event) error

// Handle calls f
func (f SinkFunc) Handle(ctx context.Context, ev detect.Event) error {
	return f(ctx, ev)
}

// Status is a snapshot of the detector for control surfaces
type Status struct {
	Listening         bool   `json:"listening"`
	State             string `json:"state"`
	Activations       uint64 `json:"activations"`
	Utterances        uint64 `json:"utterances"`
	LastError         string `json:"last_error,omitempty"`
	Recent            int    `json:"recent"`
	LastTranscription string `json:"last_transcription,omitempty"`
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithSinks adds event sinks
func WithSinks(sinks ...Sink) ServiceOption {
	return func(s *Service) { s.sinks = append(s.sinks, sinks...) }
}

// WithRecent sets how many transcriptions are kept in memory
func WithRecent(n int) ServiceOption {
	return func(s *Service) { s.recent = syncx.NewRing[detect.Event](n) }
}

// WithServiceLogger sets the logger
func WithServiceLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) { s.log = log }
}

// Service is the control plane over one detector: it starts and stops
// listening, fans events out to sinks and subscribers, and remembers the most
// recent transcriptions.
type Service struct {
	runner *detect.Runner
	sinks  []Sink
	recent *syncx.Ring[detect.Event]
	log    *slog.Logger

	subMu   sync.Mutex
	subs    map[int]chan detect.Event
	nextSub int
}

// NewService creates a service for runner
func NewService(runner *detect.Runner, opts ...ServiceOption) *Service {
	s := &Service{
		runner: runner,
		recent: syncx.NewRing[detect.Event](50),
		log:    slog.Default(),
		subs:   make(map[int]chan detect.Event),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Run dispatches runner events until ctx is done
func (s *Service) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-s.runner.Events():
			s.dispatch(ctx, ev)
		}
	}
}

func (s *Service) dispatch(ctx context.Context, ev detect.Event) {
	switch ev.Type {
	case detect.EventTranscriptionReady, detect.EventTranscriptionFailed:
		kept := ev
		kept.Audio = nil
		s.recent.Push(kept)
	}

	var g errgroup.Group
	for _, sink := range s.sinks {
		g.Go(func() error { return sink.Handle(ctx, ev) })
	}
	if err := g.Wait(); err != nil {
		s.log.Warn("event sink failed", "event", ev.Type, "error", err)
	}

	// subscribers never see raw audio
	ev.Audio = nil
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.log.Debug("dropping event for slow subscriber", "subscriber", id, "event", ev.Type)
		}
	}
}

// Subscribe returns a channel receiving every later event and a cancel
// function that closes it. Events are dropped when the channel is full.
func (s *Service) Subscribe(buffer int) (<-chan detect.Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan detect.Event, buffer)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

// StartListening starts the detector. It is a no-op when already listening.
func (s *Service) StartListening(ctx context.Context) error {
	if err := s.runner.Start(ctx); err != nil {
		return err
	}
	s.log.Info("listening for wake word")
	return nil
}

// StopListening stops the detector and releases the audio device
func (s *Service) StopListening() error {
	return s.runner.Stop()
}

// Listening reports whether the detector runs
func (s *Service) Listening() bool {
	return s.runner.Running()
}

// Status returns a snapshot of the detector
func (s *Service) Status() Status {
	stats := s.runner.Engine().Stats()
	st := Status{
		Listening:   s.runner.Running(),
		State:       stats.State.String(),
		Activations: stats.Activations,
		Utterances:  stats.Utterances,
		Recent:      s.recent.Len(),
	}
	if stats.Err != nil {
		st.LastError = stats.Err.Error()
	}
	if last, ok := s.recent.Last(); ok && last.Type == detect.EventTranscriptionReady {
		st.LastTranscription = last.Text
	}
	return st
}

// Recent returns up to n of the latest transcription events, oldest first
func (s *Service) Recent(n int) []detect.Event {
	return s.recent.Latest(n)
}

// TranscribePCM transcribes 16-bit mono PCM at the detector sample rate
func (s *Service) TranscribePCM(ctx context.Context, pcm []int16) (string, error) {
	return s.runner.Engine().Transcribe(ctx, pcm)
}

// SampleRate is the rate TranscribePCM expects
func (s *Service) SampleRate() int {
	return s.runner.Engine().Config().SampleRate
}
