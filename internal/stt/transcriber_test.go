package stt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/emmett/voxwake/internal/apperr"
)

type fakeEngine struct {
	mu     sync.Mutex
	texts  []string
	err    error
	errAt  int
	chunks [][]float32
}

func (f *fakeEngine) Initialize(Config) error { return nil }
func (f *fakeEngine) Close() error            { return nil }
func (f *fakeEngine) IsInitialized() bool     { return true }

func (f *fakeEngine) Transcribe(_ context.Context, samples []float32) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.chunks)
	f.chunks = append(f.chunks, samples)
	if f.err != nil && i == f.errAt {
		return nil, f.err
	}
	if i < len(f.texts) {
		return &Result{Text: f.texts[i]}, nil
	}
	return &Result{}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tone(seconds float64, amplitude int16) []int16 {
	n := int(seconds * 16000)
	pcm := make([]int16, n)
	for i := range pcm {
		if i%2 == 0 {
			pcm[i] = amplitude
		} else {
			pcm[i] = -amplitude
		}
	}
	return pcm
}

func TestTranscriberChunksAndJoins(t *testing.T) {
	engine := &fakeEngine{texts: []string{" hello there ", "", "general kenobi"}}
	tr := NewTranscriber(engine, DefaultTranscriberConfig(), discardLogger())

	text, err := tr.Transcribe(context.Background(), tone(61, 8000))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello there general kenobi" {
		t.Fatalf("text = %q", text)
	}
	if len(engine.chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(engine.chunks))
	}
	if got := len(engine.chunks[0]); got != 30*16000 {
		t.Errorf("first chunk = %d samples, want %d", got, 30*16000)
	}
	if got := len(engine.chunks[2]); got != 16000 {
		t.Errorf("last chunk = %d samples, want 16000", got)
	}
}

func TestTranscriberEmptyInput(t *testing.T) {
	engine := &fakeEngine{texts: []string{"never"}}
	tr := NewTranscriber(engine, DefaultTranscriberConfig(), discardLogger())

	text, err := tr.Transcribe(context.Background(), nil)
	if err != nil || text != "" {
		t.Fatalf("Transcribe(nil) = %q, %v", text, err)
	}
	if len(engine.chunks) != 0 {
		t.Fatalf("engine called %d times", len(engine.chunks))
	}
}

func TestTranscriberSilentInputTrimsToNothing(t *testing.T) {
	engine := &fakeEngine{texts: []string{"never"}}
	tr := NewTranscriber(engine, DefaultTranscriberConfig(), discardLogger())

	text, err := tr.Transcribe(context.Background(), make([]int16, 16000))
	if err != nil || text != "" {
		t.Fatalf("Transcribe(silence) = %q, %v", text, err)
	}
	if len(engine.chunks) != 0 {
		t.Fatalf("engine called %d times", len(engine.chunks))
	}
}

func TestTranscriberTrimsTrailingSilence(t *testing.T) {
	engine := &fakeEngine{texts: []string{"hi"}}
	tr := NewTranscriber(engine, DefaultTranscriberConfig(), discardLogger())

	pcm := append(tone(1, 8000), make([]int16, 16000)...)
	if _, err := tr.Transcribe(context.Background(), pcm); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	// one second of voice plus 200ms pad
	if got, want := len(engine.chunks[0]), 16000+3200; got != want {
		t.Fatalf("chunk = %d samples, want %d", got, want)
	}
}

func TestTranscriberWithoutTrim(t *testing.T) {
	engine := &fakeEngine{texts: []string{"hi"}}
	cfg := DefaultTranscriberConfig()
	cfg.Trim = false
	tr := NewTranscriber(engine, cfg, discardLogger())

	pcm := append(tone(1, 8000), make([]int16, 16000)...)
	if _, err := tr.Transcribe(context.Background(), pcm); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got := len(engine.chunks[0]); got != len(pcm) {
		t.Fatalf("chunk = %d samples, want %d", got, len(pcm))
	}
}

func TestTranscriberEngineError(t *testing.T) {
	boom := errors.New("boom")
	engine := &fakeEngine{texts: []string{"a", "b"}, err: boom, errAt: 1}
	tr := NewTranscriber(engine, DefaultTranscriberConfig(), discardLogger())

	_, err := tr.Transcribe(context.Background(), tone(45, 8000))
	if err == nil {
		t.Fatal("expected error")
	}
	if !apperr.Is(err, apperr.Transcription) {
		t.Errorf("error code = %v, want Transcription", apperr.CodeOf(err))
	}
	if !errors.Is(err, boom) {
		t.Errorf("error %v does not wrap cause", err)
	}
}

type recordingObserver struct {
	calls  int
	chunks int
	err    error
}

func (r *recordingObserver) ObserveTranscription(_ context.Context, _ time.Duration, chunks int, err error) {
	r.calls++
	r.chunks = chunks
	r.err = err
}

func TestTranscriberObserver(t *testing.T) {
	engine := &fakeEngine{texts: []string{"a"}}
	tr := NewTranscriber(engine, DefaultTranscriberConfig(), discardLogger())
	obs := &recordingObserver{}
	tr.SetObserver(obs)

	if _, err := tr.Transcribe(context.Background(), tone(2, 8000)); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if obs.calls != 1 || obs.chunks != 1 || obs.err != nil {
		t.Fatalf("observer = %+v", obs)
	}
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name string
		n    int
		size int
		want []int
	}{
		{"empty", 0, 10, nil},
		{"smaller than size", 5, 10, []int{5}},
		{"exact", 10, 10, []int{10}},
		{"remainder", 25, 10, []int{10, 10, 5}},
		{"no limit", 25, 0, []int{25}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Chunk(make([]float32, tt.n), tt.size)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i, c := range got {
				if len(c) != tt.want[i] {
					t.Errorf("chunk %d = %d, want %d", i, len(c), tt.want[i])
				}
			}
		})
	}
}
