package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

var _ Engine = (*WhisperEngine)(nil)

// WhisperEngine implements Engine with the whisper.cpp Go bindings. The model
// is loaded once; every call decodes in a fresh context.
type WhisperEngine struct {
	model       whisperlib.Model
	config      Config
	mu          sync.Mutex
	initialized bool
}

// NewWhisperEngine creates a new whisper.cpp engine
func NewWhisperEngine() *WhisperEngine {
	return &WhisperEngine{}
}

// Initialize loads the ggml model from config.ModelPath
func (w *WhisperEngine) Initialize(config Config) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.initialized {
		return fmt.Errorf("engine already initialized")
	}
	if config.ModelPath == "" {
		return errors.New("whisper: model path must not be empty")
	}

	model, err := whisperlib.New(config.ModelPath)
	if err != nil {
		return fmt.Errorf("whisper: load model %q: %w", config.ModelPath, err)
	}
	w.model = model
	w.config = config
	w.initialized = true
	return nil
}

// Transcribe decodes one chunk of audio
func (w *WhisperEngine) Transcribe(ctx context.Context, samples []float32) (*Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.initialized {
		return nil, fmt.Errorf("engine not initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wctx, err := w.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}
	lang := LanguageCode(w.config.Language)
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "error", err)
	}
	if w.config.Threads > 0 {
		wctx.SetThreads(uint(w.config.Threads))
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return &Result{Text: strings.Join(parts, " ")}, nil
}

// Close releases the model
func (w *WhisperEngine) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.initialized {
		return nil
	}
	w.initialized = false
	return w.model.Close()
}

// IsInitialized returns true if the engine is initialized
func (w *WhisperEngine) IsInitialized() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.initialized
}
