package stt

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/emmett/voxwake/internal/apperr"
	"github.com/emmett/voxwake/internal/audio"
)

// DefaultMaxChunk is the longest audio a single inference call receives.
const DefaultMaxChunk = 30 * time.Second

// TranscriberConfig controls preprocessing and chunking
type TranscriberConfig struct {
	SampleRate int

	// MaxChunk caps the duration of each engine call
	MaxChunk time.Duration

	// NoiseReduction attenuates the noise floor before decoding
	NoiseReduction bool

	// Trim removes trailing dead air using TrimConfig
	Trim       bool
	TrimConfig audio.TrimConfig
}

// DefaultTranscriberConfig returns the default preprocessing settings
func DefaultTranscriberConfig() TranscriberConfig {
	return TranscriberConfig{
		SampleRate: 16000,
		MaxChunk:   DefaultMaxChunk,
		Trim:       true,
		TrimConfig: audio.DefaultTrimConfig(),
	}
}

// Observer receives the outcome of every utterance transcription.
type Observer interface {
	ObserveTranscription(ctx context.Context, duration time.Duration, chunks int, err error)
}

// Transcriber turns a finalized utterance into text using an Engine.
type Transcriber struct {
	engine   Engine
	config   TranscriberConfig
	log      *slog.Logger
	observer Observer
}

// NewTranscriber wraps an initialized engine
func NewTranscriber(engine Engine, config TranscriberConfig, log *slog.Logger) *Transcriber {
	if log == nil {
		log = slog.Default()
	}
	if config.SampleRate <= 0 {
		config.SampleRate = 16000
	}
	if config.MaxChunk <= 0 {
		config.MaxChunk = DefaultMaxChunk
	}
	return &Transcriber{engine: engine, config: config, log: log}
}

// SetObserver installs an observer for transcription outcomes.
func (t *Transcriber) SetObserver(o Observer) {
	t.observer = o
}

// Engine returns the underlying engine.
func (t *Transcriber) Engine() Engine {
	return t.engine
}

// Transcribe normalizes, optionally cleans, splits and decodes pcm. Chunk
// texts are joined with a single space in chunk order; chunks that decode to
// no text add nothing, so no double spaces appear. An engine failure is
// returned as an error; empty audio yields empty text.
func (t *Transcriber) Transcribe(ctx context.Context, pcm []int16) (string, error) {
	start := time.Now()
	text, chunks, err := t.transcribe(ctx, pcm)
	if t.observer != nil {
		t.observer.ObserveTranscription(ctx, time.Since(start), chunks, err)
	}
	return text, err
}

func (t *Transcriber) transcribe(ctx context.Context, pcm []int16) (string, int, error) {
	if len(pcm) == 0 {
		return "", 0, nil
	}
	samples := t.Prepare(pcm)
	if len(samples) == 0 {
		t.log.Debug("utterance trimmed to nothing", "samples", len(pcm))
		return "", 0, nil
	}

	chunks := Chunk(samples, t.chunkSamples())
	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return "", i, apperr.Wrap(err, apperr.Transcription, "transcription cancelled")
		}
		result, err := t.engine.Transcribe(ctx, chunk)
		if err != nil {
			return "", i + 1, apperr.Wrapf(err, apperr.Transcription, "transcribe chunk %d of %d", i+1, len(chunks))
		}
		if result == nil {
			continue
		}
		if text := strings.TrimSpace(result.Text); text != "" {
			parts = append(parts, text)
		}
	}

	t.log.Debug("utterance transcribed",
		"chunks", len(chunks),
		"seconds", float64(len(samples))/float64(t.config.SampleRate))
	return strings.Join(parts, " "), len(chunks), nil
}

// Prepare converts pcm to float32 and applies the configured noise reduction
// and trailing-silence trim.
func (t *Transcriber) Prepare(pcm []int16) []float32 {
	samples := audio.Normalize(pcm)
	if t.config.NoiseReduction {
		samples = audio.ReduceNoise(samples, t.config.SampleRate)
	}
	if t.config.Trim {
		samples = audio.TrimTrailingSilence(samples, t.config.SampleRate, t.config.TrimConfig)
	}
	return samples
}

func (t *Transcriber) chunkSamples() int {
	n := int(t.config.MaxChunk * time.Duration(t.config.SampleRate) / time.Second)
	if n <= 0 {
		n = 30 * t.config.SampleRate
	}
	return n
}

// Chunk splits samples into consecutive slices of at most size samples.
func Chunk(samples []float32, size int) [][]float32 {
	if size <= 0 || len(samples) <= size {
		if len(samples) == 0 {
			return nil
		}
		return [][]float32{samples}
	}
	chunks := make([][]float32, 0, (len(samples)+size-1)/size)
	for start := 0; start < len(samples); start += size {
		end := start + size
		if end > len(samples) {
			end = len(samples)
		}
		chunks = append(chunks, samples[start:end])
	}
	return chunks
}
