package stt

import (
	"context"
	"fmt"
	"strings"
)

// Result represents a speech recognition result
type Result struct {
	// Text is the recognized text
	Text string

	// Confidence is the recognition confidence (0.0 to 1.0), 0 when the
	// engine does not report one
	Confidence float64
}

// Config holds configuration for an STT engine
type Config struct {
	// ModelPath is the model file (whisper) or directory (vosk)
	ModelPath string

	// SampleRate is the audio sample rate in Hz
	SampleRate int

	// Language is a locale such as "en-US". Engines use its first two letters.
	Language string

	// Threads caps inference threads. 0 lets the engine decide.
	Threads int

	// Command is the external recognizer command line (exec engine only)
	Command string
}

// Engine is the interface for batch speech-to-text engines. Transcribe receives
// one chunk of normalized mono float32 audio and returns its text.
type Engine interface {
	// Initialize initializes the engine with the given configuration
	Initialize(config Config) error

	// Transcribe decodes one chunk of audio
	Transcribe(ctx context.Context, samples []float32) (*Result, error)

	// Close releases resources
	Close() error

	// IsInitialized returns true if the engine is initialized
	IsInitialized() bool
}

// DefaultConfig returns a default STT configuration
func DefaultConfig(modelPath string) Config {
	return Config{
		ModelPath:  modelPath,
		SampleRate: 16000,
		Language:   "en-US",
	}
}

// LanguageCode reduces a locale to the two-letter code engines expect
// ("en-US" -> "en"). Empty input yields "en".
func LanguageCode(locale string) string {
	locale = strings.TrimSpace(locale)
	if len(locale) < 2 {
		return "en"
	}
	return strings.ToLower(locale[:2])
}

// Engine kinds accepted by NewEngine.
const (
	KindWhisper = "whisper"
	KindVosk    = "vosk"
	KindExec    = "exec"
)

// NewEngine returns an uninitialized engine of the given kind.
func NewEngine(kind string) (Engine, error) {
	switch strings.ToLower(kind) {
	case KindWhisper, "":
		return NewWhisperEngine(), nil
	case KindVosk:
		return NewVoskEngine(), nil
	case KindExec:
		return NewExecEngine(), nil
	default:
		return nil, fmt.Errorf("unknown transcription engine: %s (valid: whisper, vosk, exec)", kind)
	}
}
