package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	vosk "github.com/alphacep/vosk-api/go"

	"github.com/emmett/voxwake/internal/audio"
)

var _ Engine = (*VoskEngine)(nil)

// VoskEngine implements the Engine interface using Vosk. Each Transcribe call
// feeds the whole chunk and reads the final result, which also resets the
// recognizer for the next utterance.
type VoskEngine struct {
	model       *vosk.VoskModel
	recognizer  *vosk.VoskRecognizer
	config      Config
	mu          sync.Mutex
	initialized bool
}

// VoskResult represents the JSON result from Vosk
type VoskResult struct {
	Text   string `json:"text"`
	Result []struct {
		Conf  float64 `json:"conf"`
		End   float64 `json:"end"`
		Start float64 `json:"start"`
		Word  string  `json:"word"`
	} `json:"result,omitempty"`
}

// NewVoskEngine creates a new Vosk STT engine
func NewVoskEngine() *VoskEngine {
	return &VoskEngine{}
}

// Initialize loads the model directory and creates a recognizer
func (v *VoskEngine) Initialize(config Config) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.initialized {
		return fmt.Errorf("engine already initialized")
	}
	if config.SampleRate <= 0 {
		config.SampleRate = 16000
	}

	vosk.SetLogLevel(-1)

	model, err := vosk.NewModel(config.ModelPath)
	if err != nil {
		return fmt.Errorf("failed to load model from %s: %w", config.ModelPath, err)
	}
	if model == nil {
		return fmt.Errorf("failed to load model from %s: model returned nil", config.ModelPath)
	}

	recognizer, err := vosk.NewRecognizer(model, float64(config.SampleRate))
	if err != nil {
		model.Free()
		return fmt.Errorf("failed to create recognizer: %w", err)
	}
	// word results carry per-word confidence
	recognizer.SetWords(1)

	v.model = model
	v.recognizer = recognizer
	v.config = config
	v.initialized = true
	return nil
}

// Transcribe decodes one chunk of audio
func (v *VoskEngine) Transcribe(ctx context.Context, samples []float32) (*Result, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.initialized {
		return nil, fmt.Errorf("engine not initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v.recognizer.AcceptWaveform(audio.SamplesToBytes(audio.Denormalize(samples)))
	return parseVoskResult(v.recognizer.FinalResult())
}

// Close releases resources
func (v *VoskEngine) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.initialized {
		return nil
	}
	if v.recognizer != nil {
		v.recognizer.Free()
		v.recognizer = nil
	}
	if v.model != nil {
		v.model.Free()
		v.model = nil
	}
	v.initialized = false
	return nil
}

// IsInitialized returns true if the engine is initialized
func (v *VoskEngine) IsInitialized() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.initialized
}

func parseVoskResult(raw string) (*Result, error) {
	var voskResult VoskResult
	if err := json.Unmarshal([]byte(raw), &voskResult); err != nil {
		return nil, fmt.Errorf("failed to parse final result: %w", err)
	}
	return &Result{
		Text:       strings.TrimSpace(voskResult.Text),
		Confidence: calculateAverageConfidence(voskResult),
	}, nil
}

// calculateAverageConfidence calculates the average confidence from word results
func calculateAverageConfidence(result VoskResult) float64 {
	if len(result.Result) == 0 {
		return 0.0
	}

	var sum float64
	for _, word := range result.Result {
		sum += word.Conf
	}
	return sum / float64(len(result.Result))
}
