package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"

	"github.com/emmett/voxwake/internal/audio"
)

var _ Engine = (*ExecEngine)(nil)

// ExecEngine hands each chunk to an external recognizer. The chunk is written
// to a temporary WAV file and the command is invoked as
//
//	<command> --audio <file> [--model <path>] [--language <code>]
//
// It must print {"text": "...", "confidence": 0.9} on stdout.
type ExecEngine struct {
	cmd         []string
	config      Config
	mu          sync.Mutex
	initialized bool
}

type execResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// NewExecEngine creates an engine backed by an external command
func NewExecEngine() *ExecEngine {
	return &ExecEngine{}
}

// Initialize parses config.Command
func (e *ExecEngine) Initialize(config Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return fmt.Errorf("engine already initialized")
	}
	args, err := shellwords.NewParser().Parse(config.Command)
	if err != nil {
		return fmt.Errorf("parse stt command: %w", err)
	}
	if len(args) == 0 {
		return fmt.Errorf("stt command is empty")
	}
	if config.SampleRate <= 0 {
		config.SampleRate = 16000
	}
	e.cmd = args
	e.config = config
	e.initialized = true
	return nil
}

// Transcribe runs the command on one chunk of audio
func (e *ExecEngine) Transcribe(ctx context.Context, samples []float32) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil, fmt.Errorf("engine not initialized")
	}

	file, err := os.CreateTemp("", "voxwake_stt_*.wav")
	if err != nil {
		return nil, fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(file.Name())
	defer file.Close()

	if err := audio.WriteWAV(file, audio.Denormalize(samples), e.config.SampleRate); err != nil {
		return nil, err
	}

	cmdArgs := append([]string{}, e.cmd[1:]...)
	cmdArgs = append(cmdArgs, "--audio", file.Name())
	if e.config.ModelPath != "" {
		cmdArgs = append(cmdArgs, "--model", e.config.ModelPath)
	}
	if e.config.Language != "" {
		cmdArgs = append(cmdArgs, "--language", LanguageCode(e.config.Language))
	}

	command := exec.CommandContext(ctx, e.cmd[0], cmdArgs...)
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return nil, fmt.Errorf("stt command failed: %w: %s", err, stderr.String())
	}

	var resp execResult
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("decode stt response: %w", err)
	}
	return &Result{Text: resp.Text, Confidence: resp.Confidence}, nil
}

// Close marks the engine unusable
func (e *ExecEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initialized = false
	return nil
}

// IsInitialized returns true if the engine is initialized
func (e *ExecEngine) IsInitialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}
