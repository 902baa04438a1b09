// Package config loads the YAML configuration of the detector and its servers.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Audio struct {
		Device      string `yaml:"device"`
		SampleRate  int    `yaml:"sample_rate"`
		FrameSize   int    `yaml:"frame_size"`
		QueueFrames int    `yaml:"queue_frames"`
	} `yaml:"audio"`

	WakeWord struct {
		Threshold      float64  `yaml:"threshold"`
		Models         []string `yaml:"models"`
		Melspectrogram string   `yaml:"melspectrogram"`
		Embedding      string   `yaml:"embedding"`
		ONNXLibrary    string   `yaml:"onnx_lib"`
		History        int      `yaml:"history"`
	} `yaml:"wakeword"`

	VAD struct {
		// SilenceThreshold in dB
		SilenceThreshold float64 `yaml:"silence_threshold"`
		// SilenceDuration in seconds
		SilenceDuration float64 `yaml:"silence_duration"`
	} `yaml:"vad"`

	Transcription struct {
		Engine          string  `yaml:"engine"`
		Language        string  `yaml:"language"`
		ModelVersion    string  `yaml:"model_version"`
		ModelPath       string  `yaml:"model_path"`
		ModelsDir       string  `yaml:"models_dir"`
		MaxChunkSeconds float64 `yaml:"max_chunk_seconds"`
		Threads         int     `yaml:"threads"`
		NoiseReduction  bool    `yaml:"noise_reduction"`
		Command         string  `yaml:"command"`
		Trim            struct {
			Enabled  bool `yaml:"enabled"`
			WindowMS int  `yaml:"window_ms"`
			PadMS    int  `yaml:"pad_ms"`
		} `yaml:"trim"`
	} `yaml:"transcription"`

	Output struct {
		Format string `yaml:"format"`
		File   string `yaml:"file"`
		WAVDir string `yaml:"wav_dir"`
	} `yaml:"output"`

	Server struct {
		Host     string `yaml:"host"`
		GRPCPort int    `yaml:"grpc_port"`
		HTTPAddr string `yaml:"http_addr"`
	} `yaml:"server"`

	Bus struct {
		Enabled       bool   `yaml:"enabled"`
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
		// Embedded runs an in-process NATS server on Port
		Embedded bool `yaml:"embedded"`
		Port     int  `yaml:"port"`
	} `yaml:"bus"`

	History struct {
		Path  string `yaml:"path"`
		Limit int    `yaml:"limit"`
	} `yaml:"history"`

	Telemetry struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"telemetry"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Hotkey struct {
		Enabled bool   `yaml:"enabled"`
		Keys    string `yaml:"keys"`
	} `yaml:"hotkey"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Audio.SampleRate = 16000
	cfg.Audio.FrameSize = 1280
	cfg.Audio.QueueFrames = 50

	cfg.WakeWord.Threshold = 0.3
	cfg.WakeWord.History = 30

	cfg.VAD.SilenceThreshold = -50
	cfg.VAD.SilenceDuration = 1.2

	cfg.Transcription.Engine = "whisper"
	cfg.Transcription.Language = "en-US"
	cfg.Transcription.ModelVersion = "base"
	cfg.Transcription.MaxChunkSeconds = 30
	cfg.Transcription.Trim.Enabled = true
	cfg.Transcription.Trim.WindowMS = 100
	cfg.Transcription.Trim.PadMS = 200

	cfg.Output.Format = "text"

	cfg.Server.Host = "localhost"
	cfg.Server.GRPCPort = 50051
	cfg.Server.HTTPAddr = "localhost:8080"

	cfg.Bus.URL = "nats://127.0.0.1:4222"
	cfg.Bus.SubjectPrefix = "voxwake"
	cfg.Bus.Port = 4222

	cfg.History.Limit = 50

	cfg.Log.Level = "info"
	cfg.Log.Format = "text"

	cfg.Hotkey.Keys = "ctrl+shift+space"

	return cfg
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// SystemConfigPath is the last file LoadWithFallback tries.
var SystemConfigPath = "/etc/voxwake/config.yaml"

// LoadWithFallback attempts to load configuration from multiple locations
// Priority: explicit path > ~/.voxwakerc > /etc/voxwake/config.yaml > defaults
func LoadWithFallback(explicitPath string) (*Config, error) {
	if explicitPath != "" {
		return Load(explicitPath)
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		userConfigPath := filepath.Join(homeDir, ".voxwakerc")
		if _, err := os.Stat(userConfigPath); err == nil {
			return Load(userConfigPath)
		}
	}

	if _, err := os.Stat(SystemConfigPath); err == nil {
		return Load(SystemConfigPath)
	}

	return DefaultConfig(), nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive"))
	}
	if c.Audio.FrameSize <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_size must be positive"))
	}
	if c.WakeWord.Threshold < 0 || c.WakeWord.Threshold >= 1 {
		errs = append(errs, fmt.Errorf("wakeword.threshold must be in [0, 1), got %v", c.WakeWord.Threshold))
	}
	if c.VAD.SilenceDuration <= 0 {
		errs = append(errs, fmt.Errorf("vad.silence_duration must be positive"))
	}
	if c.Transcription.MaxChunkSeconds <= 0 {
		errs = append(errs, fmt.Errorf("transcription.max_chunk_seconds must be positive"))
	}
	switch strings.ToLower(c.Transcription.Engine) {
	case "whisper", "vosk":
	case "exec":
		if strings.TrimSpace(c.Transcription.Command) == "" {
			errs = append(errs, fmt.Errorf("transcription.command is required for the exec engine"))
		}
	default:
		errs = append(errs, fmt.Errorf("transcription.engine must be whisper, vosk or exec, got %q", c.Transcription.Engine))
	}
	switch c.Output.Format {
	case "text", "json", "jsonl":
	default:
		errs = append(errs, fmt.Errorf("output.format must be text, json or jsonl, got %q", c.Output.Format))
	}
	return errors.Join(errs...)
}

// FrameDuration returns the duration of one audio frame
func (c *Config) FrameDuration() time.Duration {
	return time.Duration(c.Audio.FrameSize) * time.Second / time.Duration(c.Audio.SampleRate)
}

// SilenceDuration returns vad.silence_duration as a duration
func (c *Config) SilenceDuration() time.Duration {
	return seconds(c.VAD.SilenceDuration)
}

// MaxChunk returns transcription.max_chunk_seconds as a duration
func (c *Config) MaxChunk() time.Duration {
	return seconds(c.Transcription.MaxChunkSeconds)
}

// seconds converts to a duration rounded to the microsecond, so 1.2 is
// exactly 1200ms.
func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s*1e6)) * time.Microsecond
}

// TrimWindow returns the trailing-silence scan window
func (c *Config) TrimWindow() time.Duration {
	return time.Duration(c.Transcription.Trim.WindowMS) * time.Millisecond
}

// TrimPad returns the audio kept after the last loud window
func (c *Config) TrimPad() time.Duration {
	return time.Duration(c.Transcription.Trim.PadMS) * time.Millisecond
}
