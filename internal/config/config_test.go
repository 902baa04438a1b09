package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if got := cfg.FrameDuration(); got != 80*time.Millisecond {
		t.Errorf("FrameDuration = %v, want 80ms", got)
	}
	if got := cfg.SilenceDuration(); got != 1200*time.Millisecond {
		t.Errorf("SilenceDuration = %v, want 1.2s", got)
	}
	if got := cfg.MaxChunk(); got != 30*time.Second {
		t.Errorf("MaxChunk = %v, want 30s", got)
	}
	if cfg.TrimWindow() != 100*time.Millisecond || cfg.TrimPad() != 200*time.Millisecond {
		t.Errorf("trim = %v/%v", cfg.TrimWindow(), cfg.TrimPad())
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
audio:
  device: "USB"
wakeword:
  threshold: 0.5
  models: [hey_jarvis.onnx]
vad:
  silence_duration: 2
transcription:
  engine: vosk
  language: de-DE
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Audio.Device != "USB" || cfg.WakeWord.Threshold != 0.5 {
		t.Errorf("overrides not applied: %+v", cfg.Audio)
	}
	if len(cfg.WakeWord.Models) != 1 || cfg.WakeWord.Models[0] != "hey_jarvis.onnx" {
		t.Errorf("models = %v", cfg.WakeWord.Models)
	}
	if cfg.SilenceDuration() != 2*time.Second {
		t.Errorf("SilenceDuration = %v", cfg.SilenceDuration())
	}
	// untouched keys keep their defaults
	if cfg.Audio.SampleRate != 16000 || cfg.Transcription.MaxChunkSeconds != 30 {
		t.Errorf("defaults lost: rate=%d chunk=%v", cfg.Audio.SampleRate, cfg.Transcription.MaxChunkSeconds)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{"malformed", "audio: [", "parse"},
		{"bad threshold", "wakeword:\n  threshold: 1.5\n", "wakeword.threshold"},
		{"exec without command", "transcription:\n  engine: exec\n", "transcription.command"},
		{"unknown engine", "transcription:\n  engine: deepspeech\n", "transcription.engine"},
		{"bad format", "output:\n  format: xml\n", "output.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("Load error = %v, want mention of %q", err, tt.wantMsg)
			}
		})
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "voxwake.yaml")
	cfg := DefaultConfig()
	cfg.Transcription.ModelVersion = "small"
	cfg.Bus.Enabled = true

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Transcription.ModelVersion != "small" || !loaded.Bus.Enabled {
		t.Errorf("reloaded config = %+v", loaded.Transcription)
	}
}

func TestLoadWithFallback(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	orig := SystemConfigPath
	SystemConfigPath = filepath.Join(t.TempDir(), "absent.yaml")
	t.Cleanup(func() { SystemConfigPath = orig })

	cfg, err := LoadWithFallback("")
	if err != nil {
		t.Fatalf("LoadWithFallback: %v", err)
	}
	if cfg.Transcription.Engine != "whisper" {
		t.Errorf("expected defaults, got engine %q", cfg.Transcription.Engine)
	}

	rc := filepath.Join(home, ".voxwakerc")
	if err := os.WriteFile(rc, []byte("log:\n  level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadWithFallback("")
	if err != nil {
		t.Fatalf("LoadWithFallback: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("user config not used: level %q", cfg.Log.Level)
	}
}
