package app_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/emmett/voxwake/internal/app"
	"github.com/emmett/voxwake/internal/app/apptest"
	"github.com/emmett/voxwake/internal/audio"
	"github.com/emmett/voxwake/internal/config"
	"github.com/emmett/voxwake/internal/detect"
	"github.com/emmett/voxwake/internal/models"
	"github.com/emmett/voxwake/internal/output"
	"github.com/emmett/voxwake/internal/stt"
)

type fakeEngine struct {
	text string
}

func (f *fakeEngine) Initialize(stt.Config) error { return nil }

func (f *fakeEngine) Transcribe(context.Context, []float32) (*stt.Result, error) {
	return &stt.Result{Text: f.text, Confidence: 1}, nil
}

func (f *fakeEngine) Close() error        { return nil }
func (f *fakeEngine) IsInitialized() bool { return true }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildFullCycle(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Transcription.ModelsDir = filepath.Join(dir, "models")
	cfg.Output.WAVDir = filepath.Join(dir, "wav")
	cfg.History.Path = filepath.Join(dir, "history.db")
	cfg.VAD.SilenceDuration = 0.24

	var out bytes.Buffer
	src := apptest.NewSource()
	ctx := context.Background()

	p, err := app.Build(ctx, cfg, app.Deps{
		Log:       discard(),
		Formatter: output.NewPlainTextFormatter(&out),
		Source:    func() audio.FrameSource { return src },
		Scorer:    apptest.Scorer{},
		STTEngine: &fakeEngine{text: " open the door "},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer p.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go p.Service.Run(runCtx)

	events, unsubscribe := p.Service.Subscribe(32)
	defer unsubscribe()
	if err := p.Service.StartListening(ctx); err != nil {
		t.Fatalf("StartListening: %v", err)
	}
	src.Utterance()
	ev := apptest.WaitFor(t, events, detect.EventTranscriptionReady)
	if ev.Text != "open the door" {
		t.Errorf("text = %q", ev.Text)
	}
	apptest.WaitFor(t, events, detect.EventSilenceDetected)

	if !strings.Contains(out.String(), "[1] open the door") {
		t.Errorf("formatter output = %q", out.String())
	}

	wavs, _ := filepath.Glob(filepath.Join(cfg.Output.WAVDir, "*.wav"))
	if len(wavs) != 1 {
		t.Fatalf("wav files = %v", wavs)
	}
	samples, rate, err := audio.ReadWAVFile(wavs[0])
	if err != nil {
		t.Fatalf("ReadWAVFile: %v", err)
	}
	// wake frame, two voiced frames and three silent frames
	if rate != 16000 || len(samples) != 6*apptest.FrameSize {
		t.Errorf("wav = %d samples at %d Hz", len(samples), rate)
	}

	entries, err := p.History.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 1 || entries[0].Text != "open the door" || entries[0].ID != ev.ID {
		t.Errorf("history = %+v", entries)
	}

	if err := p.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestBuildRejectsInvalidDetector(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Transcription.ModelsDir = t.TempDir()
	cfg.WakeWord.Threshold = 1.5

	_, err := app.Build(context.Background(), cfg, app.Deps{
		Log:       discard(),
		Source:    func() audio.FrameSource { return apptest.NewSource() },
		Scorer:    apptest.Scorer{},
		STTEngine: &fakeEngine{},
	})
	if err == nil {
		t.Fatal("Build accepted threshold 1.5")
	}
}

func TestSTTModelPath(t *testing.T) {
	dir := t.TempDir()
	mgr := models.NewManager(dir, discard())
	if err := os.WriteFile(filepath.Join(dir, "ggml-base.bin"), []byte("model"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, app.DefaultVoskModel), 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		engine  string
		version string
		path    string
		want    string
		wantErr bool
	}{
		{name: "explicit path", engine: "whisper", path: "/opt/m.bin", want: "/opt/m.bin"},
		{name: "whisper version", engine: "whisper", version: "base", want: filepath.Join(dir, "ggml-base.bin")},
		{name: "whisper missing", engine: "whisper", version: "large-v3", wantErr: true},
		{name: "vosk default", engine: "vosk", version: "base", want: filepath.Join(dir, app.DefaultVoskModel)},
		{name: "vosk missing", engine: "vosk", version: "vosk-model-en-us-0.22", wantErr: true},
		{name: "exec", engine: "exec", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Transcription.Engine = tt.engine
			cfg.Transcription.ModelVersion = tt.version
			cfg.Transcription.ModelPath = tt.path

			got, err := app.STTModelPath(cfg, mgr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("path = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWakeWordModelPath(t *testing.T) {
	dir := t.TempDir()
	mgr := models.NewManager(dir, discard())

	file := filepath.Join(dir, "custom.onnx")
	if err := os.WriteFile(file, []byte("onnx"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got, err := app.WakeWordModelPath(file, mgr); err != nil || got != file {
		t.Errorf("file path: %q, %v", got, err)
	}

	if _, err := app.WakeWordModelPath("alexa_v0.1", mgr); err == nil {
		t.Error("missing catalog model resolved")
	}
	if err := os.WriteFile(filepath.Join(dir, "alexa_v0.1.onnx"), []byte("onnx"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got, err := app.WakeWordModelPath("alexa_v0.1", mgr); err != nil || got != filepath.Join(dir, "alexa_v0.1.onnx") {
		t.Errorf("catalog model: %q, %v", got, err)
	}
}

func TestDetectConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	got := app.DetectConfig(cfg)
	if got != detect.DefaultConfig() {
		t.Errorf("DetectConfig(default) = %+v, want %+v", got, detect.DefaultConfig())
	}

	cfg.Audio.Device = "USB"
	cfg.Audio.QueueFrames = 7
	c := app.CaptureConfig(cfg)
	if c.Device != "USB" || c.QueueFrames != 7 || c.SampleRate != 16000 || c.FrameSize != 1280 {
		t.Errorf("CaptureConfig = %+v", c)
	}
}
