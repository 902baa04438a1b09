package stt

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestLanguageCode(t *testing.T) {
	tests := map[string]string{
		"en-US": "en",
		"de-DE": "de",
		"FR":    "fr",
		"":      "en",
		"x":     "en",
	}
	for in, want := range tests {
		if got := LanguageCode(in); got != want {
			t.Errorf("LanguageCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewEngine(t *testing.T) {
	tests := []struct {
		kind    string
		wantErr bool
	}{
		{"whisper", false},
		{"", false},
		{"vosk", false},
		{"EXEC", false},
		{"deepspeech", true},
	}
	for _, tt := range tests {
		_, err := NewEngine(tt.kind)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewEngine(%q) err = %v, wantErr %v", tt.kind, err, tt.wantErr)
		}
	}
}

func TestParseVoskResult(t *testing.T) {
	raw := `{"result":[{"conf":1.0,"end":0.5,"start":0.1,"word":"hello"},{"conf":0.5,"end":0.9,"start":0.6,"word":"world"}],"text":"hello world"}`
	res, err := parseVoskResult(raw)
	if err != nil {
		t.Fatalf("parseVoskResult: %v", err)
	}
	if res.Text != "hello world" {
		t.Errorf("text = %q", res.Text)
	}
	if res.Confidence != 0.75 {
		t.Errorf("confidence = %v, want 0.75", res.Confidence)
	}

	if _, err := parseVoskResult("not json"); err == nil {
		t.Error("expected error for malformed result")
	}
}

func TestExecEngine(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	script := filepath.Join(t.TempDir(), "recognizer.sh")
	body := "#!/bin/sh\n" +
		"[ \"$1\" = \"--audio\" ] || exit 2\n" +
		"[ -s \"$2\" ] || exit 3\n" +
		"[ \"$3\" = \"--language\" ] || exit 4\n" +
		"echo '{\"text\": \"lights on\", \"confidence\": 0.8}'\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}

	engine := NewExecEngine()
	if err := engine.Initialize(Config{Command: script, SampleRate: 16000, Language: "en-US"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer engine.Close()

	res, err := engine.Transcribe(context.Background(), make([]float32, 1600))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "lights on" || res.Confidence != 0.8 {
		t.Fatalf("result = %+v", res)
	}
}

func TestExecEngineFailures(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	if err := NewExecEngine().Initialize(Config{Command: "   "}); err == nil {
		t.Error("expected error for empty command")
	}

	engine := NewExecEngine()
	if err := engine.Initialize(Config{Command: "sh -c 'exit 1'"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := engine.Transcribe(context.Background(), make([]float32, 160)); err == nil {
		t.Error("expected error from failing command")
	}

	uninit := NewExecEngine()
	if _, err := uninit.Transcribe(context.Background(), nil); err == nil {
		t.Error("expected error from uninitialized engine")
	}
}

func TestWhisperEngine(t *testing.T) {
	modelPath := os.Getenv("WHISPER_MODEL_PATH")
	if modelPath == "" {
		t.Skip("WHISPER_MODEL_PATH not set")
	}
	engine := NewWhisperEngine()
	if err := engine.Initialize(Config{ModelPath: modelPath, Language: "en-US"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer engine.Close()

	res, err := engine.Transcribe(context.Background(), make([]float32, 16000))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	t.Logf("silence transcribed as %q", res.Text)
}
