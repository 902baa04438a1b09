package app

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/emmett/voxwake/internal/audio"
	"github.com/emmett/voxwake/internal/detect"
	"github.com/emmett/voxwake/internal/output"
)

func TestWAVSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "utterances")
	sink, err := NewWAVSink(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	ts := time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC)
	ev := detect.Event{
		ID:         "0123456789abcdef",
		Type:       detect.EventTranscriptionReady,
		Timestamp:  ts,
		Audio:      []int16{1, -2, 3, -4},
		SampleRate: 16000,
	}
	if got, want := filepath.Base(sink.Path(ev)), "utterance-20240301-123045-01234567.wav"; got != want {
		t.Errorf("Path = %s, want %s", got, want)
	}
	if err := sink.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	samples, rate, err := audio.ReadWAVFile(sink.Path(ev))
	if err != nil {
		t.Fatalf("ReadWAVFile: %v", err)
	}
	if rate != 16000 || len(samples) != 4 || samples[1] != -2 {
		t.Errorf("wav = %v at %d Hz", samples, rate)
	}

	// other events and empty utterances are ignored
	for _, ev := range []detect.Event{
		{ID: "keyword", Type: detect.EventKeywordDetected, Audio: []int16{1}},
		{ID: "empty", Type: detect.EventTranscriptionReady},
	} {
		if err := sink.Handle(context.Background(), ev); err != nil {
			t.Errorf("Handle(%s): %v", ev.ID, err)
		}
	}
	files, _ := filepath.Glob(filepath.Join(dir, "*.wav"))
	if len(files) != 1 {
		t.Errorf("files = %v", files)
	}
}

func TestFormatterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewFormatterSink(output.NewPlainTextFormatter(&buf))
	err := sink.Handle(context.Background(), detect.Event{
		Type:      detect.EventTranscriptionReady,
		Text:      "hello",
		Timestamp: time.Date(2024, 1, 1, 9, 5, 0, 0, time.Local),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[09:05:00] [1] hello" {
		t.Errorf("output = %q", got)
	}
}
