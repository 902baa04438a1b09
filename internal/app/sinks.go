package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/emmett/voxwake/internal/audio"
	"github.com/emmett/voxwake/internal/detect"
	"github.com/emmett/voxwake/internal/output"
)

// FormatterSink writes events through an output formatter
type FormatterSink struct {
	formatter output.Formatter
}

// NewFormatterSink wraps f
func NewFormatterSink(f output.Formatter) *FormatterSink {
	return &FormatterSink{formatter: f}
}

// Handle writes ev
func (f *FormatterSink) Handle(_ context.Context, ev detect.Event) error {
	if err := f.formatter.WriteEvent(ev); err != nil {
		return err
	}
	return f.formatter.Flush()
}

// WAVSink saves the audio of every transcribed utterance
type WAVSink struct {
	dir string
	log *slog.Logger
}

// NewWAVSink creates dir if needed
func NewWAVSink(dir string, log *slog.Logger) (*WAVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create wav dir: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &WAVSink{dir: dir, log: log}, nil
}

// Path returns the file an event's audio is written to
func (w *WAVSink) Path(ev detect.Event) string {
	id := ev.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return filepath.Join(w.dir, fmt.Sprintf("utterance-%s-%s.wav", ev.Timestamp.Format("20060102-150405"), id))
}

// Handle writes the utterance of transcription events
func (w *WAVSink) Handle(_ context.Context, ev detect.Event) error {
	switch ev.Type {
	case detect.EventTranscriptionReady, detect.EventTranscriptionFailed:
	default:
		return nil
	}
	if len(ev.Audio) == 0 {
		return nil
	}
	rate := ev.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	path := w.Path(ev)
	if err := audio.WriteWAVFile(path, ev.Audio, rate); err != nil {
		return err
	}
	w.log.Debug("utterance saved", "path", path, "samples", len(ev.Audio))
	return nil
}
