package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/emmett/voxwake/internal/detect"
)

// Formatter renders detector events
type Formatter interface {
	// WriteEvent writes one detector event
	WriteEvent(ev detect.Event) error

	// Flush ensures all buffered output is written
	Flush() error

	// Close closes the formatter and releases resources
	Close() error
}

// NewFormatter returns the formatter for format: "text", "json" or "jsonl".
func NewFormatter(format string, w io.Writer) (Formatter, error) {
	switch strings.ToLower(format) {
	case "text", "":
		return NewPlainTextFormatter(w), nil
	case "json":
		return NewJSONFormatter(w, true), nil
	case "jsonl":
		return NewJSONFormatter(w, false), nil
	default:
		return nil, fmt.Errorf("unknown output format: %s (valid: text, json, jsonl)", format)
	}
}

// TranscriptionResult is a finished transcription in JSON output
type TranscriptionResult struct {
	Index     int    `json:"index"`
	ID        string `json:"id"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// JSONFormatter outputs events as JSON documents, indented or one per line
type JSONFormatter struct {
	mu      sync.Mutex
	encoder *json.Encoder
	results []TranscriptionResult
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(writer io.Writer, indent bool) *JSONFormatter {
	encoder := json.NewEncoder(writer)
	if indent {
		encoder.SetIndent("", "  ")
	}
	return &JSONFormatter{encoder: encoder}
}

// WriteEvent writes an event in JSON format
func (j *JSONFormatter) WriteEvent(ev detect.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if ev.Type == detect.EventTranscriptionReady {
		j.results = append(j.results, TranscriptionResult{
			Index:     len(j.results) + 1,
			ID:        ev.ID,
			Text:      ev.Text,
			Timestamp: ev.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	return j.encoder.Encode(ev)
}

// Flush ensures all buffered output is written
func (j *JSONFormatter) Flush() error {
	return nil
}

// Close closes the formatter
func (j *JSONFormatter) Close() error {
	return nil
}

// Results returns every transcription written so far
func (j *JSONFormatter) Results() []TranscriptionResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]TranscriptionResult(nil), j.results...)
}

// PlainTextFormatter outputs transcriptions as timestamped lines. Only
// transcriptions and failures are written; other events are ignored.
type PlainTextFormatter struct {
	mu     sync.Mutex
	writer io.Writer
	count  int
}

// NewPlainTextFormatter creates a new plain text formatter
func NewPlainTextFormatter(writer io.Writer) *PlainTextFormatter {
	return &PlainTextFormatter{writer: writer}
}

// WriteEvent writes an event in plain text
func (p *PlainTextFormatter) WriteEvent(ev detect.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	timestamp := ev.Timestamp.Format("15:04:05")
	var err error
	switch ev.Type {
	case detect.EventTranscriptionReady:
		if ev.Text == "" {
			return nil
		}
		p.count++
		_, err = fmt.Fprintf(p.writer, "[%s] [%d] %s\n", timestamp, p.count, ev.Text)
	case detect.EventTranscriptionFailed, detect.EventError:
		_, err = fmt.Fprintf(p.writer, "[%s] [%s] %s\n", timestamp, ev.Type, ev.Error)
	}
	return err
}

// Flush ensures all buffered output is written
func (p *PlainTextFormatter) Flush() error {
	return nil
}

// Close closes the formatter
func (p *PlainTextFormatter) Close() error {
	return nil
}
