package output

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/emmett/voxwake/internal/detect"
)

// ConsoleOutput writes status lines for an interactive session
type ConsoleOutput struct {
	mu            sync.Mutex
	writer        io.Writer
	errWriter     io.Writer
	showTimestamp bool
}

// ConsoleConfig configures console output behavior
type ConsoleConfig struct {
	// ShowTimestamp prefixes each line with a timestamp
	ShowTimestamp bool

	// Writer is the output destination (default: os.Stdout)
	Writer io.Writer

	// ErrWriter receives error lines (default: os.Stderr)
	ErrWriter io.Writer
}

// NewConsoleOutput creates a new console output handler
func NewConsoleOutput(config ConsoleConfig) *ConsoleOutput {
	writer := config.Writer
	if writer == nil {
		writer = os.Stdout
	}
	errWriter := config.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	return &ConsoleOutput{
		writer:        writer,
		errWriter:     errWriter,
		showTimestamp: config.ShowTimestamp,
	}
}

// DefaultConsoleOutput creates a console output with default settings
func DefaultConsoleOutput() *ConsoleOutput {
	return NewConsoleOutput(ConsoleConfig{ShowTimestamp: true})
}

func (c *ConsoleOutput) prefix() string {
	if !c.showTimestamp {
		return ""
	}
	return "[" + time.Now().Format("15:04:05") + "] "
}

// Info writes an informational message
func (c *ConsoleOutput) Info(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.writer, "[INFO] %s\n", msg)
}

// Error writes an error message to the error writer
func (c *ConsoleOutput) Error(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.errWriter, "[ERROR] %s\n", msg)
}

// Status writes a status message (typically overwritten)
func (c *ConsoleOutput) Status(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.writer, "\r%80s\r[*] %s", " ", msg)
}

// Write writes a line of text
func (c *ConsoleOutput) Write(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.writer, "%s%s\n", c.prefix(), text)
	return err
}

// WriteEvent renders the status side of a detector event: listening state
// on one overwritten line, transcriptions and errors on their own lines.
func (c *ConsoleOutput) WriteEvent(ev detect.Event) error {
	switch ev.Type {
	case detect.EventKeywordDetected:
		c.Status("Wake word detected, listening...")
	case detect.EventSilenceDetected:
		c.Status("Waiting for wake word...")
	case detect.EventTranscriptionReady:
		if ev.Text == "" {
			return nil
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		_, err := fmt.Fprintf(c.writer, "\r%80s\r%s%s\n", " ", c.prefix(), ev.Text)
		return err
	case detect.EventTranscriptionFailed:
		c.Error("transcription failed: " + ev.Error)
	case detect.EventError:
		c.Error("detector stopped: " + ev.Error)
	}
	return nil
}

// Flush implements Formatter
func (c *ConsoleOutput) Flush() error { return nil }

// Close implements Formatter
func (c *ConsoleOutput) Close() error { return nil }
