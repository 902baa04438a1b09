package audio

import (
	"context"
	"time"
)

// CaptureConfig holds configuration for audio capture
type CaptureConfig struct {
	// SampleRate is the number of samples per second (Hz)
	SampleRate uint32

	// Channels is the number of audio channels. The pipeline expects mono.
	Channels uint32

	// FrameSize is the number of samples in every frame handed to the pipeline.
	// 1280 samples at 16kHz is 80ms, the unit openWakeWord models consume.
	FrameSize int

	// PeriodFrames is the device period size in samples.
	// Smaller = lower latency, higher CPU usage
	PeriodFrames uint32

	// QueueFrames is how many complete frames may wait for the reader before
	// new audio is dropped.
	QueueFrames int

	// Device selects the capture device by name substring or "capture-N" ID.
	// Empty string = use default device
	Device string
}

// DefaultConfig returns the capture configuration used by the detector
func DefaultConfig() CaptureConfig {
	return CaptureConfig{
		SampleRate:   16000, // 16kHz is what both the wake-word and STT models expect
		Channels:     1,     // Mono
		FrameSize:    1280,  // 80ms at 16kHz
		PeriodFrames: 320,   // 20ms at 16kHz
		QueueFrames:  50,    // ~4 seconds of frames
		Device:       "",    // Default device
	}
}

// FrameDuration returns the wall-clock length of one frame.
func (c CaptureConfig) FrameDuration() time.Duration {
	return FrameDuration(c.FrameSize, int(c.SampleRate))
}

// FrameDuration returns frameSize/sampleRate as a time.Duration.
func FrameDuration(frameSize, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(frameSize) * time.Second / time.Duration(sampleRate)
}

// Frame is a fixed-size block of 16-bit mono PCM. It must not be modified once
// produced by a FrameSource.
type Frame struct {
	Samples   []int16
	Timestamp time.Time
}

// FrameSource yields fixed-size frames from an input device.
type FrameSource interface {
	// Open acquires the device. It fails when the device is unavailable.
	Open(ctx context.Context) error

	// ReadFrame blocks until a full frame is available, the source fails,
	// or ctx is done.
	ReadFrame(ctx context.Context) (Frame, error)

	// Close releases the device. Safe to call more than once.
	Close() error
}

// NewSource creates a frame source for the given configuration
func NewSource(config CaptureConfig) FrameSource {
	return NewMalgoSource(config)
}
