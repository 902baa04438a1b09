package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

// ErrSourceClosed is returned by ReadFrame after Close.
var ErrSourceClosed = errors.New("audio source closed")

// MalgoSource implements FrameSource using malgo
type MalgoSource struct {
	config       CaptureConfig
	log          *slog.Logger
	device       *malgo.Device
	malgoContext *malgo.AllocatedContext

	frames  chan Frame
	closed  chan struct{}
	pending []int16
	dropped atomic.Int64

	mu        sync.Mutex
	open      bool
	closeOnce sync.Once
}

// NewMalgoSource creates a new malgo-based frame source
func NewMalgoSource(config CaptureConfig) *MalgoSource {
	if config.QueueFrames <= 0 {
		config.QueueFrames = DefaultConfig().QueueFrames
	}
	if config.FrameSize <= 0 {
		config.FrameSize = DefaultConfig().FrameSize
	}
	return &MalgoSource{
		config: config,
		log:    slog.Default(),
	}
}

// WithLogger sets the logger used for overflow and device messages.
func (m *MalgoSource) WithLogger(log *slog.Logger) *MalgoSource {
	if log != nil {
		m.log = log
	}
	return m
}

// Open initialises the capture device and starts streaming
func (m *MalgoSource) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open {
		return fmt.Errorf("audio source is already open")
	}

	m.frames = make(chan Frame, m.config.QueueFrames)
	m.closed = make(chan struct{})
	m.pending = make([]int16, 0, m.config.FrameSize*2)
	m.closeOnce = sync.Once{}

	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = m.config.Channels
	deviceConfig.SampleRate = m.config.SampleRate
	deviceConfig.PeriodSizeInFrames = m.config.PeriodFrames
	deviceConfig.Alsa.NoMMap = 1

	if m.config.Device != "" {
		info, err := findCaptureDevice(malgoCtx, m.config.Device)
		if err != nil {
			_ = malgoCtx.Uninit()
			malgoCtx.Free()
			return err
		}
		deviceConfig.Capture.DeviceID = info.ID.Pointer()
		m.log.Debug("selected capture device", "name", info.Name())
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			m.accept(input)
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = malgoCtx.Uninit()
		malgoCtx.Free()
		return fmt.Errorf("failed to initialize device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = malgoCtx.Uninit()
		malgoCtx.Free()
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.malgoContext = malgoCtx
	m.device = device
	m.open = true
	m.log.Debug("audio capture started",
		"sample_rate", m.config.SampleRate,
		"frame_size", m.config.FrameSize)
	return nil
}

// accept runs on the device thread. It converts the raw bytes, cuts them into
// frames and queues each frame without blocking.
func (m *MalgoSource) accept(input []byte) {
	if len(input) == 0 {
		return
	}
	m.pending = append(m.pending, BytesToSamples(input)...)
	for len(m.pending) >= m.config.FrameSize {
		samples := make([]int16, m.config.FrameSize)
		copy(samples, m.pending[:m.config.FrameSize])
		n := copy(m.pending, m.pending[m.config.FrameSize:])
		m.pending = m.pending[:n]

		select {
		case m.frames <- Frame{Samples: samples, Timestamp: time.Now()}:
		default:
			if m.dropped.Add(1)%50 == 1 {
				m.log.Warn("frame queue full, dropping audio", "dropped", m.dropped.Load())
			}
		}
	}
}

// ReadFrame returns the next captured frame
func (m *MalgoSource) ReadFrame(ctx context.Context) (Frame, error) {
	m.mu.Lock()
	frames, closed := m.frames, m.closed
	m.mu.Unlock()
	if frames == nil {
		return Frame{}, ErrSourceClosed
	}

	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case <-closed:
		return Frame{}, ErrSourceClosed
	case f := <-frames:
		return f, nil
	}
}

// Close stops the device and releases the malgo context
func (m *MalgoSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return nil
	}
	m.open = false

	var err error
	m.closeOnce.Do(func() {
		close(m.closed)
		if m.device != nil {
			if stopErr := m.device.Stop(); stopErr != nil {
				err = fmt.Errorf("failed to stop device: %w", stopErr)
			}
			m.device.Uninit()
			m.device = nil
		}
		if m.malgoContext != nil {
			_ = m.malgoContext.Uninit()
			m.malgoContext.Free()
			m.malgoContext = nil
		}
	})
	return err
}

// Dropped returns how many frames were discarded because the reader fell behind.
func (m *MalgoSource) Dropped() int64 {
	return m.dropped.Load()
}
