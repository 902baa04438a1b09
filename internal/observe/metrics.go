// Package observe provides the metrics and logging setup shared by the
// detection pipeline and its servers.
//
// Instruments are created through the OpenTelemetry Metrics API. [InitProvider]
// installs a Prometheus exporter so the same instruments can be scraped from
// /metrics. Tests should build their own [Metrics] with [NewMetrics] and a
// ManualReader. A nil *Metrics is valid and records nothing.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope used for all voxwake metrics.
const meterName = "github.com/emmett/voxwake"

// Metrics holds the metric instruments of the detection pipeline.
type Metrics struct {
	// Frames counts frames pulled from the audio source. Attribute: state.
	Frames metric.Int64Counter

	// Activations counts wake-word activations. Attribute: model.
	Activations metric.Int64Counter

	// Utterances counts utterances closed by silence.
	Utterances metric.Int64Counter

	// UtteranceDuration tracks the captured length of each utterance.
	UtteranceDuration metric.Float64Histogram

	// TranscriptionDuration tracks transcription latency. Attribute: status.
	TranscriptionDuration metric.Float64Histogram

	// Errors counts pipeline errors. Attribute: kind.
	Errors metric.Int64Counter

	// DroppedFrames counts captured frames discarded because the pump fell behind.
	DroppedFrames metric.Int64Counter

	// Listening is 1 while the detector runs.
	Listening metric.Int64UpDownCounter
}

var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

var utteranceBuckets = []float64{
	0.5, 1, 2, 3, 5, 8, 13, 20, 30, 60,
}

// NewMetrics creates all instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Frames, err = m.Int64Counter("voxwake.frames",
		metric.WithDescription("Audio frames processed by detector state."),
	); err != nil {
		return nil, err
	}
	if met.Activations, err = m.Int64Counter("voxwake.activations",
		metric.WithDescription("Wake-word activations by model."),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("voxwake.utterances",
		metric.WithDescription("Utterances closed by trailing silence."),
	); err != nil {
		return nil, err
	}
	if met.UtteranceDuration, err = m.Float64Histogram("voxwake.utterance.duration",
		metric.WithDescription("Captured utterance length."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(utteranceBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionDuration, err = m.Float64Histogram("voxwake.transcription.duration",
		metric.WithDescription("Latency of utterance transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Errors, err = m.Int64Counter("voxwake.errors",
		metric.WithDescription("Pipeline errors by kind."),
	); err != nil {
		return nil, err
	}
	if met.DroppedFrames, err = m.Int64Counter("voxwake.audio.dropped_frames",
		metric.WithDescription("Captured frames dropped on a full queue."),
	); err != nil {
		return nil, err
	}
	if met.Listening, err = m.Int64UpDownCounter("voxwake.listening",
		metric.WithDescription("1 while the detector is listening."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// RecordFrame counts one processed frame.
func (m *Metrics) RecordFrame(ctx context.Context, state string) {
	if m == nil {
		return
	}
	m.Frames.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state)))
}

// RecordActivation counts one wake-word activation.
func (m *Metrics) RecordActivation(ctx context.Context, model string) {
	if m == nil {
		return
	}
	m.Activations.Add(ctx, 1, metric.WithAttributes(attribute.String("model", model)))
}

// RecordUtterance counts a closed utterance and its length.
func (m *Metrics) RecordUtterance(ctx context.Context, length time.Duration) {
	if m == nil {
		return
	}
	m.Utterances.Add(ctx, 1)
	m.UtteranceDuration.Record(ctx, length.Seconds())
}

// RecordError counts one error of the given kind.
func (m *Metrics) RecordError(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.Errors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordDropped adds n dropped capture frames.
func (m *Metrics) RecordDropped(ctx context.Context, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.DroppedFrames.Add(ctx, n)
}

// SetListening moves the listening gauge up (true) or down (false).
func (m *Metrics) SetListening(ctx context.Context, listening bool) {
	if m == nil {
		return
	}
	if listening {
		m.Listening.Add(ctx, 1)
	} else {
		m.Listening.Add(ctx, -1)
	}
}

// ObserveTranscription records the latency and outcome of one transcription.
func (m *Metrics) ObserveTranscription(ctx context.Context, d time.Duration, chunks int, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		m.RecordError(ctx, "transcription")
	}
	m.TranscriptionDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(
			attribute.String("status", status),
			attribute.Int("chunks", chunks),
		),
	)
}
