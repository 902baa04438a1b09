package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/emmett/voxwake/internal/audio"
	"github.com/emmett/voxwake/internal/bus"
	"github.com/emmett/voxwake/internal/config"
	"github.com/emmett/voxwake/internal/detect"
	"github.com/emmett/voxwake/internal/history"
	"github.com/emmett/voxwake/internal/models"
	"github.com/emmett/voxwake/internal/observe"
	"github.com/emmett/voxwake/internal/output"
	"github.com/emmett/voxwake/internal/stt"
	"github.com/emmett/voxwake/internal/wakeword"
)

// Default model names used when the configuration leaves them empty.
const (
	DefaultWakeWordModel = "hey_jarvis_v0.1"
	DefaultVoskModel     = "vosk-model-small-en-us-0.15"
	melspecModelName     = "melspectrogram"
	embeddingModelName   = "embedding_model"
)

// Deps are the collaborators Build uses. Zero fields are built from the
// configuration.
type Deps struct {
	Log       *slog.Logger
	Metrics   *observe.Metrics
	Formatter output.Formatter

	Source    detect.SourceFactory
	Scorer    wakeword.Scorer
	STTEngine stt.Engine

	// Sinks are added after the configured ones
	Sinks []Sink
}

// Pipeline owns everything Build created
type Pipeline struct {
	Service     *Service
	Runner      *detect.Runner
	Engine      *detect.Engine
	Transcriber *stt.Transcriber
	Models      *models.Manager
	History     *history.Store

	log     *slog.Logger
	closers []func() error
}

func (p *Pipeline) onClose(fn func() error) {
	p.closers = append(p.closers, fn)
}

// Close stops listening and releases resources in reverse creation order
func (p *Pipeline) Close() error {
	var errs []error
	if p.Runner != nil {
		if err := p.Runner.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

// Build wires the detector, transcriber and sinks described by cfg.
func Build(ctx context.Context, cfg *config.Config, deps Deps) (_ *Pipeline, err error) {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	p := &Pipeline{log: log}
	defer func() {
		if err != nil {
			p.Close()
		}
	}()

	dir, err := models.ResolveDir(cfg.Transcription.ModelsDir)
	if err != nil {
		return nil, err
	}
	p.Models = models.NewManager(dir, log)

	engine := deps.STTEngine
	if engine == nil {
		if engine, err = NewSTTEngine(cfg, p.Models); err != nil {
			return nil, err
		}
		p.onClose(engine.Close)
	}

	p.Transcriber = stt.NewTranscriber(engine, TranscriberConfig(cfg), log)
	if deps.Metrics != nil {
		p.Transcriber.SetObserver(deps.Metrics)
	}

	scorer := deps.Scorer
	if scorer == nil {
		onnx, err := NewWakeWordScorer(cfg, p.Models, log)
		if err != nil {
			return nil, err
		}
		p.onClose(onnx.Close)
		scorer = onnx
	}

	source := deps.Source
	if source == nil {
		capCfg := CaptureConfig(cfg)
		source = func() audio.FrameSource {
			return audio.NewMalgoSource(capCfg).WithLogger(log)
		}
	}

	p.Engine, err = detect.New(DetectConfig(cfg), source, scorer, p.Transcriber,
		detect.WithLogger(log),
		detect.WithMetrics(deps.Metrics),
	)
	if err != nil {
		return nil, err
	}
	p.Runner = detect.NewRunner(p.Engine, detect.WithRunnerLogger(log))

	sinks, err := p.buildSinks(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}

	p.Service = NewService(p.Runner,
		WithSinks(sinks...),
		WithRecent(cfg.History.Limit),
		WithServiceLogger(log),
	)
	return p, nil
}

func (p *Pipeline) buildSinks(ctx context.Context, cfg *config.Config, deps Deps) ([]Sink, error) {
	var sinks []Sink
	if deps.Formatter != nil {
		sinks = append(sinks, NewFormatterSink(deps.Formatter))
	}
	if cfg.Output.WAVDir != "" {
		wav, err := NewWAVSink(cfg.Output.WAVDir, p.log)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, wav)
	}
	if cfg.Bus.Enabled {
		url := cfg.Bus.URL
		if cfg.Bus.Embedded {
			srv, err := bus.StartEmbedded(cfg.Server.Host, cfg.Bus.Port, p.log)
			if err != nil {
				return nil, err
			}
			p.onClose(func() error { srv.Shutdown(); return nil })
			url = srv.ClientURL()
		}
		pub, err := bus.Connect(ctx, bus.Config{URL: url, SubjectPrefix: cfg.Bus.SubjectPrefix}, p.log)
		if err != nil {
			return nil, err
		}
		p.onClose(pub.Close)
		sinks = append(sinks, pub)
	}
	if cfg.History.Path != "" {
		store, err := history.Open(ctx, cfg.History.Path, p.log)
		if err != nil {
			return nil, err
		}
		p.onClose(store.Close)
		p.History = store
		sinks = append(sinks, store)
	}
	return append(sinks, deps.Sinks...), nil
}

// DetectConfig maps the configuration to detector parameters
func DetectConfig(cfg *config.Config) detect.Config {
	return detect.Config{
		SampleRate:       cfg.Audio.SampleRate,
		FrameSize:        cfg.Audio.FrameSize,
		Threshold:        cfg.WakeWord.Threshold,
		SilenceThreshold: cfg.VAD.SilenceThreshold,
		SilenceDuration:  cfg.SilenceDuration(),
	}
}

// TranscriberConfig maps the configuration to transcriber settings
func TranscriberConfig(cfg *config.Config) stt.TranscriberConfig {
	return stt.TranscriberConfig{
		SampleRate:     cfg.Audio.SampleRate,
		MaxChunk:       cfg.MaxChunk(),
		NoiseReduction: cfg.Transcription.NoiseReduction,
		Trim:           cfg.Transcription.Trim.Enabled,
		TrimConfig: audio.TrimConfig{
			Window:    cfg.TrimWindow(),
			Pad:       cfg.TrimPad(),
			Threshold: cfg.VAD.SilenceThreshold,
		},
	}
}

// CaptureConfig maps the configuration to capture parameters
func CaptureConfig(cfg *config.Config) audio.CaptureConfig {
	c := audio.DefaultConfig()
	c.SampleRate = uint32(cfg.Audio.SampleRate)
	c.FrameSize = cfg.Audio.FrameSize
	c.Device = cfg.Audio.Device
	if cfg.Audio.QueueFrames > 0 {
		c.QueueFrames = cfg.Audio.QueueFrames
	}
	return c
}

// NewSTTEngine creates and initializes the configured transcription engine
func NewSTTEngine(cfg *config.Config, mgr *models.Manager) (stt.Engine, error) {
	engine, err := stt.NewEngine(cfg.Transcription.Engine)
	if err != nil {
		return nil, err
	}
	modelPath, err := STTModelPath(cfg, mgr)
	if err != nil {
		return nil, err
	}
	err = engine.Initialize(stt.Config{
		ModelPath:  modelPath,
		SampleRate: cfg.Audio.SampleRate,
		Language:   cfg.Transcription.Language,
		Threads:    cfg.Transcription.Threads,
		Command:    cfg.Transcription.Command,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s engine: %w", cfg.Transcription.Engine, err)
	}
	return engine, nil
}

// STTModelPath resolves the model file or directory of the transcription
// engine. An explicit model_path wins; otherwise whisper maps model_version
// to its ggml file and vosk uses model_version when it names a vosk model.
func STTModelPath(cfg *config.Config, mgr *models.Manager) (string, error) {
	t := cfg.Transcription
	if t.ModelPath != "" {
		return t.ModelPath, nil
	}
	switch strings.ToLower(t.Engine) {
	case stt.KindWhisper, "":
		path := mgr.WhisperPath(t.ModelVersion)
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("whisper model %s not found in %s (download it with --download-model %s)",
				t.ModelVersion, mgr.Dir(), models.WhisperModelName(t.ModelVersion))
		}
		return path, nil
	case stt.KindVosk:
		name := DefaultVoskModel
		if strings.HasPrefix(t.ModelVersion, "vosk-model-") {
			name = t.ModelVersion
		}
		return mgr.Resolve(name)
	default:
		return "", nil
	}
}

// NewWakeWordScorer loads the configured openWakeWord models
func NewWakeWordScorer(cfg *config.Config, mgr *models.Manager, log *slog.Logger) (*wakeword.ONNXScorer, error) {
	names := cfg.WakeWord.Models
	if len(names) == 0 {
		names = []string{DefaultWakeWordModel}
	}
	paths := make([]string, 0, len(names))
	for _, name := range names {
		path, err := WakeWordModelPath(name, mgr)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	melspec, err := WakeWordModelPath(orDefault(cfg.WakeWord.Melspectrogram, melspecModelName), mgr)
	if err != nil {
		return nil, err
	}
	embedding, err := WakeWordModelPath(orDefault(cfg.WakeWord.Embedding, embeddingModelName), mgr)
	if err != nil {
		return nil, err
	}
	return wakeword.NewONNXScorer(wakeword.Config{
		Models:         paths,
		MelspecModel:   melspec,
		EmbeddingModel: embedding,
		Library:        cfg.WakeWord.ONNXLibrary,
		HistorySize:    cfg.WakeWord.History,
	}, log)
}

// WakeWordModelPath accepts a file path or a catalog model name.
func WakeWordModelPath(name string, mgr *models.Manager) (string, error) {
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}
	return mgr.Resolve(name)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
