package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/emmett/voxwake/internal/app"
	"github.com/emmett/voxwake/internal/audio"
	"github.com/emmett/voxwake/internal/config"
	"github.com/emmett/voxwake/internal/models"
	"github.com/emmett/voxwake/internal/observe"
	"github.com/emmett/voxwake/internal/output"
	"github.com/emmett/voxwake/internal/stt"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

var (
	configFile      = flag.String("config", "", "Path to configuration file (default: ~/.voxwakerc or /etc/voxwake/config.yaml)")
	listModels      = flag.Bool("list-models", false, "List all available models for download")
	listDownloaded  = flag.Bool("list-downloaded", false, "List all downloaded models")
	downloadModel   = flag.String("download-model", "", "Download a specific model by name")
	autoDownload    = flag.Bool("auto-download", false, "Download missing wake word models before listening")
	engine          = flag.String("engine", "", "Transcription engine: whisper, vosk, exec")
	modelVersion    = flag.String("model", "", "Transcription model version (whisper: tiny, base, small...; vosk: model name)")
	language        = flag.String("language", "", "Transcription language, e.g. en-US")
	threshold       = flag.Float64("threshold", 0, "Wake word activation threshold (0-1)")
	silenceDuration = flag.Float64("silence-duration", 0, "Seconds of silence that end an utterance")
	outputFormat    = flag.String("format", "", "Output format: text, json, jsonl")
	outputFile      = flag.String("output", "", "Output file (default: stdout)")
	wavDir          = flag.String("wav-dir", "", "Save every utterance as a WAV file in this directory")
	audioDevice     = flag.String("device", "", "Audio input device name or ID (use --list-devices to see available devices)")
	listDevices     = flag.Bool("list-devices", false, "List all available audio input devices")
	useHotkey       = flag.Bool("hotkey", false, "Toggle listening with the configured global hotkey")
	paused          = flag.Bool("paused", false, "Start without listening (use with --hotkey)")
	transcribeFile  = flag.String("transcribe-file", "", "Transcribe a 16 kHz mono WAV file and exit")
	logLevel        = flag.String("log-level", "", "Log level: debug, info, warn, error")
	showVersion     = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("voxwake v%s\n", Version)
		fmt.Printf("  Commit:  %s\n", GitCommit)
		fmt.Printf("  Branch:  %s\n", GitBranch)
		fmt.Printf("  Built:   %s\n", BuildTime)
		os.Exit(0)
	}

	cfg, err := config.LoadWithFallback(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration:\n%v\n", err)
		os.Exit(1)
	}

	log := observe.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	slog.SetDefault(log)
	ctx := context.Background()

	if *listDevices {
		if err := app.NewDeviceManager(os.Stdout).ListDevices(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	dir, err := models.ResolveDir(cfg.Transcription.ModelsDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	mgr := models.NewManager(dir, log)
	mm := app.NewModelManager(mgr, os.Stdout)

	switch {
	case *listModels:
		err = mm.ListModels()
	case *listDownloaded:
		err = mm.ListDownloaded()
	case *downloadModel != "":
		err = mm.Download(ctx, *downloadModel)
	case *transcribeFile != "":
		err = transcribe(ctx, cfg, mgr, *transcribeFile, log)
	default:
		err = run(ctx, cfg, mm, log)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// applyFlags overrides configuration values with explicitly set flags
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "engine":
			cfg.Transcription.Engine = *engine
		case "model":
			cfg.Transcription.ModelVersion = *modelVersion
		case "language":
			cfg.Transcription.Language = *language
		case "threshold":
			cfg.WakeWord.Threshold = *threshold
		case "silence-duration":
			cfg.VAD.SilenceDuration = *silenceDuration
		case "format":
			cfg.Output.Format = *outputFormat
		case "output":
			cfg.Output.File = *outputFile
		case "wav-dir":
			cfg.Output.WAVDir = *wavDir
		case "device":
			cfg.Audio.Device = *audioDevice
		case "hotkey":
			cfg.Hotkey.Enabled = *useHotkey
		case "log-level":
			cfg.Log.Level = *logLevel
		}
	})
}

func outputWriter(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

func run(ctx context.Context, cfg *config.Config, mm *app.ModelManager, log *slog.Logger) error {
	fmt.Fprintf(os.Stderr, "voxwake v%s (commit: %s, branch: %s, built: %s)\n", Version, GitCommit, GitBranch, BuildTime)

	if cfg.Audio.Device != "" {
		device, err := app.NewDeviceManager(os.Stderr).SelectDevice(cfg.Audio.Device)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Using device: %s\n", device.Name)
	}
	if *autoDownload {
		if err := mm.EnsureWakeWord(ctx, cfg.WakeWord.Models); err != nil {
			return err
		}
	}

	w, closeOut, err := outputWriter(cfg.Output.File)
	if err != nil {
		return err
	}
	defer closeOut()
	formatter, err := output.NewFormatter(cfg.Output.Format, w)
	if err != nil {
		return err
	}
	defer formatter.Close()

	p, err := app.Build(ctx, cfg, app.Deps{Log: log, Formatter: formatter})
	if err != nil {
		return err
	}
	defer p.Close()

	lc := app.ListenerConfig{Paused: *paused}
	if cfg.Hotkey.Enabled {
		lc.Hotkey = cfg.Hotkey.Keys
	}
	console := output.NewConsoleOutput(output.ConsoleConfig{Writer: os.Stderr})
	return app.NewListener(p.Service, lc, console, log).Run(ctx)
}

func transcribe(ctx context.Context, cfg *config.Config, mgr *models.Manager, path string, log *slog.Logger) error {
	samples, rate, err := audio.ReadWAVFile(path)
	if err != nil {
		return err
	}
	if rate != cfg.Audio.SampleRate {
		return fmt.Errorf("%s is %d Hz, expected %d Hz", path, rate, cfg.Audio.SampleRate)
	}

	engine, err := app.NewSTTEngine(cfg, mgr)
	if err != nil {
		return err
	}
	defer engine.Close()

	text, err := stt.NewTranscriber(engine, app.TranscriberConfig(cfg), log).Transcribe(ctx, samples)
	if err != nil {
		return err
	}
	fmt.Println(text)
	return nil
}
