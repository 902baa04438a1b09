package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/emmett/voxwake/internal/detect"
	"github.com/emmett/voxwake/internal/input"
	"github.com/emmett/voxwake/internal/output"
)

// ListenerConfig controls an interactive session
type ListenerConfig struct {
	// Hotkey toggles listening when set, e.g. "ctrl+shift+space"
	Hotkey string
	// Paused starts the session without listening; the hotkey starts it
	Paused bool
}

// Listener runs the detector in the foreground until interrupted, printing
// status to the console.
type Listener struct {
	svc     *Service
	config  ListenerConfig
	console *output.ConsoleOutput
	log     *slog.Logger
}

// NewListener creates an interactive session over svc
func NewListener(svc *Service, cfg ListenerConfig, console *output.ConsoleOutput, log *slog.Logger) *Listener {
	if console == nil {
		console = output.DefaultConsoleOutput()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Listener{svc: svc, config: cfg, console: console, log: log}
}

// Run blocks until SIGINT, SIGTERM or ctx is done, then stops listening.
func (l *Listener) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, cancel := l.svc.Subscribe(32)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.svc.Run(ctx)
	}()
	go l.report(ctx, events)

	var hk *input.HotkeyManager
	if l.config.Hotkey != "" {
		hk = input.NewHotkeyManager(!l.config.Paused, l.onToggle, l.log)
		if err := hk.Start(ctx, l.config.Hotkey); err != nil {
			return err
		}
		defer hk.Stop()
		l.console.Info(fmt.Sprintf("Press %s to start or stop listening", l.config.Hotkey))
	}

	if !l.config.Paused {
		if err := l.svc.StartListening(ctx); err != nil {
			return fmt.Errorf("failed to start listening: %w", err)
		}
		l.console.Status("Listening for wake word... (Ctrl+C to stop)")
	} else {
		l.console.Status("Paused")
	}

	<-ctx.Done()
	l.console.Info("Stopping...")
	err := l.svc.StopListening()
	<-done
	return err
}

func (l *Listener) onToggle(ctx context.Context, active bool) {
	if !active {
		if err := l.svc.StopListening(); err != nil {
			l.log.Warn("stop listening failed", "error", err)
		}
		l.console.Status("Paused")
		return
	}
	if err := l.svc.StartListening(ctx); err != nil {
		l.console.Error(fmt.Sprintf("Failed to start listening: %v", err))
		return
	}
	l.console.Status("Listening for wake word...")
}

// report prints progress; transcriptions themselves go through the
// formatter sink.
func (l *Listener) report(ctx context.Context, events <-chan detect.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case detect.EventKeywordDetected, detect.EventSilenceDetected, detect.EventError:
				_ = l.console.WriteEvent(ev)
			}
		}
	}
}
