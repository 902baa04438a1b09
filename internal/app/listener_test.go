package app_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/emmett/voxwake/internal/app"
	"github.com/emmett/voxwake/internal/app/apptest"
	"github.com/emmett/voxwake/internal/output"
)

func TestListenerRunsUntilCancelled(t *testing.T) {
	fx := apptest.New(t, apptest.Transcriber{})
	var out bytes.Buffer
	console := output.NewConsoleOutput(output.ConsoleConfig{Writer: &out, ErrWriter: &out})
	l := app.NewListener(fx.Service, app.ListenerConfig{}, console, discard())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !fx.Service.Listening() {
		if time.Now().After(deadline) {
			t.Fatal("listener did not start listening")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	if fx.Service.Listening() {
		t.Error("still listening after Run returned")
	}
	if !strings.Contains(out.String(), "Listening for wake word") {
		t.Errorf("console = %q", out.String())
	}
}

func TestListenerPaused(t *testing.T) {
	fx := apptest.New(t, apptest.Transcriber{})
	var out bytes.Buffer
	console := output.NewConsoleOutput(output.ConsoleConfig{Writer: &out, ErrWriter: &out})
	l := app.NewListener(fx.Service, app.ListenerConfig{Paused: true}, console, discard())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := l.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fx.Service.Listening() {
		t.Error("paused listener started listening")
	}
	if !strings.Contains(out.String(), "Paused") {
		t.Errorf("console = %q", out.String())
	}
}
