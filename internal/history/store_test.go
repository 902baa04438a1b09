package history

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/emmett/voxwake/internal/detect"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "history.db"), newLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHandleStoresTranscriptions(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 123, time.UTC)

	evs := []detect.Event{
		{ID: "a", Type: detect.EventKeywordDetected, Timestamp: at},
		{ID: "b", Type: detect.EventTranscriptionReady, Text: "first", Audio: make([]int16, 10), Timestamp: at},
		{ID: "c", Type: detect.EventTranscriptionFailed, Error: "boom", Timestamp: at.Add(time.Second)},
		{ID: "d", Type: detect.EventTranscriptionReady, Text: "second", Timestamp: at.Add(2 * time.Second)},
	}
	for _, ev := range evs {
		if err := s.Handle(ctx, ev); err != nil {
			t.Fatalf("Handle(%s): %v", ev.Type, err)
		}
	}

	entries, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	if entries[0].ID != "d" || entries[1].Error != "boom" || entries[2].Samples != 10 {
		t.Errorf("entries = %+v", entries)
	}
	if !entries[2].CreatedAt.Equal(at) {
		t.Errorf("created_at = %v, want %v", entries[2].CreatedAt, at)
	}
}

func TestRecentLimitAndPrune(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	for _, id := range []string{"1", "2", "3", "4"} {
		if err := s.Append(ctx, Entry{ID: id, Text: "t" + id}); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := s.Recent(ctx, 2)
	if err != nil || len(entries) != 2 || entries[0].ID != "4" || entries[1].ID != "3" {
		t.Fatalf("Recent(2) = %+v, %v", entries, err)
	}

	n, err := s.Prune(ctx, 1)
	if err != nil || n != 3 {
		t.Fatalf("Prune = %d, %v", n, err)
	}
	entries, _ = s.Recent(ctx, 10)
	if len(entries) != 1 || entries[0].ID != "4" {
		t.Fatalf("after prune = %+v", entries)
	}
}

func TestAppendDuplicateID(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	if err := s.Append(ctx, Entry{ID: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, Entry{ID: "x"}); err == nil {
		t.Fatal("expected unique constraint error")
	}
}
