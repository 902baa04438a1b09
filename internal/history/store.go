// Package history persists finished transcriptions in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/emmett/voxwake/internal/detect"
)

// Entry is one stored transcription
type Entry struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Error     string    `json:"error,omitempty"`
	Samples   int       `json:"samples"`
	CreatedAt time.Time `json:"created_at"`
}

// Store wraps the SQLite transcription table
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open creates or opens the database at path
func Open(ctx context.Context, path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, log: log}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS transcriptions (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    text TEXT NOT NULL,
    error TEXT,
    samples INTEGER NOT NULL,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transcriptions_created ON transcriptions(created_at);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Append stores one entry
func (s *Store) Append(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcriptions(id, text, error, samples, created_at) VALUES(?, ?, ?, ?, ?)`,
		e.ID, e.Text, e.Error, e.Samples, e.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// Handle stores transcription outcomes and ignores other events
func (s *Store) Handle(ctx context.Context, ev detect.Event) error {
	switch ev.Type {
	case detect.EventTranscriptionReady, detect.EventTranscriptionFailed:
	default:
		return nil
	}
	return s.Append(ctx, Entry{
		ID:        ev.ID,
		Text:      ev.Text,
		Error:     ev.Error,
		Samples:   len(ev.Audio),
		CreatedAt: ev.Timestamp,
	})
}

// Recent returns up to limit entries, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, COALESCE(error, ''), samples, created_at FROM transcriptions ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			created string
		)
		if err := rows.Scan(&e.ID, &e.Text, &e.Error, &e.Samples, &created); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", created, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune keeps the newest keep entries
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM transcriptions WHERE seq NOT IN (SELECT seq FROM transcriptions ORDER BY seq DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close releases underlying resources
func (s *Store) Close() error {
	return s.db.Close()
}
