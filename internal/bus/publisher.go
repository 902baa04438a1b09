// Package bus publishes detector events to NATS.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/emmett/voxwake/internal/detect"
)

// Config holds the NATS connection settings
type Config struct {
	URL            string
	SubjectPrefix  string
	ConnectTimeout time.Duration
}

// Publisher sends every event as JSON to "<prefix>.<event type>".
type Publisher struct {
	conn   *nats.Conn
	prefix string
	log    *slog.Logger
}

// Connect dials NATS
func Connect(ctx context.Context, cfg Config, log *slog.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("no NATS url configured")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 2 * time.Second
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "voxwake"
	}
	if log == nil {
		log = slog.Default()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("voxwake"),
		nats.Timeout(cfg.ConnectTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	log.Info("connected to NATS", slog.String("url", cfg.URL))
	return &Publisher{
		conn:   conn,
		prefix: strings.TrimSuffix(cfg.SubjectPrefix, "."),
		log:    log,
	}, nil
}

// Subject returns the subject an event type is published on
func (p *Publisher) Subject(t detect.EventType) string {
	return p.prefix + "." + string(t)
}

// Handle publishes one event
func (p *Publisher) Handle(_ context.Context, ev detect.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.conn.Publish(p.Subject(ev.Type), data); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Healthy reports whether the connection is up
func (p *Publisher) Healthy() bool {
	return p != nil && p.conn != nil && p.conn.Status() == nats.CONNECTED
}

// Conn exposes the underlying connection
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection
func (p *Publisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	p.log.Info("closing NATS connection")
	err := p.conn.Drain()
	p.conn.Close()
	return err
}
