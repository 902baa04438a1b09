package bus

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedServer runs a NATS server in-process so the detector can publish
// without an external broker.
type EmbeddedServer struct {
	ns  *server.Server
	log *slog.Logger
}

// StartEmbedded starts a NATS server on host:port. Port -1 picks a free port.
func StartEmbedded(host string, port int, log *slog.Logger) (*EmbeddedServer, error) {
	if log == nil {
		log = slog.Default()
	}
	ns, err := server.NewServer(&server.Options{
		Host:   host,
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedded NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS server failed to start within 5 seconds")
	}

	log.Info("embedded NATS server started", slog.String("url", ns.ClientURL()))
	return &EmbeddedServer{ns: ns, log: log}, nil
}

// ClientURL is the URL clients connect to
func (e *EmbeddedServer) ClientURL() string {
	return e.ns.ClientURL()
}

// Shutdown stops the server
func (e *EmbeddedServer) Shutdown() {
	if e == nil || e.ns == nil {
		return
	}
	e.ns.Shutdown()
	e.ns.WaitForShutdown()
	e.log.Info("embedded NATS server stopped")
}
