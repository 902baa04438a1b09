// Package feed serves detector events over WebSocket and a small REST API.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/emmett/voxwake/internal/app"
	"github.com/emmett/voxwake/internal/detect"
	"github.com/emmett/voxwake/internal/observe"
)

// Server handles HTTP and WebSocket connections.
type Server struct {
	svc      *app.Service
	gatherer prometheus.Gatherer
	log      *slog.Logger
}

// New creates a server. gatherer may be nil to disable /metrics.
func New(svc *app.Service, gatherer prometheus.Gatherer, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{svc: svc, gatherer: gatherer, log: log}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/transcriptions", s.handleTranscriptions)
	mux.HandleFunc("POST /api/listen/start", s.handleListenStart)
	mux.HandleFunc("POST /api/listen/stop", s.handleListenStop)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	if s.gatherer != nil {
		mux.Handle("GET /metrics", observe.Handler(s.gatherer))
	}

	return corsMiddleware(mux)
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("HTTP server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	events, cancel := s.svc.Subscribe(64)
	defer cancel()

	// clients only listen; CloseRead handles control frames and cancels
	// ctx once the peer goes away
	ctx := conn.CloseRead(r.Context())
	s.log.Debug("websocket connected", "remote", r.RemoteAddr)

	if err := wsjson.Write(ctx, conn, s.svc.Status()); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Debug("websocket disconnected", "remote", r.RemoteAddr)
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, ev)
			cancelWrite()
			if err != nil {
				s.log.Debug("websocket write error", "error", err)
				return
			}
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Status())
}

func (s *Server) handleTranscriptions(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	events := s.svc.Recent(limit)
	if events == nil {
		events = []detect.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleListenStart(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.StartListening(context.WithoutCancel(r.Context())); err != nil {
		s.log.Error("start listening failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Status())
}

func (s *Server) handleListenStop(w http.ResponseWriter, _ *http.Request) {
	if err := s.svc.StopListening(); err != nil {
		s.log.Error("stop listening failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Status())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
