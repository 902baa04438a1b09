package feed

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/emmett/voxwake/internal/app"
	"github.com/emmett/voxwake/internal/app/apptest"
	"github.com/emmett/voxwake/internal/detect"
)

func newTestServer(t *testing.T, fx *apptest.Fixture, gatherer prometheus.Gatherer) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(fx.Service, gatherer, slog.New(slog.NewTextHandler(io.Discard, nil))).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func decodeStatus(t *testing.T, resp *http.Response) app.Status {
	t.Helper()
	defer resp.Body.Close()
	var st app.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return st
}

func TestListenEndpoints(t *testing.T) {
	fx := apptest.New(t, apptest.Transcriber{})
	srv := newTestServer(t, fx, nil)

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	if st := decodeStatus(t, resp); st.Listening {
		t.Error("listening before start")
	}

	resp, err = http.Post(srv.URL+"/api/listen/start", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d", resp.StatusCode)
	}
	if st := decodeStatus(t, resp); !st.Listening || st.State != "idle" {
		t.Errorf("after start: %+v", st)
	}

	resp, err = http.Post(srv.URL+"/api/listen/stop", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	if st := decodeStatus(t, resp); st.Listening {
		t.Error("listening after stop")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, apptest.New(t, apptest.Transcriber{}), nil)

	resp, err := http.Get(srv.URL + "/api/listen/start")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/listen/start = %d, want 405", resp.StatusCode)
	}
}

func TestTranscriptionsLimit(t *testing.T) {
	srv := newTestServer(t, apptest.New(t, apptest.Transcriber{}), nil)

	resp, err := http.Get(srv.URL + "/api/transcriptions?limit=abc")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit = %d, want 400", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/transcriptions")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("empty transcriptions = %s", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "voxwake_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	srv := newTestServer(t, apptest.New(t, apptest.Transcriber{}), reg)
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "voxwake_test_total 1") {
		t.Errorf("metrics output missing counter:\n%s", body)
	}
}

func TestWebSocketEvents(t *testing.T) {
	fx := apptest.New(t, apptest.Transcriber{Text: "set a timer"})
	srv := newTestServer(t, fx, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	var st app.Status
	if err := wsjson.Read(ctx, conn, &st); err != nil {
		t.Fatalf("read status: %v", err)
	}
	if st.Listening {
		t.Error("initial status listening")
	}

	if err := fx.Service.StartListening(ctx); err != nil {
		t.Fatal(err)
	}
	fx.Source.Utterance()

	for {
		var ev detect.Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			t.Fatalf("read event: %v", err)
		}
		if ev.Type != detect.EventTranscriptionReady {
			continue
		}
		if ev.Text != "set a timer" || ev.ID == "" {
			t.Errorf("event = %+v", ev)
		}
		return
	}
}
