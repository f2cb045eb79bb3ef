package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dennisjooo/moodlist/internal/api"
	"github.com/dennisjooo/moodlist/internal/shared"
)

var testStreamBackoff = Backoff{Base: 2 * time.Millisecond, Cap: 10 * time.Millisecond}

// hookRecorder is a thread-safe [Hooks] implementation for assertions.
type hookRecorder struct {
	mu         sync.Mutex
	stages     []api.Stage
	errs       []error
	reconnects int
	finishes   int
}

func (h *hookRecorder) hooks() Hooks {
	return Hooks{
		OnStatus: func(status *api.StatusResponse) {
			h.mu.Lock()
			h.stages = append(h.stages, status.CurrentStep)
			h.mu.Unlock()
		},
		OnError: func(err error) {
			h.mu.Lock()
			h.errs = append(h.errs, err)
			h.mu.Unlock()
		},
		OnReconnected: func() {
			h.mu.Lock()
			h.reconnects++
			h.mu.Unlock()
		},
		OnFinished: func() {
			h.mu.Lock()
			h.finishes++
			h.mu.Unlock()
		},
	}
}

func (h *hookRecorder) snapshot() (stages []api.Stage, errs []error, reconnects, finishes int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]api.Stage(nil), h.stages...), append([]error(nil), h.errs...), h.reconnects, h.finishes
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func writeSSE(w io.Writer, f http.Flusher, event string, payload any) {
	data, _ := json.Marshal(payload)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	f.Flush()
}

// newStreamServer runs handler per connection, passing the 1-based
// connection ordinal.
func newStreamServer(t *testing.T, handler func(conn int64, w http.ResponseWriter, f http.Flusher)) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	var conns atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		if !ok {
			t.Error("response writer is not a flusher")
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		f.Flush()
		handler(conns.Add(1), w, f)
	}))
	t.Cleanup(server.Close)
	return server, &conns
}

func TestStreamerDeliversStatusAndFinishes(t *testing.T) {
	server, _ := newStreamServer(t, func(conn int64, w http.ResponseWriter, f http.Flusher) {
		writeSSE(w, f, "status", api.StatusResponse{SessionID: "s1", CurrentStep: api.StageAnalyzingMood})
		writeSSE(w, f, "status", api.StatusResponse{SessionID: "s1", CurrentStep: api.StageGenerating})
		writeSSE(w, f, "complete", api.StatusResponse{SessionID: "s1", CurrentStep: api.StageCompleted})
	})

	recorder := &hookRecorder{}
	streamer := NewStreamer(api.NewJobClient(server.URL, nil), "s1", recorder.hooks(), testStreamBackoff, 3, nil)
	defer streamer.Stop()

	if err := streamer.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		_, _, _, finishes := recorder.snapshot()
		return finishes == 1
	})

	stages, errs, reconnects, _ := recorder.snapshot()
	if len(stages) != 3 || stages[2] != api.StageCompleted {
		t.Errorf("unexpected stage sequence: %v", stages)
	}
	if len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
	if reconnects != 0 {
		t.Errorf("expected no reconnects, got %d", reconnects)
	}
}

func TestStreamerReconnectsAfterDrop(t *testing.T) {
	server, conns := newStreamServer(t, func(conn int64, w http.ResponseWriter, f http.Flusher) {
		if conn == 1 {
			// Deliver one update, then drop the connection mid-run.
			writeSSE(w, f, "status", api.StatusResponse{SessionID: "s1", CurrentStep: api.StageGenerating})
			return
		}
		writeSSE(w, f, "complete", api.StatusResponse{SessionID: "s1", CurrentStep: api.StageCompleted})
	})

	recorder := &hookRecorder{}
	streamer := NewStreamer(api.NewJobClient(server.URL, nil), "s1", recorder.hooks(), testStreamBackoff, 5, nil)
	defer streamer.Stop()

	if err := streamer.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		_, _, _, finishes := recorder.snapshot()
		return finishes == 1
	})

	_, errs, reconnects, _ := recorder.snapshot()
	if reconnects != 1 {
		t.Errorf("expected 1 reconnect signal, got %d", reconnects)
	}
	// A drop that recovers is handled locally, never surfaced.
	if len(errs) != 0 {
		t.Errorf("expected no surfaced errors, got %v", errs)
	}
	if got := conns.Load(); got != 2 {
		t.Errorf("expected 2 connections, got %d", got)
	}
}

func TestStreamerExhaustsReconnects(t *testing.T) {
	const maxReconnects = 3

	server, conns := newStreamServer(t, func(conn int64, w http.ResponseWriter, f http.Flusher) {
		// Every connection drops immediately.
	})

	recorder := &hookRecorder{}
	streamer := NewStreamer(api.NewJobClient(server.URL, nil), "s1", recorder.hooks(), testStreamBackoff, maxReconnects, nil)
	defer streamer.Stop()

	if err := streamer.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		_, errs, _, _ := recorder.snapshot()
		return len(errs) > 0
	})

	_, errs, _, finishes := recorder.snapshot()
	if len(errs) != 1 || !errors.Is(errs[0], shared.ErrReconnectExhausted) {
		t.Fatalf("expected single ErrReconnectExhausted, got %v", errs)
	}
	if finishes != 0 {
		t.Errorf("exhaustion must not report a finish, got %d", finishes)
	}

	// No further attempt may follow the terminal failure.
	attempts := conns.Load()
	if attempts != maxReconnects {
		t.Errorf("expected exactly %d connection attempts, got %d", maxReconnects, attempts)
	}
	time.Sleep(10 * testStreamBackoff.Cap)
	if got := conns.Load(); got != attempts {
		t.Errorf("connection attempted after exhaustion: %d -> %d", attempts, got)
	}
}

func TestStreamerStopSuppressesRetry(t *testing.T) {
	server, conns := newStreamServer(t, func(conn int64, w http.ResponseWriter, f http.Flusher) {
		// Drop immediately so a retry gets scheduled.
	})

	recorder := &hookRecorder{}
	backoff := Backoff{Base: 250 * time.Millisecond, Cap: time.Second}
	streamer := NewStreamer(api.NewJobClient(server.URL, nil), "s1", recorder.hooks(), backoff, 5, nil)

	if err := streamer.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return conns.Load() >= 1 })
	streamer.Stop()

	time.Sleep(500 * time.Millisecond)
	if got := conns.Load(); got != 1 {
		t.Errorf("stop must cancel the pending retry, got %d connections", got)
	}

	_, errs, _, _ := recorder.snapshot()
	if len(errs) != 0 {
		t.Errorf("expected no surfaced errors after stop, got %v", errs)
	}
}

func TestStreamerServerReportedError(t *testing.T) {
	server, _ := newStreamServer(t, func(conn int64, w http.ResponseWriter, f http.Flusher) {
		writeSSE(w, f, "error", map[string]string{"error": "llm provider unavailable"})
		writeSSE(w, f, "complete", api.StatusResponse{SessionID: "s1", CurrentStep: api.StageFailed})
	})

	recorder := &hookRecorder{}
	streamer := NewStreamer(api.NewJobClient(server.URL, nil), "s1", recorder.hooks(), testStreamBackoff, 3, nil)
	defer streamer.Stop()

	if err := streamer.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		_, _, _, finishes := recorder.snapshot()
		return finishes == 1
	})

	_, errs, _, _ := recorder.snapshot()
	if len(errs) != 1 || !errors.Is(errs[0], shared.ErrServerReported) {
		t.Fatalf("expected ErrServerReported, got %v", errs)
	}
}

func TestStreamerRestartReplacesConnection(t *testing.T) {
	release := make(chan struct{})
	server, conns := newStreamServer(t, func(conn int64, w http.ResponseWriter, f http.Flusher) {
		writeSSE(w, f, "status", api.StatusResponse{SessionID: "s1", CurrentStep: api.StageGenerating})
		if conn == 1 {
			<-release // hold the first connection open
			return
		}
		writeSSE(w, f, "complete", api.StatusResponse{SessionID: "s1", CurrentStep: api.StageCompleted})
	})
	defer close(release)

	recorder := &hookRecorder{}
	streamer := NewStreamer(api.NewJobClient(server.URL, nil), "s1", recorder.hooks(), testStreamBackoff, 3, nil)
	defer streamer.Stop()

	ctx := context.Background()
	if err := streamer.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return conns.Load() == 1 })

	// Restarting while connected tears the old stream down first; only one
	// connection is live per session at any time.
	if err := streamer.Start(ctx); err != nil {
		t.Fatalf("restart failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		_, _, _, finishes := recorder.snapshot()
		return finishes == 1
	})
	if got := conns.Load(); got != 2 {
		t.Errorf("expected 2 connections across restart, got %d", got)
	}
}
