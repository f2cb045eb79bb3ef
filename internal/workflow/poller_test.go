package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dennisjooo/moodlist/internal/api"
	"github.com/dennisjooo/moodlist/internal/shared"
)

const pollTestInterval = 5 * time.Millisecond

// newPollServer serves a scripted sequence of status responses, repeating
// the last entry once the script runs out. A nil entry produces a 404.
func newPollServer(t *testing.T, script []*api.StatusResponse) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i := calls.Add(1) - 1
		if int(i) >= len(script) {
			i = int64(len(script) - 1)
		}
		status := script[i]
		if status == nil {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(status)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func newTestPoller(server *httptest.Server, hooks Hooks) *Poller {
	return NewPoller(api.NewJobClient(server.URL, nil), "s1", hooks, pollTestInterval, pollTestInterval, 1000, nil)
}

func TestPollerDeliversUntilTerminal(t *testing.T) {
	server, calls := newPollServer(t, []*api.StatusResponse{
		{SessionID: "s1", CurrentStep: api.StageGenerating},
		{SessionID: "s1", CurrentStep: api.StageCreating},
		{SessionID: "s1", CurrentStep: api.StageCompleted},
	})

	recorder := &hookRecorder{}
	poller := newTestPoller(server, recorder.hooks())
	defer poller.Stop()

	if err := poller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		_, _, _, finishes := recorder.snapshot()
		return finishes == 1
	})

	stages, errs, _, _ := recorder.snapshot()
	if len(stages) != 3 || stages[2] != api.StageCompleted {
		t.Errorf("unexpected stage sequence: %v", stages)
	}
	if len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}

	// Terminal stage stops the loop; no further polls may land.
	settled := calls.Load()
	time.Sleep(20 * pollTestInterval)
	if got := calls.Load(); got != settled {
		t.Errorf("poller kept polling after terminal stage: %d -> %d", settled, got)
	}
}

func TestPollerSessionNotFound(t *testing.T) {
	server, _ := newPollServer(t, []*api.StatusResponse{nil})

	recorder := &hookRecorder{}
	poller := newTestPoller(server, recorder.hooks())
	defer poller.Stop()

	if err := poller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		_, errs, _, _ := recorder.snapshot()
		return len(errs) > 0
	})

	_, errs, _, finishes := recorder.snapshot()
	if !errors.Is(errs[0], shared.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", errs[0])
	}
	if finishes != 0 {
		t.Errorf("missing session must not report a finish")
	}
}

func TestPollerStop(t *testing.T) {
	server, calls := newPollServer(t, []*api.StatusResponse{
		{SessionID: "s1", CurrentStep: api.StageGenerating},
	})

	recorder := &hookRecorder{}
	poller := newTestPoller(server, recorder.hooks())

	if err := poller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return calls.Load() >= 2 })

	poller.Stop()
	settled := calls.Load()
	time.Sleep(20 * pollTestInterval)
	if got := calls.Load(); got > settled+1 {
		t.Errorf("poller kept polling after stop: %d -> %d", settled, got)
	}
}
