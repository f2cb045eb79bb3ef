package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dennisjooo/moodlist/internal/api"
	"github.com/dennisjooo/moodlist/internal/shared"
)

const testDebounce = 30 * time.Millisecond

// editorServer is a workflow-service double tracking edit and results calls.
type editorServer struct {
	*httptest.Server
	editCalls   atomic.Int64
	resultCalls atomic.Int64
	rejectEdits atomic.Bool

	mu           sync.Mutex
	serverTracks []api.Track
}

func newEditorServer(t *testing.T) *editorServer {
	t.Helper()

	es := &editorServer{serverTracks: sampleTracks()}
	es.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/edit"):
			es.editCalls.Add(1)
			if es.rejectEdits.Load() {
				http.Error(w, "edit rejected", http.StatusUnprocessableEntity)
				return
			}
			w.WriteHeader(http.StatusOK)
		case strings.HasSuffix(r.URL.Path, "/results"):
			es.resultCalls.Add(1)
			es.mu.Lock()
			tracks := append([]api.Track(nil), es.serverTracks...)
			es.mu.Unlock()
			json.NewEncoder(w).Encode(api.ResultsResponse{Recommendations: tracks})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(es.Close)
	return es
}

func (es *editorServer) setTracks(tracks []api.Track) {
	es.mu.Lock()
	es.serverTracks = tracks
	es.mu.Unlock()
}

func newTestEditor(server *editorServer) (*Editor, *Store) {
	store := NewStore("s1")
	store.SetResults(&api.ResultsResponse{Recommendations: sampleTracks()})
	client := api.NewJobClient(server.URL, nil)
	return NewEditor(client, store, testDebounce, nil), store
}

func TestEditorOptimisticApply(t *testing.T) {
	server := newEditorServer(t)
	editor, store := newTestEditor(server)
	defer editor.Close()

	if err := editor.Reorder(context.Background(), "t3", 0); err != nil {
		t.Fatalf("reorder failed: %v", err)
	}

	// The local order changes before any reconciliation fetch lands.
	assertOrder(t, store, "t3", "t1", "t2")
	if got := server.resultCalls.Load(); got != 0 {
		t.Errorf("expected no results fetch before debounce, got %d", got)
	}
}

func TestEditorDebouncedReconciliation(t *testing.T) {
	t.Run("BurstCollapsesToOneFetch", func(t *testing.T) {
		server := newEditorServer(t)
		editor, _ := newTestEditor(server)
		defer editor.Close()

		ctx := context.Background()
		if err := editor.Reorder(ctx, "t3", 0); err != nil {
			t.Fatalf("reorder failed: %v", err)
		}
		if err := editor.Remove(ctx, "t2"); err != nil {
			t.Fatalf("remove failed: %v", err)
		}
		if err := editor.Reorder(ctx, "t1", 0); err != nil {
			t.Fatalf("reorder failed: %v", err)
		}

		time.Sleep(4 * testDebounce)

		if got := server.editCalls.Load(); got != 3 {
			t.Errorf("expected 3 edit submissions, got %d", got)
		}
		if got := server.resultCalls.Load(); got != 1 {
			t.Errorf("expected exactly 1 reconciliation fetch, got %d", got)
		}
	})

	t.Run("WindowRestartsPerEdit", func(t *testing.T) {
		server := newEditorServer(t)
		editor, _ := newTestEditor(server)
		defer editor.Close()

		ctx := context.Background()
		if err := editor.Reorder(ctx, "t3", 0); err != nil {
			t.Fatalf("reorder failed: %v", err)
		}
		// Second edit lands inside the window; the fetch must wait for the
		// window after the last edit, and still fire only once.
		time.Sleep(testDebounce / 2)
		if err := editor.Remove(ctx, "t2"); err != nil {
			t.Fatalf("remove failed: %v", err)
		}

		time.Sleep(testDebounce / 2)
		if got := server.resultCalls.Load(); got != 0 {
			t.Errorf("fetch fired before the restarted window closed")
		}

		time.Sleep(3 * testDebounce)
		if got := server.resultCalls.Load(); got != 1 {
			t.Errorf("expected exactly 1 reconciliation fetch, got %d", got)
		}
	})

	t.Run("ReconciliationOverwritesLocalOrder", func(t *testing.T) {
		server := newEditorServer(t)
		editor, store := newTestEditor(server)
		defer editor.Close()

		// The server disagrees with the optimistic order.
		server.setTracks([]api.Track{
			{TrackID: "t2", Name: "Second"},
			{TrackID: "t1", Name: "First"},
		})

		if err := editor.Remove(context.Background(), "t3"); err != nil {
			t.Fatalf("remove failed: %v", err)
		}
		time.Sleep(4 * testDebounce)

		assertOrder(t, store, "t2", "t1")
	})
}

func TestEditorRollback(t *testing.T) {
	server := newEditorServer(t)
	editor, store := newTestEditor(server)
	defer editor.Close()

	server.rejectEdits.Store(true)

	err := editor.Reorder(context.Background(), "t3", 0)
	if !errors.Is(err, shared.ErrEditFailed) {
		t.Fatalf("expected ErrEditFailed, got %v", err)
	}

	// The pre-mutation order is restored.
	assertOrder(t, store, "t1", "t2", "t3")

	time.Sleep(4 * testDebounce)
	if got := server.resultCalls.Load(); got != 0 {
		t.Errorf("rejected edit must not schedule reconciliation, got %d fetches", got)
	}
}

func TestEditorAdd(t *testing.T) {
	t.Run("FillsDefaults", func(t *testing.T) {
		server := newEditorServer(t)
		editor, store := newTestEditor(server)
		defer editor.Close()

		err := editor.Add(context.Background(), "spotify:track:xyz", api.Track{Name: "New One"})
		if err != nil {
			t.Fatalf("add failed: %v", err)
		}

		tracks := store.Recommendations()
		added := tracks[len(tracks)-1]
		if added.TrackID == "" {
			t.Error("expected generated track id")
		}
		if added.Confidence != defaultAddConfidence {
			t.Errorf("expected default confidence %v, got %v", defaultAddConfidence, added.Confidence)
		}
		if added.Source != "user_added" {
			t.Errorf("expected source user_added, got %q", added.Source)
		}
	})

	t.Run("RequiresProviderURI", func(t *testing.T) {
		server := newEditorServer(t)
		editor, _ := newTestEditor(server)
		defer editor.Close()

		err := editor.Add(context.Background(), "", api.Track{Name: "nope"})
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestEditorFlush(t *testing.T) {
	server := newEditorServer(t)
	editor, _ := newTestEditor(server)
	defer editor.Close()

	if err := editor.Reorder(context.Background(), "t3", 0); err != nil {
		t.Fatalf("reorder failed: %v", err)
	}

	editor.Flush()
	if got := server.resultCalls.Load(); got != 1 {
		t.Errorf("expected immediate reconciliation on flush, got %d fetches", got)
	}

	// Nothing pending: flush is a no-op.
	editor.Flush()
	if got := server.resultCalls.Load(); got != 1 {
		t.Errorf("expected no extra fetch from idle flush, got %d", got)
	}
}

func TestEditorClose(t *testing.T) {
	server := newEditorServer(t)
	editor, _ := newTestEditor(server)

	if err := editor.Reorder(context.Background(), "t3", 0); err != nil {
		t.Fatalf("reorder failed: %v", err)
	}

	editor.Close()
	editor.Close()

	time.Sleep(4 * testDebounce)
	if got := server.resultCalls.Load(); got != 0 {
		t.Errorf("close must cancel pending reconciliation, got %d fetches", got)
	}
}
