package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dennisjooo/moodlist/internal/api"
	"github.com/dennisjooo/moodlist/internal/shared"
)

// DefaultEditDebounce is the window within which a burst of edits collapses
// into a single reconciliation fetch.
const DefaultEditDebounce = 100 * time.Millisecond

// defaultAddConfidence is assumed for optimistic adds until the
// reconciliation fetch reports the server's score.
const defaultAddConfidence = 0.7

// optimistic captures the previous value of an edit for rollback. Every edit
// takes its own snapshot rather than sharing a mutable reference, so a late
// rollback cannot be corrupted by edits issued after it.
type optimistic[T any] struct {
	prev    T
	restore func(T)
}

func capture[T any](snapshot T, restore func(T)) optimistic[T] {
	return optimistic[T]{prev: snapshot, restore: restore}
}

func (o optimistic[T]) rollback() {
	o.restore(o.prev)
}

// Editor applies track mutations optimistically: the local order changes
// synchronously, the edit is sent to the workflow service, and a single
// debounced reconciliation fetch per burst overwrites local state with the
// server's authoritative results. A failed edit rolls the local order back
// to its pre-mutation snapshot before the error is surfaced.
type Editor struct {
	client   *api.JobClient
	store    *Store
	debounce time.Duration
	logger   *log.Logger

	mu             sync.Mutex
	reconcileTimer *time.Timer
	closed         bool
}

// NewEditor creates an edit coordinator bound to one session store.
func NewEditor(client *api.JobClient, store *Store, debounce time.Duration, logger *log.Logger) *Editor {
	if debounce <= 0 {
		debounce = DefaultEditDebounce
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Editor{
		client:   client,
		store:    store,
		debounce: debounce,
		logger:   logger.With("component", "editor"),
	}
}

// Reorder moves a track to a new position.
func (e *Editor) Reorder(ctx context.Context, trackID string, newPosition int) error {
	op := capture(e.store.Recommendations(), e.store.RestoreRecommendations)
	if err := e.store.ReorderTrack(trackID, newPosition); err != nil {
		return err
	}

	edit := api.EditRequest{
		EditType:    api.EditReorder,
		TrackID:     trackID,
		NewPosition: newPosition,
	}
	return e.submit(ctx, edit, op)
}

// Remove deletes a track from the result set.
func (e *Editor) Remove(ctx context.Context, trackID string) error {
	op := capture(e.store.Recommendations(), e.store.RestoreRecommendations)
	if err := e.store.RemoveTrack(trackID); err != nil {
		return err
	}

	edit := api.EditRequest{
		EditType: api.EditRemove,
		TrackID:  trackID,
	}
	return e.submit(ctx, edit, op)
}

// Add appends a track by provider URI. The optimistic entry assumes a
// default confidence score; the reconciliation fetch picks up the server's
// revision.
func (e *Editor) Add(ctx context.Context, providerURI string, info api.Track) error {
	if providerURI == "" {
		return fmt.Errorf("%w: provider URI", shared.ErrMissingArgument)
	}

	info.ProviderURI = providerURI
	if info.TrackID == "" {
		info.TrackID = shared.GenerateID()
	}
	if info.Confidence == 0 {
		info.Confidence = defaultAddConfidence
	}
	if info.Source == "" {
		info.Source = "user_added"
	}

	op := capture(e.store.Recommendations(), e.store.RestoreRecommendations)
	e.store.AddTrack(info)

	edit := api.EditRequest{
		EditType:    api.EditAdd,
		ProviderURI: providerURI,
		TrackInfo:   &info,
	}
	return e.submit(ctx, edit, op)
}

// submit sends the edit, rolling back the optimistic mutation on failure and
// scheduling reconciliation on success.
func (e *Editor) submit(ctx context.Context, edit api.EditRequest, op optimistic[[]api.Track]) error {
	sessionID := e.store.Snapshot().SessionID

	if err := e.client.SubmitEdit(ctx, sessionID, edit); err != nil {
		op.rollback()
		e.logger.Warn("edit rejected, rolled back", "type", edit.EditType, "err", err)
		return err
	}

	e.scheduleReconcile()
	return nil
}

// scheduleReconcile arms (or restarts) the single per-session debounce
// timer. However many edits land within the window, exactly one fetch fires,
// after the window closes with no further edits.
func (e *Editor) scheduleReconcile() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	if e.reconcileTimer != nil {
		e.reconcileTimer.Reset(e.debounce)
		return
	}
	e.reconcileTimer = time.AfterFunc(e.debounce, func() {
		e.mu.Lock()
		e.reconcileTimer = nil
		closed := e.closed
		e.mu.Unlock()
		if closed {
			return
		}
		e.reconcile()
	})
}

// reconcile performs the authoritative fetch that resolves all edits in the
// burst, including any drift introduced by optimistic approximations.
func (e *Editor) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sessionID := e.store.Snapshot().SessionID
	results, err := e.client.Results(ctx, sessionID)
	if err != nil {
		e.logger.Warn("reconciliation fetch failed", "err", err)
		return
	}

	e.store.SetResults(results)
}

// Flush runs any pending reconciliation immediately. Used by one-shot
// callers that cannot wait out the debounce window.
func (e *Editor) Flush() {
	e.mu.Lock()
	pending := e.reconcileTimer != nil
	if pending {
		e.reconcileTimer.Stop()
		e.reconcileTimer = nil
	}
	e.mu.Unlock()

	if pending {
		e.reconcile()
	}
}

// Close cancels any pending reconciliation timer. Idempotent.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.reconcileTimer != nil {
		e.reconcileTimer.Stop()
		e.reconcileTimer = nil
	}
}
