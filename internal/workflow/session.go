package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dennisjooo/moodlist/internal/api"
	"github.com/dennisjooo/moodlist/internal/bus"
	"github.com/dennisjooo/moodlist/internal/shared"
)

// finalizeTimeout bounds the authoritative fetches a transport callback
// triggers after reconnect or terminal stage.
const finalizeTimeout = 15 * time.Second

// Options configures a workflow session.
type Options struct {
	Client        *api.JobClient
	Bus           *bus.Dispatcher
	Logger        *log.Logger
	StreamEnabled bool
	AllowPolling  bool
	Backoff       Backoff
	MaxReconnects int
	EditDebounce  time.Duration
	PollActive    time.Duration
	PollAwaiting  time.Duration
	PollRate      int
}

// Session owns the client-side lifecycle of one workflow run: the state
// store, the single active transport, and the optimistic edit coordinator.
type Session struct {
	client *api.JobClient
	store  *Store
	editor *Editor
	bus    *bus.Dispatcher
	logger *log.Logger
	opts   Options

	mu        sync.Mutex
	sessionID string
	transport StatusSource
}

// NewSession creates an unbound session. Bind it by calling [Session.Start]
// for a new workflow run or [Session.Load] for an existing session id.
func NewSession(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Bus == nil {
		opts.Bus = bus.NewDispatcher()
	}

	store := NewStore("")
	return &Session{
		client: opts.Client,
		store:  store,
		editor: NewEditor(opts.Client, store, opts.EditDebounce, opts.Logger),
		bus:    opts.Bus,
		logger: opts.Logger,
		opts:   opts,
	}
}

// Store exposes the session state for read-only subscription.
func (s *Session) Store() *Store {
	return s.store
}

// Editor exposes the optimistic edit coordinator.
func (s *Session) Editor() *Editor {
	return s.editor
}

// SessionID returns the bound session id, empty before Start/Load.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Start begins a new workflow run for the given mood prompt and binds this
// session to the returned id.
func (s *Session) Start(ctx context.Context, moodPrompt, genreHint string) (*api.StartResponse, error) {
	started, err := s.client.Start(ctx, moodPrompt, genreHint)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessionID = started.SessionID
	s.mu.Unlock()

	s.store.ApplyStatus(&api.StatusResponse{
		SessionID:   started.SessionID,
		Status:      started.Status,
		CurrentStep: api.StagePending,
		MoodPrompt:  moodPrompt,
	})

	s.bus.Publish(bus.TopicWorkflowStarted, bus.WorkflowStarted{
		SessionID:  started.SessionID,
		MoodPrompt: moodPrompt,
	})

	return started, nil
}

// Load binds this session to an existing id and fetches its authoritative
// state. For a terminal or awaiting-input session the result set is fetched
// as well; a terminal session with zero results is surfaced as an error
// state, not retried.
func (s *Session) Load(ctx context.Context, sessionID string) error {
	status, err := s.client.Status(ctx, sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.sessionID = sessionID
	s.mu.Unlock()

	s.store.ApplyStatus(status)

	if status.CurrentStep.Terminal() || status.AwaitingInput {
		return s.loadResults(ctx, status.CurrentStep)
	}
	return nil
}

// loadResults fetches the current result set and applies the
// terminal-with-no-results rule.
func (s *Session) loadResults(ctx context.Context, stage api.Stage) error {
	results, err := s.client.Results(ctx, s.SessionID())
	if err != nil {
		if stage.Terminal() {
			s.store.SetError(shared.ErrTerminalNoResults.Error())
			return fmt.Errorf("%w: %v", shared.ErrTerminalNoResults, err)
		}
		return err
	}

	if stage == api.StageCompleted && len(results.Recommendations) == 0 {
		s.store.SetError(shared.ErrTerminalNoResults.Error())
		return shared.ErrTerminalNoResults
	}

	s.store.SetResults(results)
	return nil
}

// Sync starts status synchronization for the bound session, selecting
// exactly one transport: the live stream when available, the poller when
// permitted, otherwise a capability error. A session already in a terminal
// stage gets no transport at all.
func (s *Session) Sync(ctx context.Context) error {
	sessionID := s.SessionID()
	if sessionID == "" {
		return fmt.Errorf("%w: session not bound", shared.ErrInvalidInput)
	}

	if s.store.Snapshot().Stage.Terminal() {
		return nil
	}

	s.mu.Lock()
	if s.transport != nil {
		s.transport.Stop()
		s.transport = nil
	}

	var transport StatusSource
	switch {
	case s.opts.StreamEnabled:
		transport = NewStreamer(s.client, sessionID, s.hooks(), s.opts.Backoff, s.opts.MaxReconnects, s.logger)
	case s.opts.AllowPolling:
		transport = NewPoller(s.client, sessionID, s.hooks(), s.opts.PollActive, s.opts.PollAwaiting, s.opts.PollRate, s.logger)
	default:
		s.mu.Unlock()
		return shared.ErrStreamUnsupported
	}
	s.transport = transport
	s.mu.Unlock()

	return transport.Start(ctx)
}

// StopSync tears down whichever transport is active and cancels pending
// edit reconciliation. Idempotent.
func (s *Session) StopSync() {
	s.mu.Lock()
	transport := s.transport
	s.transport = nil
	s.mu.Unlock()

	if transport != nil {
		transport.Stop()
	}
}

// Cancel stops the workflow server-side, tears down synchronization, and
// resets local state.
func (s *Session) Cancel(ctx context.Context) error {
	sessionID := s.SessionID()
	if sessionID == "" {
		return fmt.Errorf("%w: session not bound", shared.ErrInvalidInput)
	}

	err := s.client.Cancel(ctx, sessionID)
	s.StopSync()
	s.editor.Close()
	s.store.Reset()
	return err
}

// hooks adapts transport callbacks onto the store and the event bus.
func (s *Session) hooks() Hooks {
	return Hooks{
		OnStatus: func(status *api.StatusResponse) {
			s.store.ApplyStatus(status)
		},
		OnAwaitingInput: func(status *api.StatusResponse) {
			// Edits need the in-progress result set; fetch it once.
			if !s.store.Snapshot().Loaded {
				go s.refreshResults()
			}
		},
		OnError: func(err error) {
			s.store.SetError(err.Error())
		},
		OnReconnected: func() {
			// Messages may have been dropped while the stream was
			// down; re-fetch the authoritative status.
			go s.refreshStatus()
		},
		OnFinished: func() {
			go s.finalize()
		},
	}
}

// refreshStatus fetches and applies the authoritative status after a
// reconnect.
func (s *Session) refreshStatus() {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	status, err := s.client.Status(ctx, s.SessionID())
	if err != nil {
		s.logger.Warn("post-reconnect status fetch failed", "err", err)
		return
	}
	s.store.ApplyStatus(status)
}

// refreshResults fetches the current result set outside the terminal path.
func (s *Session) refreshResults() {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	results, err := s.client.Results(ctx, s.SessionID())
	if err != nil {
		s.logger.Warn("results fetch failed", "err", err)
		return
	}
	s.store.SetResults(results)
}

// finalize runs when the transport observes a terminal stage: fetch final
// results, apply the zero-results rule, publish the finished event, and
// clear the transport reference.
func (s *Session) finalize() {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	stage := s.store.Snapshot().Stage
	if err := s.loadResults(ctx, stage); err != nil {
		s.logger.Error("final results fetch failed", "stage", stage, "err", err)
	}

	s.mu.Lock()
	s.transport = nil
	s.mu.Unlock()

	s.bus.Publish(bus.TopicWorkflowFinished, bus.WorkflowFinished{
		SessionID: s.SessionID(),
		Stage:     stage,
	})
}
