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

// DefaultMaxReconnects bounds consecutive stream failures before the
// streamer surfaces a terminal error and stops.
const DefaultMaxReconnects = 5

// Streamer delivers status updates over the live SSE stream, reconnecting on
// transport failure with capped exponential backoff.
//
// At most one connection is open per session id at any time; calling Start on
// a running streamer tears the old connection down synchronously first.
type Streamer struct {
	client        *api.JobClient
	sessionID     string
	hooks         Hooks
	backoff       Backoff
	maxReconnects int
	logger        *log.Logger

	mu         sync.Mutex
	active     bool
	attempts   int
	gen        uint64
	ctx        context.Context
	cancelConn func()
	retryTimer *time.Timer
}

// NewStreamer creates a stream transport for one session.
func NewStreamer(client *api.JobClient, sessionID string, hooks Hooks, backoff Backoff, maxReconnects int, logger *log.Logger) *Streamer {
	if maxReconnects <= 0 {
		maxReconnects = DefaultMaxReconnects
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Streamer{
		client:        client,
		sessionID:     sessionID,
		hooks:         hooks,
		backoff:       backoff,
		maxReconnects: maxReconnects,
		logger:        logger.With("transport", "stream", "session", sessionID),
	}
}

// Start opens the stream asynchronously. Connection failures route through
// the reconnect policy rather than the return value.
func (s *Streamer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.active {
		s.stopLocked()
	}
	s.active = true
	s.attempts = 0
	s.gen++
	gen := s.gen
	s.ctx = ctx
	s.mu.Unlock()

	go s.connect(gen)
	return nil
}

// Stop tears the stream down and suppresses any pending or concurrent
// reconnect attempt. Idempotent.
func (s *Streamer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// stopLocked flips the active flag before cancelling the connection so a
// failure handler firing concurrently cannot schedule a reconnect.
func (s *Streamer) stopLocked() {
	s.active = false
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	if s.cancelConn != nil {
		s.cancelConn()
		s.cancelConn = nil
	}
}

// connect opens one stream connection and consumes it until it ends. gen
// identifies the Start call this connection belongs to; a restart bumps the
// generation so handlers of the torn-down connection become no-ops.
func (s *Streamer) connect(gen uint64) {
	s.mu.Lock()
	if !s.active || gen != s.gen {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.mu.Unlock()

	events, cancel, err := s.client.Stream(ctx, s.sessionID)
	if err != nil {
		s.logger.Warn("stream open failed", "err", err)
		s.handleFailure(gen)
		return
	}

	s.mu.Lock()
	if !s.active || gen != s.gen {
		s.mu.Unlock()
		cancel()
		return
	}
	s.cancelConn = cancel
	wasRetry := s.attempts > 0
	s.attempts = 0
	s.mu.Unlock()

	if wasRetry {
		// The stream may have silently dropped messages while down; the
		// subscriber re-fetches authoritative state on this signal.
		s.logger.Info("stream reconnected")
		s.hooks.reconnected()
	}

	for event := range events {
		switch event.Type {
		case api.StreamStatus:
			s.hooks.status(event.Status)
		case api.StreamComplete:
			if event.Status != nil {
				s.hooks.status(event.Status)
			}
			s.finish(gen)
			return
		case api.StreamError:
			// Server-reported errors do not close the connection.
			s.hooks.fail(fmt.Errorf("%w: %s", shared.ErrServerReported, event.Error))
		}
	}

	// Channel closed without a complete event: connection-level failure.
	s.handleFailure(gen)
}

// finish closes the stream after a complete event. No reconnects follow.
func (s *Streamer) finish(gen uint64) {
	s.mu.Lock()
	wasActive := s.active && gen == s.gen
	if wasActive {
		s.stopLocked()
	}
	s.mu.Unlock()

	if wasActive {
		s.hooks.finished()
	}
}

// handleFailure applies the reconnect policy after a transport-level failure.
func (s *Streamer) handleFailure(gen uint64) {
	s.mu.Lock()
	if !s.active || gen != s.gen {
		// Explicit stop or restart suppresses retries even if a failure
		// callback fires concurrently.
		s.mu.Unlock()
		return
	}
	s.cancelConn = nil
	s.attempts++
	attempt := s.attempts

	if attempt >= s.maxReconnects {
		s.active = false
		s.mu.Unlock()
		s.logger.Error("stream reconnects exhausted", "attempts", attempt)
		s.hooks.fail(fmt.Errorf("%w: after %d attempts", shared.ErrReconnectExhausted, attempt))
		return
	}

	delay := s.backoff.Delay(attempt)
	s.retryTimer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		active := s.active && gen == s.gen
		s.mu.Unlock()
		if active {
			s.connect(gen)
		}
	})
	s.mu.Unlock()

	// Recovered locally; only exhaustion is surfaced to the subscriber.
	s.logger.Warn("stream disconnected, retrying", "attempt", attempt, "delay", delay)
}
