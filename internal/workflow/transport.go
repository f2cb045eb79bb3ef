package workflow

import (
	"context"

	"github.com/dennisjooo/moodlist/internal/api"
)

// Hooks is the callback contract shared by both status transports.
// Nil callbacks are skipped.
type Hooks struct {
	// OnStatus receives every parsed status payload.
	OnStatus func(status *api.StatusResponse)

	// OnError receives typed transport, server-reported, and terminal
	// reconnect errors. A server-reported error does not close the
	// connection; ErrReconnectExhausted does.
	OnError func(err error)

	// OnAwaitingInput fires when a status update declares the paused
	// editing sub-state.
	OnAwaitingInput func(status *api.StatusResponse)

	// OnReconnected fires when a stream reopens after one or more
	// failures. Messages may have been dropped while down, so the store
	// should re-fetch authoritative state.
	OnReconnected func()

	// OnFinished fires when the transport observes a terminal stage (or a
	// stream `complete` event) and will deliver no further updates.
	OnFinished func()
}

func (h Hooks) status(s *api.StatusResponse) {
	if h.OnStatus != nil {
		h.OnStatus(s)
	}
	if s != nil && s.AwaitingInput && h.OnAwaitingInput != nil {
		h.OnAwaitingInput(s)
	}
}

func (h Hooks) fail(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}

func (h Hooks) reconnected() {
	if h.OnReconnected != nil {
		h.OnReconnected()
	}
}

func (h Hooks) finished() {
	if h.OnFinished != nil {
		h.OnFinished()
	}
}

// StatusSource delivers status updates for one workflow session. Exactly one
// source is active per session at a time; Stop must be idempotent and must
// cancel any in-flight network operation.
type StatusSource interface {
	// Start begins delivering updates through the hooks until Stop is
	// called or the session reaches a terminal stage.
	Start(ctx context.Context) error

	// Stop tears the transport down. Safe to call multiple times; no
	// callback fires after Stop returns.
	Stop()
}
