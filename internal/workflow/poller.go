package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dennisjooo/moodlist/internal/api"
	"github.com/dennisjooo/moodlist/internal/shared"
	"golang.org/x/time/rate"
)

// Default polling intervals. The poller slows down while the session is
// paused for edits; there is no urgency to poll while awaiting input.
const (
	DefaultPollActive   = 2 * time.Second
	DefaultPollAwaiting = 10 * time.Second
)

// Poller is the fallback [StatusSource] used when the live stream is
// unsupported in the runtime or explicitly disabled. It issues periodic
// status requests, forwarding results through the same hook contract as the
// streamer.
type Poller struct {
	client           *api.JobClient
	sessionID        string
	hooks            Hooks
	activeInterval   time.Duration
	awaitingInterval time.Duration
	limiter          *rate.Limiter
	logger           *log.Logger

	mu     sync.Mutex
	active bool
	cancel context.CancelFunc
}

// NewPoller creates a polling transport for one session. Non-positive
// intervals fall back to the defaults; ratePerSecond caps outbound status
// requests regardless of interval configuration.
func NewPoller(client *api.JobClient, sessionID string, hooks Hooks, activeInterval, awaitingInterval time.Duration, ratePerSecond int, logger *log.Logger) *Poller {
	if activeInterval <= 0 {
		activeInterval = DefaultPollActive
	}
	if awaitingInterval <= 0 {
		awaitingInterval = DefaultPollAwaiting
	}
	if ratePerSecond <= 0 {
		ratePerSecond = 2
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Poller{
		client:           client,
		sessionID:        sessionID,
		hooks:            hooks,
		activeInterval:   activeInterval,
		awaitingInterval: awaitingInterval,
		limiter:          rate.NewLimiter(rate.Limit(ratePerSecond), 1),
		logger:           logger.With("transport", "poll", "session", sessionID),
	}
}

// Start begins the polling loop. Calling Start on a running poller restarts
// it.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.active {
		p.stopLocked()
	}
	p.active = true
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	go p.loop(ctx)
	return nil
}

// Stop halts polling and cancels any in-flight status request. Idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Poller) stopLocked() {
	p.active = false
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Poller) isActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

func (p *Poller) loop(ctx context.Context) {
	interval := p.activeInterval

	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return
		}

		status, err := p.client.Status(ctx, p.sessionID)
		if ctx.Err() != nil || !p.isActive() {
			return
		}

		switch {
		case err != nil && errors.Is(err, shared.ErrSessionNotFound):
			p.mu.Lock()
			p.stopLocked()
			p.mu.Unlock()
			p.hooks.fail(err)
			return
		case err != nil:
			// Polling retries by nature; log and keep the cadence.
			p.logger.Warn("status poll failed", "err", err)
			p.hooks.fail(fmt.Errorf("%w: %v", shared.ErrTransportFailure, err))
		default:
			p.hooks.status(status)

			if status.CurrentStep.Terminal() {
				p.mu.Lock()
				p.stopLocked()
				p.mu.Unlock()
				p.hooks.finished()
				return
			}

			if status.AwaitingInput {
				interval = p.awaitingInterval
			} else {
				interval = p.activeInterval
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}
