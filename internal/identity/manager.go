package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dennisjooo/moodlist/internal/api"
	"github.com/dennisjooo/moodlist/internal/bus"
	"github.com/dennisjooo/moodlist/internal/shared"
	"golang.org/x/oauth2"
)

// defaultRetryDelay is the fixed pause before the single transient-failure
// retry of identity verification.
const defaultRetryDelay = time.Second

// State is the observable authentication state.
type State struct {
	User          *api.User
	Authenticated bool
	// Validated is false while the identity is served from cache and a
	// background re-verification is still outstanding.
	Validated bool
	Loading   bool
}

// Manager serves the cached identity instantly and re-validates it in the
// background. A 401-equivalent clears identity and cache unconditionally;
// any other failure of the first verify attempt is retried exactly once.
type Manager struct {
	client     *api.IdentityClient
	cache      *Cache
	bus        *bus.Dispatcher
	logger     *log.Logger
	retryDelay time.Duration

	mu    sync.Mutex
	state State
}

// NewManager creates an identity manager. bus may be nil when no other
// component needs auth notifications.
func NewManager(client *api.IdentityClient, cache *Cache, dispatcher *bus.Dispatcher, logger *log.Logger) *Manager {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if dispatcher == nil {
		dispatcher = bus.NewDispatcher()
	}

	return &Manager{
		client:     client,
		cache:      cache,
		bus:        dispatcher,
		logger:     logger.With("component", "identity"),
		retryDelay: defaultRetryDelay,
	}
}

// Current returns the current authentication state.
func (m *Manager) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Bootstrap establishes the initial authentication state. A cache hit marks
// the identity provisionally authenticated and schedules a background
// re-verification; a miss verifies synchronously.
func (m *Manager) Bootstrap(ctx context.Context) State {
	if user, err := m.cache.Read(); err == nil {
		m.setState(State{User: user, Authenticated: true, Validated: false, Loading: true})
		go m.Verify(context.WithoutCancel(ctx))
		return m.Current()
	}

	m.Verify(ctx)
	return m.Current()
}

// Verify checks the identity against the service, applying the retry and
// 401 policies, and reconciles the result with cache and state.
func (m *Manager) Verify(ctx context.Context) {
	user, err := m.client.Verify(ctx)
	if err != nil && errors.Is(err, shared.ErrVerifyTransient) {
		// One retry after a short fixed delay, first attempt only.
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.retryDelay):
		}
		user, err = m.client.Verify(ctx)
	}

	switch {
	case err == nil:
		m.applyVerified(user)
	case errors.Is(err, shared.ErrUnauthorized):
		m.logger.Info("session unauthorized, clearing identity")
		m.clear()
	default:
		m.logger.Warn("identity verification failed", "err", err)
		m.setState(State{})
	}
}

// applyVerified reconciles a successful verification. An unchanged identity
// only refreshes the validation flags, so subscribers that key on the user
// value see no spurious change.
func (m *Manager) applyVerified(user *api.User) {
	m.mu.Lock()
	same := m.state.User != nil && user != nil && m.state.User.ID == user.ID
	m.state.User = user
	m.state.Authenticated = true
	m.state.Validated = true
	m.state.Loading = false
	state := m.state
	m.mu.Unlock()

	if err := m.cache.Write(user); err != nil {
		m.logger.Warn("failed to write identity cache", "err", err)
	}

	if !same {
		m.bus.Publish(bus.TopicAuthUpdated, bus.AuthUpdated{User: state.User, Validated: true})
	}
}

// Login applies the optimistic local transition, then establishes the
// session and verifies in the background.
func (m *Manager) Login(ctx context.Context, token *oauth2.Token) error {
	m.setState(State{Authenticated: true, Validated: false, Loading: true})

	if err := m.client.Login(ctx, token); err != nil {
		if errors.Is(err, shared.ErrUnauthorized) {
			m.clear()
		} else {
			m.setState(State{})
		}
		return err
	}

	m.Verify(ctx)
	return nil
}

// Logout clears identity and cache immediately; the service call is best
// effort and never blocks the local transition.
func (m *Manager) Logout(ctx context.Context) {
	m.clear()

	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := m.client.Logout(ctx); err != nil {
			m.logger.Warn("logout call failed", "err", err)
		}
	}()
}

func (m *Manager) clear() {
	if err := m.cache.Purge(); err != nil {
		m.logger.Warn("failed to purge identity cache", "err", err)
	}
	m.setState(State{})
	m.bus.Publish(bus.TopicAuthUpdated, bus.AuthUpdated{User: nil, Validated: false})
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}
