package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dennisjooo/moodlist/internal/api"
	"github.com/dennisjooo/moodlist/internal/shared"
)

// DefaultSearchDebounce is the pause after the last keystroke before a
// search request is issued.
const DefaultSearchDebounce = 300 * time.Millisecond

// SearchPhase describes where the searcher is in its debounce/request cycle.
type SearchPhase int

const (
	SearchIdle SearchPhase = iota
	SearchPending
	SearchInFlight
)

// SearchSnapshot is the observable searcher state handed to the update
// callback.
type SearchSnapshot struct {
	Query   string
	Phase   SearchPhase
	Results []api.Track
	Err     string
}

// Searcher debounces free-text queries and guarantees that only the latest
// issued query may apply its results: each issued request carries a
// monotonically increasing sequence number that is compared against the
// latest at apply time, so a slow early response can never overwrite a
// later one.
type Searcher struct {
	client   *api.JobClient
	debounce time.Duration
	limit    int
	logger   *log.Logger
	onUpdate func(SearchSnapshot)

	mu      sync.Mutex
	timer   *time.Timer
	query   string
	seq     uint64
	latest  uint64
	phase   SearchPhase
	results []api.Track
	errMsg  string
	closed  bool
}

// NewSearcher creates a race-guarded incremental searcher. onUpdate receives
// a snapshot after every observable change and may be nil.
func NewSearcher(client *api.JobClient, debounce time.Duration, limit int, logger *log.Logger, onUpdate func(SearchSnapshot)) *Searcher {
	if debounce <= 0 {
		debounce = DefaultSearchDebounce
	}
	if limit <= 0 {
		limit = 20
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Searcher{
		client:   client,
		debounce: debounce,
		limit:    limit,
		logger:   logger.With("component", "search"),
		onUpdate: onUpdate,
	}
}

// SetQuery records a keystroke. An empty query clears results synchronously
// without issuing a request; otherwise the debounce timer restarts.
func (s *Searcher) SetQuery(query string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.query = query

	if query == "" {
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		// Advance the sequence so in-flight responses become stale.
		s.seq++
		s.latest = s.seq
		s.phase = SearchIdle
		s.results = nil
		s.errMsg = ""
		snapshot := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snapshot)
		return
	}

	s.phase = SearchPending
	if s.timer != nil {
		s.timer.Reset(s.debounce)
	} else {
		s.timer = time.AfterFunc(s.debounce, s.fire)
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snapshot)
}

// fire issues the request for whatever query is current when the timer
// lands, recording it as the latest.
func (s *Searcher) fire() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	query := s.query
	if query == "" {
		s.mu.Unlock()
		return
	}

	s.seq++
	mine := s.seq
	s.latest = mine
	s.phase = SearchInFlight
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snapshot)

	go s.fetch(query, mine)
}

func (s *Searcher) fetch(query string, mine uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	tracks, err := s.client.Search(ctx, query, s.limit)

	s.mu.Lock()
	if s.closed || mine != s.latest {
		// A newer query was issued (or cleared) while this one was in
		// flight; discard silently.
		s.mu.Unlock()
		return
	}
	s.phase = SearchIdle
	if err != nil {
		s.errMsg = err.Error()
		s.results = nil
		s.logger.Warn("search failed", "query", query, "err", err)
	} else {
		s.errMsg = ""
		s.results = tracks
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snapshot)
}

// Results returns the currently applied result set.
func (s *Searcher) Results() []api.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.Track(nil), s.results...)
}

// Snapshot returns the current observable searcher state.
func (s *Searcher) Snapshot() SearchSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Searcher) snapshotLocked() SearchSnapshot {
	return SearchSnapshot{
		Query:   s.query,
		Phase:   s.phase,
		Results: append([]api.Track(nil), s.results...),
		Err:     s.errMsg,
	}
}

func (s *Searcher) notify(snapshot SearchSnapshot) {
	if s.onUpdate != nil {
		s.onUpdate(snapshot)
	}
}

// Close cancels the debounce timer and marks in-flight responses stale.
// Idempotent.
func (s *Searcher) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
