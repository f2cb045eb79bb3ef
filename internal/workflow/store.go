package workflow

import (
	"fmt"
	"sync"

	"github.com/dennisjooo/moodlist/internal/api"
	"github.com/dennisjooo/moodlist/internal/shared"
)

// CostTotals accumulates the running LLM spend reported for a session.
type CostTotals struct {
	LLMCostUSD       float64
	PromptTokens     int
	CompletionTokens int
}

// State is one snapshot of a workflow session as seen by the client.
// Recommendations order is the user-visible playlist order.
type State struct {
	SessionID       string
	Stage           api.Stage
	Status          string
	ErrorMessage    string
	AwaitingInput   bool
	MoodPrompt      string
	MoodAnalysis    *api.MoodAnalysis
	Recommendations []api.Track
	Playlist        *api.Playlist
	Cost            CostTotals
	Loaded          bool
}

// Store is the canonical client-side snapshot of one workflow session and
// the only place session state is mutated. Updates arrive from whichever
// transport is active, from the edit coordinator, and from direct
// request/response calls; all writers funnel through the merge entry points
// below, which update only the fields they own rather than replacing the
// whole state.
type Store struct {
	mu      sync.RWMutex
	state   State
	subs    map[int]func(State)
	nextSub int
}

// NewStore creates an empty store for one session id.
func NewStore(sessionID string) *Store {
	return &Store{
		state: State{SessionID: sessionID},
		subs:  make(map[int]func(State)),
	}
}

// Snapshot returns a copy of the current state. The recommendations slice is
// cloned so callers cannot mutate store-owned memory.
func (st *Store) Snapshot() State {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.copyLocked()
}

func (st *Store) copyLocked() State {
	state := st.state
	state.Recommendations = append([]api.Track(nil), st.state.Recommendations...)
	return state
}

// Subscribe registers a read-only observer of state changes and returns an
// unsubscribe function. The observer is called synchronously with a snapshot
// after every mutation.
func (st *Store) Subscribe(fn func(State)) func() {
	st.mu.Lock()
	id := st.nextSub
	st.nextSub++
	st.subs[id] = fn
	st.mu.Unlock()

	return func() {
		st.mu.Lock()
		delete(st.subs, id)
		st.mu.Unlock()
	}
}

// mutate runs fn under the write lock, then notifies subscribers with a
// fresh snapshot outside of it.
func (st *Store) mutate(fn func(*State)) {
	st.mu.Lock()
	fn(&st.state)
	snapshot := st.copyLocked()
	observers := make([]func(State), 0, len(st.subs))
	for _, sub := range st.subs {
		observers = append(observers, sub)
	}
	st.mu.Unlock()

	for _, observer := range observers {
		observer(snapshot)
	}
}

// ApplyStatus merges a status update into the store. The declared stage
// always replaces the local stage; the store never infers a progression on
// its own. Fields owned by other writers (recommendations, playlist) are
// untouched, and optional fields only overwrite when the update carries
// them.
func (st *Store) ApplyStatus(status *api.StatusResponse) {
	if status == nil {
		return
	}

	st.mutate(func(s *State) {
		if s.SessionID == "" {
			s.SessionID = status.SessionID
		}
		s.Stage = status.CurrentStep
		s.Status = status.Status
		s.AwaitingInput = status.AwaitingInput

		if status.Error != "" {
			s.ErrorMessage = status.Error
		} else if !status.CurrentStep.Terminal() {
			s.ErrorMessage = ""
		}
		if status.MoodPrompt != "" {
			s.MoodPrompt = status.MoodPrompt
		}
		if status.MoodAnalysis != nil {
			s.MoodAnalysis = status.MoodAnalysis
		}
		if status.TotalLLMCostUSD > 0 {
			s.Cost.LLMCostUSD = status.TotalLLMCostUSD
		}
		if status.TotalPromptTokens > 0 {
			s.Cost.PromptTokens = status.TotalPromptTokens
		}
		if status.TotalCompletionToken > 0 {
			s.Cost.CompletionTokens = status.TotalCompletionToken
		}
	})
}

// SetResults overwrites the result set with an authoritative server
// response, deduplicating tracks by id (first occurrence kept).
func (st *Store) SetResults(results *api.ResultsResponse) {
	if results == nil {
		return
	}

	tracks := DedupeTracks(results.Recommendations)
	st.mutate(func(s *State) {
		s.Recommendations = tracks
		if results.Playlist != nil {
			s.Playlist = results.Playlist
		}
		s.Loaded = true
	})
}

// Recommendations returns a copy of the current track order.
func (st *Store) Recommendations() []api.Track {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return append([]api.Track(nil), st.state.Recommendations...)
}

// RestoreRecommendations replaces the track list with a rollback snapshot.
func (st *Store) RestoreRecommendations(tracks []api.Track) {
	st.mutate(func(s *State) {
		s.Recommendations = append([]api.Track(nil), tracks...)
	})
}

// ReorderTrack moves a track to a new position in the local order.
func (st *Store) ReorderTrack(trackID string, newPosition int) error {
	var missing error
	st.mutate(func(s *State) {
		idx := indexOfTrack(s.Recommendations, trackID)
		if idx < 0 {
			missing = fmt.Errorf("%w: reorder %q", shared.ErrTrackNotFound, trackID)
			return
		}

		track := s.Recommendations[idx]
		rest := append(s.Recommendations[:idx:idx], s.Recommendations[idx+1:]...)

		if newPosition < 0 {
			newPosition = 0
		}
		if newPosition > len(rest) {
			newPosition = len(rest)
		}

		reordered := make([]api.Track, 0, len(rest)+1)
		reordered = append(reordered, rest[:newPosition]...)
		reordered = append(reordered, track)
		reordered = append(reordered, rest[newPosition:]...)
		s.Recommendations = reordered
	})
	return missing
}

// RemoveTrack deletes a track from the local order.
func (st *Store) RemoveTrack(trackID string) error {
	var missing error
	st.mutate(func(s *State) {
		idx := indexOfTrack(s.Recommendations, trackID)
		if idx < 0 {
			missing = fmt.Errorf("%w: remove %q", shared.ErrTrackNotFound, trackID)
			return
		}
		s.Recommendations = append(s.Recommendations[:idx:idx], s.Recommendations[idx+1:]...)
	})
	return missing
}

// AddTrack appends a track to the local order, keeping track ids unique.
func (st *Store) AddTrack(track api.Track) {
	st.mutate(func(s *State) {
		if indexOfTrack(s.Recommendations, track.TrackID) >= 0 {
			return
		}
		s.Recommendations = append(s.Recommendations, track)
	})
}

// SetError records a client-side error message on the session.
func (st *Store) SetError(msg string) {
	st.mutate(func(s *State) {
		s.ErrorMessage = msg
	})
}

// Reset clears the session back to empty, keeping only the session id.
// Used when the user stops, cancels, or logs out.
func (st *Store) Reset() {
	st.mutate(func(s *State) {
		*s = State{SessionID: s.SessionID}
	})
}

// DedupeTracks drops duplicate track ids, keeping the first occurrence.
func DedupeTracks(tracks []api.Track) []api.Track {
	seen := make(map[string]bool, len(tracks))
	deduped := make([]api.Track, 0, len(tracks))
	for _, track := range tracks {
		if track.TrackID != "" && seen[track.TrackID] {
			continue
		}
		seen[track.TrackID] = true
		deduped = append(deduped, track)
	}
	return deduped
}

func indexOfTrack(tracks []api.Track, trackID string) int {
	for i, track := range tracks {
		if track.TrackID == trackID {
			return i
		}
	}
	return -1
}
