package api

// Stage enumerates the workflow stages reported by the service.
//
// Expected forward order, with evaluating/optimizing repeating for bounded
// iterations and some stages skipped entirely:
//
//	pending → analyzing_mood → gathering_seeds → generating_recommendations →
//	evaluating_quality ⇄ optimizing_recommendations → awaiting_user_input →
//	creating_playlist → completed
//
// failed is reachable from any non-terminal stage.
type Stage string

const (
	StagePending       Stage = "pending"
	StageAnalyzingMood Stage = "analyzing_mood"
	StageGathering     Stage = "gathering_seeds"
	StageGenerating    Stage = "generating_recommendations"
	StageEvaluating    Stage = "evaluating_quality"
	StageOptimizing    Stage = "optimizing_recommendations"
	StageAwaitingInput Stage = "awaiting_user_input"
	StageCreating      Stage = "creating_playlist"
	StageCompleted     Stage = "completed"
	StageFailed        Stage = "failed"
)

// Terminal reports whether no further synchronization occurs for this stage.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// AwaitingInput reports whether the stage is the paused sub-state that accepts edits.
func (s Stage) AwaitingInput() bool {
	return s == StageAwaitingInput
}

// Known reports whether the stage is one the client understands.
func (s Stage) Known() bool {
	switch s {
	case StagePending, StageAnalyzingMood, StageGathering, StageGenerating,
		StageEvaluating, StageOptimizing, StageAwaitingInput, StageCreating,
		StageCompleted, StageFailed:
		return true
	}
	return false
}

// Track represents a recommended track within a workflow session.
//
// TrackID is stable for the lifetime of the session; ProviderURI is the
// mutable external reference used for edits against the music provider.
type Track struct {
	TrackID     string   `json:"track_id"`
	ProviderURI string   `json:"provider_uri"`
	Name        string   `json:"name"`
	Artists     []string `json:"artists"`
	Confidence  float64  `json:"confidence"`
	Source      string   `json:"source,omitempty"`
	AlbumArt    string   `json:"album_art,omitempty"`
}

// ConfidencePercent maps the 0..1 confidence score to a display percentage.
func (t Track) ConfidencePercent() int {
	pct := int(t.Confidence * 100)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}

// MoodAnalysis is the structured interpretation of the user's mood prompt.
type MoodAnalysis struct {
	PrimaryMood string   `json:"primary_mood"`
	Energy      float64  `json:"energy"`
	Valence     float64  `json:"valence"`
	Descriptors []string `json:"descriptors,omitempty"`
	GenreHints  []string `json:"genre_hints,omitempty"`
}

// Playlist describes the finalized destination playlist, present once the
// workflow has created it.
type Playlist struct {
	PlaylistID  string `json:"playlist_id"`
	ProviderURI string `json:"provider_uri,omitempty"`
	Name        string `json:"name"`
	URL         string `json:"url,omitempty"`
	TrackCount  int    `json:"track_count"`
}

// StatusResponse is the workflow status payload returned by the status
// endpoint and carried in stream events.
type StatusResponse struct {
	SessionID            string        `json:"session_id"`
	Status               string        `json:"status"`
	CurrentStep          Stage         `json:"current_step"`
	MoodPrompt           string        `json:"mood_prompt"`
	MoodAnalysis         *MoodAnalysis `json:"mood_analysis,omitempty"`
	AwaitingInput        bool          `json:"awaiting_input"`
	Error                string        `json:"error,omitempty"`
	TotalLLMCostUSD      float64       `json:"total_llm_cost_usd,omitempty"`
	TotalPromptTokens    int           `json:"total_prompt_tokens,omitempty"`
	TotalCompletionToken int           `json:"total_completion_tokens,omitempty"`
}

// ResultsResponse is the final (or in-progress, while awaiting input) result
// set for a session.
type ResultsResponse struct {
	Recommendations []Track   `json:"recommendations"`
	Playlist        *Playlist `json:"playlist,omitempty"`
}

// StartRequest begins a new workflow run.
type StartRequest struct {
	MoodPrompt string `json:"mood_prompt"`
	GenreHint  string `json:"genre_hint,omitempty"`
}

// StartResponse acknowledges a started workflow run.
type StartResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// EditType enumerates the track mutations accepted while a session is
// awaiting user input.
type EditType string

const (
	EditReorder EditType = "reorder"
	EditRemove  EditType = "remove"
	EditAdd     EditType = "add"
)

// EditRequest is a single track mutation submitted to the workflow service.
type EditRequest struct {
	EditType    EditType `json:"edit_type"`
	TrackID     string   `json:"track_id,omitempty"`
	NewPosition int      `json:"new_position,omitempty"`
	ProviderURI string   `json:"provider_uri,omitempty"`
	TrackInfo   *Track   `json:"track_info,omitempty"`
}

// SearchResponse is a list of candidate tracks for a free-text query.
type SearchResponse struct {
	Tracks []Track `json:"tracks"`
}

// User is the authenticated identity returned by the identity service.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Product     string `json:"product,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// StreamEventType classifies inbound stream events.
type StreamEventType string

const (
	StreamStatus   StreamEventType = "status"
	StreamComplete StreamEventType = "complete"
	StreamError    StreamEventType = "error"
)

// StreamEvent is one classified event from the live status stream.
type StreamEvent struct {
	Type   StreamEventType `json:"type"`
	Status *StatusResponse `json:"status,omitempty"`
	Error  string          `json:"error,omitempty"`
}
