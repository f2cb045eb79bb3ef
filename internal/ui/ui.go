package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dennisjooo/moodlist/internal/api"
	"github.com/dennisjooo/moodlist/internal/workflow"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ProgressView ViewState = iota
	ReviewView
	SearchView
	DoneView
)

// stageLabels maps workflow stages to human-readable progress lines.
var stageLabels = map[api.Stage]string{
	api.StagePending:       "Queued",
	api.StageAnalyzingMood: "Analyzing mood",
	api.StageGathering:     "Gathering seed tracks",
	api.StageGenerating:    "Generating recommendations",
	api.StageEvaluating:    "Evaluating quality",
	api.StageOptimizing:    "Optimizing recommendations",
	api.StageAwaitingInput: "Waiting for your review",
	api.StageCreating:      "Creating playlist",
	api.StageCompleted:     "Completed",
	api.StageFailed:        "Failed",
}

// Model represents the TUI application state.
type Model struct {
	ctx        context.Context
	session    *workflow.Session
	searcher   *workflow.Searcher
	view       ViewState
	state      workflow.State
	stateChan  chan workflow.State
	searchChan chan workflow.SearchSnapshot
	unsub      func()
	width      int
	height     int
	spinner    spinner.Model
	trackList  list.Model
	listReady  bool
	search     workflow.SearchSnapshot
	searchIn   textinput.Model
	cursor     int
	editErr    error
	err        error
	help       help.Model
	keys       keyMap
}

// NewModel creates a watch model over a bound session. The model subscribes
// to the session store and owns an incremental searcher for the add-track
// flow; call [Model.Close] after the program exits.
func NewModel(ctx context.Context, session *workflow.Session, client *api.JobClient, searchDebounce time.Duration) *Model {
	input := textinput.New()
	input.Placeholder = "search tracks..."
	input.CharLimit = 120

	m := &Model{
		ctx:        ctx,
		session:    session,
		view:       ProgressView,
		state:      session.Store().Snapshot(),
		stateChan:  make(chan workflow.State, 64),
		searchChan: make(chan workflow.SearchSnapshot, 64),
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
		searchIn:   input,
		help:       help.New(),
		keys:       newKeyMap(),
	}

	m.searcher = workflow.NewSearcher(client, searchDebounce, 0, nil, func(snapshot workflow.SearchSnapshot) {
		select {
		case m.searchChan <- snapshot:
		default:
		}
	})

	m.unsub = session.Store().Subscribe(func(state workflow.State) {
		// Updates coalesce: a dropped snapshot is superseded by the next one.
		select {
		case m.stateChan <- state:
		default:
		}
	})

	return m
}

// Close releases the store subscription and the searcher.
func (m *Model) Close() {
	m.unsub()
	m.searcher.Close()
}

// Init starts the spinner and the subscription pumps.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForState(), m.waitForSearch())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.listReady {
			m.trackList.SetSize(msg.Width-4, msg.Height-10)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case stateMsg:
		return m.applyState(msg.state)

	case searchMsg:
		m.search = msg.snapshot
		if m.cursor >= len(m.search.Results) {
			m.cursor = 0
		}
		return m, m.waitForSearch()

	case syncFailedMsg:
		m.err = msg.err
		m.view = DoneView
		return m, nil

	case editFailedMsg:
		m.editErr = msg.err
		return m, m.waitForState()
	}

	if m.listReady {
		var cmd tea.Cmd
		m.trackList, cmd = m.trackList.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case ProgressView:
		return m.renderProgress()
	case ReviewView:
		return m.renderReview()
	case SearchView:
		return m.renderSearch()
	case DoneView:
		return m.renderDone()
	default:
		return ""
	}
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.view == SearchView {
		return m.handleSearchKeys(msg)
	}

	if key.Matches(msg, m.keys.quit) {
		return m, tea.Quit
	}

	if m.view != ReviewView || !m.listReady {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.search):
		m.view = SearchView
		m.searchIn.SetValue("")
		m.cursor = 0
		m.searcher.SetQuery("")
		return m, m.searchIn.Focus()
	case key.Matches(msg, m.keys.remove):
		if track, ok := m.selectedTrack(); ok {
			return m, m.removeTrack(track.TrackID)
		}
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		if track, ok := m.selectedTrack(); ok {
			return m, m.reorderTrack(track.TrackID, m.trackList.Index()-1)
		}
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		if track, ok := m.selectedTrack(); ok {
			return m, m.reorderTrack(track.TrackID, m.trackList.Index()+1)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

// handleSearchKeys runs the add-track flow: typing feeds the debounced
// searcher, enter adds the highlighted result, esc returns to review.
func (m *Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Letter keys belong to the text input here, so only non-printing keys
	// are matched by name.
	switch msg.String() {
	case "esc":
		m.searcher.SetQuery("")
		m.searchIn.Blur()
		m.view = ReviewView
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	case "up":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down":
		if m.cursor < len(m.search.Results)-1 {
			m.cursor++
		}
		return m, nil
	case "enter":
		if m.cursor < len(m.search.Results) {
			track := m.search.Results[m.cursor]
			m.searcher.SetQuery("")
			m.searchIn.Blur()
			m.view = ReviewView
			return m, m.addTrack(track)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.searchIn, cmd = m.searchIn.Update(msg)
	m.searcher.SetQuery(m.searchIn.Value())
	return m, cmd
}

// applyState folds a store snapshot into the model and picks the view.
func (m *Model) applyState(state workflow.State) (tea.Model, tea.Cmd) {
	m.state = state

	switch {
	case state.Stage.Terminal():
		m.view = DoneView
	case state.Stage.AwaitingInput() && state.Loaded:
		m.syncTrackList(state.Recommendations)
		if m.view != SearchView {
			m.view = ReviewView
		}
	default:
		m.view = ProgressView
	}

	return m, m.waitForState()
}

// syncTrackList rebuilds or refreshes the list from the current
// recommendation order, keeping the cursor near its previous position.
func (m *Model) syncTrackList(tracks []api.Track) {
	if !m.listReady {
		m.trackList = list.New(trackItems(tracks), list.NewDefaultDelegate(), 0, 0)
		m.trackList.Title = "Recommendations"
		m.trackList.SetFilteringEnabled(false)
		m.trackList.SetSize(m.width-4, m.height-10)
		m.listReady = true
		return
	}

	index := m.trackList.Index()
	m.trackList.SetItems(trackItems(tracks))
	if index >= len(tracks) {
		index = len(tracks) - 1
	}
	if index >= 0 {
		m.trackList.Select(index)
	}
}

func (m *Model) selectedTrack() (api.Track, bool) {
	item := m.trackList.SelectedItem()
	if item == nil {
		return api.Track{}, false
	}
	ti, ok := item.(trackItem)
	return ti.track, ok
}

func (m *Model) removeTrack(trackID string) tea.Cmd {
	return func() tea.Msg {
		if err := m.session.Editor().Remove(m.ctx, trackID); err != nil {
			return editFailedMsg{err: err}
		}
		return stateMsg{state: m.session.Store().Snapshot()}
	}
}

func (m *Model) reorderTrack(trackID string, newPosition int) tea.Cmd {
	return func() tea.Msg {
		if err := m.session.Editor().Reorder(m.ctx, trackID, newPosition); err != nil {
			return editFailedMsg{err: err}
		}
		return stateMsg{state: m.session.Store().Snapshot()}
	}
}

func (m *Model) addTrack(track api.Track) tea.Cmd {
	return func() tea.Msg {
		if err := m.session.Editor().Add(m.ctx, track.ProviderURI, track); err != nil {
			return editFailedMsg{err: err}
		}
		return stateMsg{state: m.session.Store().Snapshot()}
	}
}

// waitForState blocks on the subscription channel for the next snapshot.
func (m *Model) waitForState() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return syncFailedMsg{err: m.ctx.Err()}
		case state := <-m.stateChan:
			return stateMsg{state: state}
		}
	}
}

// waitForSearch blocks on the searcher channel for the next snapshot.
func (m *Model) waitForSearch() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return syncFailedMsg{err: m.ctx.Err()}
		case snapshot := <-m.searchChan:
			return searchMsg{snapshot: snapshot}
		}
	}
}

func (m *Model) renderProgress() string {
	var b strings.Builder

	b.WriteString(styles.title.Render(fmt.Sprintf("Moodlist • %s", m.state.MoodPrompt)))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), stageLabel(m.state.Stage)))

	if m.state.MoodAnalysis != nil {
		b.WriteString(styles.help.Render(fmt.Sprintf("mood: %s • energy %.1f • valence %.1f",
			m.state.MoodAnalysis.PrimaryMood, m.state.MoodAnalysis.Energy, m.state.MoodAnalysis.Valence)))
		b.WriteString("\n")
	}
	if m.state.Cost.LLMCostUSD > 0 {
		b.WriteString(styles.help.Render(fmt.Sprintf("llm cost: $%.4f (%d tokens)",
			m.state.Cost.LLMCostUSD, m.state.Cost.PromptTokens+m.state.Cost.CompletionTokens)))
		b.WriteString("\n")
	}
	if m.state.ErrorMessage != "" {
		b.WriteString(styles.warn.Render(m.state.ErrorMessage))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	return b.String()
}

func (m *Model) renderReview() string {
	var b strings.Builder

	b.WriteString(m.trackList.View())
	b.WriteString("\n")
	if m.editErr != nil {
		b.WriteString(styles.err.Render(fmt.Sprintf("edit rejected: %v", m.editErr)))
		b.WriteString("\n")
	}
	b.WriteString(m.help.ShortHelpView([]key.Binding{
		m.keys.moveUp, m.keys.moveDown, m.keys.remove, m.keys.search, m.keys.quit,
	}))
	return b.String()
}

func (m *Model) renderSearch() string {
	var b strings.Builder

	b.WriteString(styles.title.Render("Add a track"))
	b.WriteString("\n")
	b.WriteString(m.searchIn.View())
	b.WriteString("\n\n")

	switch {
	case m.search.Err != "":
		b.WriteString(styles.err.Render(m.search.Err))
		b.WriteString("\n")
	case m.search.Phase != workflow.SearchIdle:
		b.WriteString(fmt.Sprintf("%s searching\n", m.spinner.View()))
	case len(m.search.Results) == 0 && m.search.Query != "":
		b.WriteString(styles.help.Render("no matches"))
		b.WriteString("\n")
	}

	for i, track := range m.search.Results {
		line := fmt.Sprintf("%s — %s", track.Name, strings.Join(track.Artists, ", "))
		if i == m.cursor {
			b.WriteString(styles.ok.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.back}))
	return b.String()
}

func (m *Model) renderDone() string {
	var b strings.Builder

	switch {
	case m.err != nil:
		b.WriteString(styles.err.Render(fmt.Sprintf("Sync failed: %v", m.err)))
	case m.state.Stage == api.StageFailed:
		b.WriteString(styles.err.Render("Workflow failed"))
		if m.state.ErrorMessage != "" {
			b.WriteString("\n")
			b.WriteString(styles.warn.Render(m.state.ErrorMessage))
		}
	default:
		b.WriteString(styles.ok.Render("Playlist ready"))
		if m.state.Playlist != nil {
			b.WriteString(fmt.Sprintf("\n%s", m.state.Playlist.Name))
			if m.state.Playlist.URL != "" {
				b.WriteString(styles.help.Render(fmt.Sprintf("\n%s", m.state.Playlist.URL)))
			}
		}
		b.WriteString(fmt.Sprintf("\n%d tracks", len(m.state.Recommendations)))
	}

	b.WriteString("\n\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	return b.String()
}

func stageLabel(stage api.Stage) string {
	if label, ok := stageLabels[stage]; ok {
		return label
	}
	// Unknown stages are displayed verbatim; the store keeps them too.
	return string(stage)
}
