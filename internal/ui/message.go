package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dennisjooo/moodlist/internal/workflow"
)

var (
	_ tea.Msg = stateMsg{}
	_ tea.Msg = syncFailedMsg{}
	_ tea.Msg = editFailedMsg{}
	_ tea.Msg = searchMsg{}
)

// stateMsg carries a session store snapshot into the Elm loop.
type stateMsg struct {
	state workflow.State
}

// syncFailedMsg reports that the transport gave up (or never started).
type syncFailedMsg struct {
	err error
}

// editFailedMsg reports a rejected edit after its local rollback.
type editFailedMsg struct {
	err error
}

// searchMsg carries a searcher snapshot into the Elm loop.
type searchMsg struct {
	snapshot workflow.SearchSnapshot
}
