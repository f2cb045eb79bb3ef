package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/dennisjooo/moodlist/internal/api"
)

var _ list.Item = trackItem{}

// trackItem wraps [api.Track] to implement [list.Item].
type trackItem struct {
	track api.Track
}

func (i trackItem) FilterValue() string { return i.track.Name }
func (i trackItem) Title() string       { return i.track.Name }
func (i trackItem) Description() string {
	desc := strings.Join(i.track.Artists, ", ")
	if desc == "" {
		desc = "unknown artist"
	}
	desc = fmt.Sprintf("%s • %d%%", desc, i.track.ConfidencePercent())
	if i.track.Source == "user_added" {
		desc = fmt.Sprintf("%s • added by you", desc)
	}
	return desc
}

// trackItems converts a recommendation slice for [list.Model.SetItems].
func trackItems(tracks []api.Track) []list.Item {
	items := make([]list.Item, len(tracks))
	for i, track := range tracks {
		items[i] = trackItem{track: track}
	}
	return items
}
