// package formatter exports a session's recommendations to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/dennisjooo/moodlist/internal/api"
)

// ExportToCSV converts a result set to CSV with columns: TrackID, Name, Artists, Confidence, Source, ProviderURI
func ExportToCSV(results *api.ResultsResponse) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"TrackID", "Name", "Artists", "Confidence", "Source", "ProviderURI"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range results.Recommendations {
		record := []string{
			track.TrackID,
			track.Name,
			strings.Join(track.Artists, "; "),
			strconv.Itoa(track.ConfidencePercent()),
			track.Source,
			track.ProviderURI,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a result set to a Markdown track listing.
func ExportToMarkdown(results *api.ResultsResponse, title string) ([]byte, error) {
	var buf bytes.Buffer

	if title == "" {
		title = "Recommendations"
	}
	buf.WriteString(fmt.Sprintf("# %s\n\n", title))

	if results.Playlist != nil {
		buf.WriteString(fmt.Sprintf("Playlist: **%s**", results.Playlist.Name))
		if results.Playlist.URL != "" {
			buf.WriteString(fmt.Sprintf(" ([open](%s))", results.Playlist.URL))
		}
		buf.WriteString("\n\n")
	}

	buf.WriteString("| # | Track | Artists | Confidence |\n")
	buf.WriteString("|---|-------|---------|------------|\n")
	for i, track := range results.Recommendations {
		buf.WriteString(fmt.Sprintf("| %d | %s | %s | %d%% |\n",
			i+1, track.Name, strings.Join(track.Artists, ", "), track.ConfidencePercent()))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a result set to an aligned plain text listing.
func ExportToText(results *api.ResultsResponse) []byte {
	var buf bytes.Buffer

	for i, track := range results.Recommendations {
		buf.WriteString(fmt.Sprintf("%2d. %s — %s (%d%%)\n",
			i+1, track.Name, strings.Join(track.Artists, ", "), track.ConfidencePercent()))
	}
	if results.Playlist != nil {
		buf.WriteString(fmt.Sprintf("\nPlaylist: %s", results.Playlist.Name))
		if results.Playlist.URL != "" {
			buf.WriteString(fmt.Sprintf(" <%s>", results.Playlist.URL))
		}
		buf.WriteString("\n")
	}

	return buf.Bytes()
}
