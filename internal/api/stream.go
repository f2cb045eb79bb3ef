package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dennisjooo/moodlist/internal/shared"
)

// Stream opens the live status stream for a session and returns a channel of
// classified events plus a cancel function that closes the connection.
//
// The channel is closed when the server ends the stream, the connection
// drops, or cancel is called. Keep-alive payloads (empty data or comment
// lines) are ignored. Events without a recognized type are dropped.
func (c *JobClient) Stream(ctx context.Context, sessionID string) (<-chan StreamEvent, func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	url := fmt.Sprintf("%s/api/workflow/%s/stream", c.baseURL, sessionID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("%w: %v", shared.ErrTransportFailure, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		cancel()
		return nil, nil, fmt.Errorf("%w: stream status %d", shared.ErrTransportFailure, resp.StatusCode)
	}

	ch := make(chan StreamEvent, 256)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		eventType := ""
		var dataLines []string

		for scanner.Scan() {
			line := scanner.Text()

			// Blank line terminates one SSE event.
			if line == "" {
				if event, ok := classifyEvent(eventType, dataLines); ok {
					select {
					case ch <- event:
					case <-ctx.Done():
						return
					}
				}
				eventType = ""
				dataLines = dataLines[:0]
				continue
			}

			// Comment lines are keep-alives.
			if strings.HasPrefix(line, ":") {
				continue
			}
			if strings.HasPrefix(line, "event:") {
				eventType = strings.TrimSpace(line[len("event:"):])
				continue
			}
			if strings.HasPrefix(line, "data:") {
				dataLines = append(dataLines, strings.TrimSpace(line[len("data:"):]))
			}
		}
	}()

	return ch, cancel, nil
}

// classifyEvent turns one raw SSE event into a [StreamEvent].
// Returns false for keep-alives and unrecognized event types.
func classifyEvent(eventType string, dataLines []string) (StreamEvent, bool) {
	if len(dataLines) == 0 {
		return StreamEvent{}, false
	}
	payload := strings.Join(dataLines, "\n")
	if payload == "" {
		return StreamEvent{}, false
	}

	// The event type may be declared in the SSE event field or inside the
	// JSON payload itself.
	if eventType == "" {
		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(payload), &probe); err != nil {
			return StreamEvent{}, false
		}
		eventType = probe.Type
	}

	switch StreamEventType(eventType) {
	case StreamStatus, StreamComplete:
		var wrapped StreamEvent
		if err := json.Unmarshal([]byte(payload), &wrapped); err == nil && wrapped.Status != nil {
			wrapped.Type = StreamEventType(eventType)
			return wrapped, true
		}
		var status StatusResponse
		if err := json.Unmarshal([]byte(payload), &status); err != nil {
			return StreamEvent{}, false
		}
		return StreamEvent{Type: StreamEventType(eventType), Status: &status}, true
	case StreamError:
		var wrapped StreamEvent
		if err := json.Unmarshal([]byte(payload), &wrapped); err != nil {
			return StreamEvent{Type: StreamError, Error: payload}, true
		}
		wrapped.Type = StreamError
		if wrapped.Error == "" {
			wrapped.Error = payload
		}
		return wrapped, true
	default:
		return StreamEvent{}, false
	}
}
