// package api implements HTTP clients for the two interfaces the moodlist
// client consumes: the workflow (job status) service and the identity service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dennisjooo/moodlist/internal/shared"
)

// JobClient provides request/response access to the workflow service.
//
// The live status stream is exposed separately via [JobClient.Stream].
type JobClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewJobClient creates a workflow service client.
// A nil client falls back to [http.DefaultClient].
func NewJobClient(baseURL string, client *http.Client) *JobClient {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &JobClient{
		baseURL:    baseURL,
		httpClient: client,
	}
}

// BaseURL returns the configured service base URL.
func (c *JobClient) BaseURL() string {
	return c.baseURL
}

// doRequest performs an HTTP request against the workflow service and decodes
// the JSON response into result when non-nil.
func (c *JobClient) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	apiURL := c.baseURL + endpoint

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTransportFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", shared.ErrSessionNotFound, endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Status retrieves the current status of a workflow session.
func (c *JobClient) Status(ctx context.Context, sessionID string) (*StatusResponse, error) {
	var status StatusResponse
	endpoint := fmt.Sprintf("/api/workflow/%s/status", sessionID)
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Results retrieves the current result set for a workflow session.
func (c *JobClient) Results(ctx context.Context, sessionID string) (*ResultsResponse, error) {
	var results ResultsResponse
	endpoint := fmt.Sprintf("/api/workflow/%s/results", sessionID)
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &results); err != nil {
		return nil, err
	}
	return &results, nil
}

// Start begins a new workflow run for the given mood prompt.
func (c *JobClient) Start(ctx context.Context, moodPrompt, genreHint string) (*StartResponse, error) {
	if moodPrompt == "" {
		return nil, fmt.Errorf("%w: mood prompt", shared.ErrMissingArgument)
	}

	var started StartResponse
	body := StartRequest{MoodPrompt: moodPrompt, GenreHint: genreHint}
	if err := c.doRequest(ctx, http.MethodPost, "/api/workflow/start", body, &started); err != nil {
		return nil, err
	}
	return &started, nil
}

// SubmitEdit sends a single track mutation for an awaiting-input session.
// Success carries no body beyond acknowledgment.
func (c *JobClient) SubmitEdit(ctx context.Context, sessionID string, edit EditRequest) error {
	endpoint := fmt.Sprintf("/api/workflow/%s/edit", sessionID)
	if err := c.doRequest(ctx, http.MethodPost, endpoint, edit, nil); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrEditFailed, err)
	}
	return nil
}

// Cancel stops a running workflow session server-side.
func (c *JobClient) Cancel(ctx context.Context, sessionID string) error {
	endpoint := fmt.Sprintf("/api/workflow/%s/cancel", sessionID)
	return c.doRequest(ctx, http.MethodPost, endpoint, nil, nil)
}

// Search returns candidate tracks for a free-text query.
func (c *JobClient) Search(ctx context.Context, query string, limit int) ([]Track, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	endpoint := fmt.Sprintf("/api/search?q=%s&limit=%d", url.QueryEscape(query), limit)

	var response SearchResponse
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrSearchFailed, err)
	}

	return response.Tracks, nil
}
