package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dennisjooo/moodlist/internal/shared"
)

func TestJobClientErrorMapping(t *testing.T) {
	t.Run("NotFound", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		defer server.Close()

		client := NewJobClient(server.URL, nil)
		_, err := client.Status(context.Background(), "missing")
		if !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("ServerError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer server.Close()

		client := NewJobClient(server.URL, nil)
		_, err := client.Status(context.Background(), "s1")
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("ConnectionRefused", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		server.Close()

		client := NewJobClient(server.URL, nil)
		_, err := client.Status(context.Background(), "s1")
		if !errors.Is(err, shared.ErrTransportFailure) {
			t.Errorf("expected ErrTransportFailure, got %v", err)
		}
	})
}

func TestJobClientStart(t *testing.T) {
	t.Run("RequiresPrompt", func(t *testing.T) {
		client := NewJobClient("http://localhost:1", nil)
		if _, err := client.Start(context.Background(), "", ""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("SendsPromptAndGenre", func(t *testing.T) {
		var got StartRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/api/workflow/start" {
				t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			}
			body, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(body, &got); err != nil {
				t.Errorf("failed to decode request: %v", err)
			}
			json.NewEncoder(w).Encode(StartResponse{SessionID: "s1", Status: "started"})
		}))
		defer server.Close()

		client := NewJobClient(server.URL, nil)
		resp, err := client.Start(context.Background(), "rainy sunday", "jazz")
		if err != nil {
			t.Fatalf("start failed: %v", err)
		}
		if resp.SessionID != "s1" {
			t.Errorf("unexpected response: %+v", resp)
		}
		if got.MoodPrompt != "rainy sunday" || got.GenreHint != "jazz" {
			t.Errorf("unexpected request body: %+v", got)
		}
	})
}

func TestJobClientSearch(t *testing.T) {
	t.Run("LimitClamping", func(t *testing.T) {
		cases := []struct {
			name  string
			limit int
			want  string
		}{
			{"ZeroDefaults", 0, "20"},
			{"NegativeDefaults", -5, "20"},
			{"CappedAtFifty", 100, "50"},
			{"InRangePassedThrough", 30, "30"},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				var gotLimit string
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					gotLimit = r.URL.Query().Get("limit")
					json.NewEncoder(w).Encode(SearchResponse{})
				}))
				defer server.Close()

				client := NewJobClient(server.URL, nil)
				if _, err := client.Search(context.Background(), "calm", tc.limit); err != nil {
					t.Fatalf("search failed: %v", err)
				}
				if gotLimit != tc.want {
					t.Errorf("expected limit %s, got %s", tc.want, gotLimit)
				}
			})
		}
	})

	t.Run("QueryIsEscaped", func(t *testing.T) {
		var gotQuery string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.Query().Get("q")
			json.NewEncoder(w).Encode(SearchResponse{Tracks: []Track{{TrackID: "t1"}}})
		}))
		defer server.Close()

		client := NewJobClient(server.URL, nil)
		tracks, err := client.Search(context.Background(), "lo-fi & chill", 0)
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if gotQuery != "lo-fi & chill" {
			t.Errorf("query not round-tripped: %q", gotQuery)
		}
		if len(tracks) != 1 || tracks[0].TrackID != "t1" {
			t.Errorf("unexpected tracks: %v", tracks)
		}
	})

	t.Run("FailureWrapsSearchError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusBadGateway)
		}))
		defer server.Close()

		client := NewJobClient(server.URL, nil)
		if _, err := client.Search(context.Background(), "calm", 0); !errors.Is(err, shared.ErrSearchFailed) {
			t.Errorf("expected ErrSearchFailed, got %v", err)
		}
	})
}

func TestJobClientSubmitEdit(t *testing.T) {
	t.Run("SendsMutation", func(t *testing.T) {
		var got EditRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/workflow/s1/edit" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			json.NewDecoder(r.Body).Decode(&got)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewJobClient(server.URL, nil)
		edit := EditRequest{EditType: EditReorder, TrackID: "t2", NewPosition: 0}
		if err := client.SubmitEdit(context.Background(), "s1", edit); err != nil {
			t.Fatalf("edit failed: %v", err)
		}
		if got.EditType != EditReorder || got.TrackID != "t2" {
			t.Errorf("unexpected edit body: %+v", got)
		}
	})

	t.Run("FailureWrapsEditError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "conflict", http.StatusConflict)
		}))
		defer server.Close()

		client := NewJobClient(server.URL, nil)
		err := client.SubmitEdit(context.Background(), "s1", EditRequest{EditType: EditRemove, TrackID: "t1"})
		if !errors.Is(err, shared.ErrEditFailed) {
			t.Errorf("expected ErrEditFailed, got %v", err)
		}
	})
}

func TestJobClientStatusAndResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/workflow/s1/status":
			json.NewEncoder(w).Encode(StatusResponse{SessionID: "s1", CurrentStep: StageAwaitingInput, AwaitingInput: true})
		case "/api/workflow/s1/results":
			json.NewEncoder(w).Encode(ResultsResponse{Recommendations: []Track{{TrackID: "t1", Name: "One"}}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewJobClient(server.URL, nil)

	status, err := client.Status(context.Background(), "s1")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status.CurrentStep != StageAwaitingInput || !status.AwaitingInput {
		t.Errorf("unexpected status: %+v", status)
	}

	results, err := client.Results(context.Background(), "s1")
	if err != nil {
		t.Fatalf("results failed: %v", err)
	}
	if len(results.Recommendations) != 1 || results.Recommendations[0].Name != "One" {
		t.Errorf("unexpected results: %+v", results)
	}
}
