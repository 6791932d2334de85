package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/geoanalyzer/internal/analyzer"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name          string
		ollamaURL     string
		model         string
		expectError   bool
		expectedModel string
	}{
		{
			name:          "default values",
			expectedModel: DefaultModel,
		},
		{
			name:          "custom URL and model",
			ollamaURL:     "http://custom-ollama:11434",
			model:         "llama3.2",
			expectedModel: "llama3.2",
		},
		{
			name:          "custom URL, default model",
			ollamaURL:     "http://localhost:11434",
			expectedModel: DefaultModel,
		},
		{
			name:        "invalid URL",
			ollamaURL:   "://invalid-url",
			model:       "test",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.ollamaURL, tt.model)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if client.Model() != tt.expectedModel {
				t.Errorf("Expected model %s, got %s", tt.expectedModel, client.Model())
			}
			if client.timeout != DefaultTimeout {
				t.Errorf("Expected timeout %v, got %v", DefaultTimeout, client.timeout)
			}
		})
	}
}

// newTestServer answers /api/generate with the given model output.
func newTestServer(t *testing.T, status int, output string, gotPrompt *string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}

		var req api.GenerateRequest
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if gotPrompt != nil {
			*gotPrompt = req.Prompt
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status >= http.StatusBadRequest {
			fmt.Fprintf(w, `{"error":%q}`, output)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"model":    req.Model,
			"response": output,
			"done":     true,
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestGenerateResponse(t *testing.T) {
	server := newTestServer(t, http.StatusOK, "  Hello there.  ", nil)

	client, err := New(server.URL, "test-model")
	require.NoError(t, err)

	got, err := client.GenerateResponse(context.Background(), "Say hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello there.", got)
}

func TestSuggestImprovements(t *testing.T) {
	recs := []analyzer.Recommendation{
		{Type: analyzer.RecommendWordCount, Priority: analyzer.PriorityHigh, Message: "Content is too short. Aim for at least 300 words. Current: 15 words."},
		{Type: analyzer.RecommendStructure, Priority: analyzer.PriorityMedium, Message: "Add proper heading structure (H1, H2, H3) to improve content organization."},
	}

	var prompt string
	output := "Here you go:\n[\"Add an H1 naming the service and city.\", \"  Expand the   services section. \", \"\"]"
	server := newTestServer(t, http.StatusOK, output, &prompt)

	client, err := New(server.URL, "test-model")
	require.NoError(t, err)

	got, err := client.SuggestImprovements(context.Background(), "Contact our licensed team.", recs)
	require.NoError(t, err)
	assert.Equal(t, "1. Add an H1 naming the service and city.\n2. Expand the services section.", got)

	assert.Contains(t, prompt, "- [high] Content is too short.")
	assert.Contains(t, prompt, "- [medium] Add proper heading structure")
	assert.Contains(t, prompt, "Contact our licensed team.")
}

func TestSuggestImprovementsNoRecommendations(t *testing.T) {
	client, err := New("http://127.0.0.1:1", "test-model")
	require.NoError(t, err)

	got, err := client.SuggestImprovements(context.Background(), "content", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSuggestImprovementsErrors(t *testing.T) {
	recs := []analyzer.Recommendation{{Type: "structure", Priority: "medium", Message: "Add headings."}}

	tests := []struct {
		name      string
		status    int
		output    string
		retriable bool
	}{
		{"no json", http.StatusOK, "I cannot help with that.", false},
		{"broken json", http.StatusOK, `["unterminated]`, false},
		{"server error", http.StatusServiceUnavailable, "model is loading", true},
		{"model not found", http.StatusNotFound, "model 'x' not found", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, tt.status, tt.output, nil)
			client, err := New(server.URL, "test-model")
			require.NoError(t, err)

			_, err = client.SuggestImprovements(context.Background(), "content", recs)
			require.Error(t, err)
			assert.Equal(t, tt.retriable, IsRetriable(err), "error: %v", err)
		})
	}
}

func TestParseSuggestions(t *testing.T) {
	tests := []struct {
		name        string
		response    string
		expected    []string
		expectError bool
	}{
		{
			name:     "plain array",
			response: `["one", "two"]`,
			expected: []string{"one", "two"},
		},
		{
			name:     "array in prose",
			response: "Sure!\n```json\n[\"one\"]\n```",
			expected: []string{"one"},
		},
		{
			name:     "blank entries dropped",
			response: `["", "  ", "kept"]`,
			expected: []string{"kept"},
		},
		{
			name:     "truncated to limit",
			response: `["1","2","3","4","5","6","7","8","9","10"]`,
			expected: []string{"1", "2", "3", "4", "5", "6", "7", "8"},
		},
		{
			name:        "no array",
			response:    "nothing here",
			expectError: true,
		},
		{
			name:        "objects instead of strings",
			response:    `[{"text": "one"}]`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSuggestions(tt.response)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestBuildSuggestionPromptTruncatesContent(t *testing.T) {
	content := strings.Repeat("a", maxContentChars+500)
	prompt := buildSuggestionPrompt(content, []analyzer.Recommendation{{Priority: "high", Message: "m"}})
	assert.NotContains(t, prompt, strings.Repeat("a", maxContentChars+1))
	assert.Contains(t, prompt, strings.Repeat("a", maxContentChars))
}

func TestIsRetriable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"timeout", errors.New("request timeout"), true},
		{"deadline", fmt.Errorf("generation failed: %w", context.DeadlineExceeded), true},
		{"status 503", api.StatusError{StatusCode: http.StatusServiceUnavailable}, true},
		{"status 429", api.StatusError{StatusCode: http.StatusTooManyRequests}, true},
		{"status 400", api.StatusError{StatusCode: http.StatusBadRequest, ErrorMessage: "invalid"}, false},
		{"parse failure", ErrNoJSON, false},
		{"canceled", context.Canceled, false},
		{"generic", errors.New("some other error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetriable(tt.err))
		})
	}
}

func TestContextHandling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client, err := New(server.URL, "test-model")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.GenerateResponse(ctx, "slow")
	require.Error(t, err)
	assert.True(t, IsRetriable(err), "deadline errors should be retriable: %v", err)
}
