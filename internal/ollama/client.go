package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/zombar/geoanalyzer/internal/analyzer"
)

const (
	DefaultModel   = "gpt-oss:20b"
	DefaultTimeout = 360 * time.Second

	// maxContentChars bounds the content excerpt sent in a prompt.
	maxContentChars = 12000
	maxSuggestions  = 8
)

// ErrNoJSON is returned when a model response has no parsable JSON payload.
var ErrNoJSON = errors.New("no JSON array found in response")

// Client wraps the Ollama API client
type Client struct {
	client  *api.Client
	model   string
	timeout time.Duration
}

// New creates a new Ollama client
func New(ollamaURL, model string) (*Client, error) {
	if ollamaURL == "" {
		ollamaURL = "http://localhost:11434"
	}
	if model == "" {
		model = DefaultModel
	}

	baseURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	return &Client{
		client:  api.NewClient(baseURL, http.DefaultClient),
		model:   model,
		timeout: DefaultTimeout,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// GenerateResponse generates a response from the LLM
func (c *Client) GenerateResponse(ctx context.Context, prompt string) (string, error) {
	slog.DebugContext(ctx, "sending ollama request", "model", c.model, "timeout", c.timeout)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := &api.GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: new(bool), // false
	}

	var response strings.Builder
	err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		response.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		slog.WarnContext(ctx, "ollama generation failed", "model", c.model, "error", err)
		return "", fmt.Errorf("generation failed: %w", err)
	}

	result := strings.TrimSpace(response.String())
	slog.DebugContext(ctx, "ollama response received", "model", c.model, "chars", len(result))
	return result, nil
}

// SuggestImprovements asks the model for concrete rewrite suggestions that
// address the given recommendations. The result is a numbered list, one
// suggestion per line.
func (c *Client) SuggestImprovements(ctx context.Context, content string, recs []analyzer.Recommendation) (string, error) {
	if len(recs) == 0 {
		return "", nil
	}

	response, err := c.GenerateResponse(ctx, buildSuggestionPrompt(content, recs))
	if err != nil {
		return "", err
	}

	suggestions, err := parseSuggestions(response)
	if err != nil {
		return "", err
	}
	return formatSuggestions(suggestions), nil
}

func buildSuggestionPrompt(content string, recs []analyzer.Recommendation) string {
	if len(content) > maxContentChars {
		content = content[:maxContentChars]
	}

	var issues strings.Builder
	for _, rec := range recs {
		fmt.Fprintf(&issues, "- [%s] %s\n", rec.Priority, rec.Message)
	}

	return fmt.Sprintf(`You are helping a local business improve a web page so AI search assistants can understand and cite it.

An automated audit found these issues:
%s
Write specific rewrite suggestions that fix the issues for the content below.

Requirements:
- Give at most %d suggestions, most important first
- Each suggestion is one or two short sentences
- Quote or reference the content where it helps
- Do NOT invent facts about the business (phone numbers, prices, awards)

Return ONLY a JSON array of strings, nothing else.

Content:
%s

Suggestions (JSON array):`, issues.String(), maxSuggestions, content)
}

// parseSuggestions extracts the JSON array of suggestions from a response
// that may carry surrounding prose.
func parseSuggestions(response string) ([]string, error) {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start < 0 || end <= start {
		return nil, ErrNoJSON
	}

	var raw []string
	if err := json.Unmarshal([]byte(response[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse suggestions JSON: %w", err)
	}

	suggestions := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.Join(strings.Fields(s), " ")
		if s != "" {
			suggestions = append(suggestions, s)
		}
	}
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	return suggestions, nil
}

func formatSuggestions(suggestions []string) string {
	var b strings.Builder
	for i, s := range suggestions {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, s)
	}
	return b.String()
}

// IsRetriable reports whether err looks transient (connection or timeout)
// rather than a permanent failure such as an unparsable response.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= http.StatusInternalServerError
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range retriablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

var retriablePatterns = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"temporary failure",
	"service unavailable",
	"bad gateway",
	"gateway timeout",
	"too many requests",
	"context deadline exceeded",
	"i/o timeout",
	"no such host",
	"network is unreachable",
	"eof",
}
