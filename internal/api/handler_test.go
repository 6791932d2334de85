package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zombar/geoanalyzer/internal/analyzer"
	"github.com/zombar/geoanalyzer/internal/audit"
	"github.com/zombar/geoanalyzer/internal/database"
	"github.com/zombar/geoanalyzer/internal/models"
	"github.com/zombar/geoanalyzer/internal/queue"
)

const testContent = `<h1>Smith Plumbing</h1>
<h2>Services</h2>
<p>Contact our licensed and insured team. We have 20 years of experience.</p>
<ul><li>Emergency repairs</li><li>Installations</li></ul>`

// mockQueueClient implements QueueClient for testing
type mockQueueClient struct {
	enqueued   []models.AnalyzeRequest
	jobIDs     []string
	suggested  []string
	state      string
	analysisID string
	stateErr   error
	enqueueErr error
}

func (m *mockQueueClient) EnqueueAnalyzeDocument(ctx context.Context, jobID string, req models.AnalyzeRequest) (string, error) {
	if m.enqueueErr != nil {
		return "", m.enqueueErr
	}
	m.jobIDs = append(m.jobIDs, jobID)
	m.enqueued = append(m.enqueued, req)
	return jobID, nil
}

func (m *mockQueueClient) EnqueueSuggestImprovements(ctx context.Context, analysisID string) (string, error) {
	m.suggested = append(m.suggested, analysisID)
	return analysisID + "-suggest", nil
}

func (m *mockQueueClient) JobState(jobID string) (string, string, error) {
	if m.stateErr != nil {
		return "", "", m.stateErr
	}
	return m.state, m.analysisID, nil
}

type stubSuggester struct{}

func (stubSuggester) SuggestImprovements(ctx context.Context, content string, recs []analyzer.Recommendation) (string, error) {
	return "1. Add an FAQ.", nil
}

func setupTestHandler(t *testing.T, opts ...audit.ServiceOption) (*Handler, *database.DB, *mockQueueClient) {
	t.Helper()

	db := database.NewTestDB(t)
	a, err := analyzer.New(analyzer.DefaultConfig())
	require.NoError(t, err)

	mockQueue := &mockQueueClient{}
	handler := newHandler(db, audit.NewService(a, db, opts...), mockQueue)
	return handler, db, mockQueue
}

func doRequest(h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), "body: %s", w.Body.String())
	return v
}

func analyze(t *testing.T, h *Handler, req models.AnalyzeRequest) models.AnalyzeResponse {
	t.Helper()
	w := doRequest(h.mux, http.MethodPost, "/api/analyze", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[models.AnalyzeResponse](t, w)
}

func TestHealthEndpoint(t *testing.T) {
	handler, _, _ := setupTestHandler(t)

	w := doRequest(handler.mux, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	response := decode[map[string]any](t, w)
	assert.Equal(t, "ok", response["status"])
	assert.Equal(t, analyzer.ProfileGEO, response["profile"])
	assert.Equal(t, true, response["queue"])
}

func TestAnalyzeEndpoint(t *testing.T) {
	handler, db, _ := setupTestHandler(t)

	first := analyze(t, handler, models.AnalyzeRequest{Content: testContent, TargetKeywords: []string{"plumbing"}})
	assert.False(t, first.Cached)
	assert.NotEmpty(t, first.ID)
	require.NotNil(t, first.Analysis)
	assert.True(t, first.Analysis.Result.Structure.HasGoodStructure)
	assert.Contains(t, first.Analysis.Result.Keywords.Found, "licensed")
	assert.GreaterOrEqual(t, first.Analysis.OverallScore, 0.0)
	assert.LessOrEqual(t, first.Analysis.OverallScore, 100.0)

	second := analyze(t, handler, models.AnalyzeRequest{Content: testContent, TargetKeywords: []string{"Plumbing "}})
	assert.True(t, second.Cached, "normalized target keywords hit the cache")
	assert.Equal(t, first.ID, second.ID)

	stored, err := db.GetAnalysis(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Analysis.OverallScore, stored.OverallScore)
}

func TestAnalyzeEndpointErrors(t *testing.T) {
	handler, _, _ := setupTestHandler(t)

	tests := []struct {
		name   string
		method string
		body   any
		status int
		errMsg string
	}{
		{"wrong method", http.MethodGet, nil, http.StatusMethodNotAllowed, ""},
		{"invalid json", http.MethodPost, "{not json", http.StatusBadRequest, "Invalid request body"},
		{"blank content", http.MethodPost, models.AnalyzeRequest{Content: "  \n "}, http.StatusBadRequest, "content cannot be empty"},
		{"duplicate targets", http.MethodPost, models.AnalyzeRequest{Content: "text", TargetKeywords: []string{"a", "A"}}, http.StatusBadRequest, "listed more than once"},
		{"blank target", http.MethodPost, models.AnalyzeRequest{Content: "text", TargetKeywords: []string{" "}}, http.StatusBadRequest, "blank"},
		{"unknown format", http.MethodPost, models.AnalyzeRequest{Content: "text", Format: "pdf"}, http.StatusBadRequest, "unsupported format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(handler.mux, tt.method, "/api/analyze", tt.body)
			assert.Equal(t, tt.status, w.Code)
			if tt.errMsg != "" {
				assert.Contains(t, decode[map[string]string](t, w)["error"], tt.errMsg)
			}
		})
	}
}

func TestCreateAudit(t *testing.T) {
	handler, _, mockQueue := setupTestHandler(t)

	body := models.AuditRequest{Documents: []models.AnalyzeRequest{
		{Content: "First page.", BusinessType: "restaurant"},
		{Content: "# Second page", Format: "markdown"},
	}}
	w := doRequest(handler.mux, http.MethodPost, "/api/audits", body)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	resp := decode[models.AuditResponse](t, w)
	require.Len(t, resp.Jobs, 2)
	assert.Equal(t, 0, resp.Jobs[0].Index)
	assert.Equal(t, 1, resp.Jobs[1].Index)
	assert.NotEqual(t, resp.Jobs[0].JobID, resp.Jobs[1].JobID)
	assert.Equal(t, mockQueue.jobIDs, []string{resp.Jobs[0].JobID, resp.Jobs[1].JobID})
	assert.Equal(t, "restaurant", mockQueue.enqueued[0].BusinessType)
	assert.Equal(t, "markdown", mockQueue.enqueued[1].Format)
}

func TestCreateAuditErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"no documents", models.AuditRequest{}, http.StatusBadRequest},
		{"blank document", models.AuditRequest{Documents: []models.AnalyzeRequest{{Content: "ok"}, {Content: " "}}}, http.StatusBadRequest},
		{"invalid json", "[", http.StatusBadRequest},
		{"blank target keyword", models.AuditRequest{Documents: []models.AnalyzeRequest{{Content: "ok", TargetKeywords: []string{"faq", " "}}}}, http.StatusBadRequest},
		{"duplicate target keyword", models.AuditRequest{Documents: []models.AnalyzeRequest{{Content: "ok", TargetKeywords: []string{"FAQ", "faq"}}}}, http.StatusBadRequest},
		{"unknown format", models.AuditRequest{Documents: []models.AnalyzeRequest{{Content: "ok"}, {Content: "ok", Format: "pdf"}}}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _, mockQueue := setupTestHandler(t)
			w := doRequest(handler.mux, http.MethodPost, "/api/audits", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Empty(t, mockQueue.jobIDs, "nothing is queued for a rejected audit")
		})
	}

	t.Run("enqueue failure", func(t *testing.T) {
		handler, _, mockQueue := setupTestHandler(t)
		mockQueue.enqueueErr = errors.New("redis: connection refused")
		w := doRequest(handler.mux, http.MethodPost, "/api/audits", models.AuditRequest{Documents: []models.AnalyzeRequest{{Content: "x"}}})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("no queue configured", func(t *testing.T) {
		db := database.NewTestDB(t)
		a, err := analyzer.New(analyzer.DefaultConfig())
		require.NoError(t, err)
		handler := newHandler(db, audit.NewService(a, db), nil)

		w := doRequest(handler.mux, http.MethodPost, "/api/audits", models.AuditRequest{Documents: []models.AnalyzeRequest{{Content: "x"}}})
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		w = doRequest(handler.mux, http.MethodGet, "/api/jobs/unknown", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestJobStatus(t *testing.T) {
	handler, _, mockQueue := setupTestHandler(t)
	done := analyze(t, handler, models.AnalyzeRequest{Content: testContent})

	t.Run("stored under job id", func(t *testing.T) {
		w := doRequest(handler.mux, http.MethodGet, "/api/jobs/"+done.ID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		status := decode[models.JobStatus](t, w)
		assert.Equal(t, queue.StateCompleted, status.Status)
		assert.Equal(t, done.ID, status.AnalysisID)
		assert.Equal(t, done.Analysis.OverallScore, status.OverallScore)
	})

	t.Run("queued", func(t *testing.T) {
		mockQueue.state, mockQueue.analysisID, mockQueue.stateErr = queue.StateQueued, "", nil
		w := doRequest(handler.mux, http.MethodGet, "/api/jobs/pending-job", nil)
		require.Equal(t, http.StatusOK, w.Code)
		status := decode[models.JobStatus](t, w)
		assert.Equal(t, queue.StateQueued, status.Status)
		assert.Empty(t, status.AnalysisID)
	})

	t.Run("completed from cache", func(t *testing.T) {
		mockQueue.state, mockQueue.analysisID, mockQueue.stateErr = queue.StateCompleted, done.ID, nil
		w := doRequest(handler.mux, http.MethodGet, "/api/jobs/dup-job", nil)
		require.Equal(t, http.StatusOK, w.Code)
		status := decode[models.JobStatus](t, w)
		assert.Equal(t, "dup-job", status.JobID)
		assert.Equal(t, done.ID, status.AnalysisID)
	})

	t.Run("unknown", func(t *testing.T) {
		mockQueue.stateErr = queue.ErrJobNotFound
		w := doRequest(handler.mux, http.MethodGet, "/api/jobs/nope", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestListAndGetAnalyses(t *testing.T) {
	handler, _, _ := setupTestHandler(t)

	var ids []string
	for _, c := range []string{"First document.", "Second document.", "Third document."} {
		ids = append(ids, analyze(t, handler, models.AnalyzeRequest{Content: c}).ID)
	}

	w := doRequest(handler.mux, http.MethodGet, "/api/analyses?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3", w.Header().Get("X-Total-Count"))
	summaries := decode[[]models.Summary](t, w)
	assert.Len(t, summaries, 2)

	w = doRequest(handler.mux, http.MethodGet, "/api/analyses?limit=bogus&offset=-4", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Summary](t, w), 3)

	w = doRequest(handler.mux, http.MethodGet, "/api/analyses/"+ids[1], nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[models.Analysis](t, w)
	assert.Equal(t, "Second document.", got.Content)

	w = doRequest(handler.mux, http.MethodGet, "/api/hash/"+got.ContentHash, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ids[1], decode[models.Analysis](t, w).ID)

	w = doRequest(handler.mux, http.MethodGet, "/api/analyses/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(handler.mux, http.MethodGet, "/api/hash/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteAnalysis(t *testing.T) {
	handler, _, _ := setupTestHandler(t)
	id := analyze(t, handler, models.AnalyzeRequest{Content: "Delete this page."}).ID

	w := doRequest(handler.mux, http.MethodDelete, "/api/analyses/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(handler.mux, http.MethodDelete, "/api/analyses/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(handler.mux, http.MethodPut, "/api/analyses/"+id, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestSearchByRecommendation(t *testing.T) {
	handler, _, _ := setupTestHandler(t)
	short := analyze(t, handler, models.AnalyzeRequest{Content: "Too short to rank."})

	w := doRequest(handler.mux, http.MethodGet, "/api/search?recommendation="+analyzer.RecommendWordCount, nil)
	require.Equal(t, http.StatusOK, w.Code)
	summaries := decode[[]models.Summary](t, w)
	require.Len(t, summaries, 1)
	assert.Equal(t, short.ID, summaries[0].ID)

	w = doRequest(handler.mux, http.MethodGet, "/api/search", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestSuggestions(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		handler, _, mockQueue := setupTestHandler(t, audit.WithSuggester(stubSuggester{}))
		id := analyze(t, handler, models.AnalyzeRequest{Content: "Suggest for me."}).ID

		w := doRequest(handler.mux, http.MethodPost, "/api/analyses/"+id+"/suggestions", nil)
		require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
		assert.Equal(t, []string{id}, mockQueue.suggested)

		w = doRequest(handler.mux, http.MethodPost, "/api/analyses/missing/suggestions", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("disabled", func(t *testing.T) {
		handler, _, mockQueue := setupTestHandler(t)
		w := doRequest(handler.mux, http.MethodPost, "/api/analyses/any/suggestions", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Empty(t, mockQueue.suggested)
	})
}

func TestKeywordsEndpoint(t *testing.T) {
	handler, _, _ := setupTestHandler(t)

	w := doRequest(handler.mux, http.MethodGet, "/api/keywords", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `"profile":"geo"`)
	assert.Contains(t, body, "area served")
	assert.Contains(t, body, analyzer.StrategySentenceLength)
	assert.Contains(t, body, analyzer.BusinessRestaurant)
}

func TestCORSAndMetrics(t *testing.T) {
	db := database.NewTestDB(t)
	a, err := analyzer.New(analyzer.DefaultConfig())
	require.NoError(t, err)
	h := NewHandler(db, audit.NewService(a, db), nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = doRequest(h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "go_goroutines"))
}
