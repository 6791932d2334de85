package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zombar/geoanalyzer/internal/analyzer"
	"github.com/zombar/geoanalyzer/internal/audit"
	"github.com/zombar/geoanalyzer/internal/database"
	"github.com/zombar/geoanalyzer/internal/models"
	"github.com/zombar/geoanalyzer/internal/queue"
	"github.com/zombar/geoanalyzer/internal/tracing"
	"github.com/zombar/geoanalyzer/pkg/logging"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	maxAuditBatch   = 500
	maxBodyBytes    = 10 << 20
)

// QueueClient is the part of the queue client used by the API.
type QueueClient interface {
	EnqueueAnalyzeDocument(ctx context.Context, jobID string, req models.AnalyzeRequest) (string, error)
	EnqueueSuggestImprovements(ctx context.Context, analysisID string) (string, error)
	JobState(jobID string) (state, analysisID string, err error)
}

// Handler handles HTTP requests
type Handler struct {
	db          *database.DB
	service     *audit.Service
	queueClient QueueClient
	logger      *slog.Logger
	mux         *http.ServeMux
}

// NewHandler creates a new API handler with CORS support and metrics.
// queueClient may be nil, in which case the asynchronous endpoints answer 503.
func NewHandler(db *database.DB, service *audit.Service, queueClient QueueClient) http.Handler {
	h := newHandler(db, service, queueClient)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Total-Count"},
		AllowCredentials: true,
	})

	return c.Handler(h.mux)
}

func newHandler(db *database.DB, service *audit.Service, queueClient QueueClient) *Handler {
	h := &Handler{
		db:          db,
		service:     service,
		queueClient: queueClient,
		logger:      slog.Default(),
		mux:         http.NewServeMux(),
	}
	h.setupRoutes()
	return h
}

// setupRoutes configures all API routes
func (h *Handler) setupRoutes() {
	h.mux.Handle("/metrics", promhttp.Handler())
	h.mux.HandleFunc("/health", h.handleHealth)
	h.mux.HandleFunc("/api/analyze", h.handleAnalyze)
	h.mux.HandleFunc("/api/audits", h.handleCreateAudit)
	h.mux.HandleFunc("/api/jobs/", h.handleJobStatus)
	h.mux.HandleFunc("/api/analyses", h.handleListAnalyses)
	h.mux.HandleFunc("/api/analyses/", h.handleAnalysisOperations)
	h.mux.HandleFunc("/api/hash/", h.handleGetByHash)
	h.mux.HandleFunc("/api/search", h.handleSearchByRecommendation)
	h.mux.HandleFunc("/api/keywords", h.handleKeywords)
}

// handleHealth handles health check requests
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := h.db.Conn().PingContext(ctx); err != nil {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	respondJSON(w, map[string]any{
		"status":  status,
		"time":    time.Now().Format(time.RFC3339),
		"profile": h.service.Analyzer().Config().Profile,
		"queue":   h.queueClient != nil,
	}, code)
}

// handleAnalyze analyzes content synchronously, serving cached results for
// content already seen with the same options.
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.AnalyzeRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	tracing.SetSpanAttributes(r.Context(),
		attribute.Int("content.length", len(req.Content)),
		attribute.Int("target_keywords.count", len(req.TargetKeywords)),
	)

	analysis, cached, err := h.service.Analyze(r.Context(), "", req.Content, req.Options())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	tracing.SetSpanAttributes(r.Context(),
		attribute.String("analysis.id", analysis.ID),
		attribute.Bool("cache.hit", cached),
	)

	respondJSON(w, models.AnalyzeResponse{
		ID:          analysis.ID,
		ContentHash: analysis.ContentHash,
		Cached:      cached,
		Analysis:    analysis,
	}, http.StatusOK)
}

// handleCreateAudit queues documents for asynchronous analysis
func (h *Handler) handleCreateAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.queueClient == nil {
		respondError(w, "Asynchronous audits are not enabled", http.StatusServiceUnavailable)
		return
	}

	var req models.AuditRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Documents) == 0 {
		respondError(w, "At least one document is required", http.StatusBadRequest)
		return
	}
	if len(req.Documents) > maxAuditBatch {
		respondError(w, fmt.Sprintf("At most %d documents per audit", maxAuditBatch), http.StatusBadRequest)
		return
	}
	for i, doc := range req.Documents {
		if strings.TrimSpace(doc.Content) == "" {
			respondError(w, fmt.Sprintf("Document %d: content cannot be empty", i), http.StatusBadRequest)
			return
		}
		if err := analyzer.ValidateOptions(doc.Options()); err != nil {
			respondError(w, fmt.Sprintf("Document %d: %s", i, err.Error()), http.StatusBadRequest)
			return
		}
	}

	tracing.SetSpanAttributes(r.Context(), attribute.Int("audit.documents", len(req.Documents)))

	resp := models.AuditResponse{Jobs: make([]models.AuditJob, 0, len(req.Documents))}
	for i, doc := range req.Documents {
		jobID := uuid.NewString()
		if _, err := h.queueClient.EnqueueAnalyzeDocument(r.Context(), jobID, doc); err != nil {
			h.fail(w, r, fmt.Errorf("failed to enqueue document %d: %w", i, err))
			return
		}
		resp.Jobs = append(resp.Jobs, models.AuditJob{JobID: jobID, Index: i})
	}

	respondJSON(w, resp, http.StatusAccepted)
}

// handleJobStatus handles job status requests
func (h *Handler) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobID := pathParam(r.URL.Path, "/api/jobs/")
	if jobID == "" {
		respondError(w, "Job ID is required", http.StatusBadRequest)
		return
	}

	// A job whose content was new is stored under its own id.
	analysis, err := h.db.GetAnalysis(r.Context(), jobID)
	if err == nil {
		respondJSON(w, models.JobStatus{JobID: jobID, Status: queue.StateCompleted, AnalysisID: analysis.ID, OverallScore: analysis.OverallScore}, http.StatusOK)
		return
	}
	if !errors.Is(err, database.ErrNotFound) {
		h.fail(w, r, err)
		return
	}

	if h.queueClient == nil {
		respondError(w, "Job not found", http.StatusNotFound)
		return
	}

	state, analysisID, err := h.queueClient.JobState(jobID)
	if err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			respondError(w, "Job not found", http.StatusNotFound)
			return
		}
		h.fail(w, r, err)
		return
	}

	status := models.JobStatus{JobID: jobID, Status: state}
	// Cached content completes with the id of the earlier analysis.
	if state == queue.StateCompleted && analysisID != "" {
		if existing, err := h.db.GetAnalysis(r.Context(), analysisID); err == nil {
			status.AnalysisID = existing.ID
			status.OverallScore = existing.OverallScore
		}
	}
	respondJSON(w, status, http.StatusOK)
}

// handleListAnalyses handles listing analyses with pagination
func (h *Handler) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := queryInt(r, "limit", defaultPageSize, 1, maxPageSize)
	offset := queryInt(r, "offset", 0, 0, -1)

	analyses, err := h.db.ListAnalyses(r.Context(), limit, offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	total, err := h.db.CountAnalyses(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	respondJSON(w, summarize(analyses), http.StatusOK)
}

// handleAnalysisOperations handles GET and DELETE for specific analyses and
// POST /api/analyses/{id}/suggestions
func (h *Handler) handleAnalysisOperations(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(r.URL.Path[len("/api/analyses/"):], "/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		respondError(w, "Analysis ID is required", http.StatusBadRequest)
		return
	}

	switch {
	case sub == "suggestions" && r.Method == http.MethodPost:
		h.requestSuggestions(w, r, id)
	case sub != "":
		http.NotFound(w, r)
	case r.Method == http.MethodGet:
		h.getAnalysis(w, r, id)
	case r.Method == http.MethodDelete:
		h.deleteAnalysis(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// getAnalysis retrieves a specific analysis
func (h *Handler) getAnalysis(w http.ResponseWriter, r *http.Request, id string) {
	analysis, err := h.db.GetAnalysis(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, analysis, http.StatusOK)
}

// deleteAnalysis deletes a specific analysis
func (h *Handler) deleteAnalysis(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.db.DeleteAnalysis(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requestSuggestions queues LLM rewrite suggestions for an analysis
func (h *Handler) requestSuggestions(w http.ResponseWriter, r *http.Request, id string) {
	if h.queueClient == nil || !h.service.SuggestionsEnabled() {
		respondError(w, "Suggestions are not enabled", http.StatusServiceUnavailable)
		return
	}
	if _, err := h.db.GetAnalysis(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}

	taskID, err := h.queueClient.EnqueueSuggestImprovements(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, map[string]string{
		"analysis_id": id,
		"task_id":     taskID,
		"status":      queue.StateQueued,
	}, http.StatusAccepted)
}

// handleGetByHash returns the analysis stored for a content hash
func (h *Handler) handleGetByHash(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	hash := pathParam(r.URL.Path, "/api/hash/")
	if hash == "" {
		respondError(w, "Content hash is required", http.StatusBadRequest)
		return
	}

	analysis, err := h.db.GetAnalysisByHash(r.Context(), hash)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, analysis, http.StatusOK)
}

// handleSearchByRecommendation lists analyses that received a
// recommendation of the given type
func (h *Handler) handleSearchByRecommendation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	recType := r.URL.Query().Get("recommendation")
	if recType == "" {
		respondError(w, "Recommendation parameter is required", http.StatusBadRequest)
		return
	}

	analyses, err := h.db.GetAnalysesByRecommendation(r.Context(), recType, queryInt(r, "limit", defaultPageSize, 1, maxPageSize))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, summarize(analyses), http.StatusOK)
}

// handleKeywords describes the analyzer configuration in use
func (h *Handler) handleKeywords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	a := h.service.Analyzer()
	respondJSON(w, map[string]any{
		"profile":                a.Config().Profile,
		"keyword_set":            a.KeywordSet(),
		"config":                 a.Config(),
		"readability_strategies": analyzer.ReadabilityStrategies(),
		"business_types":         analyzer.BusinessTypes(),
	}, http.StatusOK)
}

// fail maps err to a status code and writes an error response
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *analyzer.ValidationError
	status := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case errors.As(err, &verr):
		status, message = http.StatusBadRequest, verr.Error()
	case errors.Is(err, database.ErrNotFound):
		status, message = http.StatusNotFound, "Analysis not found"
	case errors.Is(err, context.DeadlineExceeded):
		status, message = http.StatusRequestTimeout, "Request timeout"
	}

	if status >= http.StatusInternalServerError {
		tracing.RecordError(r.Context(), err)
	}
	logging.HTTPErrorLogger(h.logger, status, err, r)
	respondError(w, message, status)
}

func summarize(analyses []*models.Analysis) []models.Summary {
	out := make([]models.Summary, 0, len(analyses))
	for _, a := range analyses {
		out = append(out, a.Summarize())
	}
	return out
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// pathParam returns the first path segment after prefix
func pathParam(path, prefix string) string {
	id := strings.TrimPrefix(path, prefix)
	if idx := strings.Index(id, "/"); idx != -1 {
		id = id[:idx]
	}
	return id
}

// queryInt parses an integer query parameter, falling back to def when it
// is missing or below lo; hi < 0 means unbounded.
func queryInt(r *http.Request, key string, def, lo, hi int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < lo {
		return def
	}
	if hi >= 0 && v > hi {
		return hi
	}
	return v
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, map[string]string{"error": message}, statusCode)
}
