package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zombar/geoanalyzer/internal/models"
)

// Task type constants
const (
	TypeAnalyzeDocument     = "geoanalyzer:analyze_document"
	TypeSuggestImprovements = "geoanalyzer:suggest_improvements"
)

// Queue names
const (
	QueueAnalysis    = "analysis"
	QueueSuggestions = "suggestions"
)

// Job states reported by JobState
const (
	StateQueued    = "queued"
	StateActive    = "active"
	StateRetrying  = "retrying"
	StateCompleted = "completed"
	StateFailed    = "failed"
	StateUnknown   = "unknown"
)

// ErrJobNotFound is returned when no task exists for a job id.
var ErrJobNotFound = errors.New("job not found")

// AnalyzeDocumentPayload is the payload of an analyze_document task
type AnalyzeDocumentPayload struct {
	AnalysisID     string     `json:"analysis_id"`
	Content        string     `json:"content"` // gzip + base64
	TargetKeywords []string   `json:"target_keywords,omitempty"`
	BusinessType   string     `json:"business_type,omitempty"`
	LastUpdated    *time.Time `json:"last_updated,omitempty"`
	Format         string     `json:"format,omitempty"`
	// Tracing and timing fields
	TraceID    string `json:"trace_id,omitempty"`
	SpanID     string `json:"span_id,omitempty"`
	EnqueuedAt int64  `json:"enqueued_at"` // Unix timestamp in nanoseconds
}

// Request rebuilds the analyze request carried by the payload.
func (p AnalyzeDocumentPayload) Request() (models.AnalyzeRequest, error) {
	content, err := decompressContent(p.Content)
	if err != nil {
		return models.AnalyzeRequest{}, err
	}
	return models.AnalyzeRequest{
		Content:        content,
		TargetKeywords: p.TargetKeywords,
		BusinessType:   p.BusinessType,
		LastUpdated:    p.LastUpdated,
		Format:         p.Format,
	}, nil
}

// SuggestImprovementsPayload is the payload of a suggest_improvements task
type SuggestImprovementsPayload struct {
	AnalysisID string `json:"analysis_id"`
	TraceID    string `json:"trace_id,omitempty"`
	SpanID     string `json:"span_id,omitempty"`
	EnqueuedAt int64  `json:"enqueued_at"`
}

// Client wraps the Asynq client for enqueueing tasks
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// ClientConfig contains configuration for the queue client
type ClientConfig struct {
	RedisAddr string
}

// NewClient creates a new queue client
func NewClient(cfg ClientConfig) *Client {
	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}

	return &Client{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
	}
}

// EnqueueAnalyzeDocument enqueues an analysis of req under jobID. The job id
// becomes the task id, so resubmitting the same id is rejected by asynq.
func (c *Client) EnqueueAnalyzeDocument(ctx context.Context, jobID string, req models.AnalyzeRequest) (string, error) {
	content, err := compressContent(req.Content)
	if err != nil {
		return "", err
	}

	payload := AnalyzeDocumentPayload{
		AnalysisID:     jobID,
		Content:        content,
		TargetKeywords: req.TargetKeywords,
		BusinessType:   req.BusinessType,
		LastUpdated:    req.LastUpdated,
		Format:         req.Format,
		EnqueuedAt:     time.Now().UnixNano(),
	}
	payload.TraceID, payload.SpanID = recordEnqueue(ctx, TypeAnalyzeDocument, jobID, payload.EnqueuedAt)

	task, err := newTask(TypeAnalyzeDocument, payload, jobID)
	if err != nil {
		return "", err
	}

	info, err := c.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(3),
		asynq.Timeout(2*time.Minute),
		asynq.Queue(QueueAnalysis),
		asynq.Retention(24*time.Hour), // keeps the result readable by JobState
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue analyze document task: %w", err)
	}
	return info.ID, nil
}

// EnqueueSuggestImprovements enqueues LLM suggestions for a stored analysis
func (c *Client) EnqueueSuggestImprovements(ctx context.Context, analysisID string) (string, error) {
	payload := SuggestImprovementsPayload{
		AnalysisID: analysisID,
		EnqueuedAt: time.Now().UnixNano(),
	}
	payload.TraceID, payload.SpanID = recordEnqueue(ctx, TypeSuggestImprovements, analysisID, payload.EnqueuedAt)

	taskID := analysisID + "-suggest"
	task, err := newTask(TypeSuggestImprovements, payload, taskID)
	if err != nil {
		return "", err
	}

	info, err := c.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(10), // high retry tolerance for Ollama
		asynq.Timeout(10*time.Minute),
		asynq.Queue(QueueSuggestions),
		asynq.Retention(24*time.Hour),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		// already queued or recently run for this analysis
		return taskID, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to enqueue suggest improvements task: %w", err)
	}
	return info.ID, nil
}

// JobState reports the queue state of an analyze job and, once completed,
// the id of the analysis it produced.
func (c *Client) JobState(jobID string) (state, analysisID string, err error) {
	info, err := c.inspector.GetTaskInfo(QueueAnalysis, jobID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return "", "", ErrJobNotFound
		}
		return "", "", fmt.Errorf("failed to get task info: %w", err)
	}
	return taskState(info.State), string(info.Result), nil
}

// Close closes the client connection
func (c *Client) Close() error {
	if err := c.inspector.Close(); err != nil {
		c.client.Close()
		return err
	}
	return c.client.Close()
}

func taskState(s asynq.TaskState) string {
	switch s {
	case asynq.TaskStatePending, asynq.TaskStateScheduled, asynq.TaskStateAggregating:
		return StateQueued
	case asynq.TaskStateActive:
		return StateActive
	case asynq.TaskStateRetry:
		return StateRetrying
	case asynq.TaskStateCompleted:
		return StateCompleted
	case asynq.TaskStateArchived:
		return StateFailed
	default:
		return StateUnknown
	}
}

func newTask(taskType string, payload any, taskID string) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}
	return asynq.NewTask(taskType, data, asynq.TaskID(taskID)), nil
}

// recordEnqueue adds an enqueue event to the active span and returns its ids
// for the payload.
func recordEnqueue(ctx context.Context, taskType, id string, enqueuedAt int64) (traceID, spanID string) {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return "", ""
	}

	span.AddEvent("task_enqueued", trace.WithAttributes(
		attribute.String("task.type", taskType),
		attribute.String("analysis.id", id),
		attribute.Int64("enqueued_at", enqueuedAt),
	))
	sc := span.SpanContext()
	return sc.TraceID().String(), sc.SpanID().String()
}
