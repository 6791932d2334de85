package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/zombar/geoanalyzer/internal/analyzer"
	"github.com/zombar/geoanalyzer/internal/models"
)

// AuditService is the part of the audit service used by task handlers.
type AuditService interface {
	Analyze(ctx context.Context, id, content string, opts analyzer.Options) (*models.Analysis, bool, error)
	Suggest(ctx context.Context, id string) (string, error)
	SuggestionsEnabled() bool
}

// Enqueuer schedules follow-up tasks from inside a handler.
type Enqueuer interface {
	EnqueueSuggestImprovements(ctx context.Context, analysisID string) (string, error)
}

// queuePriorities weights the named queues (higher value = higher priority).
var queuePriorities = map[string]int{
	QueueAnalysis:    6,
	QueueSuggestions: 2,
}

// Worker wraps the Asynq server for processing tasks
type Worker struct {
	server      *asynq.Server
	mux         *asynq.ServeMux
	service     AuditService
	enqueuer    Enqueuer
	concurrency int
	logger      *slog.Logger
}

// WorkerConfig contains configuration for the queue worker
type WorkerConfig struct {
	RedisAddr   string
	Concurrency int
}

// NewWorker creates a new queue worker
func NewWorker(cfg WorkerConfig, service AuditService, enqueuer Enqueuer) *Worker {
	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}

	serverCfg := asynq.Config{
		Concurrency:     cfg.Concurrency,
		Queues:          queuePriorities,
		StrictPriority:  false,
		RetryDelayFunc:  retryDelay,
		ShutdownTimeout: 30 * time.Second,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)

			slog.Error("task processing error",
				"task_type", task.Type(),
				"error", err,
				"retry_count", retried,
				"max_retries", maxRetry,
			)
		}),
	}

	w := newWorker(service, enqueuer, slog.Default())
	w.server = asynq.NewServer(redisOpt, serverCfg)
	w.concurrency = cfg.Concurrency
	return w
}

func newWorker(service AuditService, enqueuer Enqueuer, logger *slog.Logger) *Worker {
	w := &Worker{
		mux:      asynq.NewServeMux(),
		service:  service,
		enqueuer: enqueuer,
		logger:   logger,
	}
	w.mux.HandleFunc(TypeAnalyzeDocument, w.handleAnalyzeDocument)
	w.mux.HandleFunc(TypeSuggestImprovements, w.handleSuggestImprovements)
	return w
}

// Start begins processing tasks in the background. Call Shutdown to stop.
func (w *Worker) Start() error {
	w.logger.Info("starting asynq worker",
		"concurrency", w.concurrency,
		"queues", queuePriorities,
		"suggestions_enabled", w.service.SuggestionsEnabled(),
	)

	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("asynq server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the worker
func (w *Worker) Shutdown() {
	w.logger.Info("shutting down asynq worker")
	w.server.Shutdown()
}

var (
	// 30s, 1m, 2m, 5m, 10m, 20m, 30m, 1h, 2h, 4h
	llmRetryDelays = []time.Duration{
		30 * time.Second,
		1 * time.Minute,
		2 * time.Minute,
		5 * time.Minute,
		10 * time.Minute,
		20 * time.Minute,
		30 * time.Minute,
		1 * time.Hour,
		2 * time.Hour,
		4 * time.Hour,
	}
	standardRetryDelays = []time.Duration{
		10 * time.Second,
		1 * time.Minute,
		5 * time.Minute,
	}
)

// retryDelay backs off LLM tasks aggressively and analysis tasks briefly.
func retryDelay(n int, _ error, task *asynq.Task) time.Duration {
	delays := standardRetryDelays
	if task.Type() == TypeSuggestImprovements {
		delays = llmRetryDelays
	}
	if n < 0 {
		n = 0
	}
	if n < len(delays) {
		return delays[n]
	}
	return delays[len(delays)-1]
}
