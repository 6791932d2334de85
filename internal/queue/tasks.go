package queue

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zombar/geoanalyzer/internal/analyzer"
	"github.com/zombar/geoanalyzer/internal/audit"
	"github.com/zombar/geoanalyzer/internal/database"
	"github.com/zombar/geoanalyzer/internal/ollama"
	"github.com/zombar/geoanalyzer/internal/tracing"
)

// handleAnalyzeDocument analyzes and stores one queued document, then
// schedules LLM suggestions when they are enabled.
func (w *Worker) handleAnalyzeDocument(ctx context.Context, t *asynq.Task) error {
	var payload AnalyzeDocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		w.logger.Error("failed to unmarshal task payload", "error", err)
		return fmt.Errorf("invalid task payload: %w: %w", err, asynq.SkipRetry)
	}

	ctx, span, wait := startTaskSpan(ctx, TypeAnalyzeDocument, payload.AnalysisID, payload.TraceID, payload.SpanID, payload.EnqueuedAt)
	defer span.End()

	req, err := payload.Request()
	if err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("invalid task content: %w: %w", err, asynq.SkipRetry)
	}

	w.logger.Info("analyzing queued document",
		"analysis_id", payload.AnalysisID,
		"content_length", len(req.Content),
		"queue_wait_seconds", wait.Seconds(),
	)

	analysis, cached, err := w.service.Analyze(ctx, payload.AnalysisID, req.Content, req.Options())
	if err != nil {
		var verr *analyzer.ValidationError
		if errors.As(err, &verr) {
			w.logger.Warn("rejecting invalid document", "analysis_id", payload.AnalysisID, "error", err)
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("failed to analyze document: %w", err)
	}

	span.SetAttributes(
		attribute.String("result.analysis_id", analysis.ID),
		attribute.Bool("cache.hit", cached),
		attribute.Float64("analysis.overall_score", analysis.OverallScore),
	)

	if rw := t.ResultWriter(); rw != nil {
		if _, err := rw.Write([]byte(analysis.ID)); err != nil {
			w.logger.Warn("failed to write task result", "analysis_id", analysis.ID, "error", err)
		}
	}

	if w.service.SuggestionsEnabled() && w.enqueuer != nil &&
		len(analysis.Result.Recommendations) > 0 && analysis.AISuggestions == "" {
		if _, err := w.enqueuer.EnqueueSuggestImprovements(ctx, analysis.ID); err != nil {
			// Suggestions are optional; the analysis itself succeeded.
			w.logger.Error("failed to enqueue suggestions", "analysis_id", analysis.ID, "error", err)
		}
	}

	w.logger.Info("queued document analyzed",
		"analysis_id", analysis.ID,
		"cached", cached,
		"overall_score", analysis.OverallScore,
	)
	return nil
}

// handleSuggestImprovements generates LLM rewrite suggestions for a stored
// analysis. Transient LLM failures are retried; everything else is not.
func (w *Worker) handleSuggestImprovements(ctx context.Context, t *asynq.Task) error {
	var payload SuggestImprovementsPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		w.logger.Error("failed to unmarshal task payload", "error", err)
		return fmt.Errorf("invalid task payload: %w: %w", err, asynq.SkipRetry)
	}

	ctx, span, wait := startTaskSpan(ctx, TypeSuggestImprovements, payload.AnalysisID, payload.TraceID, payload.SpanID, payload.EnqueuedAt)
	defer span.End()

	retryCount, _ := asynq.GetRetryCount(ctx)
	w.logger.Info("generating suggestions",
		"analysis_id", payload.AnalysisID,
		"retry_count", retryCount,
		"queue_wait_seconds", wait.Seconds(),
	)

	suggestions, err := w.service.Suggest(ctx, payload.AnalysisID)
	if err != nil {
		switch {
		case errors.Is(err, audit.ErrNoSuggester), errors.Is(err, database.ErrNotFound):
			w.logger.Warn("skipping suggestions", "analysis_id", payload.AnalysisID, "error", err)
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		case ollama.IsRetriable(err):
			w.logger.Warn("retriable Ollama error, will retry",
				"analysis_id", payload.AnalysisID,
				"error", err,
				"retry_count", retryCount,
			)
			return err
		default:
			w.logger.Error("permanent error generating suggestions", "analysis_id", payload.AnalysisID, "error", err)
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
	}

	w.logger.Info("suggestions completed",
		"analysis_id", payload.AnalysisID,
		"length", len(suggestions),
		"retry_count", retryCount,
	)
	return nil
}

// startTaskSpan starts a consumer span parented to the enqueuing span
// carried in the payload, or to whatever span ctx already holds.
func startTaskSpan(ctx context.Context, taskType, analysisID, traceID, spanID string, enqueuedAt int64) (context.Context, trace.Span, time.Duration) {
	var wait time.Duration
	if enqueuedAt > 0 {
		wait = time.Since(time.Unix(0, enqueuedAt))
	}

	ctx = tracing.ContextWithRemoteParent(ctx, traceID, spanID)
	ctx, span := tracing.Tracer().Start(ctx, "asynq.task.process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("task.type", taskType),
			attribute.String("analysis.id", analysisID),
			attribute.Float64("queue.wait_time_seconds", wait.Seconds()),
			attribute.Int64("enqueued_at", enqueuedAt),
		),
	)
	span.AddEvent("task_processing_started")
	return ctx, span, wait
}

// compressContent gzips and base64 encodes document content
func compressContent(content string) (string, error) {
	if content == "" {
		return "", nil
	}

	var buf bytes.Buffer
	gzWriter := gzip.NewWriter(&buf)

	if _, err := gzWriter.Write([]byte(content)); err != nil {
		return "", fmt.Errorf("failed to write to gzip: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return "", fmt.Errorf("failed to close gzip writer: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// decompressContent reverses compressContent
func decompressContent(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}

	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}

	gzReader, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return "", fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzReader.Close()

	decompressed, err := io.ReadAll(gzReader)
	if err != nil {
		return "", fmt.Errorf("failed to read decompressed data: %w", err)
	}

	return string(decompressed), nil
}
