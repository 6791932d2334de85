// Package audit runs analyses against the result store: cached results are
// returned by content hash, new results are computed and persisted.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zombar/geoanalyzer/internal/analyzer"
	"github.com/zombar/geoanalyzer/internal/database"
	"github.com/zombar/geoanalyzer/internal/metrics"
	"github.com/zombar/geoanalyzer/internal/models"
	"github.com/zombar/geoanalyzer/internal/tracing"
)

// ErrNoSuggester is returned by Suggest when no LLM client is configured.
var ErrNoSuggester = errors.New("suggestions are not enabled")

// Store is the subset of the database used by the service.
type Store interface {
	SaveAnalysis(ctx context.Context, analysis *models.Analysis) error
	GetAnalysis(ctx context.Context, id string) (*models.Analysis, error)
	GetAnalysisByHash(ctx context.Context, hash string) (*models.Analysis, error)
	UpdateSuggestions(ctx context.Context, id, suggestions string) error
}

// Suggester turns recommendations into rewrite suggestions.
type Suggester interface {
	SuggestImprovements(ctx context.Context, content string, recs []analyzer.Recommendation) (string, error)
}

// Service coordinates the analyzer and the store.
type Service struct {
	analyzer  *analyzer.Analyzer
	store     Store
	metrics   *metrics.BusinessMetrics
	suggester Suggester
	logger    *slog.Logger
	now       func() time.Time
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithMetrics records analysis metrics.
func WithMetrics(m *metrics.BusinessMetrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithSuggester enables LLM rewrite suggestions.
func WithSuggester(sg Suggester) ServiceOption {
	return func(s *Service) { s.suggester = sg }
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service.
func NewService(a *analyzer.Analyzer, store Store, opts ...ServiceOption) *Service {
	s := &Service{
		analyzer: a,
		store:    store,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyzer returns the underlying analyzer.
func (s *Service) Analyzer() *analyzer.Analyzer { return s.analyzer }

// SuggestionsEnabled reports whether Suggest can run.
func (s *Service) SuggestionsEnabled() bool { return s.suggester != nil }

// Analyze returns the stored analysis for content and opts, computing and
// saving it on a cache miss. id names the new record; an empty id gets a
// fresh UUID. The boolean is true when the result came from the store; its
// metadata echo then reflects opts while the stored record keeps the first
// submission's.
func (s *Service) Analyze(ctx context.Context, id, content string, opts analyzer.Options) (*models.Analysis, bool, error) {
	ctx, span := tracing.Tracer().Start(ctx, "audit.analyze",
		trace.WithAttributes(attribute.Int("content.length", len(content))),
	)
	defer span.End()

	profile := s.analyzer.Config().Profile
	hash := s.analyzer.CacheKey(content, opts)
	span.SetAttributes(attribute.String("content.hash", hash))

	if cached, err := s.store.GetAnalysisByHash(ctx, hash); err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true), attribute.String("analysis.id", cached.ID))
		s.observeOutcome(profile, metrics.OutcomeCached)
		return withMetadata(cached, opts), true, nil
	} else if !errors.Is(err, database.ErrNotFound) {
		tracing.RecordError(ctx, err)
		s.observeOutcome(profile, metrics.OutcomeError)
		return nil, false, fmt.Errorf("failed to look up cached analysis: %w", err)
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	start := s.now()
	result, err := s.analyzer.Analyze(content, opts)
	if err != nil {
		var verr *analyzer.ValidationError
		if errors.As(err, &verr) {
			s.observeOutcome(profile, metrics.OutcomeInvalid)
		} else {
			s.observeOutcome(profile, metrics.OutcomeError)
		}
		tracing.RecordError(ctx, err)
		return nil, false, err
	}
	duration := s.now().Sub(start)

	if id == "" {
		id = uuid.NewString()
	}
	now := s.now().UTC()
	analysis := &models.Analysis{
		ID:           id,
		ContentHash:  hash,
		Content:      content,
		Profile:      result.Profile,
		OverallScore: result.OverallScore,
		Result:       *result,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.SaveAnalysis(ctx, analysis); err != nil {
		// A concurrent request may have stored the same content first.
		if existing, lookupErr := s.store.GetAnalysisByHash(ctx, hash); lookupErr == nil {
			s.observeOutcome(profile, metrics.OutcomeCached)
			return withMetadata(existing, opts), true, nil
		}
		tracing.RecordError(ctx, err)
		s.observeOutcome(profile, metrics.OutcomeError)
		return nil, false, fmt.Errorf("failed to save analysis: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ObserveAnalysis(profile, duration, result.OverallScore)
		for _, rec := range result.Recommendations {
			s.metrics.ObserveRecommendation(rec.Type, rec.Priority)
		}
	}
	span.SetAttributes(
		attribute.String("analysis.id", analysis.ID),
		attribute.Float64("analysis.overall_score", analysis.OverallScore),
		attribute.Int("analysis.recommendations", len(result.Recommendations)),
	)
	s.logger.InfoContext(ctx, "analysis saved",
		"analysis_id", analysis.ID,
		"profile", profile,
		"overall_score", analysis.OverallScore,
		"word_count", result.Lexical.WordCount,
		"duration_ms", float64(duration.Microseconds())/1000,
	)

	return analysis, false, nil
}

// Suggest generates rewrite suggestions for a stored analysis and saves
// them beside the result. Scores are not changed.
func (s *Service) Suggest(ctx context.Context, id string) (string, error) {
	if s.suggester == nil {
		return "", ErrNoSuggester
	}

	ctx, span := tracing.Tracer().Start(ctx, "audit.suggest",
		trace.WithAttributes(attribute.String("analysis.id", id)),
	)
	defer span.End()

	analysis, err := s.store.GetAnalysis(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve analysis: %w", err)
	}

	suggestions, err := s.suggester.SuggestImprovements(ctx, analysis.Content, analysis.Result.Recommendations)
	if err != nil {
		tracing.RecordError(ctx, err)
		s.observeSuggestion(metrics.OutcomeError)
		return "", fmt.Errorf("failed to generate suggestions: %w", err)
	}

	if err := s.store.UpdateSuggestions(ctx, id, suggestions); err != nil {
		s.observeSuggestion(metrics.OutcomeError)
		return "", fmt.Errorf("failed to save suggestions: %w", err)
	}

	s.observeSuggestion(metrics.OutcomeSuccess)
	s.logger.InfoContext(ctx, "suggestions saved", "analysis_id", id, "length", len(suggestions))
	return suggestions, nil
}

// withMetadata returns a copy of a whose result echoes the metadata in opts.
func withMetadata(a *models.Analysis, opts analyzer.Options) *models.Analysis {
	out := *a
	out.Result.Metadata = opts.Metadata()
	return &out
}

func (s *Service) observeOutcome(profile, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveOutcome(profile, outcome)
	}
}

func (s *Service) observeSuggestion(outcome string) {
	if s.metrics != nil {
		s.metrics.SuggestionsTotal.WithLabelValues(outcome).Inc()
	}
}
