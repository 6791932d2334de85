package models

import (
	"time"

	"github.com/zombar/geoanalyzer/internal/analyzer"
)

// Analysis is a stored content analysis
type Analysis struct {
	ID            string                  `json:"id"`
	ContentHash   string                  `json:"content_hash"`
	Content       string                  `json:"content"`
	Profile       string                  `json:"profile"`
	OverallScore  float64                 `json:"overall_score"`
	Result        analyzer.AnalysisResult `json:"result"`
	AISuggestions string                  `json:"ai_suggestions,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// Summary is the list view of an analysis, without content or the full result
type Summary struct {
	ID              string    `json:"id"`
	ContentHash     string    `json:"content_hash"`
	Profile         string    `json:"profile"`
	OverallScore    float64   `json:"overall_score"`
	WordCount       int       `json:"word_count"`
	Recommendations int       `json:"recommendations"`
	CreatedAt       time.Time `json:"created_at"`
}

// Summarize builds the list view of a.
func (a *Analysis) Summarize() Summary {
	return Summary{
		ID:              a.ID,
		ContentHash:     a.ContentHash,
		Profile:         a.Profile,
		OverallScore:    a.OverallScore,
		WordCount:       a.Result.Lexical.WordCount,
		Recommendations: len(a.Result.Recommendations),
		CreatedAt:       a.CreatedAt,
	}
}

// AnalyzeRequest is the body of a synchronous analysis request
type AnalyzeRequest struct {
	Content        string     `json:"content"`
	TargetKeywords []string   `json:"target_keywords,omitempty"`
	BusinessType   string     `json:"business_type,omitempty"`
	LastUpdated    *time.Time `json:"last_updated,omitempty"`
	Format         string     `json:"format,omitempty"`
}

// Options converts the request into analyzer options.
func (r AnalyzeRequest) Options() analyzer.Options {
	return analyzer.Options{
		TargetKeywords: r.TargetKeywords,
		BusinessType:   r.BusinessType,
		LastUpdated:    r.LastUpdated,
		Format:         analyzer.Format(r.Format),
	}
}

// AnalyzeResponse is returned by the analyze endpoint
type AnalyzeResponse struct {
	ID          string    `json:"id"`
	ContentHash string    `json:"content_hash"`
	Cached      bool      `json:"cached"`
	Analysis    *Analysis `json:"analysis"`
}

// AuditRequest submits documents for asynchronous analysis
type AuditRequest struct {
	Documents []AnalyzeRequest `json:"documents"`
}

// AuditJob identifies one queued document
type AuditJob struct {
	JobID string `json:"job_id"`
	Index int    `json:"index"`
}

// AuditResponse is returned when documents are queued
type AuditResponse struct {
	Jobs []AuditJob `json:"jobs"`
}

// JobStatus reports the state of a queued analysis
type JobStatus struct {
	JobID        string  `json:"job_id"`
	Status       string  `json:"status"`
	AnalysisID   string  `json:"analysis_id,omitempty"`
	OverallScore float64 `json:"overall_score,omitempty"`
}
