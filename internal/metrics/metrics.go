// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Analysis outcomes
const (
	OutcomeSuccess = "success"
	OutcomeCached  = "cached"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// BusinessMetrics tracks analysis volume, latency, and scoring results.
type BusinessMetrics struct {
	AnalysesTotal        *prometheus.CounterVec
	AnalysisDuration     prometheus.Histogram
	OverallScore         *prometheus.HistogramVec
	RecommendationsTotal *prometheus.CounterVec
	SuggestionsTotal     *prometheus.CounterVec
}

// NewBusinessMetrics creates and registers the analysis collectors.
func NewBusinessMetrics(namespace string, reg prometheus.Registerer) *BusinessMetrics {
	m := &BusinessMetrics{
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Number of content analyses by profile and outcome.",
		}, []string{"profile", "outcome"}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time spent analyzing a single document.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		OverallScore: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "overall_score",
			Help:      "Distribution of overall content scores.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}, []string{"profile"}),
		RecommendationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_total",
			Help:      "Recommendations issued by type and priority.",
		}, []string{"type", "priority"}),
		SuggestionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suggestions_total",
			Help:      "LLM rewrite suggestion runs by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.AnalysesTotal,
		m.AnalysisDuration,
		m.OverallScore,
		m.RecommendationsTotal,
		m.SuggestionsTotal,
	)
	return m
}

// ObserveAnalysis records a freshly computed analysis.
func (m *BusinessMetrics) ObserveAnalysis(profile string, duration time.Duration, score float64) {
	m.AnalysesTotal.WithLabelValues(profile, OutcomeSuccess).Inc()
	m.AnalysisDuration.Observe(duration.Seconds())
	m.OverallScore.WithLabelValues(profile).Observe(score)
}

// ObserveRecommendation counts one issued recommendation.
func (m *BusinessMetrics) ObserveRecommendation(recType, priority string) {
	m.RecommendationsTotal.WithLabelValues(recType, priority).Inc()
}

// ObserveOutcome counts an analysis request that did not produce a new result.
func (m *BusinessMetrics) ObserveOutcome(profile, outcome string) {
	m.AnalysesTotal.WithLabelValues(profile, outcome).Inc()
}

// DatabaseMetrics exposes database/sql pool statistics.
type DatabaseMetrics struct {
	OpenConnections prometheus.Gauge
	InUse           prometheus.Gauge
	Idle            prometheus.Gauge
	WaitCount       prometheus.Gauge
	WaitDuration    prometheus.Gauge
}

// NewDatabaseMetrics creates and registers the pool gauges.
func NewDatabaseMetrics(namespace string, reg prometheus.Registerer) *DatabaseMetrics {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      name,
			Help:      help,
		})
	}

	m := &DatabaseMetrics{
		OpenConnections: gauge("open_connections", "Established connections, both in use and idle."),
		InUse:           gauge("in_use_connections", "Connections currently in use."),
		Idle:            gauge("idle_connections", "Idle connections."),
		WaitCount:       gauge("wait_count", "Total number of connections waited for."),
		WaitDuration:    gauge("wait_duration_seconds", "Total time blocked waiting for a connection."),
	}

	reg.MustRegister(m.OpenConnections, m.InUse, m.Idle, m.WaitCount, m.WaitDuration)
	return m
}

// UpdateDBStats copies the current pool statistics into the gauges.
func (m *DatabaseMetrics) UpdateDBStats(db *sql.DB) {
	stats := db.Stats()
	m.OpenConnections.Set(float64(stats.OpenConnections))
	m.InUse.Set(float64(stats.InUse))
	m.Idle.Set(float64(stats.Idle))
	m.WaitCount.Set(float64(stats.WaitCount))
	m.WaitDuration.Set(stats.WaitDuration.Seconds())
}
