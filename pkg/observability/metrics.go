// Package observability exposes Prometheus metrics for the query pipeline.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nl2db_questions_total",
			Help: "Total number of answered questions by outcome.",
		},
		[]string{"outcome"},
	)

	backendAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nl2db_backend_attempts_total",
			Help: "SQL generation attempts by backend and result.",
		},
		[]string{"backend", "result"},
	)

	validatorRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nl2db_validator_rejections_total",
			Help: "Total number of generated statements rejected by the SQL validator.",
		},
	)

	sqlCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nl2db_sql_cache_hits_total",
			Help: "Total number of questions answered from the session SQL cache.",
		},
	)

	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nl2db_mcp_tool_calls_total",
			Help: "MCP tool invocations by tool and result.",
		},
		[]string{"tool", "result"},
	)

	questionDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nl2db_question_duration_seconds",
			Help:    "End-to-end latency of answering a question by outcome.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		questionsTotal,
		backendAttemptsTotal,
		validatorRejectionsTotal,
		sqlCacheHitsTotal,
		toolCallsTotal,
		questionDurationSeconds,
	)
}

// Backend attempt results.
const (
	ResultSuccess     = "success"
	ResultError       = "error"
	ResultUnsupported = "unsupported"
	ResultSkipped     = "circuit_open"
)

// ObserveQuestion records one finished question. outcome is "success" or an
// apperrors.Kind value.
func ObserveQuestion(outcome string, elapsed time.Duration) {
	questionsTotal.WithLabelValues(outcome).Inc()
	questionDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveBackendAttempt records one generation attempt.
func ObserveBackendAttempt(backend, result string) {
	backendAttemptsTotal.WithLabelValues(backend, result).Inc()
}

func IncrementValidatorRejection() {
	validatorRejectionsTotal.Inc()
}

func IncrementSQLCacheHit() {
	sqlCacheHitsTotal.Inc()
}

// ObserveToolCall records one MCP tool invocation; result is ResultSuccess
// or ResultError.
func ObserveToolCall(tool, result string) {
	toolCallsTotal.WithLabelValues(tool, result).Inc()
}
