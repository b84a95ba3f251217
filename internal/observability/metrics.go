package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Model call outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeUnavailable = "unavailable"
	OutcomeBadResponse = "bad_response"
)

var (
	ModelCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yecs_model_calls_total",
			Help: "Generative model calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	ModelCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yecs_model_call_duration_seconds",
			Help:    "Duration of generative model calls in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"operation"},
	)

	ScoringFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "yecs_scoring_fallbacks_total",
			Help: "Scores produced by the heuristic after a model failure",
		},
	)

	ScoresProduced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yecs_scores_produced_total",
			Help: "Scores produced by source",
		},
		[]string{"source"},
	)

	WorkflowTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yecs_workflow_transitions_total",
			Help: "Workflow state transitions",
		},
		[]string{"from", "to"},
	)

	PersistenceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yecs_persistence_failures_total",
			Help: "Failed best-effort persistence operations",
		},
		[]string{"operation"},
	)

	ChatRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yecs_chat_rejections_total",
			Help: "Chat sends rejected before reaching the model",
		},
		[]string{"reason"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "yecs_http_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "route", "status"},
	)
)

// ObserveModelCall records the outcome and latency of one model call.
func ObserveModelCall(operation, outcome string, started time.Time) {
	ModelCalls.WithLabelValues(operation, outcome).Inc()
	ModelCallDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
