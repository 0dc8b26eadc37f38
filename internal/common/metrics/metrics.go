// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DispatchesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_completed_total",
			Help: "Total number of dispatch calls completed, by resolved intent",
		},
		[]string{"intent"},
	)

	DispatchesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_failed_total",
			Help: "Total number of dispatch calls that failed in a generation service",
		},
		[]string{"intent", "error_code"},
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "dispatch_duration_seconds",
			Help: "Duration of dispatch processing in seconds",
		},
		[]string{"intent"},
	)

	IntentFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intent_semantic_fallback_total",
			Help: "Number of classifications that fell back to semantic-only analysis",
		},
	)

	LLMCompletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_completions_total",
			Help: "Total number of LLM completion calls by model and status",
		},
		[]string{"model", "status"},
	)
)
