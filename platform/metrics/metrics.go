// Package metrics provides prometheus instrumentation for the application.
// This is part of the platform layer and contains no business logic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Computation outcomes used as label values.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

var (
	// ScoreComputations counts performance-score computations by outcome.
	ScoreComputations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "score_computations_total",
		Help: "Number of client performance score computations.",
	}, []string{"outcome"})

	// ScoreComputationDuration observes end-to-end computation latency.
	ScoreComputationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "score_computation_seconds",
		Help:    "Duration of client performance score computations.",
		Buckets: prometheus.DefBuckets,
	})

	// ScoreHistoryRows counts score-history rows written.
	ScoreHistoryRows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "score_history_rows_total",
		Help: "Number of score history rows appended.",
	})
)
