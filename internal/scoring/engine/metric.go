package engine

import (
	"math"

	"agency_portal_backend/internal/scoring/weights"
)

// MetricType identifies one of the five snapshot-backed data metrics.
type MetricType string

const (
	MetricKeywordPosition MetricType = weights.MetricKeywordPosition
	MetricVisitors        MetricType = weights.MetricVisitors
	MetricLeads           MetricType = weights.MetricLeads
	MetricAIVisibility    MetricType = weights.MetricAIVisibility
	MetricConversions     MetricType = weights.MetricConversions
)

// DataMetrics lists the snapshot-backed metrics in scoring order.
var DataMetrics = []MetricType{
	MetricKeywordPosition,
	MetricVisitors,
	MetricLeads,
	MetricAIVisibility,
	MetricConversions,
}

// Inverted reports whether a numerically lower value is an improvement, as
// with average keyword position.
func (m MetricType) Inverted() bool {
	return m == MetricKeywordPosition
}

// MetricValue holds the two comparison-window observations for one metric.
// A nil pointer means no snapshot existed for that window; nil on both sides
// excludes the metric from scoring entirely.
type MetricValue struct {
	Current  *float64
	Previous *float64
}

// Missing reports whether the metric has no data in either window.
func (v MetricValue) Missing() bool {
	return v.Current == nil && v.Previous == nil
}

// CalculateDelta computes the period-over-period percentage change. A zero
// previous value is special-cased to +25 for any positive current value (a
// "new positive signal") and 0 otherwise, avoiding infinite deltas. When
// invert is set the sign flips, so a falling keyword position scores as an
// improvement.
func CalculateDelta(current, previous float64, invert bool) float64 {
	if previous == 0 {
		if current > 0 {
			return 25
		}
		return 0
	}

	delta := (current - previous) / previous * 100
	if invert {
		delta = -delta
	}
	return delta
}

// DeltaToPoints centers "no change" at 50 and moves one point per percentage
// point of delta, clamped to [0, 100]. Non-finite input yields the neutral 50.
func DeltaToPoints(delta float64) float64 {
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return 50
	}

	points := 50 + delta
	if points < 0 {
		points = 0
	}
	if points > 100 {
		points = 100
	}
	return math.Round(points)
}

// AlertsScore converts recent alert counts into a 0-100 component score.
// Each alert contributes its per-type weight times its count; the weighted
// total is doubled so 50 weighted points make a perfect score. Zero alerts
// score 0; unlike the data metrics, alerts are never excluded.
func AlertsScore(counts map[string]int) float64 {
	var points float64
	for alertType, count := range counts {
		if count <= 0 {
			continue
		}
		points += weights.AlertWeight(alertType) * float64(count)
	}

	score := points * 2
	if score > 100 {
		score = 100
	}
	return score
}
