// Package engine implements the client performance score computation as a
// pure function over pre-fetched inputs. All data access lives in the service
// layer so the scoring core stays unit-testable without a database.
package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"agency_portal_backend/internal/scoring/stage"
	"agency_portal_backend/internal/scoring/velocity"
	"agency_portal_backend/internal/scoring/weights"
)

// Inputs carries everything the calculation needs. Now is passed explicitly
// so identical inputs always produce identical output.
type Inputs struct {
	Now           time.Time
	StartDate     time.Time
	StoredStage   string
	Plan          weights.PlanType
	Metrics       map[MetricType]MetricValue
	AlertCounts   map[string]int // trailing 30 days
	Improvements  int            // trailing 12 months
	LastAlertAt   *time.Time
	LastAlertType string
	MRRCents      int64
}

// MetricScore is the per-metric breakdown in the result.
type MetricScore struct {
	Current      *float64 `json:"current"`
	Previous     *float64 `json:"previous"`
	Delta        float64  `json:"delta"`
	Score        float64  `json:"score"`
	Weight       float64  `json:"weight"`
	Contribution float64  `json:"contribution"`
}

// Result is the full performance computation output.
type Result struct {
	Score           int
	BaseScore       float64
	Modifier        float64
	Stage           stage.GrowthStage
	Status          stage.Status
	Evaluation      string
	Plan            weights.PlanType
	TenureMonths    int
	MRR             float64
	Metrics         map[string]MetricScore
	ExcludedMetrics []string
	Velocity        velocity.Breakdown
	StageFlags      []stage.Flag
	LastAlertAt     *time.Time
	LastAlertType   string
	RedFlags        []string
	Recommendations []string
}

// Calculate runs the full scoring algorithm over the inputs using the given
// weight table.
func Calculate(in Inputs, table *weights.Table) Result {
	scores := make(map[string]MetricScore, len(DataMetrics)+1)
	deltas := make(map[MetricType]float64, len(DataMetrics))
	var excluded []string

	for _, metric := range DataMetrics {
		value := in.Metrics[metric]
		if value.Missing() {
			excluded = append(excluded, string(metric))
			continue
		}

		current := orZero(value.Current)
		previous := orZero(value.Previous)
		delta := CalculateDelta(current, previous, metric.Inverted())
		deltas[metric] = delta

		scores[string(metric)] = MetricScore{
			Current:  value.Current,
			Previous: value.Previous,
			Delta:    delta,
			Score:    DeltaToPoints(delta),
		}
	}

	scores[weights.MetricAlerts] = MetricScore{Score: AlertsScore(in.AlertCounts)}

	adjusted := weights.Redistribute(table.ForPlan(in.Plan), excluded)

	var weightedSum, totalWeight float64
	for metric, entry := range scores {
		weight := adjusted[metric]
		entry.Weight = weight
		entry.Contribution = entry.Score * weight / 100
		scores[metric] = entry

		weightedSum += entry.Score * weight
		totalWeight += weight
	}

	baseScore := weightedSum / 100
	if totalWeight > 0 && math.Abs(totalWeight-100) > 0.001 {
		baseScore = weightedSum / totalWeight
	}

	vel := velocity.Analyze(in.Improvements, in.StartDate, in.Now, in.Plan)

	final := int(math.Round(clamp(baseScore*vel.Modifier, 0, 100)))

	growthStage := resolveStage(in)

	sort.Strings(excluded)

	return Result{
		Score:           final,
		BaseScore:       baseScore,
		Modifier:        vel.Modifier,
		Stage:           growthStage,
		Status:          stage.StatusFor(final),
		Evaluation:      stage.EvaluationLabel(final, growthStage),
		Plan:            in.Plan,
		TenureMonths:    int(in.Now.Sub(in.StartDate).Hours() / 24 / 30),
		MRR:             float64(in.MRRCents) / 100,
		Metrics:         scores,
		ExcludedMetrics: excluded,
		Velocity:        vel,
		StageFlags:      stage.Flags(final, growthStage),
		LastAlertAt:     in.LastAlertAt,
		LastAlertType:   in.LastAlertType,
		RedFlags:        redFlags(in, deltas, vel),
		Recommendations: recommendations(in, deltas, final, growthStage),
	}
}

// resolveStage prefers a stored stage when it is one of the four valid
// values; anything else is recomputed from tenure.
func resolveStage(in Inputs) stage.GrowthStage {
	if stored, ok := stage.Parse(in.StoredStage); ok {
		return stored
	}
	return stage.FromTenure(in.StartDate, in.Now)
}

// redFlags derives diagnostic strings, distinct from the stage flags.
func redFlags(in Inputs, deltas map[MetricType]float64, vel velocity.Breakdown) []string {
	var flags []string

	switch {
	case in.LastAlertAt == nil:
		flags = append(flags, "no success alert has ever been sent")
	case daysSince(*in.LastAlertAt, in.Now) > 30:
		flags = append(flags, fmt.Sprintf("no success alert in %d days", daysSince(*in.LastAlertAt, in.Now)))
	}

	for _, metric := range DataMetrics {
		delta, ok := deltas[metric]
		if ok && delta < -20 {
			flags = append(flags, fmt.Sprintf("%s declined %.1f%% period over period", metric, -delta))
		}
	}

	if !vel.InRampPeriod && vel.Ratio < 0.5 {
		flags = append(flags, fmt.Sprintf("improvement velocity at %.0f%% of the expected pace", vel.Ratio*100))
	}

	return flags
}

// recommendations derives free-text suggestions for account managers.
func recommendations(in Inputs, deltas map[MetricType]float64, score int, growthStage stage.GrowthStage) []string {
	var recs []string

	if score < 40 {
		recs = append(recs,
			"schedule a strategy review with the client",
			"send an intervention alert to the account team",
		)
	}

	if in.LastAlertAt == nil || daysSince(*in.LastAlertAt, in.Now) > 14 {
		recs = append(recs, "send a success alert to re-engage the client")
	}

	if delta, ok := deltas[MetricKeywordPosition]; ok && delta < -10 {
		recs = append(recs, "review keyword strategy")
	}
	if delta, ok := deltas[MetricVisitors]; ok && delta < -15 {
		recs = append(recs, "investigate traffic decline")
	}

	if score >= 80 && growthStage == stage.Harvesting {
		recs = append(recs, "request a case study and explore upsell opportunities")
	}

	return recs
}

func daysSince(t, now time.Time) int {
	return int(now.Sub(t).Hours() / 24)
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func clamp(v, low, high float64) float64 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}
