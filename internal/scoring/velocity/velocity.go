// Package velocity measures the rate of improvement events against per-plan
// expectations and converts the ratio into a score modifier.
package velocity

import (
	"time"

	"agency_portal_backend/internal/scoring/weights"
)

// Expectation holds the per-plan improvement baseline and the ramp grace
// window during which no penalty applies.
type Expectation struct {
	PerMonth float64
	RampDays int
}

var expectations = map[weights.PlanType]Expectation{
	weights.PlanSEO:            {PerMonth: 3, RampDays: 90},
	weights.PlanPaidMedia:      {PerMonth: 2, RampDays: 30},
	weights.PlanAIOptimization: {PerMonth: 1, RampDays: 60},
	weights.PlanFullService:    {PerMonth: 4, RampDays: 90},
}

// ExpectationFor returns the expected velocity for a plan. Unknown plans use
// the full_service baseline.
func ExpectationFor(plan weights.PlanType) Expectation {
	if exp, ok := expectations[plan]; ok {
		return exp
	}
	return expectations[weights.PlanFullService]
}

// Calculate returns improvements per active month. Callers floor monthsActive
// at 1; a non-positive value still short-circuits to 0 here.
func Calculate(totalImprovements int, monthsActive float64) float64 {
	if monthsActive <= 0 {
		return 0
	}
	return float64(totalImprovements) / monthsActive
}

// InRampPeriod reports whether the account is still inside its plan's ramp
// grace window.
func InRampPeriod(start, now time.Time, plan weights.PlanType) bool {
	days := int(now.Sub(start).Hours() / 24)
	return days < ExpectationFor(plan).RampDays
}

// Modifier converts a velocity/expected ratio into a score multiplier. Bands
// are evaluated in descending ratio order so the first satisfied threshold
// wins. During the ramp period no penalty applies regardless of velocity.
func Modifier(velocity, expected float64, inRampPeriod bool) float64 {
	if inRampPeriod {
		return 1.0
	}
	if expected <= 0 {
		return 1.0
	}

	ratio := velocity / expected
	switch {
	case ratio >= 1.5:
		return 1.15
	case ratio >= 1.0:
		return 1.0
	case ratio >= 0.5:
		return 0.85
	default:
		return 0.70
	}
}

// Breakdown bundles every intermediate value for diagnostics and testing.
type Breakdown struct {
	Improvements int              `json:"improvements"`
	MonthsActive float64          `json:"monthsActive"`
	Velocity     float64          `json:"velocity"`
	Expected     float64          `json:"expected"`
	Ratio        float64          `json:"ratio"`
	Modifier     float64          `json:"modifier"`
	InRampPeriod bool             `json:"inRampPeriod"`
	Plan         weights.PlanType `json:"plan"`
}

// Analyze computes the full velocity breakdown for an account. Months active
// is floored at 1 so brand-new accounts are not divided into oblivion.
func Analyze(improvements int, start, now time.Time, plan weights.PlanType) Breakdown {
	months := now.Sub(start).Hours() / 24 / 30
	if months < 1 {
		months = 1
	}

	exp := ExpectationFor(plan)
	vel := Calculate(improvements, months)
	inRamp := InRampPeriod(start, now, plan)

	var ratio float64
	if exp.PerMonth > 0 {
		ratio = vel / exp.PerMonth
	}

	return Breakdown{
		Improvements: improvements,
		MonthsActive: months,
		Velocity:     vel,
		Expected:     exp.PerMonth,
		Ratio:        ratio,
		Modifier:     Modifier(vel, exp.PerMonth, inRamp),
		InRampPeriod: inRamp,
		Plan:         plan,
	}
}
