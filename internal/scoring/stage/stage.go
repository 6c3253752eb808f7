// Package stage classifies account tenure into lifecycle stages and maps
// scores to human-facing status bands, evaluation labels, and flags.
package stage

import "time"

// GrowthStage is the four-value lifecycle classification derived from tenure.
type GrowthStage string

const (
	Seedling   GrowthStage = "seedling"   // < 90 days
	Sprouting  GrowthStage = "sprouting"  // 90-179 days
	Blooming   GrowthStage = "blooming"   // 180-364 days
	Harvesting GrowthStage = "harvesting" // >= 365 days
)

// Parse validates a stored stage string. Anything outside the four valid
// values is treated as absent so callers recompute from tenure.
func Parse(raw string) (GrowthStage, bool) {
	switch GrowthStage(raw) {
	case Seedling, Sprouting, Blooming, Harvesting:
		return GrowthStage(raw), true
	default:
		return "", false
	}
}

// FromTenure maps days-since-start to a stage. Boundaries are half-open on
// the lower side: exactly 90 days is sprouting, not seedling.
func FromTenure(start, now time.Time) GrowthStage {
	days := int(now.Sub(start).Hours() / 24)

	switch {
	case days < 90:
		return Seedling
	case days < 180:
		return Sprouting
	case days < 365:
		return Blooming
	default:
		return Harvesting
	}
}

// Label returns the display name for the stage.
func (s GrowthStage) Label() string {
	switch s {
	case Seedling:
		return "Seedling"
	case Sprouting:
		return "Sprouting"
	case Blooming:
		return "Blooming"
	case Harvesting:
		return "Harvesting"
	default:
		return "Unknown"
	}
}

// Icon returns the display icon for the stage.
func (s GrowthStage) Icon() string {
	switch s {
	case Seedling:
		return "🌱"
	case Sprouting:
		return "🌿"
	case Blooming:
		return "🌸"
	case Harvesting:
		return "🌾"
	default:
		return ""
	}
}

// ExpectedRange returns the score range a healthy account in this stage is
// expected to land in.
func (s GrowthStage) ExpectedRange() (low, high int) {
	switch s {
	case Seedling:
		return 20, 50
	case Sprouting:
		return 40, 70
	case Blooming:
		return 60, 85
	case Harvesting:
		return 70, 100
	default:
		return 0, 100
	}
}

// Status is a score band with a display color.
type Status struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// StatusFor maps a score to one of five status bands. Scores outside the
// bands (impossible after clamping) fall back to the lowest band.
func StatusFor(score int) Status {
	switch {
	case score >= 80:
		return Status{Label: "Thriving", Color: "#22c55e"}
	case score >= 60:
		return Status{Label: "Healthy", Color: "#84cc16"}
	case score >= 40:
		return Status{Label: "Needs Attention", Color: "#eab308"}
	case score >= 20:
		return Status{Label: "At Risk", Color: "#f97316"}
	default:
		return Status{Label: "Critical", Color: "#ef4444"}
	}
}

// evaluationLabels maps each stage to labels for the five score bands, from
// highest band to lowest.
var evaluationLabels = map[GrowthStage][5]string{
	Seedling:   {"Exceptional Start", "Strong Start", "On Track", "Slow Start", "Stalled Onboarding"},
	Sprouting:  {"Fast Tracker", "Gaining Momentum", "Developing", "Falling Behind", "Stalled"},
	Blooming:   {"High Performer", "Steady Growth", "Underperforming", "Problem Account", "Critical Account"},
	Harvesting: {"Ideal / Premium Candidate", "Reliable Partner", "Needs Re-engagement", "Churn Risk", "Critical Churn Risk"},
}

// EvaluationLabel returns the stage-specific label for the score band.
func EvaluationLabel(score int, s GrowthStage) string {
	labels, ok := evaluationLabels[s]
	if !ok {
		labels = evaluationLabels[Seedling]
	}

	switch {
	case score >= 80:
		return labels[0]
	case score >= 60:
		return labels[1]
	case score >= 40:
		return labels[2]
	case score >= 20:
		return labels[3]
	default:
		return labels[4]
	}
}

// Flag priorities.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityLow      = "low"
)

// Flag is a stage-specific qualitative marker attached to a score.
type Flag struct {
	Name     string `json:"name"`
	Priority string `json:"priority"`
}

// Flags evaluates all flag rules independently; more than one may fire.
func Flags(score int, s GrowthStage) []Flag {
	var flags []Flag

	if score < 20 {
		flags = append(flags, Flag{Name: "Critical", Priority: PriorityCritical})
	}
	if s == Harvesting && score < 40 {
		flags = append(flags, Flag{Name: "Churn Risk", Priority: PriorityCritical})
	}
	if s == Harvesting && score >= 80 {
		flags = append(flags, Flag{Name: "Premium Candidate", Priority: PriorityLow})
	}
	if s == Blooming && score < 40 {
		flags = append(flags, Flag{Name: "Problem Account", Priority: PriorityHigh})
	}
	if s == Sprouting && score >= 80 {
		flags = append(flags, Flag{Name: "Fast Tracker", Priority: PriorityLow})
	}

	return flags
}
