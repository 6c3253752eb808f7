// Package weights supplies per-plan metric importance tables and the
// redistribution logic applied when metrics have no data.
package weights

import "strings"

// PlanType identifies the service plan a client is on. It is derived from the
// client's active product categories, never stored.
type PlanType string

const (
	PlanSEO            PlanType = "seo"
	PlanPaidMedia      PlanType = "paid_media"
	PlanAIOptimization PlanType = "ai_optimization"
	PlanFullService    PlanType = "full_service"
)

// Metric keys used across the scoring engine. The alerts component is scored
// alongside the five data metrics but is never excluded.
const (
	MetricKeywordPosition = "keyword_avg_position"
	MetricVisitors        = "visitors"
	MetricLeads           = "leads"
	MetricAIVisibility    = "ai_visibility"
	MetricConversions     = "conversions"
	MetricAlerts          = "alerts"
)

// DataMetrics lists the snapshot-backed metrics in scoring order.
var DataMetrics = []string{
	MetricKeywordPosition,
	MetricVisitors,
	MetricLeads,
	MetricAIVisibility,
	MetricConversions,
}

// Parse normalizes a raw plan string to a PlanType. Unrecognized input falls
// back to full_service.
func Parse(raw string) PlanType {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")

	switch PlanType(normalized) {
	case PlanSEO, PlanPaidMedia, PlanAIOptimization, PlanFullService:
		return PlanType(normalized)
	default:
		return PlanFullService
	}
}

// InferFromCategories derives the plan type from the client's active product
// categories. AI-only products map to ai_optimization, SEO root/growth
// products to seo, paid-media products to paid_media. Mixed AI and SEO
// portfolios, or anything unrecognized, resolve to full_service.
func InferFromCategories(categories []string) PlanType {
	var hasAI, hasSEO, hasPaid bool

	for _, raw := range categories {
		category := strings.ToLower(strings.TrimSpace(raw))
		category = strings.ReplaceAll(category, " ", "_")
		category = strings.ReplaceAll(category, "-", "_")

		switch {
		case category == "ai" || strings.HasPrefix(category, "ai_"):
			hasAI = true
		case category == "seo" || category == "seo_root" || category == "seo_growth":
			hasSEO = true
		case category == "paid_media" || category == "ads":
			hasPaid = true
		}
	}

	switch {
	case hasAI && hasSEO:
		return PlanFullService
	case hasAI:
		return PlanAIOptimization
	case hasSEO:
		return PlanSEO
	case hasPaid:
		return PlanPaidMedia
	default:
		return PlanFullService
	}
}

// defaultTables holds the built-in per-plan weight tables. Each table sums to
// exactly 100 including the alerts component.
var defaultTables = map[PlanType]map[string]float64{
	PlanSEO: {
		MetricKeywordPosition: 30,
		MetricVisitors:        20,
		MetricLeads:           15,
		MetricAIVisibility:    5,
		MetricConversions:     10,
		MetricAlerts:          20,
	},
	PlanPaidMedia: {
		MetricKeywordPosition: 5,
		MetricVisitors:        20,
		MetricLeads:           40,
		MetricAIVisibility:    5,
		MetricConversions:     20,
		MetricAlerts:          10,
	},
	PlanAIOptimization: {
		MetricKeywordPosition: 10,
		MetricVisitors:        15,
		MetricLeads:           15,
		MetricAIVisibility:    40,
		MetricConversions:     10,
		MetricAlerts:          10,
	},
	PlanFullService: {
		MetricKeywordPosition: 20,
		MetricVisitors:        20,
		MetricLeads:           20,
		MetricAIVisibility:    15,
		MetricConversions:     15,
		MetricAlerts:          10,
	},
}

// Table resolves plan weight tables, optionally overridden from a YAML file.
type Table struct {
	plans map[PlanType]map[string]float64
}

// Default returns a Table backed by the built-in weights.
func Default() *Table {
	return &Table{plans: defaultTables}
}

// ForPlan returns a copy of the weight table for the given plan. Unrecognized
// plans resolve to full_service.
func (t *Table) ForPlan(plan PlanType) map[string]float64 {
	table, ok := t.plans[plan]
	if !ok {
		table = t.plans[PlanFullService]
	}

	out := make(map[string]float64, len(table))
	for metric, weight := range table {
		out[metric] = weight
	}
	return out
}

// Redistribute drops the excluded metrics from the table and rescales the
// remaining weights so they sum to 100 again. When the excluded metrics carry
// the entire weight, the remainder falls back to an equal split so a non-empty
// remaining set never yields an empty or zero table.
func Redistribute(table map[string]float64, excluded []string) map[string]float64 {
	dropped := make(map[string]bool, len(excluded))
	for _, metric := range excluded {
		dropped[metric] = true
	}

	remaining := make(map[string]float64, len(table))
	var remainingTotal float64
	for metric, weight := range table {
		if dropped[metric] {
			continue
		}
		remaining[metric] = weight
		remainingTotal += weight
	}

	if len(remaining) == 0 {
		return remaining
	}

	if remainingTotal <= 0 {
		equal := 100.0 / float64(len(remaining))
		for metric := range remaining {
			remaining[metric] = equal
		}
		return remaining
	}

	scale := 100.0 / remainingTotal
	for metric, weight := range remaining {
		remaining[metric] = weight * scale
	}
	return remaining
}

// Alert type weights used only inside the alerts-score computation. These are
// points per alert, not part of the 100%-sum metric table.
var alertTypeWeights = map[string]float64{
	"lead_increase":      15,
	"ai_alert":           12.5,
	"keyword_ranking":    10,
	"traffic_milestone":  10,
	"campaign_milestone": 7.5,
	"other":              5,
}

// AlertWeight returns the per-alert point weight for an alert type. Unknown
// types fall back to the "other" weight.
func AlertWeight(alertType string) float64 {
	if weight, ok := alertTypeWeights[strings.ToLower(strings.TrimSpace(alertType))]; ok {
		return weight
	}
	return alertTypeWeights["other"]
}
