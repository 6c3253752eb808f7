package engine

import (
	"math"
	"reflect"
	"testing"
	"time"

	"agency_portal_backend/internal/scoring/stage"
	"agency_portal_backend/internal/scoring/weights"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func fp(v float64) *float64 { return &v }

func fullMetrics() map[MetricType]MetricValue {
	return map[MetricType]MetricValue{
		MetricKeywordPosition: {Current: fp(8), Previous: fp(10)},   // inverted: +20 -> 70 points
		MetricVisitors:        {Current: fp(1100), Previous: fp(1000)}, // +10 -> 60
		MetricLeads:           {Current: fp(50), Previous: fp(50)},  // 0 -> 50
		MetricAIVisibility:    {Current: fp(20), Previous: fp(0)},   // new signal +25 -> 75
		MetricConversions:     {Current: fp(0), Previous: fp(0)},    // 0 -> 50
	}
}

func TestCalculateSEOFullInputs(t *testing.T) {
	lastAlert := testNow.AddDate(0, 0, -5)

	in := Inputs{
		Now:           testNow,
		StartDate:     testNow.AddDate(0, 0, -300),
		Plan:          weights.PlanSEO,
		Metrics:       fullMetrics(),
		AlertCounts:   map[string]int{"lead_increase": 1, "other": 1}, // 40 points
		Improvements:  30,                                            // 3/month over 10 months, ratio 1.0
		LastAlertAt:   &lastAlert,
		LastAlertType: "lead_increase",
		MRRCents:      250000,
	}

	result := Calculate(in, weights.Default())

	// 70*30 + 60*20 + 50*15 + 75*5 + 50*10 + 40*20 = 5725
	if math.Abs(result.BaseScore-57.25) > 0.001 {
		t.Fatalf("base score = %.4f, want 57.25", result.BaseScore)
	}
	if result.Modifier != 1.0 {
		t.Fatalf("modifier = %.2f, want 1.0", result.Modifier)
	}
	if result.Score != 57 {
		t.Fatalf("score = %d, want 57", result.Score)
	}
	if result.Stage != stage.Blooming {
		t.Fatalf("stage = %s, want blooming", result.Stage)
	}
	if result.Status.Label != "Needs Attention" {
		t.Fatalf("status = %s, want Needs Attention", result.Status.Label)
	}
	if result.Evaluation != "Underperforming" {
		t.Fatalf("evaluation = %s, want Underperforming", result.Evaluation)
	}
	if len(result.ExcludedMetrics) != 0 {
		t.Fatalf("excluded metrics = %v, want none", result.ExcludedMetrics)
	}
	if len(result.RedFlags) != 0 {
		t.Fatalf("red flags = %v, want none", result.RedFlags)
	}
	if result.MRR != 2500 {
		t.Fatalf("mrr = %.2f, want 2500", result.MRR)
	}
	if result.TenureMonths != 10 {
		t.Fatalf("tenure months = %d, want 10", result.TenureMonths)
	}
}

func TestCalculateExcludesMissingMetricsAndRenormalizes(t *testing.T) {
	metrics := fullMetrics()
	metrics[MetricAIVisibility] = MetricValue{} // both windows missing
	lastAlert := testNow.AddDate(0, 0, -5)

	in := Inputs{
		Now:          testNow,
		StartDate:    testNow.AddDate(0, 0, -300),
		Plan:         weights.PlanSEO,
		Metrics:      metrics,
		AlertCounts:  map[string]int{"lead_increase": 1, "other": 1},
		Improvements: 30,
		LastAlertAt:  &lastAlert,
	}

	result := Calculate(in, weights.Default())

	if !reflect.DeepEqual(result.ExcludedMetrics, []string{weights.MetricAIVisibility}) {
		t.Fatalf("excluded = %v, want [ai_visibility]", result.ExcludedMetrics)
	}
	if _, ok := result.Metrics[weights.MetricAIVisibility]; ok {
		t.Fatal("excluded metric should not appear in the breakdown")
	}

	// remaining weights rescale by 100/95: 70*31.58 + 60*21.05 + 50*15.79 + 50*10.53 + 40*21.05
	want := (70*30 + 60*20 + 50*15 + 50*10 + 40*20) * 100.0 / 95.0 / 100.0
	if math.Abs(result.BaseScore-want) > 0.01 {
		t.Fatalf("base score = %.4f, want %.4f", result.BaseScore, want)
	}

	var totalWeight float64
	for _, entry := range result.Metrics {
		totalWeight += entry.Weight
	}
	if math.Abs(totalWeight-100) > 0.001 {
		t.Fatalf("redistributed weights sum to %.4f, want 100", totalWeight)
	}
}

func TestCalculateAllDataMetricsMissing(t *testing.T) {
	in := Inputs{
		Now:       testNow,
		StartDate: testNow.AddDate(0, 0, -300),
		Plan:      weights.PlanSEO,
		Metrics:   map[MetricType]MetricValue{},
	}

	result := Calculate(in, weights.Default())

	if len(result.ExcludedMetrics) != 5 {
		t.Fatalf("excluded = %v, want all five data metrics", result.ExcludedMetrics)
	}
	// only the alerts component remains; with no alerts it scores 0
	if result.BaseScore != 0 {
		t.Fatalf("base score = %.2f, want 0", result.BaseScore)
	}
	if result.Score != 0 {
		t.Fatalf("score = %d, want 0", result.Score)
	}
}

func TestCalculateVisitorsOnly(t *testing.T) {
	// Only visitors has data: its weight and the alerts weight split the
	// redistributed 100% evenly (20/20 in the seo table).
	in := Inputs{
		Now:       testNow,
		StartDate: testNow.AddDate(0, 0, -30), // in ramp, modifier 1.0
		Plan:      weights.PlanSEO,
		Metrics: map[MetricType]MetricValue{
			MetricVisitors: {Current: fp(1200), Previous: fp(1000)}, // +20 -> 70
		},
	}

	result := Calculate(in, weights.Default())

	if len(result.ExcludedMetrics) != 4 {
		t.Fatalf("excluded = %v, want four metrics", result.ExcludedMetrics)
	}

	visitors := result.Metrics[weights.MetricVisitors]
	if visitors.Score != 70 {
		t.Fatalf("visitors score = %.1f, want 70", visitors.Score)
	}
	if math.Abs(visitors.Weight-50) > 0.001 {
		t.Fatalf("visitors weight = %.2f, want redistributed 50", visitors.Weight)
	}

	// 70*50 + 0*50 over 100
	if math.Abs(result.BaseScore-35) > 0.001 {
		t.Fatalf("base score = %.4f, want 35", result.BaseScore)
	}
	if result.Score != 35 {
		t.Fatalf("score = %d, want 35", result.Score)
	}
}

func TestCalculateClampsAt100(t *testing.T) {
	metrics := map[MetricType]MetricValue{
		MetricKeywordPosition: {Current: fp(2), Previous: fp(10)},    // +80 -> 100
		MetricVisitors:        {Current: fp(3000), Previous: fp(1000)}, // +200 -> 100
		MetricLeads:           {Current: fp(200), Previous: fp(50)},  // +300 -> 100
		MetricAIVisibility:    {Current: fp(90), Previous: fp(10)},   // +800 -> 100
		MetricConversions:     {Current: fp(80), Previous: fp(10)},   // +700 -> 100
	}
	lastAlert := testNow.AddDate(0, 0, -2)

	in := Inputs{
		Now:          testNow,
		StartDate:    testNow.AddDate(0, 0, -400),
		Plan:         weights.PlanSEO,
		Metrics:      metrics,
		AlertCounts:  map[string]int{"lead_increase": 4}, // capped 100
		Improvements: 100,                                // ratio well over 1.5 -> modifier 1.15
		LastAlertAt:  &lastAlert,
	}

	result := Calculate(in, weights.Default())

	if result.Modifier != 1.15 {
		t.Fatalf("modifier = %.2f, want 1.15", result.Modifier)
	}
	if result.Score != 100 {
		t.Fatalf("score = %d, want clamped 100", result.Score)
	}
}

func TestCalculatePenalizesStalledVelocity(t *testing.T) {
	lastAlert := testNow.AddDate(0, 0, -3)

	in := Inputs{
		Now:          testNow,
		StartDate:    testNow.AddDate(0, 0, -240), // past the 90-day full_service ramp
		Plan:         weights.PlanFullService,
		Metrics:      fullMetrics(),
		Improvements: 0,
		LastAlertAt:  &lastAlert,
	}

	result := Calculate(in, weights.Default())

	if result.Modifier != 0.70 {
		t.Fatalf("modifier = %.2f, want 0.70", result.Modifier)
	}

	found := false
	for _, flag := range result.RedFlags {
		if flag == "improvement velocity at 0% of the expected pace" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a velocity red flag, got %v", result.RedFlags)
	}
}

func TestCalculateStoredStagePreferred(t *testing.T) {
	in := Inputs{
		Now:         testNow,
		StartDate:   testNow.AddDate(0, 0, -50), // tenure says seedling
		StoredStage: "harvesting",
		Plan:        weights.PlanSEO,
		Metrics:     fullMetrics(),
	}

	result := Calculate(in, weights.Default())
	if result.Stage != stage.Harvesting {
		t.Fatalf("stage = %s, want stored harvesting", result.Stage)
	}

	in.StoredStage = "mature" // invalid, recompute from tenure
	result = Calculate(in, weights.Default())
	if result.Stage != stage.Seedling {
		t.Fatalf("stage = %s, want seedling from tenure", result.Stage)
	}
}

func TestCalculateRedFlags(t *testing.T) {
	metrics := fullMetrics()
	metrics[MetricVisitors] = MetricValue{Current: fp(700), Previous: fp(1000)} // -30

	in := Inputs{
		Now:       testNow,
		StartDate: testNow.AddDate(0, 0, -30), // seo ramp, no velocity flag
		Plan:      weights.PlanSEO,
		Metrics:   metrics,
		// LastAlertAt nil: never alerted
	}

	result := Calculate(in, weights.Default())

	wantFlags := map[string]bool{
		"no success alert has ever been sent":        false,
		"visitors declined 30.0% period over period": false,
	}
	for _, flag := range result.RedFlags {
		if _, ok := wantFlags[flag]; ok {
			wantFlags[flag] = true
		}
	}
	for flag, seen := range wantFlags {
		if !seen {
			t.Fatalf("missing red flag %q in %v", flag, result.RedFlags)
		}
	}
}

func TestCalculateStaleAlertRedFlag(t *testing.T) {
	lastAlert := testNow.AddDate(0, 0, -45)

	in := Inputs{
		Now:         testNow,
		StartDate:   testNow.AddDate(0, 0, -30),
		Plan:        weights.PlanSEO,
		Metrics:     fullMetrics(),
		LastAlertAt: &lastAlert,
	}

	result := Calculate(in, weights.Default())

	found := false
	for _, flag := range result.RedFlags {
		if flag == "no success alert in 45 days" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected stale-alert red flag, got %v", result.RedFlags)
	}
}

func TestCalculateRecommendationsLowScore(t *testing.T) {
	metrics := map[MetricType]MetricValue{
		MetricKeywordPosition: {Current: fp(15), Previous: fp(10)},  // -50 inverted -> 0 points
		MetricVisitors:        {Current: fp(500), Previous: fp(1000)}, // -50 -> 0
		MetricLeads:           {Current: fp(10), Previous: fp(50)},  // -80 -> 0
		MetricAIVisibility:    {Current: fp(5), Previous: fp(20)},   // -75 -> 0
		MetricConversions:     {Current: fp(2), Previous: fp(10)},   // -80 -> 0
	}

	in := Inputs{
		Now:       testNow,
		StartDate: testNow.AddDate(0, 0, -30),
		Plan:      weights.PlanSEO,
		Metrics:   metrics,
	}

	result := Calculate(in, weights.Default())

	if result.Score >= 40 {
		t.Fatalf("score = %d, expected below 40", result.Score)
	}

	want := []string{
		"schedule a strategy review with the client",
		"send an intervention alert to the account team",
		"send a success alert to re-engage the client",
		"review keyword strategy",
		"investigate traffic decline",
	}
	if !reflect.DeepEqual(result.Recommendations, want) {
		t.Fatalf("recommendations = %v, want %v", result.Recommendations, want)
	}
}

func TestCalculateUpsellRecommendation(t *testing.T) {
	metrics := map[MetricType]MetricValue{
		MetricKeywordPosition: {Current: fp(2), Previous: fp(10)},
		MetricVisitors:        {Current: fp(3000), Previous: fp(1000)},
		MetricLeads:           {Current: fp(200), Previous: fp(50)},
		MetricAIVisibility:    {Current: fp(90), Previous: fp(10)},
		MetricConversions:     {Current: fp(80), Previous: fp(10)},
	}
	lastAlert := testNow.AddDate(0, 0, -1)

	in := Inputs{
		Now:          testNow,
		StartDate:    testNow.AddDate(0, 0, -400),
		Plan:         weights.PlanSEO,
		Metrics:      metrics,
		AlertCounts:  map[string]int{"lead_increase": 4},
		Improvements: 60,
		LastAlertAt:  &lastAlert,
	}

	result := Calculate(in, weights.Default())

	if result.Stage != stage.Harvesting || result.Score < 80 {
		t.Fatalf("expected a thriving harvesting account, got stage %s score %d", result.Stage, result.Score)
	}
	want := []string{"request a case study and explore upsell opportunities"}
	if !reflect.DeepEqual(result.Recommendations, want) {
		t.Fatalf("recommendations = %v, want %v", result.Recommendations, want)
	}
	if len(result.StageFlags) != 1 || result.StageFlags[0].Name != "Premium Candidate" {
		t.Fatalf("stage flags = %v, want Premium Candidate", result.StageFlags)
	}
}

func TestCalculateDeterministic(t *testing.T) {
	lastAlert := testNow.AddDate(0, 0, -5)

	in := Inputs{
		Now:          testNow,
		StartDate:    testNow.AddDate(0, 0, -300),
		Plan:         weights.PlanFullService,
		Metrics:      fullMetrics(),
		AlertCounts:  map[string]int{"keyword_ranking": 2},
		Improvements: 12,
		LastAlertAt:  &lastAlert,
	}

	first := Calculate(in, weights.Default())
	second := Calculate(in, weights.Default())

	if first.Score != second.Score || first.BaseScore != second.BaseScore {
		t.Fatalf("identical inputs diverged: %d/%.4f vs %d/%.4f", first.Score, first.BaseScore, second.Score, second.BaseScore)
	}
	if !reflect.DeepEqual(first.ExcludedMetrics, second.ExcludedMetrics) {
		t.Fatal("excluded metric order diverged between runs")
	}
	if !reflect.DeepEqual(first.Recommendations, second.Recommendations) {
		t.Fatal("recommendations diverged between runs")
	}
}
