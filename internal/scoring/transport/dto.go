package transport

import (
	"time"

	"agency_portal_backend/internal/scoring/engine"
	"agency_portal_backend/internal/scoring/stage"
	"agency_portal_backend/internal/scoring/velocity"
)

// StageResponse describes the client's lifecycle stage.
type StageResponse struct {
	Stage string `json:"stage"`
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

// PerformanceResponse is the full computed performance result.
type PerformanceResponse struct {
	ClientID        string                        `json:"clientId"`
	Score           int                           `json:"score"`
	BaseScore       float64                       `json:"baseScore"`
	Modifier        float64                       `json:"modifier"`
	Stage           StageResponse                 `json:"growthStage"`
	Status          stage.Status                  `json:"status"`
	Evaluation      string                        `json:"evaluation"`
	PlanType        string                        `json:"planType"`
	TenureMonths    int                           `json:"tenureMonths"`
	MRR             float64                       `json:"mrr"`
	Metrics         map[string]engine.MetricScore `json:"metrics"`
	ExcludedMetrics []string                      `json:"excludedMetrics"`
	Velocity        velocity.Breakdown            `json:"velocity"`
	StageFlags      []stage.Flag                  `json:"stageFlags"`
	LastAlertAt     *time.Time                    `json:"lastAlertAt"`
	LastAlertType   string                        `json:"lastAlertType,omitempty"`
	RedFlags        []string                      `json:"redFlags"`
	Recommendations []string                      `json:"recommendations"`
	ComputedAt      time.Time                     `json:"computedAt"`
}

// RecomputeResponse is returned after a persisted recomputation.
type RecomputeResponse struct {
	Score int `json:"score"`
}

// HistoryQuery is the query binding for the history endpoint.
type HistoryQuery struct {
	Days int `form:"days" validate:"omitempty,min=1,max=365"`
}

// HistoryEntryResponse is one score-history row.
type HistoryEntryResponse struct {
	Score       int       `json:"score"`
	GrowthStage string    `json:"growthStage"`
	RecordedAt  time.Time `json:"recordedAt"`
}

// HistoryResponse is the score-history series, newest first.
type HistoryResponse struct {
	ClientID string                 `json:"clientId"`
	Days     int                    `json:"days"`
	Entries  []HistoryEntryResponse `json:"entries"`
}
