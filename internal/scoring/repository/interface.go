package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Client is the engine's view of a client record. The engine only ever
// mutates the cached score and stage fields.
type Client struct {
	ID                uuid.UUID
	Name              string
	StartDate         *time.Time
	CreatedAt         time.Time
	MonthlySpendCents int64
	PerformanceScore  *int
	GrowthStage       *string
	ScoreUpdatedAt    *time.Time
	StageUpdatedAt    *time.Time
}

// TenureAnchor returns the account start date, falling back to the creation
// date when no explicit start is recorded.
func (c Client) TenureAnchor() time.Time {
	if c.StartDate != nil {
		return *c.StartDate
	}
	return c.CreatedAt
}

// SubscriptionItem is one active subscription line with its product context.
type SubscriptionItem struct {
	Quantity              int
	UnitAmountCents       *int64
	ProductListPriceCents int64
	ProductCategory       string
}

// AlertCount aggregates recent alerts by type.
type AlertCount struct {
	Type  string
	Count int
}

// AlertInfo describes the most recent published alert.
type AlertInfo struct {
	Type   string
	SentAt time.Time
}

// HistoryEntry is one immutable score-history row.
type HistoryEntry struct {
	ID          uuid.UUID
	ClientID    uuid.UUID
	Score       int
	GrowthStage string
	RecordedAt  time.Time
}

// ScoreUpdate carries the persisted outcome of one computation.
type ScoreUpdate struct {
	ClientID    uuid.UUID
	Score       int
	GrowthStage string
	Now         time.Time
}

// Reader provides the engine's read-side data contracts.
type Reader interface {
	GetClient(ctx context.Context, id uuid.UUID) (Client, error)
	ListActiveClientIDs(ctx context.Context) ([]uuid.UUID, error)
	ActiveSubscriptionItems(ctx context.Context, clientID uuid.UUID) ([]SubscriptionItem, error)
	// MetricValue returns the most relevant snapshot value for the window
	// starting at windowStart, or nil when none exists within tolerance.
	MetricValue(ctx context.Context, clientID uuid.UUID, metricType string, windowStart time.Time) (*float64, error)
	AlertCountsSince(ctx context.Context, clientID uuid.UUID, since time.Time) ([]AlertCount, error)
	ImprovementEventCount(ctx context.Context, clientID uuid.UUID, since time.Time) (int, error)
	LastAlert(ctx context.Context, clientID uuid.UUID) (*AlertInfo, error)
	HistorySince(ctx context.Context, clientID uuid.UUID, since time.Time) ([]HistoryEntry, error)
}

// Writer provides the engine's write-side data contracts.
type Writer interface {
	// PersistScore updates the client's cached score fields and appends a
	// history row when the dedup rule allows. Both writes happen in one
	// transaction. Returns whether a history row was written.
	PersistScore(ctx context.Context, update ScoreUpdate) (bool, error)
}

// Repository combines all scoring data access.
type Repository interface {
	Reader
	Writer
}
