package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"agency_portal_backend/platform/apperr"
)

const clientNotFoundMessage = "client not found"

// Snapshot lookup tolerance around the requested window start. Period
// boundaries written by the ingestion process are imprecise; prefer a
// snapshot whose period start is within -5/+10 days of the requested start.
// Tuned to the fixed 30-day comparison windows.
const (
	snapshotToleranceBefore = 5 * 24 * time.Hour
	snapshotToleranceAfter  = 10 * 24 * time.Hour
)

// historyMaxAge is the dedup horizon: an unchanged score still gets a new
// history row once the last row is older than this.
const historyMaxAge = 24 * time.Hour

// improvementAlertTypes are the alert types counted as velocity improvement
// events. "other" alerts carry no success signal and are excluded.
var improvementAlertTypes = []string{
	"lead_increase",
	"keyword_ranking",
	"traffic_milestone",
	"ai_alert",
	"campaign_milestone",
}

// improvementActivityTypes are the activity-log entry types counted as
// velocity improvement events.
var improvementActivityTypes = []string{
	"milestone_reached",
	"goal_completed",
	"campaign_launched",
}

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new scoring repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// GetClient retrieves a client by its ID.
func (r *Repo) GetClient(ctx context.Context, id uuid.UUID) (Client, error) {
	query := `
		SELECT id, name, start_date, created_at, monthly_spend_cents,
			performance_score, growth_stage, score_updated_at, stage_updated_at
		FROM clients
		WHERE id = $1`

	var c Client
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.StartDate, &c.CreatedAt, &c.MonthlySpendCents,
		&c.PerformanceScore, &c.GrowthStage, &c.ScoreUpdatedAt, &c.StageUpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, apperr.NotFound(clientNotFoundMessage)
		}
		return Client{}, fmt.Errorf("get client: %w", err)
	}

	return c, nil
}

// ListActiveClientIDs returns the IDs of all clients with at least one
// active subscription, for batch recomputation.
func (r *Repo) ListActiveClientIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT c.id
		FROM clients c
		JOIN subscriptions s ON s.client_id = c.id AND s.status = 'active'
		ORDER BY c.id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active clients: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan client id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate client ids: %w", err)
	}

	return ids, nil
}

// ActiveSubscriptionItems returns the line items of the client's active
// subscriptions with their product category and pricing.
func (r *Repo) ActiveSubscriptionItems(ctx context.Context, clientID uuid.UUID) ([]SubscriptionItem, error) {
	query := `
		SELECT si.quantity, si.unit_amount_cents, p.list_price_cents, p.category
		FROM subscription_items si
		JOIN subscriptions s ON s.id = si.subscription_id
		JOIN products p ON p.id = si.product_id
		WHERE s.client_id = $1 AND s.status = 'active'`

	rows, err := r.pool.Query(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("list subscription items: %w", err)
	}
	defer rows.Close()

	var items []SubscriptionItem
	for rows.Next() {
		var item SubscriptionItem
		if err := rows.Scan(&item.Quantity, &item.UnitAmountCents, &item.ProductListPriceCents, &item.ProductCategory); err != nil {
			return nil, fmt.Errorf("scan subscription item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscription items: %w", err)
	}

	return items, nil
}

// MetricValue returns the value of the snapshot closest to the requested
// window start within the tolerance window, or nil when none exists.
func (r *Repo) MetricValue(ctx context.Context, clientID uuid.UUID, metricType string, windowStart time.Time) (*float64, error) {
	query := `
		SELECT value
		FROM metric_snapshots
		WHERE client_id = $1
			AND metric_type = $2
			AND period_start >= $3
			AND period_start <= $4
		ORDER BY ABS(EXTRACT(EPOCH FROM (period_start - $5))) ASC, period_start DESC
		LIMIT 1`

	var value float64
	err := r.pool.QueryRow(ctx, query,
		clientID, metricType,
		windowStart.Add(-snapshotToleranceBefore),
		windowStart.Add(snapshotToleranceAfter),
		windowStart,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get metric snapshot: %w", err)
	}

	return &value, nil
}

// AlertCountsSince aggregates alert events by type since the given time.
func (r *Repo) AlertCountsSince(ctx context.Context, clientID uuid.UUID, since time.Time) ([]AlertCount, error) {
	query := `
		SELECT alert_type, COUNT(*)
		FROM alert_events
		WHERE client_id = $1 AND sent_at >= $2
		GROUP BY alert_type`

	rows, err := r.pool.Query(ctx, query, clientID, since)
	if err != nil {
		return nil, fmt.Errorf("count alerts: %w", err)
	}
	defer rows.Close()

	var counts []AlertCount
	for rows.Next() {
		var c AlertCount
		if err := rows.Scan(&c.Type, &c.Count); err != nil {
			return nil, fmt.Errorf("scan alert count: %w", err)
		}
		counts = append(counts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert counts: %w", err)
	}

	return counts, nil
}

// ImprovementEventCount counts success alerts and qualifying activity-log
// entries since the given time, for the velocity analysis.
func (r *Repo) ImprovementEventCount(ctx context.Context, clientID uuid.UUID, since time.Time) (int, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM alert_events
				WHERE client_id = $1 AND sent_at >= $2 AND alert_type = ANY($3))
			+
			(SELECT COUNT(*) FROM activity_log
				WHERE client_id = $1 AND occurred_at >= $2 AND activity_type = ANY($4))`

	var count int
	err := r.pool.QueryRow(ctx, query, clientID, since, improvementAlertTypes, improvementActivityTypes).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count improvement events: %w", err)
	}

	return count, nil
}

// LastAlert returns the most recent alert for the client, or nil when none
// has ever been sent.
func (r *Repo) LastAlert(ctx context.Context, clientID uuid.UUID) (*AlertInfo, error) {
	query := `
		SELECT alert_type, sent_at
		FROM alert_events
		WHERE client_id = $1
		ORDER BY sent_at DESC
		LIMIT 1`

	var info AlertInfo
	err := r.pool.QueryRow(ctx, query, clientID).Scan(&info.Type, &info.SentAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get last alert: %w", err)
	}

	return &info, nil
}

// HistorySince returns the client's score history from the given time,
// newest first.
func (r *Repo) HistorySince(ctx context.Context, clientID uuid.UUID, since time.Time) ([]HistoryEntry, error) {
	query := `
		SELECT id, client_id, score, growth_stage, recorded_at
		FROM score_history
		WHERE client_id = $1 AND recorded_at >= $2
		ORDER BY recorded_at DESC`

	rows, err := r.pool.Query(ctx, query, clientID, since)
	if err != nil {
		return nil, fmt.Errorf("list score history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.ClientID, &e.Score, &e.GrowthStage, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate score history: %w", err)
	}

	return entries, nil
}

// PersistScore updates the client's cached score fields and conditionally
// appends a history row, all in one transaction. A new row is written only
// when the score changed from the last entry or the last entry is older than
// 24 hours, so identical scores never spam the history while at least daily
// density is preserved.
func (r *Repo) PersistScore(ctx context.Context, update ScoreUpdate) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin persist score: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	updateQuery := `
		UPDATE clients
		SET performance_score = $2,
			score_updated_at = $3,
			growth_stage = $4,
			stage_updated_at = $3,
			updated_at = now()
		WHERE id = $1`

	result, err := tx.Exec(ctx, updateQuery, update.ClientID, update.Score, update.Now, update.GrowthStage)
	if err != nil {
		return false, fmt.Errorf("update client score: %w", err)
	}
	if result.RowsAffected() == 0 {
		return false, apperr.NotFound(clientNotFoundMessage)
	}

	lastQuery := `
		SELECT score, recorded_at
		FROM score_history
		WHERE client_id = $1
		ORDER BY recorded_at DESC
		LIMIT 1`

	var lastScore int
	var lastRecordedAt time.Time
	hasLast := true

	err = tx.QueryRow(ctx, lastQuery, update.ClientID).Scan(&lastScore, &lastRecordedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		hasLast = false
	case err != nil:
		return false, fmt.Errorf("get last history entry: %w", err)
	}

	writeHistory := shouldWriteHistory(hasLast, lastScore, lastRecordedAt, update.Score, update.Now)

	if writeHistory {
		insertQuery := `
			INSERT INTO score_history (client_id, score, growth_stage, recorded_at)
			VALUES ($1, $2, $3, $4)`

		if _, err := tx.Exec(ctx, insertQuery, update.ClientID, update.Score, update.GrowthStage, update.Now); err != nil {
			return false, fmt.Errorf("insert history entry: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit persist score: %w", err)
	}

	return writeHistory, nil
}

// shouldWriteHistory applies the history dedup rule: a row is written for the
// first ever entry, whenever the score changed from the last row, or when the
// last row is at least 24 hours old.
func shouldWriteHistory(hasLast bool, lastScore int, lastRecordedAt time.Time, score int, now time.Time) bool {
	if !hasLast {
		return true
	}
	return lastScore != score || now.Sub(lastRecordedAt) >= historyMaxAge
}
