// Package service orchestrates the performance computation: it fetches the
// engine's inputs, runs the pure calculation, and handles caching and
// persistence.
package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"agency_portal_backend/internal/scoring/engine"
	"agency_portal_backend/internal/scoring/repository"
	"agency_portal_backend/internal/scoring/stage"
	"agency_portal_backend/internal/scoring/transport"
	"agency_portal_backend/internal/scoring/weights"
	"agency_portal_backend/platform/apperr"
	"agency_portal_backend/platform/logger"
	"agency_portal_backend/platform/metrics"

	"github.com/google/uuid"
)

// Comparison windows: two back-to-back 30-day periods, previous ending the
// day before current begins.
const (
	windowDays         = 30
	improvementWindow  = 365 // trailing 12 months, in days
	defaultHistoryDays = 90
)

// Service provides the scoring operations.
type Service struct {
	repo  repository.Repository
	table *weights.Table
	cache *Cache
	log   *logger.Logger
	now   func() time.Time
}

// New creates a new scoring service. cache may be nil when redis is not
// configured.
func New(repo repository.Repository, table *weights.Table, cache *Cache, log *logger.Logger) *Service {
	return &Service{
		repo:  repo,
		table: table,
		cache: cache,
		log:   log,
		now:   time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Calculate computes the client's performance result without side effects.
// Results are served from the cache when fresh.
func (s *Service) Calculate(ctx context.Context, clientID uuid.UUID) (transport.PerformanceResponse, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, clientID); ok {
			return cached, nil
		}
	}

	result, err := s.compute(ctx, clientID)
	if err != nil {
		return transport.PerformanceResponse{}, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, clientID, result)
	}

	return result, nil
}

// UpdateScore computes the client's performance and persists the cached
// score, stage, and a deduplicated history row. Persistence failures
// propagate to the caller.
func (s *Service) UpdateScore(ctx context.Context, clientID uuid.UUID) (int, error) {
	result, err := s.compute(ctx, clientID)
	if err != nil {
		return 0, err
	}

	historyWritten, err := s.repo.PersistScore(ctx, repository.ScoreUpdate{
		ClientID:    clientID,
		Score:       result.Score,
		GrowthStage: result.Stage.Stage,
		Now:         result.ComputedAt,
	})
	if err != nil {
		s.log.DatabaseError("persist score", err)
		return 0, err
	}
	if historyWritten {
		metrics.ScoreHistoryRows.Inc()
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, clientID)
	}

	return result.Score, nil
}

// History returns the client's score-history series for the trailing number
// of days (default 90).
func (s *Service) History(ctx context.Context, clientID uuid.UUID, days int) (transport.HistoryResponse, error) {
	if days < 1 {
		days = defaultHistoryDays
	}

	// 404 before returning an empty series for a client that never existed
	if _, err := s.repo.GetClient(ctx, clientID); err != nil {
		return transport.HistoryResponse{}, err
	}

	since := s.now().AddDate(0, 0, -days)
	entries, err := s.repo.HistorySince(ctx, clientID, since)
	if err != nil {
		return transport.HistoryResponse{}, err
	}

	out := make([]transport.HistoryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, transport.HistoryEntryResponse{
			Score:       entry.Score,
			GrowthStage: entry.GrowthStage,
			RecordedAt:  entry.RecordedAt,
		})
	}

	return transport.HistoryResponse{
		ClientID: clientID.String(),
		Days:     days,
		Entries:  out,
	}, nil
}

// compute gathers the engine inputs and runs the pure calculation.
func (s *Service) compute(ctx context.Context, clientID uuid.UUID) (transport.PerformanceResponse, error) {
	started := time.Now()

	client, err := s.repo.GetClient(ctx, clientID)
	if err != nil {
		metrics.ScoreComputations.WithLabelValues(outcomeFor(err)).Inc()
		return transport.PerformanceResponse{}, err
	}

	items, err := s.repo.ActiveSubscriptionItems(ctx, clientID)
	if err != nil {
		metrics.ScoreComputations.WithLabelValues(metrics.OutcomeError).Inc()
		return transport.PerformanceResponse{}, err
	}

	categories := make([]string, 0, len(items))
	for _, item := range items {
		categories = append(categories, item.ProductCategory)
	}
	plan := weights.InferFromCategories(categories)

	now := s.now()
	currentStart := now.AddDate(0, 0, -windowDays)
	previousStart := now.AddDate(0, 0, -2*windowDays)

	metricValues := s.fetchMetrics(ctx, clientID, currentStart, previousStart)

	alertCounts, err := s.repo.AlertCountsSince(ctx, clientID, now.AddDate(0, 0, -windowDays))
	if err != nil {
		metrics.ScoreComputations.WithLabelValues(metrics.OutcomeError).Inc()
		return transport.PerformanceResponse{}, err
	}
	counts := make(map[string]int, len(alertCounts))
	for _, ac := range alertCounts {
		counts[ac.Type] = ac.Count
	}

	improvements, err := s.repo.ImprovementEventCount(ctx, clientID, now.AddDate(0, 0, -improvementWindow))
	if err != nil {
		metrics.ScoreComputations.WithLabelValues(metrics.OutcomeError).Inc()
		return transport.PerformanceResponse{}, err
	}

	lastAlert, err := s.repo.LastAlert(ctx, clientID)
	if err != nil {
		metrics.ScoreComputations.WithLabelValues(metrics.OutcomeError).Inc()
		return transport.PerformanceResponse{}, err
	}

	inputs := engine.Inputs{
		Now:          now,
		StartDate:    client.TenureAnchor(),
		Plan:         plan,
		Metrics:      metricValues,
		AlertCounts:  counts,
		Improvements: improvements,
		MRRCents:     monthlyRevenueCents(client, items),
	}
	if client.GrowthStage != nil {
		inputs.StoredStage = *client.GrowthStage
	}
	if lastAlert != nil {
		inputs.LastAlertAt = &lastAlert.SentAt
		inputs.LastAlertType = lastAlert.Type
	}

	result := engine.Calculate(inputs, s.table)

	duration := time.Since(started)
	metrics.ScoreComputations.WithLabelValues(metrics.OutcomeOK).Inc()
	metrics.ScoreComputationDuration.Observe(duration.Seconds())
	s.log.ScoreEvent(clientID.String(), result.Score, string(result.Stage), float64(duration.Milliseconds()))

	return toResponse(clientID, result, now), nil
}

// fetchMetrics looks up both window values for the five data metrics
// concurrently. The lookups are independent, so a fetch error degrades only
// its own metric: the value is treated as missing, logged, and the rest of
// the computation proceeds.
func (s *Service) fetchMetrics(ctx context.Context, clientID uuid.UUID, currentStart, previousStart time.Time) map[engine.MetricType]engine.MetricValue {
	values := make([]engine.MetricValue, len(engine.DataMetrics))

	g, gctx := errgroup.WithContext(ctx)
	for i, metric := range engine.DataMetrics {
		g.Go(func() error {
			current, err := s.repo.MetricValue(gctx, clientID, string(metric), currentStart)
			if err != nil {
				s.log.Warn("metric fetch failed, excluding metric", "metric", string(metric), "window", "current", "error", err)
				current = nil
			}

			previous, err := s.repo.MetricValue(gctx, clientID, string(metric), previousStart)
			if err != nil {
				s.log.Warn("metric fetch failed, excluding metric", "metric", string(metric), "window", "previous", "error", err)
				previous = nil
			}

			values[i] = engine.MetricValue{Current: current, Previous: previous}
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[engine.MetricType]engine.MetricValue, len(engine.DataMetrics))
	for i, metric := range engine.DataMetrics {
		out[metric] = values[i]
	}
	return out
}

// monthlyRevenueCents prefers an explicit stored monthly spend; otherwise it
// sums the active line items, preferring a stored unit amount over the
// product's list price.
func monthlyRevenueCents(client repository.Client, items []repository.SubscriptionItem) int64 {
	if client.MonthlySpendCents > 0 {
		return client.MonthlySpendCents
	}

	var total int64
	for _, item := range items {
		unit := item.ProductListPriceCents
		if item.UnitAmountCents != nil {
			unit = *item.UnitAmountCents
		}
		total += int64(item.Quantity) * unit
	}
	return total
}

func toResponse(clientID uuid.UUID, result engine.Result, computedAt time.Time) transport.PerformanceResponse {
	excluded := result.ExcludedMetrics
	if excluded == nil {
		excluded = []string{}
	}
	redFlags := result.RedFlags
	if redFlags == nil {
		redFlags = []string{}
	}
	recommendations := result.Recommendations
	if recommendations == nil {
		recommendations = []string{}
	}
	stageFlags := result.StageFlags
	if stageFlags == nil {
		stageFlags = []stage.Flag{}
	}

	return transport.PerformanceResponse{
		ClientID:  clientID.String(),
		Score:     result.Score,
		BaseScore: result.BaseScore,
		Modifier:  result.Modifier,
		Stage: transport.StageResponse{
			Stage: string(result.Stage),
			Label: result.Stage.Label(),
			Icon:  result.Stage.Icon(),
		},
		Status:          result.Status,
		Evaluation:      result.Evaluation,
		PlanType:        string(result.Plan),
		TenureMonths:    result.TenureMonths,
		MRR:             result.MRR,
		Metrics:         result.Metrics,
		ExcludedMetrics: excluded,
		Velocity:        result.Velocity,
		StageFlags:      stageFlags,
		LastAlertAt:     result.LastAlertAt,
		LastAlertType:   result.LastAlertType,
		RedFlags:        redFlags,
		Recommendations: recommendations,
		ComputedAt:      computedAt,
	}
}

func outcomeFor(err error) string {
	if err == nil {
		return metrics.OutcomeOK
	}
	if apperr.Is(err, apperr.KindNotFound) {
		return metrics.OutcomeNotFound
	}
	return metrics.OutcomeError
}
