package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"agency_portal_backend/internal/scoring/repository"
	"agency_portal_backend/internal/scoring/weights"
	"agency_portal_backend/platform/apperr"
	"agency_portal_backend/platform/logger"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func fp(v float64) *float64 { return &v }

// fakeRepo is an in-memory Repository for service tests.
type fakeRepo struct {
	client       repository.Client
	clientErr    error
	items        []repository.SubscriptionItem
	current      map[string]*float64
	previous     map[string]*float64
	metricErrs   map[string]error
	alertCounts  []repository.AlertCount
	improvements int
	lastAlert    *repository.AlertInfo
	history      []repository.HistoryEntry

	currentStart time.Time
	persisted    []repository.ScoreUpdate
	persistErr   error
	wroteHistory bool
}

var _ repository.Repository = (*fakeRepo)(nil)

func (f *fakeRepo) GetClient(_ context.Context, id uuid.UUID) (repository.Client, error) {
	if f.clientErr != nil {
		return repository.Client{}, f.clientErr
	}
	if id != f.client.ID {
		return repository.Client{}, apperr.NotFound("client not found")
	}
	return f.client, nil
}

func (f *fakeRepo) ListActiveClientIDs(context.Context) ([]uuid.UUID, error) {
	return []uuid.UUID{f.client.ID}, nil
}

func (f *fakeRepo) ActiveSubscriptionItems(context.Context, uuid.UUID) ([]repository.SubscriptionItem, error) {
	return f.items, nil
}

func (f *fakeRepo) MetricValue(_ context.Context, _ uuid.UUID, metricType string, windowStart time.Time) (*float64, error) {
	if err := f.metricErrs[metricType]; err != nil {
		return nil, err
	}
	if windowStart.Equal(f.currentStart) {
		return f.current[metricType], nil
	}
	return f.previous[metricType], nil
}

func (f *fakeRepo) AlertCountsSince(context.Context, uuid.UUID, time.Time) ([]repository.AlertCount, error) {
	return f.alertCounts, nil
}

func (f *fakeRepo) ImprovementEventCount(context.Context, uuid.UUID, time.Time) (int, error) {
	return f.improvements, nil
}

func (f *fakeRepo) LastAlert(context.Context, uuid.UUID) (*repository.AlertInfo, error) {
	return f.lastAlert, nil
}

func (f *fakeRepo) HistorySince(context.Context, uuid.UUID, time.Time) ([]repository.HistoryEntry, error) {
	return f.history, nil
}

func (f *fakeRepo) PersistScore(_ context.Context, update repository.ScoreUpdate) (bool, error) {
	if f.persistErr != nil {
		return false, f.persistErr
	}
	f.persisted = append(f.persisted, update)
	return f.wroteHistory, nil
}

func newFakeRepo() *fakeRepo {
	clientID := uuid.New()
	start := testNow.AddDate(0, 0, -300)
	lastAlert := testNow.AddDate(0, 0, -5)

	return &fakeRepo{
		client: repository.Client{
			ID:        clientID,
			Name:      "Acme",
			StartDate: &start,
			CreatedAt: start,
		},
		items: []repository.SubscriptionItem{
			{Quantity: 1, ProductListPriceCents: 150000, ProductCategory: "seo_root"},
		},
		current: map[string]*float64{
			weights.MetricKeywordPosition: fp(8),
			weights.MetricVisitors:        fp(1100),
			weights.MetricLeads:           fp(50),
			weights.MetricAIVisibility:    fp(20),
			weights.MetricConversions:     fp(10),
		},
		previous: map[string]*float64{
			weights.MetricKeywordPosition: fp(10),
			weights.MetricVisitors:        fp(1000),
			weights.MetricLeads:           fp(50),
			weights.MetricAIVisibility:    fp(10),
			weights.MetricConversions:     fp(10),
		},
		alertCounts:  []repository.AlertCount{{Type: "lead_increase", Count: 1}},
		improvements: 30,
		lastAlert:    &repository.AlertInfo{Type: "lead_increase", SentAt: lastAlert},
		currentStart: testNow.AddDate(0, 0, -windowDays),
		wroteHistory: true,
	}
}

func newTestService(repo *fakeRepo) *Service {
	svc := New(repo, weights.Default(), nil, logger.New("test"))
	svc.SetClock(func() time.Time { return testNow })
	return svc
}

func TestCalculate(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	result, err := svc.Calculate(context.Background(), repo.client.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.ClientID != repo.client.ID.String() {
		t.Fatalf("client id = %s, want %s", result.ClientID, repo.client.ID)
	}
	if result.PlanType != "seo" {
		t.Fatalf("plan = %s, want seo inferred from seo_root", result.PlanType)
	}
	if result.Stage.Stage != "blooming" {
		t.Fatalf("stage = %s, want blooming at 300 days", result.Stage.Stage)
	}
	if result.MRR != 1500 {
		t.Fatalf("mrr = %.2f, want 1500 from list price", result.MRR)
	}
	if result.Score < 0 || result.Score > 100 {
		t.Fatalf("score out of range: %d", result.Score)
	}
	if len(result.ExcludedMetrics) != 0 {
		t.Fatalf("excluded = %v, want none", result.ExcludedMetrics)
	}
	if len(result.Metrics) != 6 {
		t.Fatalf("metric breakdown has %d entries, want 6", len(result.Metrics))
	}
	if !result.ComputedAt.Equal(testNow) {
		t.Fatalf("computed at = %v, want %v", result.ComputedAt, testNow)
	}
}

func TestCalculateUnknownClient(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	_, err := svc.Calculate(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected an error for an unknown client")
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected a not-found error, got %v", err)
	}
}

func TestCalculateMetricFetchErrorExcludesMetric(t *testing.T) {
	repo := newFakeRepo()
	repo.metricErrs = map[string]error{
		weights.MetricVisitors: errors.New("query timeout"),
	}
	svc := newTestService(repo)

	result, err := svc.Calculate(context.Background(), repo.client.ID)
	if err != nil {
		t.Fatalf("a single metric failure should degrade, not fail: %v", err)
	}

	if len(result.ExcludedMetrics) != 1 || result.ExcludedMetrics[0] != weights.MetricVisitors {
		t.Fatalf("excluded = %v, want [visitors]", result.ExcludedMetrics)
	}
	if _, ok := result.Metrics[weights.MetricVisitors]; ok {
		t.Fatal("failed metric should not appear in the breakdown")
	}
}

func TestCalculateStoredSpendOverridesItems(t *testing.T) {
	repo := newFakeRepo()
	repo.client.MonthlySpendCents = 200000
	svc := newTestService(repo)

	result, err := svc.Calculate(context.Background(), repo.client.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.MRR != 2000 {
		t.Fatalf("mrr = %.2f, want 2000 from stored spend", result.MRR)
	}
}

func TestCalculateUnitAmountPreferredOverListPrice(t *testing.T) {
	repo := newFakeRepo()
	unit := int64(90000)
	repo.items = []repository.SubscriptionItem{
		{Quantity: 2, UnitAmountCents: &unit, ProductListPriceCents: 150000, ProductCategory: "seo"},
	}
	svc := newTestService(repo)

	result, err := svc.Calculate(context.Background(), repo.client.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.MRR != 1800 {
		t.Fatalf("mrr = %.2f, want 1800 from 2x unit amount", result.MRR)
	}
}

func TestUpdateScorePersists(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	score, err := svc.UpdateScore(context.Background(), repo.client.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.persisted) != 1 {
		t.Fatalf("expected one persisted update, got %d", len(repo.persisted))
	}
	update := repo.persisted[0]
	if update.ClientID != repo.client.ID {
		t.Fatalf("persisted client id = %s, want %s", update.ClientID, repo.client.ID)
	}
	if update.Score != score {
		t.Fatalf("persisted score %d does not match returned score %d", update.Score, score)
	}
	if update.GrowthStage != "blooming" {
		t.Fatalf("persisted stage = %s, want blooming", update.GrowthStage)
	}
	if !update.Now.Equal(testNow) {
		t.Fatalf("persisted timestamp = %v, want %v", update.Now, testNow)
	}
}

func TestUpdateScorePersistFailurePropagates(t *testing.T) {
	repo := newFakeRepo()
	repo.persistErr = errors.New("connection reset")
	svc := newTestService(repo)

	if _, err := svc.UpdateScore(context.Background(), repo.client.ID); err == nil {
		t.Fatal("expected the persistence error to propagate")
	}
}

func TestHistory(t *testing.T) {
	repo := newFakeRepo()
	repo.history = []repository.HistoryEntry{
		{ClientID: repo.client.ID, Score: 62, GrowthStage: "blooming", RecordedAt: testNow.AddDate(0, 0, -1)},
		{ClientID: repo.client.ID, Score: 58, GrowthStage: "blooming", RecordedAt: testNow.AddDate(0, 0, -3)},
	}
	svc := newTestService(repo)

	result, err := svc.History(context.Background(), repo.client.ID, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Days != defaultHistoryDays {
		t.Fatalf("days = %d, want default %d", result.Days, defaultHistoryDays)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(result.Entries))
	}
	if result.Entries[0].Score != 62 {
		t.Fatalf("first entry score = %d, want newest first", result.Entries[0].Score)
	}
}

func TestHistoryUnknownClient(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	_, err := svc.History(context.Background(), uuid.New(), 30)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected a not-found error, got %v", err)
	}
}
