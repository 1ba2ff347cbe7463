package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"CloudCostIQ/internal/domain/models"
)

func obsSeries(costs []float64) []models.CostObservation {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.CostObservation, len(costs))
	for i, c := range costs {
		out[i] = models.CostObservation{Date: start.AddDate(0, 0, i), DailyCost: c}
	}
	return out
}

func flatSeries(n int, cost float64) []models.CostObservation {
	costs := make([]float64, n)
	for i := range costs {
		costs[i] = cost
	}
	return obsSeries(costs)
}

func TestCostTrendStable(t *testing.T) {
	trend := costTrend(flatSeries(30, 100))
	if trend.Direction != "stable" {
		t.Fatalf("expected stable, got %s", trend.Direction)
	}
	if trend.WindowDays != 30 {
		t.Fatalf("expected window 30, got %d", trend.WindowDays)
	}
}

func TestCostTrendIncreasing(t *testing.T) {
	costs := make([]float64, 30)
	for i := range costs {
		costs[i] = 100 + float64(i)*5
	}
	trend := costTrend(obsSeries(costs))
	if trend.Direction != "increasing" {
		t.Fatalf("expected increasing, got %s (%.1f%%)", trend.Direction, trend.ChangePct)
	}
	if trend.ChangePct <= 5 {
		t.Fatalf("expected change above 5%%, got %.1f", trend.ChangePct)
	}
}

func TestCostTrendDecreasing(t *testing.T) {
	costs := make([]float64, 30)
	for i := range costs {
		costs[i] = 400 - float64(i)*10
	}
	trend := costTrend(obsSeries(costs))
	if trend.Direction != "decreasing" {
		t.Fatalf("expected decreasing, got %s", trend.Direction)
	}
}

func TestCostTrendShortSeries(t *testing.T) {
	trend := costTrend(flatSeries(1, 100))
	if trend.Direction != "stable" {
		t.Fatalf("expected stable for single point, got %s", trend.Direction)
	}
}

func TestForecastImpact(t *testing.T) {
	obs := flatSeries(30, 100)
	fc := &models.CostForecast{Values: []float64{110, 110, 110}}

	impact := forecastImpact(obs, fc)
	if impact == nil {
		t.Fatal("expected impact")
	}
	if impact.ProjectedTotal != 330 {
		t.Fatalf("expected total 330, got %.1f", impact.ProjectedTotal)
	}
	// projected average 110 vs current 100 -> +10%
	if impact.VsCurrentPct < 9.9 || impact.VsCurrentPct > 10.1 {
		t.Fatalf("expected ~10%%, got %.2f", impact.VsCurrentPct)
	}
}

func TestForecastImpactEmptyForecast(t *testing.T) {
	if forecastImpact(flatSeries(10, 100), &models.CostForecast{}) != nil {
		t.Fatal("expected nil impact for empty forecast")
	}
}

type stubStorage struct {
	stored []*models.CostEntry
	series []models.CostObservation
}

func (s *stubStorage) Init(context.Context) error { return nil }

func (s *stubStorage) Store(_ context.Context, e *models.CostEntry) error {
	s.stored = append(s.stored, e)
	return nil
}

func (s *stubStorage) StoreBatch(_ context.Context, entries []*models.CostEntry) error {
	s.stored = append(s.stored, entries...)
	return nil
}

func (s *stubStorage) DailyCosts(context.Context, string, time.Time, time.Time) ([]models.CostObservation, error) {
	return s.series, nil
}

func (s *stubStorage) LatestDailyCosts(context.Context, string, int) ([]models.CostObservation, error) {
	return s.series, nil
}

func (s *stubStorage) Health(context.Context) error { return nil }
func (s *stubStorage) Close() error                 { return nil }

type stubMetrics struct {
	entries  int
	errors   map[string]int
	lastCost float64
}

func (m *stubMetrics) RecordEntryStored(string) { m.entries++ }
func (m *stubMetrics) RecordError(kind string) {
	if m.errors == nil {
		m.errors = map[string]int{}
	}
	m.errors[kind]++
}
func (m *stubMetrics) RecordLastDailyCost(_ string, cost float64) { m.lastCost = cost }
func (m *stubMetrics) RecordLatency(string, float64)              {}

func TestKafkaCostEntriesHandler(t *testing.T) {
	store := &stubStorage{}
	metrics := &stubMetrics{}
	h := NewKafkaCostEntriesHandler("cost-entries", store, metrics)

	if h.Topic() != "cost-entries" {
		t.Fatalf("unexpected topic %s", h.Topic())
	}

	entry := models.CostEntry{
		OrgID:    "acme",
		Provider: "aws",
		Service:  "ec2",
		Date:     time.Now().UTC(),
		Amount:   12.5,
		Currency: "USD",
	}
	b, err := json.Marshal(entry)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Handle(context.Background(), b); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(store.stored) != 1 {
		t.Fatalf("expected 1 stored entry, got %d", len(store.stored))
	}
	if store.stored[0].OrgID != "acme" {
		t.Fatalf("unexpected org %s", store.stored[0].OrgID)
	}
	if metrics.entries != 1 {
		t.Fatalf("expected entry metric, got %d", metrics.entries)
	}
}

func TestKafkaCostEntriesHandlerBadPayload(t *testing.T) {
	store := &stubStorage{}
	metrics := &stubMetrics{}
	h := NewKafkaCostEntriesHandler("cost-entries", store, metrics)

	if err := h.Handle(context.Background(), []byte("not json")); err == nil {
		t.Fatal("expected unmarshal error")
	}
	if metrics.errors["consumer_unmarshal"] != 1 {
		t.Fatal("expected unmarshal error metric")
	}
}
