package registry

import (
	"math"
	"testing"
	"time"

	"CloudCostIQ/internal/domain/models"
	"CloudCostIQ/internal/services/anomaly"
	"CloudCostIQ/internal/services/forecasting"
	"CloudCostIQ/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	return log
}

func history(n int) []models.CostObservation {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	obs := make([]models.CostObservation, n)
	for i := range obs {
		obs[i] = models.CostObservation{
			Date:      start.AddDate(0, 0, i),
			DailyCost: 100 + 0.5*float64(i) + 10*math.Sin(float64(i)/7),
		}
	}
	return obs
}

func trainedForecaster(t *testing.T) *forecasting.Forecaster {
	t.Helper()
	f := forecasting.New(testLogger(t), forecasting.Options{
		SeqLength: 10, Horizon: 5, Units: 8, DenseUnits: 4,
		LR: 0.01, Epochs: 2, Uncertainty: true, Seed: 42,
	})
	_, err := f.Train(history(60))
	require.NoError(t, err)
	return f
}

func trainedDetector(t *testing.T) *anomaly.Detector {
	t.Helper()
	d := anomaly.New(testLogger(t), anomaly.Options{
		SeqLength: 7, Units: 8, Bottleneck: 4,
		LR: 0.01, Epochs: 2, ThresholdPercentile: 95, Contamination: 0.05, Seed: 42,
	})
	_, err := d.Train(history(70))
	require.NoError(t, err)
	return d
}

func TestRegisterAndLookup(t *testing.T) {
	r, err := Open(testLogger(t), t.TempDir())
	require.NoError(t, err)

	_, ok := r.Forecaster("acme")
	assert.False(t, ok)

	entry, err := r.RegisterForecaster("acme", trainedForecaster(t))
	require.NoError(t, err)
	assert.True(t, entry.Active)
	assert.Equal(t, ModelForecast, entry.Type)

	got, ok := r.Forecaster("acme")
	require.True(t, ok)
	assert.True(t, got.Trained())
}

func TestRegisterDeactivatesPrevious(t *testing.T) {
	r, err := Open(testLogger(t), t.TempDir())
	require.NoError(t, err)

	_, err = r.RegisterForecaster("acme", trainedForecaster(t))
	require.NoError(t, err)
	_, err = r.RegisterForecaster("acme", trainedForecaster(t))
	require.NoError(t, err)

	entries := r.Entries("acme")
	require.Len(t, entries, 2)
	assert.False(t, entries[0].Active)
	assert.True(t, entries[1].Active)
}

func TestOpenRestoresActiveModels(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(testLogger(t), dir)
	require.NoError(t, err)

	_, err = r.RegisterForecaster("acme", trainedForecaster(t))
	require.NoError(t, err)
	_, err = r.RegisterDetector("acme", trainedDetector(t))
	require.NoError(t, err)

	reopened, err := Open(testLogger(t), dir)
	require.NoError(t, err)

	f, ok := reopened.Forecaster("acme")
	require.True(t, ok)
	assert.True(t, f.Trained())

	d, ok := reopened.Detector("acme")
	require.True(t, ok)
	assert.True(t, d.Trained())

	assert.Equal(t, []string{"acme"}, reopened.Orgs())
}

func TestOrgsAreIsolated(t *testing.T) {
	r, err := Open(testLogger(t), t.TempDir())
	require.NoError(t, err)

	_, err = r.RegisterDetector("acme", trainedDetector(t))
	require.NoError(t, err)

	_, ok := r.Detector("globex")
	assert.False(t, ok)
	assert.Empty(t, r.Entries("globex"))
}
