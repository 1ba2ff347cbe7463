package forecasting

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"CloudCostIQ/internal/domain/models"
	"CloudCostIQ/internal/services/ml"
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

func testOptions() Options {
	return Options{
		SeqLength:   10,
		Horizon:     5,
		Units:       8,
		DenseUnits:  4,
		Dropout:     0.1,
		LR:          0.01,
		Epochs:      3,
		Uncertainty: true,
		Seed:        42,
	}
}

func history(n int) []models.CostObservation {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	obs := make([]models.CostObservation, n)
	for i := range obs {
		obs[i] = models.CostObservation{
			Date:          start.AddDate(0, 0, i),
			DailyCost:     100 + 0.5*float64(i) + 10*math.Sin(float64(i)/7),
			Service:       "compute",
			CloudProvider: "aws",
		}
	}
	return obs
}

func trained(t *testing.T, obs []models.CostObservation) *Forecaster {
	t.Helper()
	f := New(testLogger(t), testOptions())
	_, err := f.Train(obs)
	require.NoError(t, err)
	return f
}

func TestTrainReport(t *testing.T) {
	obs := history(60)
	f := New(testLogger(t), testOptions())
	report, err := f.Train(obs)
	require.NoError(t, err)

	assert.Equal(t, "uncertainty", report.ModelType)
	assert.Equal(t, 46, report.Samples) // 60 - 10 - 5 + 1
	assert.Len(t, report.LossCurve, 3)
	assert.Equal(t, report.LossCurve[2], report.FinalLoss)
	assert.True(t, f.Trained())
	assert.False(t, f.TrainedAt().IsZero())
}

func TestTrainInsufficientData(t *testing.T) {
	f := New(testLogger(t), testOptions())
	_, err := f.Train(history(20))
	var insufficient *ml.InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
}

func TestForecastShapeAndDates(t *testing.T) {
	obs := history(60)
	f := trained(t, obs)

	fc, err := f.Forecast(obs, 5, 0.95)
	require.NoError(t, err)

	require.Len(t, fc.Values, 5)
	require.Len(t, fc.Dates, 5)
	require.Len(t, fc.Lower, 5)
	require.Len(t, fc.Upper, 5)

	last := obs[len(obs)-1].Date
	assert.Equal(t, last.AddDate(0, 0, 1), fc.Dates[0])
	assert.Equal(t, last.AddDate(0, 0, 5), fc.Dates[4])

	for i := range fc.Values {
		assert.LessOrEqual(t, fc.Lower[i], fc.Values[i])
		assert.GreaterOrEqual(t, fc.Upper[i], fc.Values[i])
	}
	assert.Equal(t, 0.95, fc.Confidence)
	assert.Equal(t, "uncertainty", fc.ModelType)
}

func TestForecastStepsCappedAtHorizon(t *testing.T) {
	obs := history(60)
	f := trained(t, obs)

	fc, err := f.Forecast(obs, 50, 0.95)
	require.NoError(t, err)
	assert.Len(t, fc.Values, 5)
}

func TestForecastNotTrained(t *testing.T) {
	f := New(testLogger(t), testOptions())
	_, err := f.Forecast(history(60), 5, 0.95)
	var notTrained *ml.NotTrainedError
	require.ErrorAs(t, err, &notTrained)
}

func TestForecastShortHistory(t *testing.T) {
	obs := history(60)
	f := trained(t, obs)

	_, err := f.Forecast(obs[:5], 5, 0.95)
	var short *ml.InsufficientHistoryError
	require.ErrorAs(t, err, &short)
}

func TestPointModelHeuristicBand(t *testing.T) {
	obs := history(60)
	opts := testOptions()
	opts.Uncertainty = false
	f := New(testLogger(t), opts)
	_, err := f.Train(obs)
	require.NoError(t, err)

	fc, err := f.Forecast(obs, 3, 0.95)
	require.NoError(t, err)
	assert.Equal(t, "point", fc.ModelType)

	z := ml.ZScore(0.95)
	for i, v := range fc.Values {
		margin := z * 0.1 * math.Abs(v)
		assert.InDelta(t, v-margin, fc.Lower[i], 1e-9)
		assert.InDelta(t, v+margin, fc.Upper[i], 1e-9)
	}
}

func TestRecursiveForecastExtendsPastHorizon(t *testing.T) {
	obs := history(60)
	f := trained(t, obs)

	fc, err := f.RecursiveForecast(obs, 12)
	require.NoError(t, err)

	require.Len(t, fc.Values, 12)
	assert.True(t, fc.Recursive)
	last := obs[len(obs)-1].Date
	for i, d := range fc.Dates {
		assert.Equal(t, last.AddDate(0, 0, i+1), d)
	}
}

func TestScenarioForecast(t *testing.T) {
	obs := history(60)
	f := trained(t, obs)

	original := obs[10].DailyCost
	scenarios := []models.Scenario{
		{Name: "Growth", Adjustments: map[string]float64{"daily_cost": 1.5}},
	}
	out, err := f.ScenarioForecast(obs, scenarios, 5)
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Equal(t, "Base Forecast", out[0].Scenario.Name)
	assert.Equal(t, "Growth", out[1].Scenario.Name)
	// caller's observations are untouched
	assert.Equal(t, original, obs[10].DailyCost)
}

func TestEvaluate(t *testing.T) {
	obs := history(60)
	f := trained(t, obs)

	rep, err := f.Evaluate(obs)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, rep.MAE, 0.0)
	assert.InDelta(t, math.Sqrt(rep.MSE), rep.RMSE, 1e-9)
	require.Len(t, rep.DayMAE, 5) // horizon is 5
	for d := 1; d <= 5; d++ {
		assert.Contains(t, rep.DayMAE, d)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	obs := history(60)
	f := trained(t, obs)

	path := filepath.Join(t.TempDir(), "forecast.json")
	require.NoError(t, f.Save(path))

	loaded, err := Load(testLogger(t), path)
	require.NoError(t, err)
	require.True(t, loaded.Trained())

	want, err := f.Forecast(obs, 5, 0.95)
	require.NoError(t, err)
	got, err := loaded.Forecast(obs, 5, 0.95)
	require.NoError(t, err)

	for i := range want.Values {
		assert.InDelta(t, want.Values[i], got.Values[i], 1e-6)
	}
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	obs := history(60)
	f := trained(t, obs)

	path := filepath.Join(t.TempDir(), "forecast.json")
	require.NoError(t, f.Save(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &raw))
	raw["version"] = "999"
	b, err = json.Marshal(raw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o644))

	_, err = Load(testLogger(t), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(testLogger(t), filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestRecursiveForecastShortHistory(t *testing.T) {
	f := trained(t, history(60))

	var short *ml.InsufficientHistoryError
	_, err := f.RecursiveForecast(nil, 5)
	require.ErrorAs(t, err, &short)

	_, err = f.RecursiveForecast(history(3), 5)
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 10, short.Needed)
	assert.Equal(t, 3, short.Got)
}

func TestScenarioOverrideCreatesMissingColumn(t *testing.T) {
	obs := history(5) // no Extra fields at all
	sc := models.Scenario{
		Name:      "Committed discount",
		Overrides: map[string]float64{"discount_rate": 0.25},
	}

	adjusted := applyScenario(obs, sc)
	for _, o := range adjusted {
		require.NotNil(t, o.Extra)
		assert.Equal(t, 0.25, o.Extra["discount_rate"])
	}
	// caller's rows stay untouched
	for _, o := range obs {
		assert.Nil(t, o.Extra)
	}
}

func TestScenarioAdjustmentSkipsMissingColumn(t *testing.T) {
	obs := history(5)
	sc := models.Scenario{
		Name:        "Usage growth",
		Adjustments: map[string]float64{"usage_hours": 2},
	}

	adjusted := applyScenario(obs, sc)
	for _, o := range adjusted {
		_, ok := o.Extra["usage_hours"]
		assert.False(t, ok)
	}
}
