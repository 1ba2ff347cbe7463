package anomaly

import (
	"math"
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
		SeqLength:           7,
		Units:               8,
		Bottleneck:          4,
		Dropout:             0.1,
		LR:                  0.01,
		Epochs:              3,
		ThresholdPercentile: 95,
		Contamination:       0.05,
		Seed:                42,
	}
}

// steadyHistory is a weekly pattern with one massive spike on spikeDay.
func steadyHistory(n, spikeDay int) []models.CostObservation {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	obs := make([]models.CostObservation, n)
	for i := range obs {
		cost := 100 + 5*math.Sin(2*math.Pi*float64(i)/7)
		if i == spikeDay {
			cost *= 4
		}
		obs[i] = models.CostObservation{
			Date:          start.AddDate(0, 0, i),
			DailyCost:     cost,
			Service:       "compute",
			CloudProvider: "aws",
		}
	}
	return obs
}

func TestTrainReport(t *testing.T) {
	obs := steadyHistory(70, -1)
	d := New(testLogger(t), testOptions())
	report, err := d.Train(obs)
	require.NoError(t, err)

	assert.Equal(t, "anomaly", report.ModelType)
	assert.Equal(t, 64, report.Samples) // 70 - 7 + 1
	assert.Greater(t, report.Threshold, 0.0)
	assert.True(t, d.Trained())
	assert.Equal(t, report.Threshold, d.Threshold())
}

func TestTrainInsufficientData(t *testing.T) {
	d := New(testLogger(t), testOptions())
	_, err := d.Train(steadyHistory(10, -1))
	var insufficient *ml.InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
}

func TestDetectFlagsSpike(t *testing.T) {
	train := steadyHistory(70, -1)
	d := New(testLogger(t), testOptions())
	_, err := d.Train(train)
	require.NoError(t, err)

	spiked := steadyHistory(70, 30)
	anomalies, err := d.Detect(spiked, MethodEnsemble)
	require.NoError(t, err)
	require.NotEmpty(t, anomalies)

	spikeDate := spiked[30].Date
	found := false
	for _, a := range anomalies {
		if a.Date.Equal(spikeDate) {
			found = true
			assert.NotEmpty(t, a.Explanation)
			assert.Contains(t, a.Explanation, "Detected by")
		}
	}
	assert.True(t, found, "spike day should be flagged")
}

func TestDetectOutlierOnly(t *testing.T) {
	train := steadyHistory(70, -1)
	d := New(testLogger(t), testOptions())
	_, err := d.Train(train)
	require.NoError(t, err)

	anomalies, err := d.Detect(steadyHistory(70, 30), MethodOutlier)
	require.NoError(t, err)
	for _, a := range anomalies {
		assert.True(t, a.ByOutlier)
		assert.False(t, a.ByReconstruction)
	}
}

func TestDetectNotTrained(t *testing.T) {
	d := New(testLogger(t), testOptions())
	_, err := d.Detect(steadyHistory(70, -1), MethodEnsemble)
	var notTrained *ml.NotTrainedError
	require.ErrorAs(t, err, &notTrained)
}

func TestThresholdPercentileMonotonic(t *testing.T) {
	train := steadyHistory(70, -1)

	loose := testOptions()
	loose.ThresholdPercentile = 90
	strict := testOptions()
	strict.ThresholdPercentile = 99

	dLoose := New(testLogger(t), loose)
	_, err := dLoose.Train(train)
	require.NoError(t, err)
	dStrict := New(testLogger(t), strict)
	_, err = dStrict.Train(train)
	require.NoError(t, err)

	// same data and seed, so only the percentile moves the threshold
	assert.GreaterOrEqual(t, dStrict.Threshold(), dLoose.Threshold())

	spiked := steadyHistory(70, 30)
	fromLoose, err := dLoose.Detect(spiked, MethodEnsemble)
	require.NoError(t, err)
	fromStrict, err := dStrict.Detect(spiked, MethodEnsemble)
	require.NoError(t, err)

	reconCount := func(anomalies []models.CostAnomaly) int {
		n := 0
		for _, a := range anomalies {
			if a.ByReconstruction {
				n++
			}
		}
		return n
	}
	// a stricter threshold must never flag more reconstruction anomalies
	assert.LessOrEqual(t, reconCount(fromStrict), reconCount(fromLoose))
	assert.LessOrEqual(t, len(fromStrict), len(fromLoose))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	train := steadyHistory(70, -1)
	d := New(testLogger(t), testOptions())
	_, err := d.Train(train)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "anomaly.json")
	require.NoError(t, d.Save(path))

	loaded, err := Load(testLogger(t), path)
	require.NoError(t, err)
	require.True(t, loaded.Trained())
	assert.Equal(t, d.Threshold(), loaded.Threshold())

	spiked := steadyHistory(70, 30)
	want, err := d.Detect(spiked, MethodEnsemble)
	require.NoError(t, err)
	got, err := loaded.Detect(spiked, MethodEnsemble)
	require.NoError(t, err)
	assert.Equal(t, len(want), len(got))
}
