package features

import (
	"testing"
	"time"

	"CloudCostIQ/internal/domain/models"
	"CloudCostIQ/internal/services/ml"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func observations(n int, start time.Time) []models.CostObservation {
	obs := make([]models.CostObservation, n)
	for i := range obs {
		obs[i] = models.CostObservation{
			Date:      start.AddDate(0, 0, i),
			DailyCost: 100 + float64(i),
		}
	}
	return obs
}

func TestTargetDailyCost(t *testing.T) {
	obs := observations(3, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	got, err := Target(obs, TargetColumn)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 101, 102}, got)
}

func TestTargetExtraColumn(t *testing.T) {
	obs := observations(2, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	obs[0].Extra = map[string]float64{"compute_cost": 40}
	obs[1].Extra = map[string]float64{"compute_cost": 45}

	got, err := Target(obs, "compute_cost")
	require.NoError(t, err)
	assert.Equal(t, []float64{40, 45}, got)
}

func TestTargetMissingColumn(t *testing.T) {
	obs := observations(2, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	_, err := Target(obs, "network_cost")
	var cfgErr *ml.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestForecastTableShape(t *testing.T) {
	obs := observations(40, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)) // a Monday
	tbl := ForecastTable(obs)

	require.Len(t, tbl.Columns, 18)
	require.Len(t, tbl.Rows, 40)
	for _, row := range tbl.Rows {
		assert.Len(t, row, 18)
	}
}

func TestForecastTableLagsAndWeekend(t *testing.T) {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC) // Monday
	obs := observations(40, start)
	tbl := ForecastTable(obs)

	lag1 := tbl.Column("lag_1")
	require.GreaterOrEqual(t, lag1, 0)
	assert.Equal(t, 0.0, tbl.Rows[0][lag1])   // no history yet
	assert.Equal(t, 100.0, tbl.Rows[1][lag1]) // previous day's cost

	weekend := tbl.Column("is_weekend")
	assert.Equal(t, 0.0, tbl.Rows[0][weekend]) // Monday
	assert.Equal(t, 1.0, tbl.Rows[5][weekend]) // Saturday
	assert.Equal(t, 1.0, tbl.Rows[6][weekend]) // Sunday

	// strict rolling windows are zero until enough history exists
	rm7 := tbl.Column("rolling_mean_7")
	assert.Equal(t, 0.0, tbl.Rows[5][rm7])
	assert.InDelta(t, 103.0, tbl.Rows[6][rm7], 1e-9) // mean of 100..106
}

func TestForecastTableExtraColumnsSorted(t *testing.T) {
	obs := observations(3, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	for i := range obs {
		obs[i].Extra = map[string]float64{"storage": 1, "compute": 2}
	}
	tbl := ForecastTable(obs)

	require.Len(t, tbl.Columns, 20)
	assert.Equal(t, "compute", tbl.Columns[18])
	assert.Equal(t, "storage", tbl.Columns[19])
	assert.Equal(t, 2.0, tbl.Rows[0][18])
}

func TestAnomalyTableShape(t *testing.T) {
	obs := observations(20, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC))
	tbl := AnomalyTable(obs)

	require.Len(t, tbl.Columns, 18) // cost, change, 3x(mean,std,z), 7 one-hot days
	require.Len(t, tbl.Rows, 20)

	change := tbl.Column("cost_change")
	assert.Equal(t, 0.0, tbl.Rows[0][change])
	assert.InDelta(t, 0.01, tbl.Rows[1][change], 1e-9)
}

func TestAnomalyTableDayOneHot(t *testing.T) {
	obs := observations(7, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)) // Monday first
	tbl := AnomalyTable(obs)

	day0 := tbl.Column("day_0")
	day6 := tbl.Column("day_6")
	assert.Equal(t, 1.0, tbl.Rows[0][day0]) // Monday
	assert.Equal(t, 0.0, tbl.Rows[0][day6])
	assert.Equal(t, 1.0, tbl.Rows[6][day6]) // Sunday
}

func TestAnomalyTableZScoreGuard(t *testing.T) {
	// constant series: std is zero, zscore must not blow up
	obs := make([]models.CostObservation, 10)
	for i := range obs {
		obs[i] = models.CostObservation{
			Date:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			DailyCost: 50,
		}
	}
	tbl := AnomalyTable(obs)
	z7 := tbl.Column("zscore_7")
	for _, row := range tbl.Rows {
		assert.Equal(t, 0.0, row[z7])
	}
}
