package features

import (
	"math"
	"sort"
	"strconv"

	"CloudCostIQ/internal/domain/models"
	"CloudCostIQ/internal/services/ml"
)

// Table is a row-major feature matrix aligned one-to-one with the input
// observations.
type Table struct {
	Columns []string
	Rows    [][]float64
}

// Column returns the index of a named column, or -1.
func (t *Table) Column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// TargetColumn is the canonical name of the forecasting target.
const TargetColumn = "daily_cost"

// Target extracts the named target series. daily_cost maps to the typed
// field; anything else must be present in every row's Extra map.
func Target(obs []models.CostObservation, column string) ([]float64, error) {
	out := make([]float64, len(obs))
	if column == TargetColumn {
		for i, o := range obs {
			out[i] = o.DailyCost
		}
		return out, nil
	}
	for i, o := range obs {
		v, ok := o.Extra[column]
		if !ok {
			return nil, &ml.ConfigurationError{Reason: "target column " + column + " not found in data"}
		}
		out[i] = v
	}
	return out, nil
}

// ForecastTable builds the calendar, lag and rolling features for the
// forecasting models. Values the series is too short to compute are 0,
// matching the fill policy of the rest of the pipeline.
func ForecastTable(obs []models.CostObservation) *Table {
	target := make([]float64, len(obs))
	for i, o := range obs {
		target[i] = o.DailyCost
	}

	cols := []string{
		"day_of_week_sin", "day_of_week_cos",
		"day_of_month_sin", "day_of_month_cos",
		"month_sin", "month_cos",
		"is_weekend", "is_month_end",
		"lag_1", "lag_7", "lag_14", "lag_30",
		"rolling_mean_7", "rolling_std_7",
		"rolling_mean_14", "rolling_std_14",
		"rolling_mean_30", "rolling_std_30",
	}
	extraCols := extraColumns(obs)
	cols = append(cols, extraCols...)

	rows := make([][]float64, len(obs))
	for i, o := range obs {
		row := make([]float64, 0, len(cols))

		dow := float64((int(o.Date.Weekday()) + 6) % 7) // Monday = 0
		dom := float64(o.Date.Day())
		month := float64(int(o.Date.Month()))
		row = append(row,
			math.Sin(2*math.Pi*dow/7), math.Cos(2*math.Pi*dow/7),
			math.Sin(2*math.Pi*dom/31), math.Cos(2*math.Pi*dom/31),
			math.Sin(2*math.Pi*month/12), math.Cos(2*math.Pi*month/12),
		)
		if dow >= 5 {
			row = append(row, 1)
		} else {
			row = append(row, 0)
		}
		if o.Date.AddDate(0, 0, 1).Month() != o.Date.Month() {
			row = append(row, 1)
		} else {
			row = append(row, 0)
		}

		for _, lag := range []int{1, 7, 14, 30} {
			if i >= lag {
				row = append(row, target[i-lag])
			} else {
				row = append(row, 0)
			}
		}
		for _, w := range []int{7, 14, 30} {
			mean, std := trailingStats(target, i, w, true)
			row = append(row, mean, std)
		}

		for _, c := range extraCols {
			row = append(row, o.Extra[c])
		}
		rows[i] = row
	}
	return &Table{Columns: cols, Rows: rows}
}

// AnomalyTable builds the statistical features for the anomaly detectors.
func AnomalyTable(obs []models.CostObservation) *Table {
	target := make([]float64, len(obs))
	for i, o := range obs {
		target[i] = o.DailyCost
	}

	cols := []string{"daily_cost", "cost_change"}
	for _, w := range []int{3, 7, 14} {
		cols = append(cols,
			colName("rolling_mean", w), colName("rolling_std", w), colName("zscore", w))
	}
	for d := 0; d < 7; d++ {
		cols = append(cols, colName("day", d))
	}

	rows := make([][]float64, len(obs))
	for i, o := range obs {
		row := make([]float64, 0, len(cols))
		row = append(row, target[i])

		change := 0.0
		if i > 0 && target[i-1] != 0 {
			change = (target[i] - target[i-1]) / target[i-1]
		}
		row = append(row, change)

		for _, w := range []int{3, 7, 14} {
			mean, std := trailingStats(target, i, w, false)
			z := 0.0
			div := std
			if div == 0 {
				div = 1
			}
			z = (target[i] - mean) / div
			row = append(row, mean, std, z)
		}

		dow := (int(o.Date.Weekday()) + 6) % 7
		for d := 0; d < 7; d++ {
			if d == dow {
				row = append(row, 1)
			} else {
				row = append(row, 0)
			}
		}
		rows[i] = row
	}
	return &Table{Columns: cols, Rows: rows}
}

// trailingStats computes mean and sample std over the window ending at index
// i (inclusive). With strict=true a partial window yields zeros; otherwise
// the available prefix is used.
func trailingStats(values []float64, i, window int, strict bool) (float64, float64) {
	start := i - window + 1
	if start < 0 {
		if strict {
			return 0, 0
		}
		start = 0
	}
	n := i - start + 1
	sum := 0.0
	for _, v := range values[start : i+1] {
		sum += v
	}
	mean := sum / float64(n)
	if n < 2 {
		return mean, 0
	}
	sq := 0.0
	for _, v := range values[start : i+1] {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(n-1))
}

func extraColumns(obs []models.CostObservation) []string {
	seen := map[string]bool{}
	for _, o := range obs {
		for k := range o.Extra {
			seen[k] = true
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func colName(prefix string, n int) string {
	return prefix + "_" + strconv.Itoa(n)
}
