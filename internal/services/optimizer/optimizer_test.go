package optimizer

import (
	"testing"

	"CloudCostIQ/internal/domain/models"
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

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		u    models.UtilizationStats
		want string
	}{
		{"idle", models.UtilizationStats{CPUAvg: 2, MemAvg: 5}, models.WorkloadIdle},
		{"hot cpu", models.UtilizationStats{CPUAvg: 75, MemAvg: 40}, models.WorkloadHot},
		{"hot mem", models.UtilizationStats{CPUAvg: 30, MemAvg: 85}, models.WorkloadHot},
		{"bursty", models.UtilizationStats{CPUAvg: 10, CPUPeak: 90, MemAvg: 30}, models.WorkloadBursty},
		{"steady", models.UtilizationStats{CPUAvg: 30, CPUPeak: 45, MemAvg: 40}, models.WorkloadSteady},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.u))
		})
	}
}

func TestAnalyzeIdleResource(t *testing.T) {
	o := New(testLogger(t))
	report := o.Analyze([]models.UtilizationStats{
		{ResourceID: "i-1", InstanceType: "large", CPUAvg: 1, MemAvg: 3},
	})

	require.Len(t, report.Recommendations, 1)
	rec := report.Recommendations[0]
	assert.Equal(t, "i-1", rec.ResourceID)
	assert.Equal(t, models.WorkloadIdle, rec.Workload)
	assert.Equal(t, "nano", rec.RecommendedType)
	assert.Greater(t, rec.MonthlySavings, 0.0)
	assert.Equal(t, rec.MonthlySavings, report.MonthlySavings)
}

func TestAnalyzeSteadyDownsize(t *testing.T) {
	o := New(testLogger(t))
	report := o.Analyze([]models.UtilizationStats{
		{ResourceID: "i-2", InstanceType: "xlarge", CPUAvg: 20, CPUPeak: 35, MemAvg: 30},
	})

	require.Len(t, report.Recommendations, 1)
	assert.Equal(t, "large", report.Recommendations[0].RecommendedType)
}

func TestAnalyzeHotResourceNotDownsized(t *testing.T) {
	o := New(testLogger(t))
	report := o.Analyze([]models.UtilizationStats{
		{ResourceID: "i-3", InstanceType: "large", CPUAvg: 85, CPUPeak: 95, MemAvg: 70, HourlyCost: 0.0832, HoursPerDay: 24},
	})

	assert.Empty(t, report.Recommendations)
	// always-on hot workload should get a reservation recommendation
	require.Len(t, report.Reservations, 1)
	assert.True(t, report.Reservations[0].Recommend)
	assert.Greater(t, report.Reservations[0].AnnualSavings, 0.0)
}

func TestReservationSkippedForPartTimeUse(t *testing.T) {
	o := New(testLogger(t))
	report := o.Analyze([]models.UtilizationStats{
		{ResourceID: "i-4", InstanceType: "large", CPUAvg: 30, CPUPeak: 50, MemAvg: 40, HourlyCost: 0.0832, HoursPerDay: 8},
	})

	require.Len(t, report.Reservations, 1)
	assert.False(t, report.Reservations[0].Recommend)
}

func TestAnalyzeUnknownInstanceType(t *testing.T) {
	o := New(testLogger(t))
	report := o.Analyze([]models.UtilizationStats{
		{ResourceID: "i-5", InstanceType: "exotic-shape", CPUAvg: 1, MemAvg: 1},
	})
	assert.Empty(t, report.Recommendations)
}

func TestRecommendationsSortedBySavings(t *testing.T) {
	o := New(testLogger(t))
	report := o.Analyze([]models.UtilizationStats{
		{ResourceID: "small-win", InstanceType: "small", CPUAvg: 1, MemAvg: 1},
		{ResourceID: "big-win", InstanceType: "4xlarge", CPUAvg: 1, MemAvg: 1},
	})

	require.Len(t, report.Recommendations, 2)
	assert.Equal(t, "big-win", report.Recommendations[0].ResourceID)
}
