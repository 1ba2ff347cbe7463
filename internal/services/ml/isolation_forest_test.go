package ml

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsolationForestFlagsObviousOutlier(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	rows := make([][]float64, 0, 200)
	for i := 0; i < 200; i++ {
		rows = append(rows, []float64{rng.NormFloat64(), rng.NormFloat64()})
	}

	f := NewIsolationForest(ForestConfig{Seed: 42, Contamination: 0.05})
	require.NoError(t, f.Fit(rows))

	inlier, err := f.Score([]float64{0, 0})
	require.NoError(t, err)
	outlier, err := f.Score([]float64{10, 10})
	require.NoError(t, err)
	assert.Greater(t, outlier, inlier)

	isOut, score, err := f.IsOutlier([]float64{10, 10})
	require.NoError(t, err)
	assert.True(t, isOut)
	assert.Greater(t, score, f.Boundary())
}

func TestIsolationForestBoundaryFromTrainingScores(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	rows := make([][]float64, 0, 100)
	for i := 0; i < 100; i++ {
		rows = append(rows, []float64{rng.Float64()})
	}
	f := NewIsolationForest(ForestConfig{Seed: 1})
	require.NoError(t, f.Fit(rows))

	assert.Greater(t, f.Boundary(), 0.0)
	assert.Less(t, f.Boundary(), 1.0)
}

func TestIsolationForestNotTrained(t *testing.T) {
	f := NewIsolationForest(ForestConfig{Seed: 1})
	_, err := f.Score([]float64{1})
	var notTrained *NotTrainedError
	require.ErrorAs(t, err, &notTrained)
}

func TestIsolationForestTooFewRows(t *testing.T) {
	f := NewIsolationForest(ForestConfig{Seed: 1})
	err := f.Fit([][]float64{{1}})
	var insufficient *InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
}

func TestAveragePathLength(t *testing.T) {
	assert.Equal(t, 0.0, averagePathLength(1))
	assert.Equal(t, 1.0, averagePathLength(2))
	// c(n) grows with n
	assert.Greater(t, averagePathLength(256), averagePathLength(16))
}
