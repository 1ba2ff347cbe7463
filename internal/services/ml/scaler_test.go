package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinMaxScalerRoundTrip(t *testing.T) {
	rows := [][]float64{
		{10, 1},
		{20, 3},
		{30, 2},
	}
	s := NewMinMaxScaler()
	scaled, err := s.FitTransform(rows)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, scaled[0][0], 1e-12)
	assert.InDelta(t, 0.5, scaled[1][0], 1e-12)
	assert.InDelta(t, 1.0, scaled[2][0], 1e-12)

	back, err := s.InverseTransform(scaled)
	require.NoError(t, err)
	for i := range rows {
		for j := range rows[i] {
			assert.InDelta(t, rows[i][j], back[i][j], 1e-9)
		}
	}
}

func TestMinMaxScalerNotFitted(t *testing.T) {
	s := NewMinMaxScaler()
	_, err := s.Transform([][]float64{{1}})
	var notFitted *NotFittedError
	require.ErrorAs(t, err, &notFitted)
}

func TestMinMaxScalerConstantColumn(t *testing.T) {
	rows := [][]float64{{5, 1}, {5, 2}, {5, 3}}
	s := NewMinMaxScaler()
	scaled, err := s.FitTransform(rows)
	require.NoError(t, err)
	for i := range scaled {
		assert.Equal(t, 0.0, scaled[i][0])
	}

	back, err := s.InverseTransform(scaled)
	require.NoError(t, err)
	for i := range back {
		assert.InDelta(t, 5.0, back[i][0], 1e-12)
	}
}

func TestInverseColumn(t *testing.T) {
	rows := [][]float64{{0, 100}, {10, 200}}
	s := NewMinMaxScaler()
	s.Fit(rows)

	out, err := s.InverseColumn(1, []float64{0, 0.5, 1})
	require.NoError(t, err)
	assert.InDelta(t, 100, out[0], 1e-12)
	assert.InDelta(t, 150, out[1], 1e-12)
	assert.InDelta(t, 200, out[2], 1e-12)
}
