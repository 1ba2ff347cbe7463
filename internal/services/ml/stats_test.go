package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentile(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}

	assert.InDelta(t, 3.0, Percentile(values, 50), 1e-12)
	assert.InDelta(t, 1.0, Percentile(values, 0), 1e-12)
	assert.InDelta(t, 5.0, Percentile(values, 100), 1e-12)
	// linear interpolation between ranks
	assert.InDelta(t, 4.8, Percentile(values, 95), 1e-9)
}

func TestPercentileUnsortedInput(t *testing.T) {
	assert.InDelta(t, 3.0, Percentile([]float64{5, 1, 4, 2, 3}, 50), 1e-12)
}

func TestZScore(t *testing.T) {
	assert.InDelta(t, 1.96, ZScore(0.95), 0.01)
	assert.InDelta(t, 1.645, ZScore(0.90), 0.01)
	assert.InDelta(t, 2.576, ZScore(0.99), 0.01)
}
