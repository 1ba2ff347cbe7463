package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqData(n int) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = []float64{float64(i), float64(i) * 2}
	}
	return rows
}

func TestBuildSequencesShape(t *testing.T) {
	rows := seqData(70)
	x, y := BuildSequences(rows, 30, 30)

	require.Len(t, x, 11) // 70 - 30 - 30 + 1
	require.Len(t, y, 11)
	assert.Len(t, x[0], 30)
	assert.Len(t, x[0][0], 2)
	assert.Len(t, y[0], 30)

	// the first horizon value follows the first window and comes from column 0
	assert.Equal(t, 30.0, y[0][0])
	assert.Equal(t, 59.0, y[0][29])
	// last sequence ends at the end of the series
	assert.Equal(t, 69.0, y[10][29])
}

func TestBuildSequencesTooShort(t *testing.T) {
	x, y := BuildSequences(seqData(40), 30, 30)
	assert.Empty(t, x)
	assert.Empty(t, y)
}

func TestBuildWindowsShape(t *testing.T) {
	rows := seqData(10)
	windows := BuildWindows(rows, 7)

	require.Len(t, windows, 4) // 10 - 7 + 1
	assert.Len(t, windows[0], 7)
	assert.Equal(t, 0.0, windows[0][0][0])
	assert.Equal(t, 9.0, windows[3][6][0])
}

func TestBuildWindowsTooShort(t *testing.T) {
	assert.Empty(t, BuildWindows(seqData(3), 7))
}
