package ml

import (
	"math"
	"sort"
)

// Percentile returns the p-th percentile (0..100) using linear interpolation
// between closest ranks, matching numpy's default.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// zScore returns the two-tailed critical value for the given confidence
// level, e.g. 0.95 -> 1.96. Computed by bisection on the normal CDF.
func zScore(confidence float64) float64 {
	if confidence <= 0 || confidence >= 1 {
		return 1.96
	}
	target := 1 - (1-confidence)/2
	lo, hi := 0.0, 10.0
	for i := 0; i < 80; i++ {
		mid := (lo + hi) / 2
		if normalCDF(mid) < target {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

func normalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// ZScore is the exported form used by the forecasting layer.
func ZScore(confidence float64) float64 { return zScore(confidence) }
