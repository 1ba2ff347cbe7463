package ml

import (
	"math"
	"math/rand"
)

// Small dense helpers shared by the recurrent models. Matrices are
// row-major [][]float64, rows = output dimension.

func newMatrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}

// xavierMatrix initializes weights uniformly in [-limit, limit] with
// limit = sqrt(6/(in+out)).
func xavierMatrix(rng *rand.Rand, rows, cols int) [][]float64 {
	limit := math.Sqrt(6.0 / float64(rows+cols))
	m := newMatrix(rows, cols)
	for i := range m {
		for j := range m[i] {
			m[i][j] = (rng.Float64()*2 - 1) * limit
		}
	}
	return m
}

func matVec(m [][]float64, v []float64) []float64 {
	out := make([]float64, len(m))
	for i, row := range m {
		s := 0.0
		for j, w := range row {
			s += w * v[j]
		}
		out[i] = s
	}
	return out
}

// matVecT computes m^T * v without materializing the transpose.
func matVecT(m [][]float64, v []float64) []float64 {
	if len(m) == 0 {
		return nil
	}
	out := make([]float64, len(m[0]))
	for i, row := range m {
		for j, w := range row {
			out[j] += w * v[i]
		}
	}
	return out
}

// addOuter accumulates grad += a ⊗ b.
func addOuter(grad [][]float64, a, b []float64) {
	for i, ai := range a {
		row := grad[i]
		for j, bj := range b {
			row[j] += ai * bj
		}
	}
}

func addVec(dst, src []float64) {
	for i, v := range src {
		dst[i] += v
	}
}

func tanhVec(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = math.Tanh(x)
	}
	return out
}

func reluVec(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		if x > 0 {
			out[i] = x
		}
	}
	return out
}

func softplus(x float64) float64 {
	if x > 30 {
		return x
	}
	return math.Log1p(math.Exp(x))
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// clipGrad scales g in place so its L2 norm does not exceed maxNorm.
func clipGrad(maxNorm float64, mats [][][]float64, vecs [][]float64) {
	sum := 0.0
	for _, m := range mats {
		for _, row := range m {
			for _, v := range row {
				sum += v * v
			}
		}
	}
	for _, vec := range vecs {
		for _, v := range vec {
			sum += v * v
		}
	}
	norm := math.Sqrt(sum)
	if norm <= maxNorm || norm == 0 {
		return
	}
	scale := maxNorm / norm
	for _, m := range mats {
		for _, row := range m {
			for j := range row {
				row[j] *= scale
			}
		}
	}
	for _, vec := range vecs {
		for j := range vec {
			vec[j] *= scale
		}
	}
}
