package ml

// BuildSequences slices a scaled feature matrix into overlapping training
// windows. X[i] covers rows [i, i+seqLen); y[i] holds the next horizon values
// of the target column (column 0, matching the stacked layout used by the
// feature pipeline). Sequence count is max(0, len(data)-seqLen-horizon+1).
func BuildSequences(data [][]float64, seqLen, horizon int) (x [][][]float64, y [][]float64) {
	n := len(data) - seqLen - horizon + 1
	if n <= 0 {
		return nil, nil
	}
	x = make([][][]float64, n)
	y = make([][]float64, n)
	for i := 0; i < n; i++ {
		x[i] = data[i : i+seqLen]
		target := make([]float64, horizon)
		for k := 0; k < horizon; k++ {
			target[k] = data[i+seqLen+k][0]
		}
		y[i] = target
	}
	return x, y
}

// BuildWindows slices rows into overlapping windows without targets, for
// reconstruction models. Count is max(0, len(data)-seqLen+1).
func BuildWindows(data [][]float64, seqLen int) [][][]float64 {
	n := len(data) - seqLen + 1
	if n <= 0 {
		return nil
	}
	out := make([][][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = data[i : i+seqLen]
	}
	return out
}
