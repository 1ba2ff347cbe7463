package ml

// MinMaxScaler maps each column into [0,1] using the min/max observed at fit
// time. Constant columns transform to 0.
type MinMaxScaler struct {
	Min    []float64 `json:"min"`
	Max    []float64 `json:"max"`
	Fitted bool      `json:"fitted"`
}

func NewMinMaxScaler() *MinMaxScaler {
	return &MinMaxScaler{}
}

// Fit records per-column minima and maxima.
func (s *MinMaxScaler) Fit(rows [][]float64) {
	if len(rows) == 0 {
		return
	}
	cols := len(rows[0])
	s.Min = make([]float64, cols)
	s.Max = make([]float64, cols)
	copy(s.Min, rows[0])
	copy(s.Max, rows[0])
	for _, row := range rows[1:] {
		for j, v := range row {
			if v < s.Min[j] {
				s.Min[j] = v
			}
			if v > s.Max[j] {
				s.Max[j] = v
			}
		}
	}
	s.Fitted = true
}

// Transform scales rows into [0,1]. Returns NotFittedError before Fit.
func (s *MinMaxScaler) Transform(rows [][]float64) ([][]float64, error) {
	if !s.Fitted {
		return nil, &NotFittedError{}
	}
	out := make([][]float64, len(rows))
	for i, row := range rows {
		scaled := make([]float64, len(row))
		for j, v := range row {
			span := s.Max[j] - s.Min[j]
			if span == 0 {
				scaled[j] = 0
				continue
			}
			scaled[j] = (v - s.Min[j]) / span
		}
		out[i] = scaled
	}
	return out, nil
}

// FitTransform fits and transforms in one pass.
func (s *MinMaxScaler) FitTransform(rows [][]float64) ([][]float64, error) {
	s.Fit(rows)
	return s.Transform(rows)
}

// InverseTransform recovers original units. Exactly inverts Transform for
// non-constant columns; constant columns recover the fitted constant.
func (s *MinMaxScaler) InverseTransform(rows [][]float64) ([][]float64, error) {
	if !s.Fitted {
		return nil, &NotFittedError{}
	}
	out := make([][]float64, len(rows))
	for i, row := range rows {
		orig := make([]float64, len(row))
		for j, v := range row {
			span := s.Max[j] - s.Min[j]
			orig[j] = v*span + s.Min[j]
		}
		out[i] = orig
	}
	return out, nil
}

// InverseColumn inverse-transforms values of a single column.
func (s *MinMaxScaler) InverseColumn(col int, values []float64) ([]float64, error) {
	if !s.Fitted {
		return nil, &NotFittedError{}
	}
	span := s.Max[col] - s.Min[col]
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v*span + s.Min[col]
	}
	return out, nil
}
