package features

// MinMaxScaler maps every column linearly so the fitting batch spans [0, 1].
// Constant columns are shifted to 0 and not stretched. Values outside the
// fitted range are not clipped.
type MinMaxScaler struct {
	min   []float64
	scale []float64
}

func fitMinMax(rows [][]float64, width int) *MinMaxScaler {
	lo := make([]float64, width)
	hi := make([]float64, width)
	copy(lo, rows[0])
	copy(hi, rows[0])
	for _, row := range rows[1:] {
		for j, x := range row {
			lo[j] = min(lo[j], x)
			hi[j] = max(hi[j], x)
		}
	}

	scale := make([]float64, width)
	for j := range scale {
		if span := hi[j] - lo[j]; span > 0 {
			scale[j] = 1 / span
		} else {
			scale[j] = 1
		}
	}
	return &MinMaxScaler{min: lo, scale: scale}
}

// Width is the number of columns the scaler was fitted on.
func (s *MinMaxScaler) Width() int { return len(s.min) }

// apply scales row in place.
func (s *MinMaxScaler) apply(row []float64) {
	for j := range row {
		row[j] = (row[j] - s.min[j]) * s.scale[j]
	}
}
