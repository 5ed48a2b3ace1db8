// Package anomaly implements the unsupervised outlier model behind the
// ML half of the fraud score: a per-feature standard scaler feeding a
// seeded isolation forest, published to readers as an atomic snapshot.
package anomaly

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler normalizes each feature to zero mean and unit variance,
// fit on a reference population.
type StandardScaler struct {
	Mean []float64
	Std  []float64
}

// FitScaler computes per-column mean and population standard deviation.
// Constant columns get std 1 so they pass through centered.
func FitScaler(data [][]float64) (*StandardScaler, error) {
	if len(data) == 0 || len(data[0]) == 0 {
		return nil, fmt.Errorf("scaler fit requires a non-empty population")
	}

	dims := len(data[0])
	col := make([]float64, len(data))
	s := &StandardScaler{
		Mean: make([]float64, dims),
		Std:  make([]float64, dims),
	}

	for j := 0; j < dims; j++ {
		for i, row := range data {
			col[i] = row[j]
		}
		s.Mean[j] = stat.Mean(col, nil)
		std := stat.PopStdDev(col, nil)
		if std == 0 {
			std = 1
		}
		s.Std[j] = std
	}

	return s, nil
}

// Transform scales a single vector.
func (s *StandardScaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for j := range x {
		out[j] = (x[j] - s.Mean[j]) / s.Std[j]
	}
	return out
}

// TransformAll scales a whole population.
func (s *StandardScaler) TransformAll(data [][]float64) [][]float64 {
	out := make([][]float64, len(data))
	for i, row := range data {
		out[i] = s.Transform(row)
	}
	return out
}
