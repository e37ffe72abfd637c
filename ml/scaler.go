package ml

import (
	"errors"
	"math"
)

// StandardScaler centers features to zero mean and unit variance.
type StandardScaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// Fit computes per-column mean and standard deviation.
func (s *StandardScaler) Fit(x [][]float64) error {
	if len(x) == 0 {
		return errors.New("no rows to fit")
	}
	dim := len(x[0])
	mean := make([]float64, dim)
	std := make([]float64, dim)
	n := float64(len(x))

	for _, row := range x {
		if len(row) != dim {
			return errors.New("ragged feature matrix")
		}
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= n
	}
	for _, row := range x {
		for j, v := range row {
			d := v - mean[j]
			std[j] += d * d
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / n)
		if std[j] == 0 {
			// Constant column, leave values unscaled.
			std[j] = 1
		}
	}

	s.Mean = mean
	s.Std = std
	return nil
}

// Transform standardizes a single row.
func (s *StandardScaler) Transform(row []float64) ([]float64, error) {
	if len(row) != len(s.Mean) {
		return nil, errors.New("row width does not match scaler")
	}
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return out, nil
}
