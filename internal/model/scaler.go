package model

import (
	"fmt"
	"math"
)

// StandardScaler normalizes features to zero mean and unit variance using
// statistics captured at fit time. Constant columns keep a unit deviation
// so transforming them is a no-op instead of a division blow-up.
type StandardScaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// FitScaler computes per-column statistics over the training matrix.
func FitScaler(x [][]float64) (*StandardScaler, error) {
	if len(x) == 0 || len(x[0]) == 0 {
		return nil, fmt.Errorf("fit scaler: empty matrix")
	}
	cols := len(x[0])
	mean := make([]float64, cols)
	std := make([]float64, cols)

	for _, row := range x {
		if len(row) != cols {
			return nil, fmt.Errorf("fit scaler: ragged matrix, want %d columns got %d", cols, len(row))
		}
		for c, v := range row {
			mean[c] += v
		}
	}
	n := float64(len(x))
	for c := range mean {
		mean[c] /= n
	}
	for _, row := range x {
		for c, v := range row {
			d := v - mean[c]
			std[c] += d * d
		}
	}
	for c := range std {
		std[c] = math.Sqrt(std[c] / n)
		if std[c] == 0 {
			std[c] = 1
		}
	}
	return &StandardScaler{Mean: mean, Std: std}, nil
}

// Transform scales one vector in place-free fashion, returning a new slice.
func (s *StandardScaler) Transform(row []float64) ([]float64, error) {
	if len(row) != len(s.Mean) {
		return nil, fmt.Errorf("scaler transform: want %d features got %d", len(s.Mean), len(row))
	}
	out := make([]float64, len(row))
	for c, v := range row {
		out[c] = (v - s.Mean[c]) / s.Std[c]
	}
	return out, nil
}
