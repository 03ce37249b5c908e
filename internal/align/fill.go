package align

import "math"

// FillStrategy resolves remaining NaN cells in a single column, in place.
// Strategies are pure over the slice and safe to compose.
type FillStrategy func(col []float64)

// ForwardFill copies the last finite value into trailing NaN cells.
func ForwardFill(col []float64) {
	last := math.NaN()
	for i, v := range col {
		if math.IsNaN(v) {
			col[i] = last
		} else {
			last = v
		}
	}
}

// BackwardFill copies the next finite value into leading NaN cells.
func BackwardFill(col []float64) {
	next := math.NaN()
	for i := len(col) - 1; i >= 0; i-- {
		if math.IsNaN(col[i]) {
			col[i] = next
		} else {
			next = col[i]
		}
	}
}

// ZeroFill replaces any NaN cell with zero.
func ZeroFill(col []float64) {
	for i, v := range col {
		if math.IsNaN(v) {
			col[i] = 0
		}
	}
}

// fillChain is the documented fallback order for null cells that survive
// merging: forward fill, then backward fill, then zero. The order matters
// and is part of the pipeline's reproducibility contract.
var fillChain = []FillStrategy{ForwardFill, BackwardFill, ZeroFill}
