// Package feature derives temporally aware predictive features from an
// aligned observation table.
//
// Derivation is pure and deterministic: the same input table always yields
// the same output, byte for byte, with no randomness and no mutation of the
// source. Column order is fixed (calendar features, rolling statistics per
// numeric column, interactions, threshold flags, cumulative sums) because
// the trained model's feature contract depends on it.
package feature

import (
	"math"

	"github.com/slopesense/rockfall-risk/internal/domain"
)

// Rolling windows, in ticks of the aligned table (one hour by default).
const (
	windowShort  = 3
	windowMedium = 6
	windowLong   = 12
	windowDay    = 24
	windowThree  = 72
)

// ratioEpsilon floors the denominator of the displacement/vibration ratio
// so quiet periods do not blow the feature up.
const ratioEpsilon = 1e-6

// Domain thresholds for indicator features. These mirror the risk rule-set
// thresholds so the model sees the same regime boundaries the labeler uses.
const (
	HeavyRainMM            = 20.0
	ExtremeRainMM          = 50.0
	HighDisplacementMM     = 5.0
	CriticalDisplacementMM = 10.0
	HighVibrationG         = 0.6
)

// Engineer derives the full feature set from an aligned table. The input is
// not modified; the result shares no row storage with it.
func Engineer(t *domain.Table) *domain.Table {
	if t.NumRows() == 0 {
		return t.Clone()
	}

	out := t.Clone()
	addCalendarFeatures(out)

	// Rolling features cover every numeric column present at this point,
	// calendar columns included: time-of-day trends carry signal too.
	base := append([]string(nil), out.Columns...)
	for _, col := range base {
		addRollingFeatures(out, col)
	}

	addInteractionFeatures(out)
	addThresholdFeatures(out)
	addCumulativeFeatures(out)
	return out
}

func addCalendarFeatures(t *domain.Table) {
	n := t.NumRows()
	hour := make([]float64, n)
	dow := make([]float64, n)
	month := make([]float64, n)
	weekend := make([]float64, n)
	night := make([]float64, n)

	for i, ts := range t.Timestamps {
		h := ts.Hour()
		// Monday=0 .. Sunday=6.
		d := (int(ts.Weekday()) + 6) % 7
		hour[i] = float64(h)
		dow[i] = float64(d)
		month[i] = float64(int(ts.Month()))
		if d >= 5 {
			weekend[i] = 1
		}
		// Night spans 22:00 through 06:00, boundaries inclusive.
		if h >= 22 || h <= 6 {
			night[i] = 1
		}
	}

	t.AddColumn("hour", hour)
	t.AddColumn("day_of_week", dow)
	t.AddColumn("month", month)
	t.AddColumn("is_weekend", weekend)
	t.AddColumn("is_night", night)
}

func addRollingFeatures(t *domain.Table, col string) {
	values := t.Column(col)
	t.AddColumn(col+"_roll3h", rollingMean(values, windowShort))
	t.AddColumn(col+"_roll6h", rollingMean(values, windowMedium))
	t.AddColumn(col+"_roll12h", rollingMean(values, windowLong))
	t.AddColumn(col+"_roll3h_std", rollingStd(values, windowShort))
	t.AddColumn(col+"_diff1", diff(values, 1))
	t.AddColumn(col+"_diff3", diff(values, windowShort))
	t.AddColumn(col+"_pct_change", pctChange(values))
}

func addInteractionFeatures(t *domain.Table) {
	if t.HasColumn(domain.ColRainfall) && t.HasColumn(domain.ColTemperature) {
		rain := t.Column(domain.ColRainfall)
		temp := t.Column(domain.ColTemperature)
		product := make([]float64, len(rain))
		for i := range rain {
			product[i] = rain[i] * temp[i]
		}
		t.AddColumn("rain_temp_interaction", product)
	}

	if t.HasColumn("displacement") && t.HasColumn("vibrations") {
		disp := t.Column("displacement")
		vib := t.Column("vibrations")
		ratio := make([]float64, len(disp))
		for i := range disp {
			ratio[i] = disp[i] / (vib[i] + ratioEpsilon)
		}
		t.AddColumn("displacement_vibration_ratio", ratio)
	}

	if t.HasColumn("strain") && t.HasColumn("pore_pressure") {
		strain := t.Column("strain")
		pore := t.Column("pore_pressure")
		product := make([]float64, len(strain))
		for i := range strain {
			product[i] = strain[i] * pore[i]
		}
		t.AddColumn("strain_pressure_product", product)
	}
}

func addThresholdFeatures(t *domain.Table) {
	if t.HasColumn(domain.ColRainfall) {
		rain := t.Column(domain.ColRainfall)
		t.AddColumn("heavy_rain", indicator(rain, HeavyRainMM))
		t.AddColumn("extreme_rain", indicator(rain, ExtremeRainMM))
	}
	if t.HasColumn("displacement") {
		disp := t.Column("displacement")
		t.AddColumn("high_displacement", indicator(disp, HighDisplacementMM))
		t.AddColumn("critical_displacement", indicator(disp, CriticalDisplacementMM))
	}
	if t.HasColumn("vibrations") {
		vib := t.Column("vibrations")
		t.AddColumn("high_vibration", indicator(vib, HighVibrationG))
	}
}

func addCumulativeFeatures(t *domain.Table) {
	if !t.HasColumn(domain.ColRainfall) {
		return
	}
	rain := t.Column(domain.ColRainfall)
	t.AddColumn("rainfall_cumsum_24h", rollingSum(rain, windowDay))
	t.AddColumn("rainfall_cumsum_72h", rollingSum(rain, windowThree))
}

// rollingMean averages the trailing window, defined from the first row
// using whatever history exists.
func rollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		n := i + 1
		if n > window {
			n = window
		}
		out[i] = sum / float64(n)
	}
	return out
}

// rollingSum accumulates the trailing window with minimum period one.
func rollingSum(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		out[i] = sum
	}
	return out
}

// rollingStd is the trailing sample standard deviation; zero where fewer
// than two values are available.
func rollingStd(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		n := i - lo + 1
		if n < 2 {
			continue
		}
		var sum float64
		for j := lo; j <= i; j++ {
			sum += values[j]
		}
		mean := sum / float64(n)
		var sq float64
		for j := lo; j <= i; j++ {
			d := values[j] - mean
			sq += d * d
		}
		out[i] = math.Sqrt(sq / float64(n-1))
	}
	return out
}

// diff is the lagged difference; zero where no lagged value exists.
func diff(values []float64, lag int) []float64 {
	out := make([]float64, len(values))
	for i := lag; i < len(values); i++ {
		out[i] = values[i] - values[i-lag]
	}
	return out
}

// pctChange is the one-tick relative change. Division blow-ups and other
// non-finite results clamp to zero instead of propagating.
func pctChange(values []float64) []float64 {
	out := make([]float64, len(values))
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		c := (values[i] - values[i-1]) / values[i-1]
		if math.IsNaN(c) || math.IsInf(c, 0) {
			continue
		}
		out[i] = c
	}
	return out
}

func indicator(values []float64, threshold float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if v > threshold {
			out[i] = 1
		}
	}
	return out
}
