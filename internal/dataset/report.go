package dataset

import (
	"fmt"
	"math"
)

// Validation statuses.
const (
	StatusEmpty   = "empty"
	StatusSuccess = "success"
)

// Quality thresholds that raise warnings without failing validation.
const (
	warnMissingPct  = 10.0
	warnMinSamples  = 100
	warnMinorityPct = 5.0
)

// Report summarizes dataset quality ahead of a training run. Warnings
// flag conditions a model can survive but an operator should know about.
type Report struct {
	Status     string
	Samples    int
	Features   int
	MissingPct float64
	HighRisk   int
	LowRisk    int
	Warnings   []string
}

// Validate inspects a dataset and reports sample counts, residual missing
// data, and label balance.
func Validate(d *Dataset) Report {
	if d == nil || d.Table.NumRows() == 0 {
		return Report{Status: StatusEmpty}
	}

	r := Report{
		Status:   StatusSuccess,
		Samples:  d.Table.NumRows(),
		Features: len(d.Table.Columns),
	}

	var missing int
	for _, row := range d.Table.Rows {
		for _, v := range row {
			if math.IsNaN(v) {
				missing++
			}
		}
	}
	total := r.Samples * r.Features
	if total > 0 {
		r.MissingPct = float64(missing) / float64(total) * 100
	}

	for _, l := range d.Labels {
		if l.IsHighRisk {
			r.HighRisk++
		} else {
			r.LowRisk++
		}
	}

	if r.MissingPct > warnMissingPct {
		r.Warnings = append(r.Warnings, fmt.Sprintf("high missing data: %.1f%%", r.MissingPct))
	}
	if r.Samples < warnMinSamples {
		r.Warnings = append(r.Warnings, fmt.Sprintf("low sample count: %d", r.Samples))
	}
	if len(d.Labels) > 0 {
		minority := r.HighRisk
		if r.LowRisk < minority {
			minority = r.LowRisk
		}
		switch {
		case minority == 0:
			r.Warnings = append(r.Warnings, "risk labels are single-class")
		case float64(minority)/float64(len(d.Labels))*100 < warnMinorityPct:
			r.Warnings = append(r.Warnings, fmt.Sprintf("severe class imbalance: %.1f%% minority class",
				float64(minority)/float64(len(d.Labels))*100))
		}
	}
	return r
}
