// Package risk converts engineered features into deterministic rule-based
// risk labels.
//
// The composite score is a sum of independent, additive contributions, each
// nonzero only past its threshold, clamped to [0,1] once at the end. The
// rule table is the single source of truth for bootstrapping training
// labels when no ground truth exists: addition is associative and
// commutative, so evaluation order never changes the result.
package risk

import (
	"github.com/slopesense/rockfall-risk/internal/domain"
)

// HighRiskThreshold separates binary labels: IsHighRisk is Score > 0.5.
const HighRiskThreshold = 0.5

// Rule thresholds, in the units of the aligned table.
const (
	heavyRainMM     = 20.0
	extremeRainMM   = 50.0
	cumRain24hMM    = 100.0
	highVibrationG  = 0.6
	severeVibration = 1.0
	highDispMM      = 5.0
	criticalDispMM  = 10.0
	highStrain      = 1.0
	highPorePress   = 2.0
	freezeTempC     = 0.0
	thermalTempC    = 40.0
)

// Lookup resolves a feature by name. Absent features fail every condition
// referencing them; they never contribute.
type Lookup func(name string) (float64, bool)

// Rule is one independent additive risk contribution.
type Rule struct {
	Name   string
	Weight float64
	Match  func(get Lookup) bool
}

// rules is the composite scoring table. Weights are cumulative: readings
// past the second rainfall or displacement threshold earn both
// contributions.
var rules = []Rule{
	{"heavy_rain", 0.30, exceeds(domain.ColRainfall, heavyRainMM)},
	{"extreme_rain", 0.20, exceeds(domain.ColRainfall, extremeRainMM)},
	{"cumulative_rain_24h", 0.20, exceeds("rainfall_cumsum_24h", cumRain24hMM)},
	{"high_vibration", 0.25, exceeds("vibrations", highVibrationG)},
	{"severe_vibration", 0.15, exceeds("vibrations", severeVibration)},
	{"high_displacement", 0.30, exceeds("displacement", highDispMM)},
	{"critical_displacement", 0.20, exceeds("displacement", criticalDispMM)},
	{"high_strain", 0.15, exceeds("strain", highStrain)},
	{"high_pore_pressure", 0.10, exceeds("pore_pressure", highPorePress)},
	{"rain_vibration_compound", 0.20, all(
		exceeds(domain.ColRainfall, heavyRainMM),
		exceeds("vibrations", highVibrationG),
	)},
	{"displacement_strain_compound", 0.15, all(
		exceeds("displacement", highDispMM),
		exceeds("strain", highStrain),
	)},
	{"freeze_thaw", 0.05, below(domain.ColTemperature, freezeTempC)},
	{"thermal_expansion", 0.05, exceeds(domain.ColTemperature, thermalTempC)},
}

// Rules returns a copy of the scoring table, mostly for inspection and
// property tests.
func Rules() []Rule {
	return append([]Rule(nil), rules...)
}

// Score sums all matching contributions and clamps once to [0,1].
func Score(get Lookup) float64 {
	return scoreWith(rules, get)
}

func scoreWith(table []Rule, get Lookup) float64 {
	var score float64
	for _, r := range table {
		if r.Match(get) {
			score += r.Weight
		}
	}
	return clamp01(score)
}

// Label derives the binary label and probability surrogate for one feature
// row.
func Label(get Lookup) domain.RiskLabel {
	score := Score(get)
	return domain.RiskLabel{
		IsHighRisk: score > HighRiskThreshold,
		Score:      score,
	}
}

// LabelTable labels every row of an engineered table.
func LabelTable(t *domain.Table) []domain.RiskLabel {
	labels := make([]domain.RiskLabel, t.NumRows())
	for i := range labels {
		labels[i] = Label(func(name string) (float64, bool) {
			return t.Value(i, name)
		})
	}
	return labels
}

func exceeds(name string, threshold float64) func(Lookup) bool {
	return func(get Lookup) bool {
		v, ok := get(name)
		return ok && v > threshold
	}
}

func below(name string, threshold float64) func(Lookup) bool {
	return func(get Lookup) bool {
		v, ok := get(name)
		return ok && v < threshold
	}
}

func all(conds ...func(Lookup) bool) func(Lookup) bool {
	return func(get Lookup) bool {
		for _, c := range conds {
			if !c(get) {
				return false
			}
		}
		return true
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
