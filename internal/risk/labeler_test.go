package risk

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slopesense/rockfall-risk/internal/domain"
)

func mapLookup(m map[string]float64) Lookup {
	return func(name string) (float64, bool) {
		v, ok := m[name]
		return v, ok
	}
}

func TestScore_Scenarios(t *testing.T) {
	tests := []struct {
		name     string
		features map[string]float64
		want     float64
		highRisk bool
	}{
		{
			name:     "quiet conditions score zero",
			features: map[string]float64{"rainfall_mm": 2, "vibrations": 0.1, "displacement": 0.5},
			want:     0,
			highRisk: false,
		},
		{
			name:     "heavy rain alone",
			features: map[string]float64{"rainfall_mm": 25},
			want:     0.30,
			highRisk: false,
		},
		{
			name:     "extreme rain earns both rain contributions",
			features: map[string]float64{"rainfall_mm": 55},
			want:     0.50,
			highRisk: false,
		},
		{
			name: "extreme rain with vibration crosses the line",
			features: map[string]float64{
				"rainfall_mm": 55,
				"vibrations":  0.7,
			},
			// 0.30 + 0.20 + 0.25 + 0.20 compound.
			want:     0.95,
			highRisk: true,
		},
		{
			name: "displacement and strain compound",
			features: map[string]float64{
				"displacement": 6,
				"strain":       1.5,
			},
			// 0.30 + 0.15 + 0.15 compound.
			want:     0.60,
			highRisk: true,
		},
		{
			name: "everything at once clamps to one",
			features: map[string]float64{
				"rainfall_mm":         60,
				"rainfall_cumsum_24h": 150,
				"vibrations":          1.2,
				"displacement":        12,
				"strain":              2,
				"pore_pressure":       3,
				"temperature_c":       -5,
			},
			want:     1,
			highRisk: true,
		},
		{
			name:     "thresholds are strict, boundary values do not fire",
			features: map[string]float64{"rainfall_mm": 20, "vibrations": 0.6, "displacement": 5},
			want:     0,
			highRisk: false,
		},
		{
			name:     "cold snap alone",
			features: map[string]float64{"temperature_c": -2},
			want:     0.05,
			highRisk: false,
		},
		{
			name:     "heat alone",
			features: map[string]float64{"temperature_c": 42},
			want:     0.05,
			highRisk: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label := Label(mapLookup(tt.features))
			assert.InDelta(t, tt.want, label.Score, 1e-9)
			assert.Equal(t, tt.highRisk, label.IsHighRisk)
		})
	}
}

func TestScore_AbsentFeaturesNeverContribute(t *testing.T) {
	assert.Zero(t, Score(mapLookup(nil)))

	// A missing vibration column must not trigger the compound rule even
	// under extreme rain.
	score := Score(mapLookup(map[string]float64{"rainfall_mm": 80}))
	assert.InDelta(t, 0.50, score, 1e-9)
}

func TestScore_OrderInvariant(t *testing.T) {
	features := map[string]float64{
		"rainfall_mm":         35,
		"rainfall_cumsum_24h": 120,
		"vibrations":          0.8,
		"displacement":        7,
		"strain":              1.2,
		"temperature_c":       -1,
	}
	want := Score(mapLookup(features))

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := Rules()
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		got := scoreWith(shuffled, mapLookup(features))
		assert.InDelta(t, want, got, 1e-9, "permutation %d", i)
	}
}

func TestScore_Monotone(t *testing.T) {
	base := map[string]float64{"rainfall_mm": 25, "vibrations": 0.3}
	raised := map[string]float64{"rainfall_mm": 55, "vibrations": 0.7}

	low := Score(mapLookup(base))
	high := Score(mapLookup(raised))
	require.Greater(t, high, low)
}

func TestLabelTable(t *testing.T) {
	table := domain.NewTable([]string{"rainfall_mm", "vibrations"})
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	table.AppendRow(base, []float64{2, 0.1})
	table.AppendRow(base.Add(time.Hour), []float64{55, 0.7})

	labels := LabelTable(table)
	require.Len(t, labels, 2)
	assert.False(t, labels[0].IsHighRisk)
	assert.True(t, labels[1].IsHighRisk)
	assert.InDelta(t, 0.95, labels[1].Score, 1e-9)
}
