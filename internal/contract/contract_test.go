package contract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name  string
		names []string
	}{
		{"empty list", nil},
		{"empty name", []string{"rainfall_mm", ""}},
		{"duplicate name", []string{"rainfall_mm", "rainfall_mm"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.names, "v1")
			assert.Error(t, err)
		})
	}
}

func TestReconcile_ContractShape(t *testing.T) {
	c, err := New([]string{
		"rainfall_mm",
		"temperature_c",
		"pressure",
		"humidity",
		"rainfall_mm_roll3h",
		"displacement_diff1",
		"vibrations_pct_change",
		"displacement",
	}, "v1")
	require.NoError(t, err)

	t.Run("empty payload fills every gap with documented defaults", func(t *testing.T) {
		got := c.Reconcile(nil, time.Time{})
		require.Len(t, got, c.Len())
		assert.Equal(t, []float64{0, 20, 1013.25, 50, 0, 0, 0, 0}, got)
	})

	t.Run("payload values take precedence and keep contract order", func(t *testing.T) {
		got := c.Reconcile(map[string]float64{
			"displacement": 3.5,
			"rainfall_mm":  12,
		}, time.Time{})
		assert.Equal(t, 12.0, got[0])
		assert.Equal(t, 3.5, got[7])
	})

	t.Run("extra payload fields are ignored", func(t *testing.T) {
		got := c.Reconcile(map[string]float64{
			"rainfall_mm": 12,
			"snowfall_cm": 99,
		}, time.Time{})
		require.Len(t, got, c.Len())
		assert.NotContains(t, got, 99.0)
	})
}

func TestReconcile_CalendarDerivation(t *testing.T) {
	c, err := New([]string{"hour", "day_of_week", "month", "is_weekend", "is_night"}, "v1")
	require.NoError(t, err)

	// Saturday 23:15 UTC.
	ts := time.Date(2024, 6, 15, 23, 15, 0, 0, time.UTC)
	got := c.Reconcile(nil, ts)
	assert.Equal(t, []float64{23, 5, 6, 1, 1}, got)

	// Payload values win over derivation.
	got = c.Reconcile(map[string]float64{"hour": 4}, ts)
	assert.Equal(t, 4.0, got[0])

	// Without a timestamp calendar features fall back to zero.
	got = c.Reconcile(nil, time.Time{})
	assert.Equal(t, []float64{0, 0, 0, 0, 0}, got)
}

func TestDefaultFor_Patterns(t *testing.T) {
	tests := []struct {
		name string
		want float64
	}{
		{"temperature_c", 20},
		{"temperature_c_roll6h", 0},
		{"pressure", 1013.25},
		{"humidity", 50},
		{"rainfall_mm_diff3", 0},
		{"strain_pct_change", 0},
		{"rainfall_cumsum_24h", 0},
		{"displacement", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DefaultFor(tt.name), tt.name)
	}
}
