package dataset

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slopesense/rockfall-risk/internal/align"
	"github.com/slopesense/rockfall-risk/internal/contract"
	"github.com/slopesense/rockfall-risk/internal/stream"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testBuilder() *Builder {
	logger := testLogger()
	loader := stream.NewLoader(logger, nil)
	aligner := align.New(time.Hour, 2*time.Hour, 30*time.Minute, logger, nil)
	return NewBuilder(loader, aligner, logger)
}

func writeFixtures(t *testing.T, dir string) (envPath, sensorDir string) {
	t.Helper()
	envPath = filepath.Join(dir, "environmental.json")
	env := `{"records": [
		{"timestamp": "2025-01-01T00:00:00Z", "rainfall_mm": 0.0, "temperature_c": 22.5, "humidity": 65.0, "wind_speed": 5.2, "pressure": 1013.25, "vibrations": 0.3},
		{"timestamp": "2025-01-01T01:00:00Z", "rainfall_mm": 2.5, "temperature_c": 22.0, "humidity": 68.0, "wind_speed": 6.1, "pressure": 1012.8, "vibrations": 0.4},
		{"timestamp": "2025-01-01T02:00:00Z", "rainfall_mm": 15.2, "temperature_c": 21.5, "humidity": 75.0, "wind_speed": 8.3, "pressure": 1011.5, "vibrations": 0.7}
	]}`
	require.NoError(t, os.WriteFile(envPath, []byte(env), 0o644))

	sensorDir = filepath.Join(dir, "sensors")
	require.NoError(t, os.MkdirAll(sensorDir, 0o755))
	csv := "timestamp,value\n2025-01-01T00:10:00Z,1.2\n2025-01-01T01:20:00Z,1.5\n2025-01-01T02:05:00Z,1.9\n"
	require.NoError(t, os.WriteFile(filepath.Join(sensorDir, "displacement.csv"), []byte(csv), 0o644))
	return envPath, sensorDir
}

func TestBuilder_Build(t *testing.T) {
	envPath, sensorDir := writeFixtures(t, t.TempDir())

	d, err := testBuilder().Build(envPath, sensorDir)
	require.NoError(t, err)
	require.NotZero(t, d.Table.NumRows())
	assert.Len(t, d.Labels, d.Table.NumRows())

	// Engineered columns must include calendar, raw, and derived features.
	for _, col := range []string{"rainfall_mm", "displacement", "hour", "is_night", "rainfall_mm_roll3h", "rainfall_cumsum_24h"} {
		assert.True(t, d.Table.HasColumn(col), "missing column %s", col)
	}
}

func TestBuilder_Build_MissingSourcesDegrade(t *testing.T) {
	dir := t.TempDir()
	d, err := testBuilder().Build(filepath.Join(dir, "nope.json"), filepath.Join(dir, "nope"))
	require.NoError(t, err)
	assert.Zero(t, d.Table.NumRows())
	assert.Empty(t, d.Labels)
}

func TestDataset_MatrixMatchesReconciliation(t *testing.T) {
	d := Synthesize(48, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), 42)

	c, err := contract.New(d.FeatureNames(), "test")
	require.NoError(t, err)

	x := d.Matrix(c)
	require.Len(t, x, d.Table.NumRows())
	require.Len(t, x[0], c.Len())

	// Row zero through the matrix equals reconciling its payload directly.
	direct := c.Reconcile(d.RowPayload(0), d.Table.Timestamps[0])
	assert.Empty(t, cmp.Diff(direct, x[0]))
}

func TestSynthesize_Deterministic(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Synthesize(100, start, 42)
	b := Synthesize(100, start, 42)

	assert.Empty(t, cmp.Diff(a.Table.Columns, b.Table.Columns))
	assert.Empty(t, cmp.Diff(a.Table.Rows, b.Table.Rows))
	assert.Empty(t, cmp.Diff(a.Labels, b.Labels))

	c := Synthesize(100, start, 7)
	assert.NotEmpty(t, cmp.Diff(a.Table.Rows, c.Table.Rows))
}

func TestSynthesize_PhysicalRanges(t *testing.T) {
	d := Synthesize(500, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), 42)

	for _, col := range []string{"rainfall_mm", "displacement", "vibrations", "wind_speed", "strain", "pore_pressure"} {
		for i, v := range d.Table.Column(col) {
			require.GreaterOrEqual(t, v, 0.0, "%s row %d", col, i)
		}
	}
	for i, v := range d.Table.Column("humidity") {
		require.GreaterOrEqual(t, v, 0.0, "humidity row %d", i)
		require.LessOrEqual(t, v, 100.0, "humidity row %d", i)
	}
	for i, v := range d.Table.Column("temperature_c") {
		require.GreaterOrEqual(t, v, -10.0, "temperature row %d", i)
		require.LessOrEqual(t, v, 45.0, "temperature row %d", i)
	}

	// Both classes should occur in a 500-sample draw.
	var high int
	for _, l := range d.Labels {
		if l.IsHighRisk {
			high++
		}
	}
	assert.Greater(t, high, 0)
	assert.Less(t, high, len(d.Labels))
}

func TestValidate(t *testing.T) {
	t.Run("empty dataset", func(t *testing.T) {
		r := Validate(nil)
		assert.Equal(t, StatusEmpty, r.Status)
	})

	t.Run("healthy dataset", func(t *testing.T) {
		d := Synthesize(500, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), 42)
		r := Validate(d)
		assert.Equal(t, StatusSuccess, r.Status)
		assert.Equal(t, 500, r.Samples)
		assert.Equal(t, len(d.Table.Columns), r.Features)
		assert.Zero(t, r.MissingPct)
		assert.Equal(t, 500, r.HighRisk+r.LowRisk)
	})

	t.Run("small dataset warns", func(t *testing.T) {
		d := Synthesize(20, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), 42)
		r := Validate(d)
		assert.Equal(t, StatusSuccess, r.Status)
		assert.NotEmpty(t, r.Warnings)
	})
}
