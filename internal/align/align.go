// Package align merges unevenly sampled streams onto one strictly ordered
// timeline.
//
// Sensor streams are first resampled into fixed-width buckets (per-bucket
// mean, standard deviation, and count), then joined by nearest timestamp
// within a bounded tolerance. A candidate farther than the tolerance is
// treated as absent, never forced. Rows that keep under 60% non-null
// columns after all merges are dropped as unreliable; surviving null cells
// are resolved by the forward/backward/zero fill chain.
package align

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/slopesense/rockfall-risk/internal/domain"
	"github.com/slopesense/rockfall-risk/internal/observability"
)

// minCoverage is the fraction of non-null columns a row must keep to
// survive alignment.
const minCoverage = 0.6

// Aligner merges loaded streams into one table.
type Aligner struct {
	bucket    time.Duration
	sensorTol time.Duration
	envTol    time.Duration
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates an Aligner. Bucket is the resampling width for sensor
// streams; sensorTol bounds sensor-to-sensor joins and envTol bounds the
// final sensor-to-environment join.
func New(bucket, sensorTol, envTol time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Aligner {
	return &Aligner{
		bucket:    bucket,
		sensorTol: sensorTol,
		envTol:    envTol,
		logger:    logger,
		metrics:   metrics,
	}
}

// series is an intermediate sorted timeline with a column group.
type series struct {
	cols []string
	ts   []time.Time
	rows [][]float64
}

// Align merges the environmental stream and the sensor streams into one
// strictly time-ordered table. Either side may be empty; the result then
// carries the other side alone. Both empty yields an empty table.
func (a *Aligner) Align(env []domain.EnvRecord, sensors map[domain.StreamKind][]domain.RawRecord) *domain.Table {
	sensorSeries := a.mergeSensors(sensors)
	envSeries := envToSeries(env)

	var merged *series
	switch {
	case envSeries == nil && sensorSeries == nil:
		return domain.NewTable(nil)
	case envSeries == nil:
		merged = sensorSeries
	case sensorSeries == nil:
		merged = envSeries
	default:
		// Environment is the base timeline for the final join; sensor
		// aggregates attach to the nearest environmental tick within envTol.
		merged = joinNearest(envSeries, sensorSeries, a.envTol)
	}

	table := seriesToTable(merged)
	table = a.dropLowCoverage(table)
	applyFillChain(table)
	return table
}

// mergeSensors resamples each sensor stream and joins them in canonical
// kind order onto the earliest stream's timeline. Returns nil when no
// sensor stream has data.
func (a *Aligner) mergeSensors(sensors map[domain.StreamKind][]domain.RawRecord) *series {
	var parts []*series
	for _, kind := range domain.SensorKinds {
		records := sensors[kind]
		if len(records) == 0 {
			continue
		}
		if s := resample(records, kind, a.bucket); len(s.ts) > 0 {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return nil
	}

	// The base timeline belongs to the stream that starts earliest;
	// remaining streams keep canonical order.
	base := 0
	for i := 1; i < len(parts); i++ {
		if parts[i].ts[0].Before(parts[base].ts[0]) {
			base = i
		}
	}
	merged := parts[base]
	for i, p := range parts {
		if i == base {
			continue
		}
		merged = joinNearest(merged, p, a.sensorTol)
	}
	return merged
}

// resample aggregates raw readings into fixed-width buckets, producing
// mean, standard deviation (zero for singleton buckets), and count columns.
// Nil-valued records count toward nothing; a bucket of only nulls is
// skipped entirely.
func resample(records []domain.RawRecord, kind domain.StreamKind, bucket time.Duration) *series {
	type agg struct {
		sum, sumSq float64
		n          int
	}
	buckets := make(map[time.Time]*agg)
	for _, r := range records {
		if r.Value == nil {
			continue
		}
		key := r.Timestamp.Truncate(bucket)
		b := buckets[key]
		if b == nil {
			b = &agg{}
			buckets[key] = b
		}
		b.sum += *r.Value
		b.sumSq += *r.Value * *r.Value
		b.n++
	}

	col := kind.Column()
	s := &series{cols: []string{col, col + "_std", col + "_count"}}
	keys := make([]time.Time, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	for _, k := range keys {
		b := buckets[k]
		mean := b.sum / float64(b.n)
		std := 0.0
		if b.n > 1 {
			// Sample standard deviation, matching the aggregation the
			// model was trained against.
			variance := (b.sumSq - float64(b.n)*mean*mean) / float64(b.n-1)
			if variance > 0 {
				std = math.Sqrt(variance)
			}
		}
		s.ts = append(s.ts, k)
		s.rows = append(s.rows, []float64{mean, std, float64(b.n)})
	}
	return s
}

// envToSeries converts sorted environmental records into a series, keeping
// the first record when timestamps collide.
func envToSeries(env []domain.EnvRecord) *series {
	if len(env) == 0 {
		return nil
	}
	s := &series{cols: append([]string(nil), domain.EnvColumns...)}
	var last time.Time
	for i, r := range env {
		if i > 0 && r.Timestamp.Equal(last) {
			continue
		}
		last = r.Timestamp
		s.ts = append(s.ts, r.Timestamp)
		s.rows = append(s.rows, r.Values())
	}
	return s
}

// joinNearest attaches the right series to the left timeline by nearest
// timestamp within tol. Equidistant candidates break ties toward the
// earlier timestamp, unless the earlier row is entirely null and the later
// one is not.
func joinNearest(left, right *series, tol time.Duration) *series {
	out := &series{
		cols: append(append([]string(nil), left.cols...), right.cols...),
		ts:   left.ts,
	}
	out.rows = make([][]float64, len(left.rows))
	for i, ts := range left.ts {
		row := append([]float64(nil), left.rows[i]...)
		match := nearestWithin(right, ts, tol)
		if match >= 0 {
			row = append(row, right.rows[match]...)
		} else {
			for range right.cols {
				row = append(row, math.NaN())
			}
		}
		out.rows[i] = row
	}
	return out
}

// nearestWithin returns the index of the right-series row nearest to ts
// within tol, or -1. A reading exactly at the tolerance boundary is
// included.
func nearestWithin(s *series, ts time.Time, tol time.Duration) int {
	if len(s.ts) == 0 {
		return -1
	}
	// Binary search for the first timestamp >= ts.
	lo, hi := 0, len(s.ts)
	for lo < hi {
		mid := (lo + hi) / 2
		if s.ts[mid].Before(ts) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}

	earlier, later := lo-1, lo
	switch {
	case earlier < 0 && later >= len(s.ts):
		return -1
	case earlier < 0:
		if within(ts, s.ts[later], tol) {
			return later
		}
		return -1
	case later >= len(s.ts):
		if within(ts, s.ts[earlier], tol) {
			return earlier
		}
		return -1
	}

	de := absDuration(ts.Sub(s.ts[earlier]))
	dl := absDuration(s.ts[later].Sub(ts))
	switch {
	case de < dl:
		later = -1
	case dl < de:
		earlier = -1
	default:
		// Equidistant: prefer the earlier record, unless it carries no
		// values and the later one does.
		if allNaN(s.rows[earlier]) && !allNaN(s.rows[later]) {
			earlier = -1
		} else {
			later = -1
		}
	}

	if earlier >= 0 && within(ts, s.ts[earlier], tol) {
		return earlier
	}
	if later >= 0 && within(ts, s.ts[later], tol) {
		return later
	}
	return -1
}

func within(a, b time.Time, tol time.Duration) bool {
	return absDuration(a.Sub(b)) <= tol
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func allNaN(row []float64) bool {
	for _, v := range row {
		if !math.IsNaN(v) {
			return false
		}
	}
	return true
}

// dropLowCoverage removes rows holding under minCoverage non-null columns.
func (a *Aligner) dropLowCoverage(t *domain.Table) *domain.Table {
	out := domain.NewTable(t.Columns)
	var dropped int
	for i := range t.Rows {
		if t.Coverage(i) < minCoverage {
			dropped++
			continue
		}
		out.AppendRow(t.Timestamps[i], t.Rows[i])
	}
	if dropped > 0 {
		a.logger.Warn("dropped unreliable rows", "count", dropped, "min_coverage", minCoverage)
		if a.metrics != nil {
			a.metrics.RowsDroppedLowCov.Add(float64(dropped))
		}
	}
	return out
}

// applyFillChain resolves remaining null cells column by column using the
// documented forward/backward/zero order.
func applyFillChain(t *domain.Table) {
	for c := range t.Columns {
		col := make([]float64, len(t.Rows))
		for i := range t.Rows {
			col[i] = t.Rows[i][c]
		}
		for _, fill := range fillChain {
			fill(col)
		}
		for i := range t.Rows {
			t.Rows[i][c] = col[i]
		}
	}
}

func seriesToTable(s *series) *domain.Table {
	t := domain.NewTable(s.cols)
	for i := range s.ts {
		t.AppendRow(s.ts[i], s.rows[i])
	}
	return t
}
