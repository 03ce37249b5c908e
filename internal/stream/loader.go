// Package stream reads raw environmental and geotechnical sensor records
// from external sources and normalizes them into domain records.
//
// Loading is deliberately forgiving: unknown field spellings resolve to
// canonical names, missing numeric fields take documented defaults, and only
// records without a usable timestamp are discarded. An absent source yields
// an empty stream with a logged warning so downstream stages can degrade
// instead of failing.
package stream

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/slopesense/rockfall-risk/internal/domain"
	"github.com/slopesense/rockfall-risk/internal/observability"
)

// Default values substituted for unresolvable environmental fields.
const (
	DefaultTemperature = 20.0
	DefaultHumidity    = 50.0
	DefaultPressure    = 1013.25
)

// timestampLayouts are tried in order when parsing record timestamps.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Loader reads raw streams from JSON and CSV sources.
type Loader struct {
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewLoader creates a Loader.
func NewLoader(logger *slog.Logger, metrics *observability.Metrics) *Loader {
	return &Loader{logger: logger, metrics: metrics}
}

// LoadEnvironmentalFile reads the environmental feed from a JSON file.
// A missing file is a degraded condition, not an error: it returns an empty
// stream and logs a warning.
func (l *Loader) LoadEnvironmentalFile(path string) ([]domain.EnvRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Warn("environmental source not found, continuing with empty stream", "path", path)
			return nil, nil
		}
		return nil, fmt.Errorf("open environmental source: %w", err)
	}
	defer f.Close()
	return l.LoadEnvironmental(f)
}

// LoadEnvironmental decodes environmental records from JSON. The payload may
// be a single flat record, a list of records, or an object with a "records"
// list; all three shapes normalize to the same canonical records, sorted by
// timestamp. Records whose timestamp cannot be parsed are dropped.
func (l *Loader) LoadEnvironmental(r io.Reader) ([]domain.EnvRecord, error) {
	var payload any
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		l.logger.Warn("environmental source is not valid JSON, continuing with empty stream", "error", err)
		return nil, nil
	}

	var rawRecords []map[string]any
	switch v := payload.(type) {
	case map[string]any:
		if recs, ok := v["records"].([]any); ok {
			for _, rec := range recs {
				if m, ok := rec.(map[string]any); ok {
					rawRecords = append(rawRecords, m)
				}
			}
		} else {
			rawRecords = append(rawRecords, v)
		}
	case []any:
		for _, rec := range v {
			if m, ok := rec.(map[string]any); ok {
				rawRecords = append(rawRecords, m)
			}
		}
	}

	records := make([]domain.EnvRecord, 0, len(rawRecords))
	for _, m := range rawRecords {
		ts, ok := ParseTimestamp(m["timestamp"])
		if !ok {
			l.countDropped(domain.StreamEnvironmental, "bad_timestamp")
			continue
		}
		records = append(records, domain.EnvRecord{
			Timestamp:   ts,
			Rainfall:    resolveNumeric(m, 0, "rainfall_mm", "rainfall"),
			Temperature: resolveNumeric(m, DefaultTemperature, "temperature_c", "temperature"),
			Vibration:   resolveNumeric(m, 0, "vibrations", "ambient_vibration"),
			Humidity:    resolveNumeric(m, DefaultHumidity, "humidity"),
			WindSpeed:   resolveNumeric(m, 0, "wind_speed"),
			Pressure:    resolveNumeric(m, DefaultPressure, "pressure"),
		})
		l.countLoaded(domain.StreamEnvironmental)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records, nil
}

// LoadSensorDir reads one CSV per sensor kind from dir ("<kind>.csv").
// Missing files yield empty streams with a warning.
func (l *Loader) LoadSensorDir(dir string) (map[domain.StreamKind][]domain.RawRecord, error) {
	streams := make(map[domain.StreamKind][]domain.RawRecord, len(domain.SensorKinds))
	for _, kind := range domain.SensorKinds {
		path := filepath.Join(dir, string(kind)+".csv")
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				l.logger.Warn("sensor source not found, continuing with empty stream",
					"kind", kind, "path", path)
				continue
			}
			return nil, fmt.Errorf("open sensor source %s: %w", kind, err)
		}
		records, err := l.LoadSensorCSV(f, kind)
		f.Close()
		if err != nil {
			return nil, err
		}
		if len(records) > 0 {
			streams[kind] = records
		}
	}
	return streams, nil
}

// LoadSensorCSV reads timestamp/value rows for one sensor kind. The header
// must contain "timestamp" and "value" columns; otherwise the whole table is
// skipped with a warning. Rows with an unparsable timestamp or a non-numeric
// value are dropped individually.
func (l *Loader) LoadSensorCSV(r io.Reader, kind domain.StreamKind) ([]domain.RawRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read sensor csv %s: %w", kind, err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	tsIdx, valIdx := -1, -1
	for i, h := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "timestamp":
			tsIdx = i
		case "value":
			valIdx = i
		}
	}
	if tsIdx < 0 || valIdx < 0 {
		l.logger.Warn("sensor table missing required columns, skipping",
			"kind", kind, "required", "timestamp,value")
		return nil, nil
	}

	records := make([]domain.RawRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if tsIdx >= len(row) || valIdx >= len(row) {
			l.countDropped(kind, "bad_timestamp")
			continue
		}
		ts, ok := ParseTimestamp(row[tsIdx])
		if !ok {
			l.countDropped(kind, "bad_timestamp")
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[valIdx]), 64)
		if err != nil {
			l.countDropped(kind, "bad_value")
			continue
		}
		records = append(records, domain.RawRecord{Timestamp: ts, Kind: kind, Value: &v})
		l.countLoaded(kind)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records, nil
}

func (l *Loader) countLoaded(kind domain.StreamKind) {
	if l.metrics != nil {
		l.metrics.RecordsLoaded.WithLabelValues(string(kind)).Inc()
	}
}

func (l *Loader) countDropped(kind domain.StreamKind, reason string) {
	if l.metrics != nil {
		l.metrics.RecordsDropped.WithLabelValues(string(kind), reason).Inc()
	}
}

// ParseTimestamp accepts string timestamps in any supported layout.
// Anything else is unparsable.
func ParseTimestamp(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// resolveNumeric returns the first resolvable spelling of a quantity,
// coercing JSON numbers and numeric strings; unresolvable fields take the
// documented default.
func resolveNumeric(m map[string]any, def float64, names ...string) float64 {
	for _, name := range names {
		v, ok := m[name]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return f
			}
		}
	}
	return def
}
