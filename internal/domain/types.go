package domain

import (
	"time"
)

// StreamKind identifies a single source of time-stamped readings.
type StreamKind string

const (
	StreamEnvironmental StreamKind = "environmental"
	StreamDisplacement  StreamKind = "displacement"
	StreamStrain        StreamKind = "strain"
	StreamPorePressure  StreamKind = "pore_pressure"
	StreamVibration     StreamKind = "vibrations"
)

// SensorKinds lists the geotechnical sensor streams in canonical merge order.
// Environmental is handled separately because it carries multiple quantities
// per record.
var SensorKinds = []StreamKind{
	StreamDisplacement,
	StreamStrain,
	StreamPorePressure,
	StreamVibration,
}

// Column returns the canonical column name a sensor stream contributes to
// the aligned table.
func (k StreamKind) Column() string {
	return string(k)
}

// Valid reports whether k names a known stream.
func (k StreamKind) Valid() bool {
	switch k {
	case StreamEnvironmental, StreamDisplacement, StreamStrain, StreamPorePressure, StreamVibration:
		return true
	}
	return false
}

// RawRecord is one observation from one geotechnical sensor stream.
// Records with unparsable timestamps never become RawRecords; a missing
// timestamp is unrecoverable, unlike a missing value.
type RawRecord struct {
	Timestamp time.Time
	Kind      StreamKind
	Value     *float64
}

// EnvRecord is one normalized environmental observation. Field spellings
// and units vary upstream; the loader resolves them to these canonical
// quantities before an EnvRecord exists.
type EnvRecord struct {
	Timestamp   time.Time
	Rainfall    float64 // mm
	Temperature float64 // °C
	Vibration   float64 // ambient, g
	Humidity    float64 // %
	WindSpeed   float64 // km/h
	Pressure    float64 // hPa
}

// Environmental column names in the aligned table, in canonical order.
const (
	ColRainfall    = "rainfall_mm"
	ColTemperature = "temperature_c"
	ColAmbientVib  = "ambient_vibration"
	ColHumidity    = "humidity"
	ColWindSpeed   = "wind_speed"
	ColPressure    = "pressure"
)

// EnvColumns is the canonical column order for environmental quantities.
var EnvColumns = []string{
	ColRainfall, ColTemperature, ColAmbientVib, ColHumidity, ColWindSpeed, ColPressure,
}

// Values returns the record's quantities in EnvColumns order.
func (r EnvRecord) Values() []float64 {
	return []float64{r.Rainfall, r.Temperature, r.Vibration, r.Humidity, r.WindSpeed, r.Pressure}
}

// RiskLabel is the deterministic rule-based label attached to one feature
// row. IsHighRisk is always Score > 0.5.
type RiskLabel struct {
	IsHighRisk bool
	Score      float64
}

// Observation is one raw inference payload: named scalar readings plus the
// observation time. Unknown field names are tolerated here and ignored
// during contract reconciliation.
type Observation struct {
	Timestamp time.Time
	Fields    map[string]float64
}

// Prediction is the scored output for one observation.
type Prediction struct {
	Probability float64   `json:"probability"`
	RiskClass   string    `json:"risk_class"`
	ObservedAt  time.Time `json:"observed_at"`
	ScoredAt    time.Time `json:"scored_at"`
}
