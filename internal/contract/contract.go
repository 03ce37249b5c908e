// Package contract enforces the ordered feature schema a trained model
// expects.
//
// Every vector fed to a model, whether during training or inference, is
// reconciled against the contract: names present in the payload are taken
// in contract order, missing names fall back to pattern-based defaults, and
// extra payload fields are ignored. Training and serving share this one
// code path; any divergence between them silently corrupts predictions.
package contract

import (
	"fmt"
	"strings"
	"time"
)

// Nominal defaults substituted for missing physical quantities.
const (
	defaultTemperatureC = 20.0
	defaultPressureHPa  = 1013.25
	defaultHumidityPct  = 50.0
)

// Contract is the ordered feature schema for one trained model. Read-only
// after construction, safe for unsynchronized concurrent use.
type Contract struct {
	names   []string
	index   map[string]int
	version string
}

// New builds a contract from an ordered feature-name list. The version
// string identifies the artifact generation, typically the training
// timestamp.
func New(names []string, version string) (*Contract, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("feature contract is empty")
	}
	index := make(map[string]int, len(names))
	for i, name := range names {
		if name == "" {
			return nil, fmt.Errorf("feature contract has an empty name at position %d", i)
		}
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("feature contract has duplicate name %q", name)
		}
		index[name] = i
	}
	return &Contract{
		names:   append([]string(nil), names...),
		index:   index,
		version: version,
	}, nil
}

// Names returns the contract's feature names in order.
func (c *Contract) Names() []string {
	return append([]string(nil), c.names...)
}

// Len is the number of features the model expects.
func (c *Contract) Len() int {
	return len(c.names)
}

// Version identifies the artifact generation the contract belongs to.
func (c *Contract) Version() string {
	return c.version
}

// Reconcile converts a raw payload into a vector whose positions match the
// contract exactly. Calendar features absent from the payload are derived
// from ts; all other gaps take pattern-based defaults. Payload fields not
// named by the contract are dropped.
func (c *Contract) Reconcile(payload map[string]float64, ts time.Time) []float64 {
	vector := make([]float64, len(c.names))
	for i, name := range c.names {
		if v, ok := payload[name]; ok {
			vector[i] = v
			continue
		}
		if v, ok := calendarValue(name, ts); ok {
			vector[i] = v
			continue
		}
		vector[i] = DefaultFor(name)
	}
	return vector
}

// DefaultFor resolves the documented default for a feature missing from a
// payload. Matching is by name pattern so derived features (rolling stats,
// differences) inherit sensible defaults without enumeration.
func DefaultFor(name string) float64 {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "roll"),
		strings.Contains(lower, "diff"),
		strings.Contains(lower, "pct_change"),
		strings.Contains(lower, "cumsum"):
		return 0
	case strings.Contains(lower, "temp"):
		return defaultTemperatureC
	case strings.Contains(lower, "pressure"):
		return defaultPressureHPa
	case strings.Contains(lower, "humidity"):
		return defaultHumidityPct
	default:
		return 0
	}
}

// calendarValue derives time-based features from the observation timestamp
// so callers never need to send them explicitly.
func calendarValue(name string, ts time.Time) (float64, bool) {
	if ts.IsZero() {
		return 0, false
	}
	switch name {
	case "hour":
		return float64(ts.Hour()), true
	case "day_of_week":
		return float64((int(ts.Weekday()) + 6) % 7), true
	case "month":
		return float64(int(ts.Month())), true
	case "is_weekend":
		if (int(ts.Weekday())+6)%7 >= 5 {
			return 1, true
		}
		return 0, true
	case "is_night":
		h := ts.Hour()
		if h >= 22 || h <= 6 {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
