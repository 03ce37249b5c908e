// Command genmock generates deterministic raw stream fixtures: an
// environmental JSON feed and one CSV per sensor kind, with realistic
// cadences, jitter, gaps, and a storm episode that produces high-risk
// rows. The fixtures exercise loading, alignment tolerance, and labeling
// the same way field data does.
//
// Usage:
//
//	go run ./cmd/genmock -out data -hours 168 -seed 42
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/slopesense/rockfall-risk/internal/domain"
)

var baseDate = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

// sensorDef describes one sensor stream's cadence and value distribution.
type sensorDef struct {
	kind     domain.StreamKind
	interval time.Duration
	jitter   time.Duration
	dropRate float64
	value    func(rng *rand.Rand, hour int, storm bool) float64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory for fixtures")
	hours := flag.Int("hours", 168, "hours of data to generate")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	rng := rand.New(rand.NewSource(*seed))

	// A two-day storm in the middle of the window drives rainfall,
	// vibration, and displacement past the risk thresholds.
	stormStart := *hours / 2
	stormEnd := stormStart + 48
	inStorm := func(hour int) bool { return hour >= stormStart && hour < stormEnd }

	if err := writeEnvironmental(*out, *hours, rng, inStorm); err != nil {
		return err
	}

	defs := []sensorDef{
		{kind: domain.StreamDisplacement, interval: 30 * time.Minute, jitter: 5 * time.Minute, dropRate: 0.05,
			value: func(rng *rand.Rand, hour int, storm bool) float64 {
				v := math.Abs(rng.NormFloat64()) * 2
				if storm {
					v += 6 + rng.Float64()*6
				}
				return v
			}},
		{kind: domain.StreamStrain, interval: time.Hour, jitter: 10 * time.Minute, dropRate: 0.1,
			value: func(rng *rand.Rand, hour int, storm bool) float64 {
				v := math.Max(rng.NormFloat64()*0.3+0.5, 0)
				if storm {
					v += 0.8
				}
				return v
			}},
		{kind: domain.StreamPorePressure, interval: time.Hour, jitter: 10 * time.Minute, dropRate: 0.1,
			value: func(rng *rand.Rand, hour int, storm bool) float64 {
				v := math.Max(rng.NormFloat64()*0.4+1.2, 0)
				if storm {
					v += 1.2
				}
				return v
			}},
		{kind: domain.StreamVibration, interval: 20 * time.Minute, jitter: 2 * time.Minute, dropRate: 0.05,
			value: func(rng *rand.Rand, hour int, storm bool) float64 {
				v := math.Abs(rng.NormFloat64()) * 0.25
				if storm {
					v += 0.7 + rng.Float64()*0.5
				}
				return v
			}},
	}

	sensorDir := filepath.Join(*out, "sensors")
	if err := os.MkdirAll(sensorDir, 0o755); err != nil {
		return fmt.Errorf("create sensor dir: %w", err)
	}
	for _, d := range defs {
		path := filepath.Join(sensorDir, string(d.kind)+".csv")
		n, err := writeSensorCSV(path, d, *hours, rng, inStorm)
		if err != nil {
			return fmt.Errorf("writing %s: %w", d.kind, err)
		}
		log.Printf("%s: %d readings", d.kind, n)
	}

	log.Printf("wrote fixtures to %s (storm hours %d-%d)", *out, stormStart, stormEnd)
	return nil
}

// writeEnvironmental emits the hourly environmental feed in the
// records-list JSON shape, mixing field-name spellings the way upstream
// providers do.
func writeEnvironmental(out string, hours int, rng *rand.Rand, inStorm func(int) bool) error {
	records := make([]map[string]any, 0, hours)
	for h := 0; h < hours; h++ {
		ts := baseDate.Add(time.Duration(h) * time.Hour)
		rain := rng.ExpFloat64() * 2
		if inStorm(h) {
			rain = 25 + rng.ExpFloat64()*20
		}
		rec := map[string]any{
			"timestamp":     ts.Format(time.RFC3339),
			"temperature_c": clamp(20+10*math.Sin(float64(h)*2*math.Pi/(24*7))+rng.NormFloat64()*3, -10, 45),
			"humidity":      clamp(rng.NormFloat64()*15+60, 0, 100),
			"wind_speed":    math.Max(rng.NormFloat64()*4+10, 0),
			"pressure":      rng.NormFloat64()*15 + 1013.25,
		}
		// Alternate spellings so loaders must resolve both.
		if h%2 == 0 {
			rec["rainfall_mm"] = rain
		} else {
			rec["rainfall"] = rain
		}
		rec["vibrations"] = math.Abs(rng.NormFloat64()) * 0.2
		records = append(records, rec)
	}

	if err := os.MkdirAll(out, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	data, err := json.MarshalIndent(map[string]any{"records": records}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode environmental feed: %w", err)
	}
	path := filepath.Join(out, "environmental.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write environmental feed: %w", err)
	}
	log.Printf("environmental: %d records", len(records))
	return nil
}

// writeSensorCSV emits timestamp/value rows at the stream's cadence with
// jitter and random gaps.
func writeSensorCSV(path string, def sensorDef, hours int, rng *rand.Rand, inStorm func(int) bool) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, "timestamp,value"); err != nil {
		return 0, err
	}

	var n int
	end := baseDate.Add(time.Duration(hours) * time.Hour)
	for ts := baseDate; ts.Before(end); ts = ts.Add(def.interval) {
		if rng.Float64() < def.dropRate {
			continue
		}
		jittered := ts.Add(time.Duration(rng.Int63n(int64(def.jitter)*2)) - def.jitter)
		hour := int(jittered.Sub(baseDate).Hours())
		v := def.value(rng, hour, inStorm(hour))
		if _, err := fmt.Fprintf(f, "%s,%.4f\n", jittered.UTC().Format(time.RFC3339), v); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
