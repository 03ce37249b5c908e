// Command validate performs end-to-end integrity checks over a data
// directory: stream loading, alignment invariants, feature-engineering
// determinism, label consistency, and, when an artifacts directory is
// given, model/contract agreement. It exits non-zero when any phase
// fails, making it usable as a pre-training gate.
//
// Usage:
//
//	go run ./cmd/validate -data data [-artifacts ml/artifacts]
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/slopesense/rockfall-risk/internal/align"
	"github.com/slopesense/rockfall-risk/internal/dataset"
	"github.com/slopesense/rockfall-risk/internal/domain"
	"github.com/slopesense/rockfall-risk/internal/feature"
	"github.com/slopesense/rockfall-risk/internal/model"
	"github.com/slopesense/rockfall-risk/internal/risk"
	"github.com/slopesense/rockfall-risk/internal/stream"
)

// phase tracks pass/fail for one validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataDir := flag.String("data", "", "data directory containing environmental.json and sensors/")
	artifactsDir := flag.String("artifacts", "", "optional artifacts directory to validate against the data")
	flag.Parse()

	if *dataDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dataDir, *artifactsDir); code != 0 {
		os.Exit(code)
	}
}

func run(dataDir, artifactsDir string) int {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	fmt.Println("=== Rockfall Dataset Integrity Validation ===")
	fmt.Println()

	loader := stream.NewLoader(logger, nil)
	env, err := loader.LoadEnvironmentalFile(filepath.Join(dataDir, "environmental.json"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load environmental feed: %v\n", err)
		return 1
	}
	sensors, err := loader.LoadSensorDir(filepath.Join(dataDir, "sensors"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load sensor streams: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateStreams(env, sensors),
	}

	aligner := align.New(time.Hour, 2*time.Hour, 30*time.Minute, logger, nil)
	aligned := aligner.Align(env, sensors)
	phases = append(phases, validateAlignment(aligned))

	engineered := feature.Engineer(aligned)
	phases = append(phases, validateEngineering(aligned, engineered))

	labels := risk.LabelTable(engineered)
	phases = append(phases, validateLabels(labels))

	d := &dataset.Dataset{Table: engineered, Labels: labels}
	report := dataset.Validate(d)
	fmt.Printf("dataset: %d samples, %d features, %d high-risk / %d low-risk\n",
		report.Samples, report.Features, report.HighRisk, report.LowRisk)
	for _, w := range report.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	fmt.Println()

	if artifactsDir != "" {
		phases = append(phases, validateArtifacts(artifactsDir, d))
	}

	failed := 0
	for _, p := range phases {
		if p.passed() {
			fmt.Printf("PASS  %s\n", p.name)
			continue
		}
		failed++
		fmt.Printf("FAIL  %s\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("      - %s\n", e)
		}
	}

	fmt.Println()
	if failed > 0 {
		fmt.Printf("%d of %d phases failed\n", failed, len(phases))
		return 1
	}
	fmt.Printf("all %d phases passed\n", len(phases))
	return 0
}

func validateStreams(env []domain.EnvRecord, sensors map[domain.StreamKind][]domain.RawRecord) *phase {
	p := &phase{name: "stream loading"}
	if len(env) == 0 && len(sensors) == 0 {
		p.errorf("no records in any stream")
		return p
	}
	for i := 1; i < len(env); i++ {
		if env[i].Timestamp.Before(env[i-1].Timestamp) {
			p.errorf("environmental records out of order at index %d", i)
			break
		}
	}
	for kind, records := range sensors {
		for i := 1; i < len(records); i++ {
			if records[i].Timestamp.Before(records[i-1].Timestamp) {
				p.errorf("%s records out of order at index %d", kind, i)
				break
			}
		}
	}
	return p
}

func validateAlignment(t *domain.Table) *phase {
	p := &phase{name: "alignment"}
	if t.NumRows() == 0 {
		p.errorf("alignment produced no rows")
		return p
	}
	for i := 1; i < len(t.Timestamps); i++ {
		if !t.Timestamps[i].After(t.Timestamps[i-1]) {
			p.errorf("timestamps not strictly increasing at row %d", i)
			break
		}
	}
	for i, row := range t.Rows {
		for c, v := range row {
			if math.IsNaN(v) {
				p.errorf("unfilled cell at row %d column %s", i, t.Columns[c])
				return p
			}
		}
	}
	return p
}

func validateEngineering(aligned, engineered *domain.Table) *phase {
	p := &phase{name: "feature engineering"}
	if engineered.NumRows() != aligned.NumRows() {
		p.errorf("row count changed during engineering: %d -> %d", aligned.NumRows(), engineered.NumRows())
	}
	if len(engineered.Columns) <= len(aligned.Columns) {
		p.errorf("no feature columns added")
	}

	// Engineering the same input twice must be byte-for-byte identical.
	again := feature.Engineer(aligned)
	if len(again.Columns) != len(engineered.Columns) {
		p.errorf("non-deterministic column set")
		return p
	}
	for i := range engineered.Rows {
		for c := range engineered.Rows[i] {
			if engineered.Rows[i][c] != again.Rows[i][c] && !(math.IsNaN(engineered.Rows[i][c]) && math.IsNaN(again.Rows[i][c])) {
				p.errorf("non-deterministic value at row %d column %s", i, engineered.Columns[c])
				return p
			}
		}
	}
	return p
}

func validateLabels(labels []domain.RiskLabel) *phase {
	p := &phase{name: "risk labeling"}
	for i, l := range labels {
		if l.Score < 0 || l.Score > 1 {
			p.errorf("score out of range at row %d: %v", i, l.Score)
			return p
		}
		if l.IsHighRisk != (l.Score > risk.HighRiskThreshold) {
			p.errorf("label/score disagreement at row %d", i)
			return p
		}
	}
	return p
}

func validateArtifacts(dir string, d *dataset.Dataset) *phase {
	p := &phase{name: "model artifacts"}
	m, c, meta, err := model.LoadArtifacts(dir)
	if err != nil {
		p.errorf("load artifacts: %v", err)
		return p
	}
	if c.Len() != m.FeatureCount() {
		p.errorf("contract names %d features, model expects %d", c.Len(), m.FeatureCount())
	}
	if meta.FeatureCount != m.FeatureCount() {
		p.errorf("metadata records %d features, model expects %d", meta.FeatureCount, m.FeatureCount())
	}
	if d.Table.NumRows() == 0 {
		return p
	}

	// Scoring a dataset row through the contract must succeed and batch
	// scoring must equal single scoring.
	vectors := make([][]float64, 0, 3)
	for i := 0; i < d.Table.NumRows() && i < 3; i++ {
		vectors = append(vectors, c.Reconcile(d.RowPayload(i), d.Table.Timestamps[i]))
	}
	batch, err := m.PredictBatch(vectors)
	if err != nil {
		p.errorf("batch prediction: %v", err)
		return p
	}
	for i, v := range vectors {
		single, err := m.PredictProbability(v)
		if err != nil {
			p.errorf("single prediction %d: %v", i, err)
			return p
		}
		if single != batch[i] {
			p.errorf("batch/single divergence at row %d", i)
		}
	}
	return p
}
