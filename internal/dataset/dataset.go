// Package dataset assembles labeled training tables from raw streams and
// validates them before a training run.
package dataset

import (
	"fmt"
	"log/slog"

	"github.com/slopesense/rockfall-risk/internal/align"
	"github.com/slopesense/rockfall-risk/internal/contract"
	"github.com/slopesense/rockfall-risk/internal/domain"
	"github.com/slopesense/rockfall-risk/internal/feature"
	"github.com/slopesense/rockfall-risk/internal/risk"
	"github.com/slopesense/rockfall-risk/internal/stream"
)

// Dataset is an engineered feature table with rule-based labels attached
// row for row.
type Dataset struct {
	Table  *domain.Table
	Labels []domain.RiskLabel
}

// FeatureNames returns the engineered column names in table order. This
// order becomes the feature contract of any model trained on the dataset.
func (d *Dataset) FeatureNames() []string {
	return append([]string(nil), d.Table.Columns...)
}

// RowPayload converts one row into the raw-payload shape the gateway
// receives at inference time.
func (d *Dataset) RowPayload(i int) map[string]float64 {
	payload := make(map[string]float64, len(d.Table.Columns))
	for _, col := range d.Table.Columns {
		if v, ok := d.Table.Value(i, col); ok {
			payload[col] = v
		}
	}
	return payload
}

// Matrix reconciles every row against the contract, producing the training
// design matrix. Training rows pass through the same reconciliation as
// inference payloads; the two paths must never diverge.
func (d *Dataset) Matrix(c *contract.Contract) [][]float64 {
	x := make([][]float64, d.Table.NumRows())
	for i := range x {
		x[i] = c.Reconcile(d.RowPayload(i), d.Table.Timestamps[i])
	}
	return x
}

// LabelVector returns binary training targets, 1 for high risk.
func (d *Dataset) LabelVector() []float64 {
	y := make([]float64, len(d.Labels))
	for i, l := range d.Labels {
		if l.IsHighRisk {
			y[i] = 1
		}
	}
	return y
}

// Builder runs the full training-side pipeline: load, align, engineer,
// label.
type Builder struct {
	loader  *stream.Loader
	aligner *align.Aligner
	logger  *slog.Logger
}

// NewBuilder creates a Builder over configured load and alignment stages.
func NewBuilder(loader *stream.Loader, aligner *align.Aligner, logger *slog.Logger) *Builder {
	return &Builder{loader: loader, aligner: aligner, logger: logger}
}

// Build assembles a labeled dataset from the environmental JSON file and
// the per-kind sensor CSV directory. Empty sources degrade to an empty
// dataset rather than failing.
func (b *Builder) Build(envPath, sensorDir string) (*Dataset, error) {
	env, err := b.loader.LoadEnvironmentalFile(envPath)
	if err != nil {
		return nil, fmt.Errorf("build dataset: %w", err)
	}
	sensors, err := b.loader.LoadSensorDir(sensorDir)
	if err != nil {
		return nil, fmt.Errorf("build dataset: %w", err)
	}

	aligned := b.aligner.Align(env, sensors)
	engineered := feature.Engineer(aligned)
	labels := risk.LabelTable(engineered)

	b.logger.Info("dataset assembled",
		"rows", engineered.NumRows(),
		"features", len(engineered.Columns))
	return &Dataset{Table: engineered, Labels: labels}, nil
}
