// Command train builds a labeled dataset from the configured streams,
// fits the risk classifier, and writes the artifact triple the serving
// daemon loads.
//
// Sensor readings come from the configured CSV directory, or from Postgres
// when DATABASE_URL is set. With -synthetic the dataset is generated
// instead, which bootstraps a model before any field data exists.
//
// Usage:
//
//	go run ./cmd/train [-synthetic 2000] [-seed 42] [-out ml/artifacts]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/slopesense/rockfall-risk/internal/adapter/postgres"
	"github.com/slopesense/rockfall-risk/internal/align"
	"github.com/slopesense/rockfall-risk/internal/config"
	"github.com/slopesense/rockfall-risk/internal/contract"
	"github.com/slopesense/rockfall-risk/internal/dataset"
	"github.com/slopesense/rockfall-risk/internal/feature"
	"github.com/slopesense/rockfall-risk/internal/model"
	"github.com/slopesense/rockfall-risk/internal/observability"
	"github.com/slopesense/rockfall-risk/internal/risk"
	"github.com/slopesense/rockfall-risk/internal/stream"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	synthetic := flag.Int("synthetic", 0, "generate N synthetic samples instead of loading real streams")
	seed := flag.Int64("seed", 42, "random seed for synthetic generation and training")
	out := flag.String("out", "", "artifacts output directory (default from config)")
	window := flag.Duration("window", 90*24*time.Hour, "lookback window for Postgres sensor readings")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *out == "" {
		*out = cfg.ArtifactsDir
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	var d *dataset.Dataset
	switch {
	case *synthetic > 0:
		logger.Info("generating synthetic dataset", "samples", *synthetic, "seed", *seed)
		d = dataset.Synthesize(*synthetic, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *seed)
	default:
		if d, err = buildFromStreams(cfg, logger, metrics, *window); err != nil {
			return err
		}
	}

	report := dataset.Validate(d)
	if report.Status == dataset.StatusEmpty {
		return fmt.Errorf("dataset is empty, nothing to train on (try -synthetic)")
	}
	logger.Info("dataset validated",
		"samples", report.Samples,
		"features", report.Features,
		"high_risk", report.HighRisk,
		"low_risk", report.LowRisk)
	for _, w := range report.Warnings {
		logger.Warn("dataset warning", "warning", w)
	}

	names := d.FeatureNames()
	c, err := contract.New(names, "training")
	if err != nil {
		return fmt.Errorf("feature contract: %w", err)
	}

	m, meta, err := model.Train(d.Matrix(c), d.LabelVector(), model.TrainConfig{Seed: *seed})
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	logger.Info("model trained",
		"validation_auc", meta.ValidationAUC,
		"features", meta.FeatureCount,
		"training_rows", meta.TrainingRows)

	if err := model.SaveArtifacts(*out, m, names, meta); err != nil {
		return err
	}
	logger.Info("artifacts written", "dir", *out)
	return nil
}

// buildFromStreams assembles the dataset from the environmental JSON file
// plus sensor CSVs, or Postgres when a database URL is configured.
func buildFromStreams(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, window time.Duration) (*dataset.Dataset, error) {
	loader := stream.NewLoader(logger, metrics)
	aligner := align.New(cfg.Bucket, cfg.SensorTolerance, cfg.EnvTolerance, logger, metrics)

	if cfg.DatabaseURL == "" {
		return dataset.NewBuilder(loader, aligner, logger).Build(cfg.EnvJSONPath, cfg.SensorDir)
	}

	ctx := context.Background()
	store, err := postgres.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	env, err := loader.LoadEnvironmentalFile(cfg.EnvJSONPath)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sensors, err := store.FetchAllStreams(ctx, now.Add(-window), now)
	if err != nil {
		return nil, err
	}

	aligned := aligner.Align(env, sensors)
	engineered := feature.Engineer(aligned)
	return &dataset.Dataset{Table: engineered, Labels: risk.LabelTable(engineered)}, nil
}
