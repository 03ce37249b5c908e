// Command riskd runs the streaming scoring daemon: it consumes raw
// observations from Kafka, scores them against the trained model, and
// publishes predictions to the sink topic, exposing health and metrics
// over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/slopesense/rockfall-risk/internal/adapter/http"
	kafkaadapter "github.com/slopesense/rockfall-risk/internal/adapter/kafka"
	"github.com/slopesense/rockfall-risk/internal/config"
	"github.com/slopesense/rockfall-risk/internal/gateway"
	"github.com/slopesense/rockfall-risk/internal/observability"
	"github.com/slopesense/rockfall-risk/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	g := gateway.New(cfg.ArtifactsDir, logger, metrics)
	if err := g.Load(); err != nil {
		// The daemon still starts so operators can see readiness fail and
		// metrics report the unloaded model; scoring retries with backoff.
		logger.Error("model load failed, scoring will retry", "error", err, "artifacts_dir", cfg.ArtifactsDir)
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	scorer := pipeline.NewScorer(g, logger)

	p := pipeline.New(reader, scorer, writer, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, g, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Reload the model on SIGHUP without restarting the daemon.
	go watchReload(ctx, g, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}

func watchReload(ctx context.Context, g *gateway.Gateway, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := g.Reload(); err != nil {
				logger.Error("model reload failed, previous generation keeps serving", "error", err)
				continue
			}
			logger.Info("model reloaded")
		}
	}
}
