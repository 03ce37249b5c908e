// Package pipeline orchestrates the streaming scoring loop: extract raw
// observation batches, score each against the cached model, publish the
// predictions, then commit source offsets.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/slopesense/rockfall-risk/internal/domain"
	"github.com/slopesense/rockfall-risk/internal/gateway"
	"github.com/slopesense/rockfall-risk/internal/observability"
)

// BatchExtractor reads up to batchSize raw observation messages from the
// source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawMessage, error)
}

// Scorer converts one raw observation message into a prediction.
type Scorer interface {
	Score(ctx context.Context, raw domain.RawMessage) (domain.Prediction, error)
}

// BatchLoader publishes scored predictions to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, predictions []domain.Prediction) error
}

// Pipeline runs the extract-score-publish loop.
type Pipeline struct {
	extractor BatchExtractor
	scorer    Scorer
	loader    BatchLoader
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	batchSize int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, s Scorer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor: e,
		scorer:    s,
		loader:    l,
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// CheckReadiness returns nil once the pipeline has published at least one
// prediction, or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not scored any observations yet")
	}
	return nil
}

// Run executes the scoring loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("scoring pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	// Keeps retry storms short while avoiding tight loops during broker
	// outages or a missing model.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("scoring pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one extract-score-publish cycle. Returns false if the
// pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.ObservationsConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = 200 * time.Millisecond

	published, ok := p.scoreAndPublish(ctx, rawBatch, backoff, maxBackoff)
	if !ok {
		return false
	}

	if published > 0 {
		p.metrics.BatchScoringDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	return true
}

// scoreAndPublish scores each message in the batch, publishes the
// successes, and commits offsets. A malformed observation is skipped and
// committed; an unavailable model fails the whole batch uncommitted so the
// observations are retried after backoff. Returns the number of published
// predictions and false if the pipeline should stop.
func (p *Pipeline) scoreAndPublish(ctx context.Context, rawBatch []domain.RawMessage, backoff *time.Duration, maxBackoff time.Duration) (int, bool) {
	predictions := make([]domain.Prediction, 0, len(rawBatch))
	scored := make([]domain.RawMessage, 0, len(rawBatch))

	for _, raw := range rawBatch {
		prediction, err := p.scorer.Score(ctx, raw)
		if err != nil {
			if errors.Is(err, gateway.ErrModelUnavailable) {
				p.logger.Error("model unavailable, batch will be retried", "error", err)
				p.metrics.ScoreErrors.Inc()
				return 0, p.backoffOrStop(ctx, backoff, maxBackoff)
			}
			p.logger.Warn("scoring failed, skipping observation",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.ScoreErrors.Inc()
			p.commitOffset(ctx, raw)
			continue
		}
		p.metrics.PredictionsByClass.WithLabelValues(prediction.RiskClass).Inc()
		predictions = append(predictions, prediction)
		scored = append(scored, raw)
	}

	if len(predictions) == 0 {
		return 0, true
	}

	if err := p.loader.LoadBatch(ctx, predictions); err != nil {
		p.logger.Error("publish batch failed", "error", err, "batch_size", len(predictions))
		return 0, p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	p.metrics.PredictionsProduced.Add(float64(len(predictions)))

	for _, raw := range scored {
		p.commitOffset(ctx, raw)
	}

	return len(predictions), true
}

// backoffOrStop checks for context cancellation, sleeps with the current
// backoff, and advances the backoff. Returns false if the pipeline should
// stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawMessage) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
