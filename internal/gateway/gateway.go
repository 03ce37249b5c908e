// Package gateway serves probability estimates from the cached trained
// model.
//
// The model and its feature contract are loaded once and cached for the
// process lifetime. Reads never lock each other out; only load and reload
// take the write lock, and a reload swaps the model/contract pair
// atomically so concurrent readers see either the old generation or the
// new one, never a mix.
package gateway

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/slopesense/rockfall-risk/internal/contract"
	"github.com/slopesense/rockfall-risk/internal/domain"
	"github.com/slopesense/rockfall-risk/internal/model"
	"github.com/slopesense/rockfall-risk/internal/observability"
)

// Sentinel conditions callers branch on.
var (
	// ErrModelUnavailable means no usable artifact triple is loaded.
	// Retrying is pointless until an explicit Reload succeeds.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrContractMismatch means the feature-name list and the model
	// disagree on shape. The artifacts are from different training runs;
	// this is a configuration error, not a data error.
	ErrContractMismatch = errors.New("feature contract mismatch")
)

// Risk classes over fixed, half-open probability bands.
const (
	ClassLow    = "LOW"
	ClassMedium = "MEDIUM"
	ClassHigh   = "HIGH"
)

// Band boundaries. A probability of exactly 1.0 is HIGH.
const (
	mediumBound = 0.33
	highBound   = 0.66
)

// Classify maps a probability onto LOW [0,0.33), MEDIUM [0.33,0.66) or
// HIGH [0.66,1.0].
func Classify(probability float64) string {
	switch {
	case probability >= highBound:
		return ClassHigh
	case probability >= mediumBound:
		return ClassMedium
	default:
		return ClassLow
	}
}

// generation is one immutable model/contract pair. Swapped whole on reload.
type generation struct {
	model    *model.Model
	contract *contract.Contract
	meta     model.Metadata
}

// Gateway is the process-wide scoring front end.
type Gateway struct {
	dir     string
	logger  *slog.Logger
	metrics *observability.Metrics

	mu  sync.RWMutex
	gen *generation
}

// New creates an unloaded gateway over the artifacts directory. Call Load
// before predicting, or let the first prediction fail distinctly.
func New(dir string, logger *slog.Logger, metrics *observability.Metrics) *Gateway {
	return &Gateway{dir: dir, logger: logger, metrics: metrics}
}

// Load reads the artifact triple on first call and caches it. Subsequent
// calls are no-ops while a generation is loaded; use Reload to replace it.
func (g *Gateway) Load() error {
	g.mu.RLock()
	loaded := g.gen != nil
	g.mu.RUnlock()
	if loaded {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gen != nil {
		return nil
	}
	gen, err := g.loadGeneration()
	if err != nil {
		return err
	}
	g.install(gen)
	return nil
}

// Reload replaces the cached generation with a freshly read triple. On
// failure the previous generation stays in place and keeps serving.
func (g *Gateway) Reload() error {
	gen, err := g.loadGeneration()
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.install(gen)
	g.mu.Unlock()
	if g.metrics != nil {
		g.metrics.ModelReloads.Inc()
	}
	return nil
}

func (g *Gateway) loadGeneration() (*generation, error) {
	m, c, meta, err := model.LoadArtifacts(g.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if c.Len() != m.FeatureCount() {
		return nil, fmt.Errorf("%w: contract names %d features, model expects %d",
			ErrContractMismatch, c.Len(), m.FeatureCount())
	}
	if meta.FeatureCount != 0 && meta.FeatureCount != m.FeatureCount() {
		return nil, fmt.Errorf("%w: metadata records %d features, model expects %d",
			ErrContractMismatch, meta.FeatureCount, m.FeatureCount())
	}
	return &generation{model: m, contract: c, meta: meta}, nil
}

// install stores the generation; callers hold the write lock.
func (g *Gateway) install(gen *generation) {
	g.gen = gen
	if g.metrics != nil {
		g.metrics.ModelLoaded.Set(1)
	}
	g.logger.Info("model generation installed",
		"model_type", gen.meta.ModelType,
		"trained_at", gen.meta.TrainedAt,
		"features", gen.contract.Len(),
		"validation_auc", gen.meta.ValidationAUC)
}

// current returns the active generation or ErrModelUnavailable.
func (g *Gateway) current() (*generation, error) {
	g.mu.RLock()
	gen := g.gen
	g.mu.RUnlock()
	if gen == nil {
		return nil, ErrModelUnavailable
	}
	return gen, nil
}

// Loaded reports whether a generation is installed. Used by readiness
// checks.
func (g *Gateway) Loaded() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.gen != nil
}

// Info describes the active generation for diagnostics.
func (g *Gateway) Info() (model.Metadata, error) {
	gen, err := g.current()
	if err != nil {
		return model.Metadata{}, err
	}
	return gen.meta, nil
}

// PredictOne reconciles one observation against the contract and scores it.
func (g *Gateway) PredictOne(obs domain.Observation) (domain.Prediction, error) {
	gen, err := g.current()
	if err != nil {
		return domain.Prediction{}, err
	}
	return gen.predict(obs)
}

// PredictMany scores observations in input order. Results are numerically
// identical to calling PredictOne per observation.
func (g *Gateway) PredictMany(observations []domain.Observation) ([]domain.Prediction, error) {
	gen, err := g.current()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Prediction, len(observations))
	for i, obs := range observations {
		if out[i], err = gen.predict(obs); err != nil {
			return nil, fmt.Errorf("observation %d: %w", i, err)
		}
	}
	return out, nil
}

func (gen *generation) predict(obs domain.Observation) (domain.Prediction, error) {
	vector := gen.contract.Reconcile(obs.Fields, obs.Timestamp)
	p, err := gen.model.PredictProbability(vector)
	if err != nil {
		return domain.Prediction{}, err
	}
	return domain.Prediction{
		Probability: p,
		RiskClass:   Classify(p),
		ObservedAt:  obs.Timestamp,
		ScoredAt:    domain.Clock().Now().UTC(),
	}, nil
}
