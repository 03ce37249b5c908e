package model

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/slopesense/rockfall-risk/internal/domain"
)

// TrainConfig tunes the gradient-descent fit. Zero values take the
// defaults below.
type TrainConfig struct {
	Epochs       int
	LearningRate float64
	L2           float64
	Seed         int64
	HoldoutFrac  float64
}

const (
	defaultEpochs       = 300
	defaultLearningRate = 0.1
	defaultL2           = 1e-3
	defaultSeed         = 42
	defaultHoldoutFrac  = 0.2
)

func (c TrainConfig) withDefaults() TrainConfig {
	if c.Epochs <= 0 {
		c.Epochs = defaultEpochs
	}
	if c.LearningRate <= 0 {
		c.LearningRate = defaultLearningRate
	}
	if c.L2 < 0 {
		c.L2 = defaultL2
	}
	if c.Seed == 0 {
		c.Seed = defaultSeed
	}
	if c.HoldoutFrac <= 0 || c.HoldoutFrac >= 1 {
		c.HoldoutFrac = defaultHoldoutFrac
	}
	return c
}

// Train fits a logistic regression on the labeled matrix. The fit is
// deterministic: a fixed-seed shuffle decides the holdout split and the
// per-epoch sample order, so the same dataset always yields the same
// artifact. Labels are 0 or 1.
func Train(x [][]float64, y []float64, cfg TrainConfig) (*Model, Metadata, error) {
	cfg = cfg.withDefaults()
	if len(x) == 0 {
		return nil, Metadata{}, fmt.Errorf("train: empty dataset")
	}
	if len(x) != len(y) {
		return nil, Metadata{}, fmt.Errorf("train: %d rows but %d labels", len(x), len(y))
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	order := rng.Perm(len(x))

	holdout := int(float64(len(x)) * cfg.HoldoutFrac)
	if holdout >= len(x) {
		holdout = len(x) - 1
	}
	valIdx, trainIdx := order[:holdout], order[holdout:]

	trainX := make([][]float64, 0, len(trainIdx))
	trainY := make([]float64, 0, len(trainIdx))
	for _, i := range trainIdx {
		trainX = append(trainX, x[i])
		trainY = append(trainY, y[i])
	}

	scaler, err := FitScaler(trainX)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("train: %w", err)
	}
	scaled := make([][]float64, len(trainX))
	for i, row := range trainX {
		if scaled[i], err = scaler.Transform(row); err != nil {
			return nil, Metadata{}, fmt.Errorf("train: row %d: %w", i, err)
		}
	}

	m := &Model{
		Weights: make([]float64, len(trainX[0])),
		Scaler:  scaler,
	}
	fit(m, scaled, trainY, cfg, rng)

	auc, err := validate(m, x, y, valIdx)
	if err != nil {
		return nil, Metadata{}, err
	}
	meta := Metadata{
		ModelType:     ModelType,
		TrainedAt:     domain.Clock().Now().UTC(),
		ValidationAUC: auc,
		FeatureCount:  m.FeatureCount(),
		TrainingRows:  len(trainX),
	}
	return m, meta, nil
}

// fit runs stochastic gradient descent with L2 regularization over the
// pre-scaled training matrix.
func fit(m *Model, scaled [][]float64, y []float64, cfg TrainConfig, rng *rand.Rand) {
	idx := make([]int, len(scaled))
	for i := range idx {
		idx[i] = i
	}
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		for _, i := range idx {
			z := m.Bias
			for f, w := range m.Weights {
				z += w * scaled[i][f]
			}
			grad := sigmoid(z) - y[i]
			for f := range m.Weights {
				m.Weights[f] -= cfg.LearningRate * (grad*scaled[i][f] + cfg.L2*m.Weights[f])
			}
			m.Bias -= cfg.LearningRate * grad
		}
	}
}

// validate scores the holdout rows and returns ROC AUC. A single-class
// holdout has no ranking to measure; it reports 0.5.
func validate(m *Model, x [][]float64, y []float64, valIdx []int) (float64, error) {
	if len(valIdx) == 0 {
		return 0.5, nil
	}
	scores := make([]float64, 0, len(valIdx))
	labels := make([]float64, 0, len(valIdx))
	for _, i := range valIdx {
		p, err := m.PredictProbability(x[i])
		if err != nil {
			return 0, fmt.Errorf("validate: row %d: %w", i, err)
		}
		scores = append(scores, p)
		labels = append(labels, y[i])
	}
	return rocAUC(scores, labels), nil
}

// rocAUC is the Mann-Whitney U formulation: the probability a random
// positive outranks a random negative, counting ties as half.
func rocAUC(scores, labels []float64) float64 {
	var pos, neg, wins float64
	for i, si := range scores {
		if labels[i] < 0.5 {
			continue
		}
		pos++
		for j, sj := range scores {
			if labels[j] >= 0.5 {
				continue
			}
			switch {
			case si > sj:
				wins++
			case si == sj:
				wins += 0.5
			}
		}
	}
	for _, l := range labels {
		if l < 0.5 {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0.5
	}
	auc := wins / (pos * neg)
	if math.IsNaN(auc) {
		return 0.5
	}
	return auc
}
