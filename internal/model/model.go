// Package model holds the trained risk classifier: a standard-scaled
// logistic regression, its deterministic trainer, and the serialized
// artifact triple (model, ordered feature names, metadata) it travels as.
//
// The model is read-only after load and safe for unsynchronized concurrent
// prediction.
package model

import (
	"fmt"
	"math"
	"time"
)

// ModelType names the only classifier this package produces.
const ModelType = "logistic_regression"

// Model is a binary logistic regression over standard-scaled features.
type Model struct {
	Weights []float64       `json:"weights"`
	Bias    float64         `json:"bias"`
	Scaler  *StandardScaler `json:"scaler"`
}

// Metadata describes the artifact generation a model belongs to. Feature
// count is duplicated here so a mismatched model/feature-list pair is
// detectable before the first prediction.
type Metadata struct {
	ModelType     string    `json:"model_type"`
	TrainedAt     time.Time `json:"trained_at"`
	ValidationAUC float64   `json:"validation_auc"`
	FeatureCount  int       `json:"feature_count"`
	TrainingRows  int       `json:"training_rows"`
}

// FeatureCount is the number of features the model was trained with.
func (m *Model) FeatureCount() int {
	return len(m.Weights)
}

// PredictProbability returns the positive-class probability for one feature
// vector, already reconciled to the model's contract.
func (m *Model) PredictProbability(vector []float64) (float64, error) {
	if len(vector) != len(m.Weights) {
		return 0, fmt.Errorf("predict: want %d features got %d", len(m.Weights), len(vector))
	}
	scaled, err := m.Scaler.Transform(vector)
	if err != nil {
		return 0, fmt.Errorf("predict: %w", err)
	}
	z := m.Bias
	for i, w := range m.Weights {
		z += w * scaled[i]
	}
	return sigmoid(z), nil
}

// PredictBatch scores vectors in input order. It is defined as element-wise
// single prediction; there is no batch-only approximation.
func (m *Model) PredictBatch(vectors [][]float64) ([]float64, error) {
	out := make([]float64, len(vectors))
	for i, v := range vectors {
		p, err := m.PredictProbability(v)
		if err != nil {
			return nil, fmt.Errorf("vector %d: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
