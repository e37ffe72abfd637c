package ml

import (
	"errors"
	"fmt"
	"math"
)

// LogisticRegression is a binary classifier over a fixed feature schema.
// Inputs are standardized by the embedded scaler before scoring.
type LogisticRegression struct {
	Features []string        `json:"features"`
	Weights  []float64       `json:"weights"`
	Bias     float64         `json:"bias"`
	Scaler   *StandardScaler `json:"scaler,omitempty"`
}

// TrainConfig controls gradient-descent fitting.
type TrainConfig struct {
	Epochs       int
	LearningRate float64
	L2           float64
}

// DefaultTrainConfig mirrors the settings used by the training pipeline.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{Epochs: 200, LearningRate: 0.1, L2: 1e-4}
}

// Train fits weights on already feature-ordered rows. Labels must be 0 or 1.
func (m *LogisticRegression) Train(features []string, x [][]float64, y []int, cfg TrainConfig) error {
	if len(x) == 0 || len(y) == 0 {
		return errors.New("features or labels empty")
	}
	if len(x) != len(y) {
		return errors.New("features and labels size mismatch")
	}
	if len(features) == 0 || len(features) != len(x[0]) {
		return errors.New("feature names and row width mismatch")
	}
	if cfg.Epochs <= 0 {
		cfg = DefaultTrainConfig()
	}

	scaler := &StandardScaler{}
	if err := scaler.Fit(x); err != nil {
		return err
	}
	scaled := make([][]float64, len(x))
	for i, row := range x {
		s, err := scaler.Transform(row)
		if err != nil {
			return err
		}
		scaled[i] = s
	}

	dim := len(features)
	weights := make([]float64, dim)
	bias := 0.0
	n := float64(len(scaled))

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		gradW := make([]float64, dim)
		gradB := 0.0
		for i, row := range scaled {
			p := sigmoid(dot(weights, row) + bias)
			diff := p - float64(y[i])
			for j, v := range row {
				gradW[j] += diff * v
			}
			gradB += diff
		}
		for j := range weights {
			weights[j] -= cfg.LearningRate * (gradW[j]/n + cfg.L2*weights[j])
		}
		bias -= cfg.LearningRate * gradB / n
	}

	m.Features = append([]string(nil), features...)
	m.Weights = weights
	m.Bias = bias
	m.Scaler = scaler
	return nil
}

// ScoreProbability scores one record. Every schema feature must be present;
// unknown extra keys are ignored.
func (m *LogisticRegression) ScoreProbability(features map[string]float64) (float64, error) {
	if len(m.Weights) == 0 {
		return 0, errors.New("model not trained")
	}
	row := make([]float64, len(m.Features))
	for i, name := range m.Features {
		value, ok := features[name]
		if !ok {
			return 0, fmt.Errorf("missing feature %q", name)
		}
		row[i] = value
	}
	if m.Scaler != nil {
		scaled, err := m.Scaler.Transform(row)
		if err != nil {
			return 0, err
		}
		row = scaled
	}
	return sigmoid(dot(m.Weights, row) + m.Bias), nil
}

// FeatureNames returns the schema the model was trained on.
func (m *LogisticRegression) FeatureNames() []string {
	return append([]string(nil), m.Features...)
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
