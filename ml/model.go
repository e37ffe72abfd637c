package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// Classifier scores a single feature record as a fraud probability in [0, 1].
type Classifier interface {
	ScoreProbability(features map[string]float64) (float64, error)
	FeatureNames() []string
}

// Artifact is the on-disk model envelope.
type Artifact struct {
	ModelType string          `json:"model_type"`
	TrainedAt time.Time       `json:"trained_at"`
	AUC       float64         `json:"auc,omitempty"`
	Model     json.RawMessage `json:"model"`
}

// SaveModel writes a classifier artifact to path.
func SaveModel(model *LogisticRegression, auc float64, path string) error {
	if model == nil || len(model.Weights) == 0 {
		return errors.New("model not trained")
	}
	raw, err := json.Marshal(model)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(Artifact{
		ModelType: "logistic_regression",
		TrainedAt: time.Now().UTC(),
		AUC:       auc,
		Model:     raw,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// LoadModel reads a classifier artifact from path.
func LoadModel(path string) (Classifier, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return UnmarshalModel(payload)
}

// UnmarshalModel decodes a classifier from raw artifact bytes.
func UnmarshalModel(payload []byte) (Classifier, error) {
	var artifact Artifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	switch artifact.ModelType {
	case "logistic_regression":
		var model LogisticRegression
		if err := json.Unmarshal(artifact.Model, &model); err != nil {
			return nil, fmt.Errorf("decode model: %w", err)
		}
		if len(model.Weights) == 0 || len(model.Weights) != len(model.Features) {
			return nil, errors.New("malformed model artifact")
		}
		return &model, nil
	default:
		return nil, fmt.Errorf("unsupported model type %q", artifact.ModelType)
	}
}
