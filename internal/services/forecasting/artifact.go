package forecasting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"CloudCostIQ/internal/services/ml"
	"CloudCostIQ/pkg/logger"
)

// ArtifactVersion changes when the on-disk layout does. Load rejects
// artifacts with a different version instead of guessing.
const ArtifactVersion = "1"

type artifact struct {
	Version        string                `json:"version"`
	ModelType      string                `json:"model_type"`
	Options        Options               `json:"options"`
	FeatureColumns []string              `json:"feature_columns"`
	Scaler         *ml.MinMaxScaler      `json:"scaler"`
	Point          *ml.RegressorState    `json:"point,omitempty"`
	Uncertainty    *ml.UncertaintyState  `json:"uncertainty,omitempty"`
	TrainedAt      time.Time             `json:"trained_at"`
}

// Save writes the trained model as a JSON artifact.
func (f *Forecaster) Save(path string) error {
	if !f.trained {
		return &ml.NotTrainedError{Model: "forecasting model"}
	}
	art := artifact{
		Version:        ArtifactVersion,
		ModelType:      f.modelType(),
		Options:        f.opts,
		FeatureColumns: f.featureCols,
		Scaler:         f.scaler,
		TrainedAt:      f.trainedAt,
	}
	if f.opts.Uncertainty {
		s := f.uncertain.State()
		art.Uncertainty = &s
	} else {
		s := f.point.State()
		art.Point = &s
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	b, err := json.Marshal(art)
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

// Load reads a JSON artifact into a ready-to-forecast instance. Errors are
// returned to the caller; a fresh untrained model is never substituted
// silently.
func Load(log *logger.Logger, path string) (*Forecaster, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	var art artifact
	if err := json.Unmarshal(b, &art); err != nil {
		return nil, fmt.Errorf("parse artifact: %w", err)
	}
	if art.Version != ArtifactVersion {
		return nil, fmt.Errorf("artifact version %q not supported", art.Version)
	}

	f := New(log, art.Options)
	f.featureCols = art.FeatureColumns
	f.scaler = art.Scaler
	f.trainedAt = art.TrainedAt
	switch {
	case art.Uncertainty != nil:
		f.uncertain = ml.UncertaintyFromState(*art.Uncertainty)
	case art.Point != nil:
		f.point = ml.RegressorFromState(*art.Point)
	default:
		return nil, fmt.Errorf("artifact has no model weights")
	}
	f.trained = true
	return f, nil
}
