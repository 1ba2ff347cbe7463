package anomaly

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"CloudCostIQ/internal/services/ml"
	"CloudCostIQ/pkg/logger"
)

// ArtifactVersion changes when the on-disk layout does.
const ArtifactVersion = "1"

type artifact struct {
	Version        string               `json:"version"`
	Options        Options              `json:"options"`
	FeatureColumns []string             `json:"feature_columns"`
	Scaler         *ml.MinMaxScaler     `json:"scaler"`
	Autoencoder    *ml.AutoencoderState `json:"autoencoder"`
	Forest         *ml.ForestState      `json:"forest"`
	Threshold      float64              `json:"threshold"`
	TrainedAt      time.Time            `json:"trained_at"`
}

// Save writes the trained detector as a JSON artifact.
func (d *Detector) Save(path string) error {
	if !d.trained {
		return &ml.NotTrainedError{Model: "anomaly detector"}
	}
	autoState := d.auto.State()
	forestState := d.forest.State()
	art := artifact{
		Version:        ArtifactVersion,
		Options:        d.opts,
		FeatureColumns: d.featureCols,
		Scaler:         d.scaler,
		Autoencoder:    &autoState,
		Forest:         &forestState,
		Threshold:      d.threshold,
		TrainedAt:      d.trainedAt,
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

// Load reads a JSON artifact into a ready-to-detect instance.
func Load(log *logger.Logger, path string) (*Detector, error) {
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
	if art.Autoencoder == nil || art.Forest == nil {
		return nil, fmt.Errorf("artifact has no model weights")
	}

	d := New(log, art.Options)
	d.featureCols = art.FeatureColumns
	d.scaler = art.Scaler
	d.auto = ml.AutoencoderFromState(*art.Autoencoder)
	d.forest = ml.ForestFromState(*art.Forest)
	d.threshold = art.Threshold
	d.trainedAt = art.TrainedAt
	d.trained = true
	return d, nil
}
