package anomaly

import (
	"fmt"
	"math"
	"time"

	"CloudCostIQ/internal/domain/models"
	domservice "CloudCostIQ/internal/domain/service"
	"CloudCostIQ/internal/services/features"
	"CloudCostIQ/internal/services/ml"
	"CloudCostIQ/pkg/logger"
)

var _ domservice.AnomalyDetector = (*Detector)(nil)

// Detection methods.
const (
	MethodEnsemble = "ensemble"
	MethodOutlier  = "outlier"
)

// Options are the detector hyperparameters.
type Options struct {
	SeqLength           int     `json:"seq_length"`
	Units               int     `json:"units"`
	Bottleneck          int     `json:"bottleneck"`
	Dropout             float64 `json:"dropout"`
	LR                  float64 `json:"lr"`
	Epochs              int     `json:"epochs"`
	ThresholdPercentile float64 `json:"threshold_percentile"`
	Contamination       float64 `json:"contamination"`
	Seed                int64   `json:"seed"`
}

// DefaultOptions mirror the production configuration.
func DefaultOptions() Options {
	return Options{
		SeqLength:           7,
		Units:               64,
		Bottleneck:          32,
		Dropout:             0.2,
		LR:                  0.001,
		Epochs:              50,
		ThresholdPercentile: 95,
		Contamination:       0.05,
		Seed:                42,
	}
}

func (o *Options) normalize() {
	d := DefaultOptions()
	if o.SeqLength <= 0 {
		o.SeqLength = d.SeqLength
	}
	if o.Units <= 0 {
		o.Units = d.Units
	}
	if o.Bottleneck <= 0 {
		o.Bottleneck = d.Bottleneck
	}
	if o.LR <= 0 {
		o.LR = d.LR
	}
	if o.Epochs <= 0 {
		o.Epochs = d.Epochs
	}
	if o.ThresholdPercentile <= 0 {
		o.ThresholdPercentile = d.ThresholdPercentile
	}
	if o.Contamination <= 0 {
		o.Contamination = d.Contamination
	}
}

// Detector flags anomalous daily costs with a reconstruction model and an
// isolation forest, combined as an ensemble. Immutable once trained.
type Detector struct {
	opts        Options
	log         *logger.Logger
	featureCols []string
	scaler      *ml.MinMaxScaler
	auto        *ml.Autoencoder
	forest      *ml.IsolationForest
	threshold   float64
	trainedAt   time.Time
	trained     bool
}

func New(log *logger.Logger, opts Options) *Detector {
	opts.normalize()
	return &Detector{opts: opts, log: log}
}

// Options returns the hyperparameters the detector was built with.
func (d *Detector) Options() Options { return d.opts }

// Trained reports whether Train or Load has completed.
func (d *Detector) Trained() bool { return d.trained }

// TrainedAt returns the training timestamp, zero if untrained.
func (d *Detector) TrainedAt() time.Time { return d.trainedAt }

// Threshold returns the fitted reconstruction error threshold.
func (d *Detector) Threshold() float64 { return d.threshold }

// Train fits both detector paths on normal history.
func (d *Detector) Train(obs []models.CostObservation) (*models.TrainingReport, error) {
	start := time.Now()
	tbl := features.AnomalyTable(obs)
	d.featureCols = tbl.Columns

	d.scaler = ml.NewMinMaxScaler()
	scaled, err := d.scaler.FitTransform(tbl.Rows)
	if err != nil {
		return nil, err
	}

	windows := ml.BuildWindows(scaled, d.opts.SeqLength)
	if len(windows) < ml.MinSequences {
		return nil, &ml.InsufficientDataError{Needed: ml.MinSequences + d.opts.SeqLength - 1, Got: len(obs)}
	}

	d.auto = ml.NewAutoencoder(ml.AutoencoderConfig{
		InputDim:   len(tbl.Columns),
		Units:      d.opts.Units,
		Bottleneck: d.opts.Bottleneck,
		SeqLen:     d.opts.SeqLength,
		Dropout:    d.opts.Dropout,
		LR:         d.opts.LR,
		Seed:       d.opts.Seed,
	})
	curve, err := d.auto.Train(windows, d.opts.Epochs)
	if err != nil {
		return nil, err
	}

	errs, err := d.auto.ReconstructionErrors(windows)
	if err != nil {
		return nil, err
	}
	d.threshold = ml.Percentile(errs, d.opts.ThresholdPercentile)

	d.forest = ml.NewIsolationForest(ml.ForestConfig{
		Contamination: d.opts.Contamination,
		Seed:          d.opts.Seed,
	})
	if err := d.forest.Fit(scaled); err != nil {
		return nil, err
	}

	d.trained = true
	d.trainedAt = time.Now().UTC()

	d.log.Info("anomaly detector trained",
		logger.Int("windows", len(windows)),
		logger.Float64("threshold", d.threshold),
		logger.Float64("final_loss", curve[len(curve)-1]))

	return &models.TrainingReport{
		ModelType:  "anomaly",
		Samples:    len(windows),
		FeatureDim: len(tbl.Columns),
		Epochs:     d.opts.Epochs,
		LossCurve:  curve,
		FinalLoss:  curve[len(curve)-1],
		Threshold:  d.threshold,
		TrainedAt:  d.trainedAt,
		Duration:   time.Since(start),
	}, nil
}

// Detect scores the observations and returns only the flagged ones. If one
// detector path fails the other still contributes; the error is logged, not
// propagated.
func (d *Detector) Detect(obs []models.CostObservation, method string) ([]models.CostAnomaly, error) {
	if !d.trained {
		return nil, &ml.NotTrainedError{Model: "anomaly detector"}
	}
	if method == "" {
		method = MethodEnsemble
	}

	tbl := features.AnomalyTable(obs)
	scaled, err := d.scaler.Transform(tbl.Rows)
	if err != nil {
		return nil, err
	}

	reconErr := make([]float64, len(obs))
	reconFlag := make([]bool, len(obs))
	reconOK := false
	if method == MethodEnsemble {
		if err := d.reconstructionPass(scaled, reconErr, reconFlag); err != nil {
			d.log.Warn("reconstruction path unavailable", logger.Error(err))
		} else {
			reconOK = true
		}
	}

	outScore := make([]float64, len(obs))
	outFlag := make([]bool, len(obs))
	outOK := false
	if err := d.outlierPass(scaled, outScore, outFlag); err != nil {
		d.log.Warn("outlier path unavailable", logger.Error(err))
	} else {
		outOK = true
	}

	if !reconOK && !outOK {
		return nil, fmt.Errorf("all detector paths failed")
	}

	zIdx := tbl.Column("zscore_7")
	chIdx := tbl.Column("cost_change")

	var out []models.CostAnomaly
	for i, o := range obs {
		flagged := reconFlag[i] || outFlag[i]
		if !flagged {
			continue
		}
		a := models.CostAnomaly{
			Date:                o.Date,
			DailyCost:           o.DailyCost,
			Service:             o.Service,
			CloudProvider:       o.CloudProvider,
			ReconstructionError: reconErr[i],
			OutlierScore:        outScore[i],
			ByReconstruction:    reconFlag[i],
			ByOutlier:           outFlag[i],
		}
		a.Explanation = explain(a, tbl.Rows[i], zIdx, chIdx)
		out = append(out, a)
	}
	return out, nil
}

// reconstructionPass scores sliding windows and attributes each flagged
// window to the observation right after it.
func (d *Detector) reconstructionPass(scaled [][]float64, errOut []float64, flagOut []bool) error {
	seq := d.opts.SeqLength
	if len(scaled) <= seq {
		return &ml.InsufficientHistoryError{Needed: seq + 1, Got: len(scaled)}
	}
	for i := 0; i+seq < len(scaled); i++ {
		e, err := d.auto.ReconstructionError(scaled[i : i+seq])
		if err != nil {
			return err
		}
		errOut[i+seq] = e
		if e > d.threshold {
			flagOut[i+seq] = true
		}
	}
	return nil
}

func (d *Detector) outlierPass(scaled [][]float64, scoreOut []float64, flagOut []bool) error {
	for i, row := range scaled {
		outlier, score, err := d.forest.IsOutlier(row)
		if err != nil {
			return err
		}
		scoreOut[i] = score
		flagOut[i] = outlier
	}
	return nil
}

func explain(a models.CostAnomaly, row []float64, zIdx, chIdx int) string {
	var parts []string
	if zIdx >= 0 {
		if z := row[zIdx]; math.Abs(z) > 3 {
			parts = append(parts, fmt.Sprintf("Cost is %.1f standard deviations from the 7-day average.", z))
		}
	}
	if chIdx >= 0 {
		if ch := row[chIdx]; math.Abs(ch) > 0.2 {
			dir := "increased"
			if ch < 0 {
				dir = "decreased"
			}
			parts = append(parts, fmt.Sprintf("Cost %s by %.1f%% from the previous day.", dir, math.Abs(ch)*100))
		}
	}
	if a.Service != "" {
		parts = append(parts, "Service: "+a.Service+".")
	}
	if a.CloudProvider != "" {
		parts = append(parts, "Provider: "+a.CloudProvider+".")
	}
	switch {
	case a.ByReconstruction && a.ByOutlier:
		parts = append(parts, "Detected by deep learning model and statistical model.")
	case a.ByReconstruction:
		parts = append(parts, "Detected by deep learning model.")
	default:
		parts = append(parts, "Detected by statistical model.")
	}
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += p
	}
	return out
}
