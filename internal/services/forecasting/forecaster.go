package forecasting

import (
	"fmt"
	"math"
	"sort"
	"time"

	"CloudCostIQ/internal/domain/models"
	domservice "CloudCostIQ/internal/domain/service"
	"CloudCostIQ/internal/services/features"
	"CloudCostIQ/internal/services/ml"
	"CloudCostIQ/pkg/logger"
)

var _ domservice.CostForecaster = (*Forecaster)(nil)

// Options are the forecaster hyperparameters.
type Options struct {
	SeqLength    int     `json:"seq_length"`
	Horizon      int     `json:"horizon"`
	Units        int     `json:"units"`
	DenseUnits   int     `json:"dense_units"`
	Dropout      float64 `json:"dropout"`
	LR           float64 `json:"lr"`
	Epochs       int     `json:"epochs"`
	Uncertainty  bool    `json:"uncertainty"`
	TargetColumn string  `json:"target_column"`
	Seed         int64   `json:"seed"`
}

// DefaultOptions mirror the production configuration.
func DefaultOptions() Options {
	return Options{
		SeqLength:    30,
		Horizon:      30,
		Units:        64,
		DenseUnits:   32,
		Dropout:      0.2,
		LR:           0.001,
		Epochs:       50,
		Uncertainty:  true,
		TargetColumn: features.TargetColumn,
		Seed:         42,
	}
}

func (o *Options) normalize() {
	d := DefaultOptions()
	if o.SeqLength <= 0 {
		o.SeqLength = d.SeqLength
	}
	if o.Horizon <= 0 {
		o.Horizon = d.Horizon
	}
	if o.Units <= 0 {
		o.Units = d.Units
	}
	if o.DenseUnits <= 0 {
		o.DenseUnits = d.DenseUnits
	}
	if o.LR <= 0 {
		o.LR = d.LR
	}
	if o.Epochs <= 0 {
		o.Epochs = d.Epochs
	}
	if o.TargetColumn == "" {
		o.TargetColumn = d.TargetColumn
	}
}

// Forecaster trains a recurrent model over daily cost history and produces
// horizon forecasts with confidence bands. Instances are immutable after
// Train; retraining builds a new instance.
type Forecaster struct {
	opts        Options
	log         *logger.Logger
	featureCols []string
	scaler      *ml.MinMaxScaler
	point       *ml.Regressor
	uncertain   *ml.UncertaintyRegressor
	trainedAt   time.Time
	trained     bool
}

func New(log *logger.Logger, opts Options) *Forecaster {
	opts.normalize()
	return &Forecaster{opts: opts, log: log}
}

// Options returns the hyperparameters the forecaster was built with.
func (f *Forecaster) Options() Options { return f.opts }

// Trained reports whether Train or Load has completed.
func (f *Forecaster) Trained() bool { return f.trained }

// TrainedAt returns the training timestamp, zero if untrained.
func (f *Forecaster) TrainedAt() time.Time { return f.trainedAt }

// stack builds the model matrix with the target in column 0 followed by the
// named feature columns. Feature columns absent from the table are zero.
func stack(target []float64, tbl *features.Table, cols []string) [][]float64 {
	idx := make([]int, len(cols))
	for i, c := range cols {
		idx[i] = tbl.Column(c)
	}
	rows := make([][]float64, len(target))
	for r := range target {
		row := make([]float64, 1+len(cols))
		row[0] = target[r]
		for i, j := range idx {
			if j >= 0 {
				row[1+i] = tbl.Rows[r][j]
			}
		}
		rows[r] = row
	}
	return rows
}

// Train fits the model on the full history and returns a training report.
func (f *Forecaster) Train(obs []models.CostObservation) (*models.TrainingReport, error) {
	start := time.Now()
	target, err := features.Target(obs, f.opts.TargetColumn)
	if err != nil {
		return nil, err
	}
	tbl := features.ForecastTable(obs)
	f.featureCols = tbl.Columns

	f.scaler = ml.NewMinMaxScaler()
	scaled, err := f.scaler.FitTransform(stack(target, tbl, f.featureCols))
	if err != nil {
		return nil, err
	}

	x, y := ml.BuildSequences(scaled, f.opts.SeqLength, f.opts.Horizon)
	if len(x) < ml.MinSequences {
		return nil, &ml.InsufficientDataError{Needed: ml.MinSequences, Got: len(x)}
	}

	cfg := ml.RegressorConfig{
		InputDim:   1 + len(f.featureCols),
		Units:      f.opts.Units,
		DenseUnits: f.opts.DenseUnits,
		Horizon:    f.opts.Horizon,
		Dropout:    f.opts.Dropout,
		LR:         f.opts.LR,
		Seed:       f.opts.Seed,
	}

	var curve []float64
	if f.opts.Uncertainty {
		f.uncertain = ml.NewUncertaintyRegressor(cfg)
		curve, err = f.uncertain.Train(x, y, f.opts.Epochs)
	} else {
		f.point = ml.NewRegressor(cfg)
		curve, err = f.point.Train(x, y, f.opts.Epochs)
	}
	if err != nil {
		return nil, err
	}

	f.trained = true
	f.trainedAt = time.Now().UTC()

	f.log.Info("forecaster trained",
		logger.Int("samples", len(x)),
		logger.Int("feature_dim", cfg.InputDim),
		logger.Float64("final_loss", curve[len(curve)-1]))

	return &models.TrainingReport{
		ModelType:  f.modelType(),
		Samples:    len(x),
		FeatureDim: cfg.InputDim,
		Epochs:     f.opts.Epochs,
		LossCurve:  curve,
		FinalLoss:  curve[len(curve)-1],
		TrainedAt:  f.trainedAt,
		Duration:   time.Since(start),
	}, nil
}

func (f *Forecaster) modelType() string {
	if f.opts.Uncertainty {
		return "uncertainty"
	}
	return "point"
}

// window builds the scaled inference window from the tail of obs. The target
// column falls back to zeros when absent, so forecasting data without the
// training-time target still works.
func (f *Forecaster) window(obs []models.CostObservation) ([][]float64, error) {
	if len(obs) < f.opts.SeqLength {
		return nil, &ml.InsufficientHistoryError{Needed: f.opts.SeqLength, Got: len(obs)}
	}
	target, err := features.Target(obs, f.opts.TargetColumn)
	if err != nil {
		target = make([]float64, len(obs))
	}
	tbl := features.ForecastTable(obs)
	scaled, err := f.scaler.Transform(stack(target, tbl, f.featureCols))
	if err != nil {
		return nil, err
	}
	return scaled[len(scaled)-f.opts.SeqLength:], nil
}

// Forecast predicts up to min(steps, horizon) future daily costs.
func (f *Forecaster) Forecast(obs []models.CostObservation, steps int, confidence float64) (*models.CostForecast, error) {
	if !f.trained {
		return nil, &ml.NotTrainedError{Model: "forecasting model"}
	}
	if confidence <= 0 || confidence >= 1 {
		confidence = 0.95
	}
	window, err := f.window(obs)
	if err != nil {
		return nil, err
	}

	h := f.opts.Horizon
	if steps > 0 && steps < h {
		h = steps
	}

	var scaledMean, scaledVar []float64
	if f.opts.Uncertainty {
		scaledMean, scaledVar, err = f.uncertain.Predict(window)
	} else {
		scaledMean, err = f.point.Predict(window)
	}
	if err != nil {
		return nil, err
	}
	scaledMean = scaledMean[:h]

	values, err := f.scaler.InverseColumn(0, scaledMean)
	if err != nil {
		return nil, err
	}

	z := ml.ZScore(confidence)
	lower := make([]float64, h)
	upper := make([]float64, h)
	if f.opts.Uncertainty {
		span := f.scaler.Max[0] - f.scaler.Min[0]
		for i := 0; i < h; i++ {
			sigma := math.Sqrt(scaledVar[i]) * span
			lower[i] = values[i] - z*sigma
			upper[i] = values[i] + z*sigma
		}
	} else {
		// heuristic band: 10% of forecast magnitude per step
		for i, v := range values {
			margin := z * 0.1 * math.Abs(v)
			lower[i] = v - margin
			upper[i] = v + margin
		}
	}

	last := obs[len(obs)-1].Date
	dates := make([]time.Time, h)
	for i := range dates {
		dates[i] = last.AddDate(0, 0, i+1)
	}

	return &models.CostForecast{
		Values:      values,
		Dates:       dates,
		Lower:       lower,
		Upper:       upper,
		Confidence:  confidence,
		ModelType:   f.modelType(),
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// RecursiveForecast rolls the model forward past its horizon by feeding
// forecasts back as synthetic observations. Synthetic rows carry the last
// real row's service, provider and extra fields.
func (f *Forecaster) RecursiveForecast(obs []models.CostObservation, steps int) (*models.CostForecast, error) {
	if !f.trained {
		return nil, &ml.NotTrainedError{Model: "forecasting model"}
	}
	if steps <= 0 {
		steps = f.opts.Horizon
	}
	if len(obs) < f.opts.SeqLength {
		return nil, &ml.InsufficientHistoryError{Needed: f.opts.SeqLength, Got: len(obs)}
	}

	history := make([]models.CostObservation, len(obs))
	copy(history, obs)
	template := obs[len(obs)-1].Clone()

	out := &models.CostForecast{
		ModelType:   f.modelType(),
		Recursive:   true,
		Confidence:  0.95,
		GeneratedAt: time.Now().UTC(),
	}

	for len(out.Values) < steps {
		chunk, err := f.Forecast(history, steps-len(out.Values), 0.95)
		if err != nil {
			return nil, err
		}
		for i := range chunk.Values {
			if len(out.Values) == steps {
				break
			}
			out.Values = append(out.Values, chunk.Values[i])
			out.Dates = append(out.Dates, chunk.Dates[i])
			out.Lower = append(out.Lower, chunk.Lower[i])
			out.Upper = append(out.Upper, chunk.Upper[i])

			synth := template.Clone()
			synth.Date = chunk.Dates[i]
			synth.DailyCost = chunk.Values[i]
			history = append(history, synth)
		}
	}
	return out, nil
}

// ScenarioForecast produces a baseline plus one recursive forecast per
// what-if scenario. Scenario adjustments are applied to copies; the caller's
// observations are never mutated.
func (f *Forecaster) ScenarioForecast(obs []models.CostObservation, scenarios []models.Scenario, steps int) ([]models.ScenarioForecast, error) {
	base, err := f.RecursiveForecast(obs, steps)
	if err != nil {
		return nil, err
	}
	out := make([]models.ScenarioForecast, 0, len(scenarios)+1)
	out = append(out, models.ScenarioForecast{
		Scenario: models.Scenario{Name: "Base Forecast", Description: "Forecast without adjustments"},
		Forecast: base,
	})

	for _, sc := range scenarios {
		adjusted := applyScenario(obs, sc)
		fc, err := f.RecursiveForecast(adjusted, steps)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
		}
		out = append(out, models.ScenarioForecast{Scenario: sc, Forecast: fc})
	}
	return out, nil
}

func applyScenario(obs []models.CostObservation, sc models.Scenario) []models.CostObservation {
	out := make([]models.CostObservation, len(obs))
	for i, o := range obs {
		c := o.Clone()
		for col, factor := range sc.Adjustments {
			scaleColumn(&c, col, factor)
		}
		for col, value := range sc.Overrides {
			setColumn(&c, col, value)
		}
		out[i] = c
	}
	return out
}

// scaleColumn multiplies an existing column; columns the row does not carry
// are left alone.
func scaleColumn(o *models.CostObservation, col string, factor float64) {
	if col == features.TargetColumn {
		o.DailyCost *= factor
		return
	}
	if v, ok := o.Extra[col]; ok {
		o.Extra[col] = v * factor
	}
}

// setColumn fixes a column to a value on every row, creating it when absent.
func setColumn(o *models.CostObservation, col string, value float64) {
	if col == features.TargetColumn {
		o.DailyCost = value
		return
	}
	if o.Extra == nil {
		o.Extra = make(map[string]float64, 1)
	}
	o.Extra[col] = value
}

// Evaluate scores the model on hold-out observations.
func (f *Forecaster) Evaluate(obs []models.CostObservation) (*models.EvaluationReport, error) {
	if !f.trained {
		return nil, &ml.NotTrainedError{Model: "forecasting model"}
	}
	target, err := features.Target(obs, f.opts.TargetColumn)
	if err != nil {
		return nil, err
	}
	tbl := features.ForecastTable(obs)
	scaled, err := f.scaler.Transform(stack(target, tbl, f.featureCols))
	if err != nil {
		return nil, err
	}
	x, y := ml.BuildSequences(scaled, f.opts.SeqLength, f.opts.Horizon)
	if len(x) == 0 {
		return nil, &ml.InsufficientDataError{Needed: f.opts.SeqLength + f.opts.Horizon, Got: len(obs)}
	}

	span := f.scaler.Max[0] - f.scaler.Min[0]
	var absSum, sqSum, pctSum float64
	var pctCount int
	dayAbs := map[int]float64{}
	dayCount := map[int]int{}
	total := 0

	for i := range x {
		var pred []float64
		if f.opts.Uncertainty {
			pred, _, err = f.uncertain.Predict(x[i])
		} else {
			pred, err = f.point.Predict(x[i])
		}
		if err != nil {
			return nil, err
		}
		for k := range y[i] {
			diff := (pred[k] - y[i][k]) * span
			abs := math.Abs(diff)
			absSum += abs
			sqSum += diff * diff
			actual := y[i][k]*span + f.scaler.Min[0]
			if actual != 0 {
				pctSum += abs / math.Abs(actual)
				pctCount++
			}
			if k < 7 {
				dayAbs[k+1] += abs
				dayCount[k+1]++
			}
			total++
		}
	}

	rep := &models.EvaluationReport{
		MAE:    absSum / float64(total),
		MSE:    sqSum / float64(total),
		DayMAE: map[int]float64{},
	}
	rep.RMSE = math.Sqrt(rep.MSE)
	if pctCount > 0 {
		rep.MAPE = pctSum / float64(pctCount) * 100
	}
	days := make([]int, 0, len(dayAbs))
	for d := range dayAbs {
		days = append(days, d)
	}
	sort.Ints(days)
	for _, d := range days {
		rep.DayMAE[d] = dayAbs[d] / float64(dayCount[d])
	}
	return rep, nil
}
