package usecase

import (
	"context"
	"fmt"
	"time"

	"CloudCostIQ/internal/domain/models"
	domrepo "CloudCostIQ/internal/domain/repository"
	"CloudCostIQ/internal/registry"
	"CloudCostIQ/internal/services/anomaly"
	"CloudCostIQ/internal/services/forecasting"
	"CloudCostIQ/internal/services/ml"
	"CloudCostIQ/pkg/config"
	"CloudCostIQ/pkg/logger"
	"CloudCostIQ/pkg/util"
)

// AlertSink receives anomalies found during detection, e.g. the websocket
// alert hub.
type AlertSink interface {
	NotifyAnomalies(orgID string, anomalies []models.CostAnomaly)
}

// CostAnalyzer orchestrates training, forecasting and detection per org. It
// resolves data either from the request body or from storage, and keeps the
// active models in the registry.
type CostAnalyzer struct {
	store    domrepo.Storage
	registry *registry.Registry
	metrics  domrepo.Metrics
	cfg      *config.Config
	log      *logger.Logger
	alerts   AlertSink
}

func NewCostAnalyzer(store domrepo.Storage, reg *registry.Registry, metrics domrepo.Metrics, cfg *config.Config, log *logger.Logger) *CostAnalyzer {
	return &CostAnalyzer{store: store, registry: reg, metrics: metrics, cfg: cfg, log: log}
}

// SetAlertSink wires the anomaly alert destination.
func (a *CostAnalyzer) SetAlertSink(s AlertSink) { a.alerts = s }

// Registry exposes the model registry for status reporting.
func (a *CostAnalyzer) Registry() *registry.Registry { return a.registry }

// resolveData prefers inline observations, falling back to storage.
func (a *CostAnalyzer) resolveData(ctx context.Context, orgID string, inline []models.CostObservation, days int) ([]models.CostObservation, error) {
	if len(inline) > 0 {
		return inline, nil
	}
	obs, err := a.store.LatestDailyCosts(ctx, orgID, days)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", orgID, err)
	}
	if len(obs) == 0 {
		return nil, &ml.InsufficientHistoryError{Needed: 1, Got: 0}
	}
	return obs, nil
}

func (a *CostAnalyzer) forecastOptions(epochs int) forecasting.Options {
	opts := forecasting.DefaultOptions()
	mlCfg := a.cfg.ML
	opts.SeqLength = mlCfg.SeqLength
	opts.Horizon = mlCfg.ForecastHorizon
	opts.Units = mlCfg.RecurrentUnits
	opts.DenseUnits = mlCfg.DenseUnits
	if epochs > 0 {
		opts.Epochs = epochs
	} else {
		opts.Epochs = mlCfg.Epochs
	}
	return opts
}

func (a *CostAnalyzer) detectorOptions(epochs int) anomaly.Options {
	opts := anomaly.DefaultOptions()
	mlCfg := a.cfg.ML
	opts.SeqLength = mlCfg.AnomalySeqLength
	opts.Units = mlCfg.RecurrentUnits
	opts.Bottleneck = mlCfg.DenseUnits
	opts.ThresholdPercentile = mlCfg.ThresholdPercentile
	opts.Contamination = mlCfg.Contamination
	if epochs > 0 {
		opts.Epochs = epochs
	} else {
		opts.Epochs = mlCfg.Epochs
	}
	return opts
}

// TrainForecaster trains a fresh forecasting model and makes it active.
func (a *CostAnalyzer) TrainForecaster(ctx context.Context, orgID string, inline []models.CostObservation, days, epochs int) (*models.TrainingReport, error) {
	obs, err := a.resolveData(ctx, orgID, inline, days)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	f := forecasting.New(a.log, a.forecastOptions(epochs))
	report, err := f.Train(obs)
	if err != nil {
		a.metrics.RecordError("forecast_train")
		return nil, err
	}
	if _, err := a.registry.RegisterForecaster(orgID, f); err != nil {
		return nil, err
	}
	a.metrics.RecordLatency("forecast_train_seconds", time.Since(start).Seconds())
	return report, nil
}

// TrainDetector trains a fresh anomaly detector and makes it active.
func (a *CostAnalyzer) TrainDetector(ctx context.Context, orgID string, inline []models.CostObservation, days, epochs int) (*models.TrainingReport, error) {
	obs, err := a.resolveData(ctx, orgID, inline, days)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	d := anomaly.New(a.log, a.detectorOptions(epochs))
	report, err := d.Train(obs)
	if err != nil {
		a.metrics.RecordError("anomaly_train")
		return nil, err
	}
	if _, err := a.registry.RegisterDetector(orgID, d); err != nil {
		return nil, err
	}
	a.metrics.RecordLatency("anomaly_train_seconds", time.Since(start).Seconds())
	return report, nil
}

// Forecast predicts future costs with the org's active model.
func (a *CostAnalyzer) Forecast(ctx context.Context, orgID string, inline []models.CostObservation, days, steps int, confidence float64, recursive bool) (*models.CostForecast, error) {
	f, ok := a.registry.Forecaster(orgID)
	if !ok {
		return nil, &ml.NotTrainedError{Model: "forecasting model"}
	}
	obs, err := a.resolveData(ctx, orgID, inline, days)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	var fc *models.CostForecast
	if recursive {
		fc, err = f.RecursiveForecast(obs, steps)
	} else {
		fc, err = f.Forecast(obs, steps, confidence)
	}
	if err != nil {
		a.metrics.RecordError("forecast")
		return nil, err
	}
	a.metrics.RecordLatency("forecast_seconds", time.Since(start).Seconds())
	return fc, nil
}

// ScenarioForecasts runs the baseline plus what-if scenarios.
func (a *CostAnalyzer) ScenarioForecasts(ctx context.Context, orgID string, inline []models.CostObservation, days, steps int, scenarios []models.Scenario) ([]models.ScenarioForecast, error) {
	f, ok := a.registry.Forecaster(orgID)
	if !ok {
		return nil, &ml.NotTrainedError{Model: "forecasting model"}
	}
	obs, err := a.resolveData(ctx, orgID, inline, days)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	out, err := f.ScenarioForecast(obs, scenarios, steps)
	if err != nil {
		a.metrics.RecordError("scenario_forecast")
		return nil, err
	}
	a.metrics.RecordLatency("scenario_forecast_seconds", time.Since(start).Seconds())
	return out, nil
}

// DetectAnomalies flags anomalous days with the org's active detector and
// pushes alerts to the sink.
func (a *CostAnalyzer) DetectAnomalies(ctx context.Context, orgID string, inline []models.CostObservation, days int, method string) ([]models.CostAnomaly, error) {
	d, ok := a.registry.Detector(orgID)
	if !ok {
		return nil, &ml.NotTrainedError{Model: "anomaly detector"}
	}
	obs, err := a.resolveData(ctx, orgID, inline, days)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	anomalies, err := d.Detect(obs, method)
	if err != nil {
		a.metrics.RecordError("anomaly_detect")
		return nil, err
	}
	a.metrics.RecordLatency("anomaly_detect_seconds", time.Since(start).Seconds())
	if len(obs) > 0 {
		a.metrics.RecordLastDailyCost(orgID, obs[len(obs)-1].DailyCost)
	}
	if a.alerts != nil && len(anomalies) > 0 {
		a.alerts.NotifyAnomalies(orgID, anomalies)
	}
	return anomalies, nil
}

// Status summarizes the registered models for an org.
func (a *CostAnalyzer) Status(orgID string) map[string]interface{} {
	out := map[string]interface{}{
		"org_id":           orgID,
		"forecast_trained": false,
		"anomaly_trained":  false,
	}
	if f, ok := a.registry.Forecaster(orgID); ok {
		out["forecast_trained"] = true
		out["forecast_trained_at"] = f.TrainedAt()
	}
	if d, ok := a.registry.Detector(orgID); ok {
		out["anomaly_trained"] = true
		out["anomaly_trained_at"] = d.TrainedAt()
		out["anomaly_threshold"] = d.Threshold()
	}
	out["versions"] = a.registry.Entries(orgID)
	return out
}

// CombinedAnalysis runs anomalies, forecast, trend and impact summaries in
// one pass. A failing component records its error and the rest proceed.
func (a *CostAnalyzer) CombinedAnalysis(ctx context.Context, orgID string, days, steps int) (*models.CostAnalysis, error) {
	// Combined analysis reads a calendar window, not the trailing N days with
	// data, so gaps show up in the trend rather than being skipped.
	from, to := util.DayWindow(days, time.Now())
	obs, err := a.store.DailyCosts(ctx, orgID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", orgID, err)
	}
	if len(obs) == 0 {
		return nil, &ml.InsufficientHistoryError{Needed: 1, Got: 0}
	}

	res := &models.CostAnalysis{
		OrgID:     orgID,
		Timestamp: time.Now().UTC(),
		Errors:    map[string]string{},
	}

	res.Trend = costTrend(obs)

	if anomalies, err := a.DetectAnomalies(ctx, orgID, obs, days, anomaly.MethodEnsemble); err != nil {
		res.Errors["anomalies"] = err.Error()
	} else {
		res.Anomalies = anomalies
		impact := models.AnomalyImpact{Count: len(anomalies)}
		for _, an := range anomalies {
			impact.TotalCost += an.DailyCost
		}
		res.AnomalyImpact = &impact
	}

	if fc, err := a.Forecast(ctx, orgID, obs, days, steps, 0.95, false); err != nil {
		res.Errors["forecast"] = err.Error()
	} else {
		res.Forecast = fc
		res.ForecastImpact = forecastImpact(obs, fc)
	}

	return res, nil
}

// costTrend compares the last week against the week a month before it.
func costTrend(obs []models.CostObservation) *models.CostTrend {
	window := 30
	if len(obs) < window {
		window = len(obs)
	}
	if window < 2 {
		return &models.CostTrend{Direction: "stable", WindowDays: window}
	}
	recent := obs[len(obs)-window:]
	head := avgCost(recent[:intMin(7, window/2)])
	tail := avgCost(recent[window-intMin(7, window/2):])

	t := &models.CostTrend{WindowDays: window}
	if head != 0 {
		t.ChangePct = (tail - head) / head * 100
	}
	switch {
	case t.ChangePct > 5:
		t.Direction = "increasing"
	case t.ChangePct < -5:
		t.Direction = "decreasing"
	default:
		t.Direction = "stable"
	}
	return t
}

func forecastImpact(obs []models.CostObservation, fc *models.CostForecast) *models.ForecastImpact {
	if len(fc.Values) == 0 {
		return nil
	}
	total := 0.0
	for _, v := range fc.Values {
		total += v
	}
	impact := &models.ForecastImpact{ProjectedTotal: total}

	n := intMin(30, len(obs))
	current := avgCost(obs[len(obs)-n:])
	if current != 0 {
		projectedAvg := total / float64(len(fc.Values))
		impact.VsCurrentPct = (projectedAvg - current) / current * 100
	}
	return impact
}

func avgCost(obs []models.CostObservation) float64 {
	if len(obs) == 0 {
		return 0
	}
	sum := 0.0
	for _, o := range obs {
		sum += o.DailyCost
	}
	return sum / float64(len(obs))
}

func intMin(a, b int) int {
	if a < b {
		return a
	}
	return b
}
