package service

import (
	"CloudCostIQ/internal/domain/models"
)

// CostForecaster produces daily cost forecasts from history.
type CostForecaster interface {
	Train(obs []models.CostObservation) (*models.TrainingReport, error)
	Forecast(obs []models.CostObservation, steps int, confidence float64) (*models.CostForecast, error)
	RecursiveForecast(obs []models.CostObservation, steps int) (*models.CostForecast, error)
	ScenarioForecast(obs []models.CostObservation, scenarios []models.Scenario, steps int) ([]models.ScenarioForecast, error)
	Evaluate(obs []models.CostObservation) (*models.EvaluationReport, error)
}

// AnomalyDetector flags anomalous daily costs.
type AnomalyDetector interface {
	Train(obs []models.CostObservation) (*models.TrainingReport, error)
	Detect(obs []models.CostObservation, method string) ([]models.CostAnomaly, error)
}

// ResourceOptimizer produces heuristic savings recommendations.
type ResourceOptimizer interface {
	Analyze(resources []models.UtilizationStats) *models.OptimizationReport
}
