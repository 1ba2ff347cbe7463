package models

import "time"

// CostObservation is one day of spend for an organization, optionally tagged
// with the service and provider it came from. Extra carries additional numeric
// fields (credits, usage units) that survive the pipeline round-trip.
type CostObservation struct {
	Date          time.Time
	DailyCost     float64
	Service       string
	CloudProvider string
	Extra         map[string]float64
}

// Clone returns a deep copy safe to mutate independently.
func (o CostObservation) Clone() CostObservation {
	c := o
	if o.Extra != nil {
		c.Extra = make(map[string]float64, len(o.Extra))
		for k, v := range o.Extra {
			c.Extra[k] = v
		}
	}
	return c
}

// CostEntry is a raw billing record as it arrives from the ingestion topic,
// before daily aggregation.
type CostEntry struct {
	OrgID    string    `json:"org_id"`
	Provider string    `json:"provider"`
	Service  string    `json:"service"`
	Region   string    `json:"region"`
	Date     time.Time `json:"date"`
	Amount   float64   `json:"amount"`
	Currency string    `json:"currency"`
}

// CostForecast holds predicted daily costs with a confidence band.
type CostForecast struct {
	Values      []float64
	Dates       []time.Time
	Lower       []float64
	Upper       []float64
	Confidence  float64
	ModelType   string
	Recursive   bool
	GeneratedAt time.Time
}

// Scenario describes a what-if adjustment applied before forecasting.
// Adjustments multiply a feature column; Overrides pin it to a value.
type Scenario struct {
	Name        string
	Description string
	Adjustments map[string]float64
	Overrides   map[string]float64
}

// ScenarioForecast pairs a scenario with its recursive forecast.
type ScenarioForecast struct {
	Scenario Scenario
	Forecast *CostForecast
}

// TrainingReport summarizes one training run.
type TrainingReport struct {
	ModelType  string
	Samples    int
	FeatureDim int
	Epochs     int
	LossCurve  []float64
	FinalLoss  float64
	Threshold  float64
	TrainedAt  time.Time
	Duration   time.Duration
}

// EvaluationReport holds hold-out error metrics. DayMAE is keyed by
// horizon day (1-based), first week only.
type EvaluationReport struct {
	MAE    float64
	MSE    float64
	RMSE   float64
	MAPE   float64
	DayMAE map[int]float64
}

// CostAnomaly is a flagged observation with the scores that flagged it.
type CostAnomaly struct {
	Date                time.Time
	DailyCost           float64
	Service             string
	CloudProvider       string
	ReconstructionError float64
	OutlierScore        float64
	ByReconstruction    bool
	ByOutlier           bool
	Explanation         string
}

// CostTrend summarizes recent spend direction over a trailing window.
type CostTrend struct {
	Direction  string // "increasing", "decreasing", "stable"
	ChangePct  float64
	WindowDays int
}

// AnomalyImpact aggregates the cost attributed to flagged days.
type AnomalyImpact struct {
	Count     int
	TotalCost float64
}

// ForecastImpact compares projected spend against the current run rate.
type ForecastImpact struct {
	ProjectedTotal float64
	VsCurrentPct   float64
}

// CostAnalysis is the combined analysis view. Components that failed are
// absent, with the failure recorded under Errors keyed by component name.
type CostAnalysis struct {
	OrgID          string
	Timestamp      time.Time
	Anomalies      []CostAnomaly
	Forecast       *CostForecast
	Trend          *CostTrend
	AnomalyImpact  *AnomalyImpact
	ForecastImpact *ForecastImpact
	Errors         map[string]string
}
