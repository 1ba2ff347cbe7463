package models

import (
	"fmt"
	"time"
)

// Requests for the analytics HTTP endpoints. Defined in domain for consistency and reuse.

// CostPoint is the wire form of a CostObservation.
type CostPoint struct {
	Date          string             `json:"date" validate:"required"`
	DailyCost     float64            `json:"daily_cost"`
	Service       string             `json:"service"`
	CloudProvider string             `json:"cloud_provider"`
	Extra         map[string]float64 `json:"extra,omitempty"`
}

// ToObservation parses the wire form into the domain type.
func (p CostPoint) ToObservation() (CostObservation, error) {
	t, err := time.Parse("2006-01-02", p.Date)
	if err != nil {
		return CostObservation{}, fmt.Errorf("parse date %q: %w", p.Date, err)
	}
	return CostObservation{
		Date:          t,
		DailyCost:     p.DailyCost,
		Service:       p.Service,
		CloudProvider: p.CloudProvider,
		Extra:         p.Extra,
	}, nil
}

// ToObservations converts a slice of points, failing on the first bad date.
func ToObservations(points []CostPoint) ([]CostObservation, error) {
	obs := make([]CostObservation, 0, len(points))
	for i, p := range points {
		o, err := p.ToObservation()
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		obs = append(obs, o)
	}
	return obs, nil
}

type TrainForecasterRequest struct {
	OrgID  string      `json:"org_id" validate:"required"`
	Data   []CostPoint `json:"data" validate:"omitempty,dive"`
	Days   int         `json:"days" default:"365" validate:"gte=30,lte=1095"`
	Epochs int         `json:"epochs" default:"50" validate:"gte=1,lte=500"`
}

type ForecastRequest struct {
	OrgID      string      `json:"org_id" validate:"required"`
	Data       []CostPoint `json:"data" validate:"omitempty,dive"`
	Days       int         `json:"days" default:"365" validate:"gte=1,lte=1095"`
	Steps      int         `json:"steps" default:"30" validate:"gte=1,lte=365"`
	Confidence float64     `json:"confidence" default:"0.95" validate:"gt=0,lt=1"`
	Recursive  bool        `json:"recursive"`
}

type ScenarioSpec struct {
	Name        string             `json:"name" validate:"required"`
	Description string             `json:"description"`
	Adjustments map[string]float64 `json:"adjustments"`
	Overrides   map[string]float64 `json:"overrides"`
}

type ScenarioForecastRequest struct {
	OrgID     string         `json:"org_id" validate:"required"`
	Data      []CostPoint    `json:"data" validate:"omitempty,dive"`
	Days      int            `json:"days" default:"365" validate:"gte=1,lte=1095"`
	Steps     int            `json:"steps" default:"30" validate:"gte=1,lte=365"`
	Scenarios []ScenarioSpec `json:"scenarios" validate:"required,min=1,dive"`
}

type TrainDetectorRequest struct {
	OrgID  string      `json:"org_id" validate:"required"`
	Data   []CostPoint `json:"data" validate:"omitempty,dive"`
	Days   int         `json:"days" default:"180" validate:"gte=30,lte=1095"`
	Epochs int         `json:"epochs" default:"50" validate:"gte=1,lte=500"`
}

type DetectRequest struct {
	OrgID  string      `json:"org_id" validate:"required"`
	Data   []CostPoint `json:"data" validate:"omitempty,dive"`
	Days   int         `json:"days" default:"90" validate:"gte=1,lte=1095"`
	Method string      `json:"method" default:"ensemble" validate:"oneof=ensemble outlier"`
}

type OptimizeRequest struct {
	Resources []UtilizationStats `json:"resources" validate:"required,min=1"`
}

type CostAnalysisRequest struct {
	OrgID string `json:"org_id" validate:"required"`
	Days  int    `json:"days" default:"90" validate:"gte=7,lte=1095"`
	Steps int    `json:"steps" default:"30" validate:"gte=1,lte=365"`
}

type StatusRequest struct {
	OrgID string `query:"org_id" json:"org_id" validate:"required"`
}
