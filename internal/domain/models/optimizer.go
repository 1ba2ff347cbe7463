package models

// UtilizationStats describes observed usage of a single billable resource.
type UtilizationStats struct {
	ResourceID   string  `json:"resource_id"`
	ResourceType string  `json:"resource_type"`
	InstanceType string  `json:"instance_type"`
	Region       string  `json:"region"`
	CPUAvg       float64 `json:"cpu_avg"`
	CPUPeak      float64 `json:"cpu_peak"`
	MemAvg       float64 `json:"mem_avg"`
	MemPeak      float64 `json:"mem_peak"`
	HourlyCost   float64 `json:"hourly_cost"`
	HoursPerDay  float64 `json:"hours_per_day"`
}

// Workload classes assigned by the optimizer.
const (
	WorkloadIdle   = "idle"
	WorkloadSteady = "steady"
	WorkloadBursty = "bursty"
	WorkloadHot    = "hot"
)

// SizingRecommendation suggests a cheaper instance shape for a resource.
type SizingRecommendation struct {
	ResourceID      string  `json:"resource_id"`
	Workload        string  `json:"workload"`
	CurrentType     string  `json:"current_type"`
	RecommendedType string  `json:"recommended_type"`
	MonthlySavings  float64 `json:"monthly_savings"`
	Reason          string  `json:"reason"`
}

// ReservationAdvice compares reserved pricing against on-demand for a resource.
type ReservationAdvice struct {
	ResourceID      string  `json:"resource_id"`
	Recommend       bool    `json:"recommend"`
	BreakEvenMonths float64 `json:"break_even_months"`
	AnnualSavings   float64 `json:"annual_savings"`
}

// OptimizationReport is the full heuristic analysis output.
type OptimizationReport struct {
	Recommendations []SizingRecommendation `json:"recommendations"`
	Reservations    []ReservationAdvice    `json:"reservations"`
	MonthlySavings  float64                `json:"monthly_savings"`
}
