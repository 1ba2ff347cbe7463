package optimizer

import (
	"fmt"
	"sort"

	"CloudCostIQ/internal/domain/models"
	"CloudCostIQ/pkg/logger"
)

// catalogEntry is one instance shape in the static pricing catalog, ordered
// by capacity within a family.
type catalogEntry struct {
	Name       string
	HourlyCost float64
}

// A minimal cross-provider catalog. Sizing moves resources down this ladder;
// a real deployment would sync it from the provider pricing APIs.
var catalog = []catalogEntry{
	{"nano", 0.0052},
	{"micro", 0.0104},
	{"small", 0.0208},
	{"medium", 0.0416},
	{"large", 0.0832},
	{"xlarge", 0.1664},
	{"2xlarge", 0.3328},
	{"4xlarge", 0.6656},
}

// reservedDiscount is the assumed 1-year reservation discount.
const reservedDiscount = 0.40

const hoursPerMonth = 730.0

// Optimizer produces rule-of-thumb cost recommendations from utilization
// statistics. Stateless; safe for concurrent use.
type Optimizer struct {
	log *logger.Logger
}

func New(log *logger.Logger) *Optimizer {
	return &Optimizer{log: log}
}

// Classify buckets a resource by its utilization profile.
func Classify(u models.UtilizationStats) string {
	peakSpread := u.CPUPeak - u.CPUAvg
	switch {
	case u.CPUAvg < 5 && u.MemAvg < 10:
		return models.WorkloadIdle
	case u.CPUAvg >= 70 || u.MemAvg >= 80:
		return models.WorkloadHot
	case peakSpread > 40:
		return models.WorkloadBursty
	default:
		return models.WorkloadSteady
	}
}

// Analyze evaluates every resource and aggregates the potential savings.
func (o *Optimizer) Analyze(resources []models.UtilizationStats) *models.OptimizationReport {
	report := &models.OptimizationReport{}
	for _, r := range resources {
		workload := Classify(r)
		if rec := sizeRecommendation(r, workload); rec != nil {
			report.Recommendations = append(report.Recommendations, *rec)
			report.MonthlySavings += rec.MonthlySavings
		}
		if adv := reservationAdvice(r, workload); adv != nil {
			report.Reservations = append(report.Reservations, *adv)
		}
	}
	sort.Slice(report.Recommendations, func(i, j int) bool {
		return report.Recommendations[i].MonthlySavings > report.Recommendations[j].MonthlySavings
	})
	o.log.Info("optimization analysis complete",
		logger.Int("resources", len(resources)),
		logger.Int("recommendations", len(report.Recommendations)),
		logger.Float64("monthly_savings", report.MonthlySavings))
	return report
}

func sizeRecommendation(u models.UtilizationStats, workload string) *models.SizingRecommendation {
	idx := catalogIndex(u.InstanceType)
	if idx < 0 {
		return nil
	}

	var targetIdx int
	var reason string
	switch workload {
	case models.WorkloadIdle:
		targetIdx = 0
		reason = "resource is idle; schedule shutdown or move to the smallest shape"
	case models.WorkloadSteady:
		// headroom rule: keep peak under 80% of the next size down
		if u.CPUPeak < 40 && idx > 0 {
			targetIdx = idx - 1
			reason = fmt.Sprintf("peak CPU %.0f%% leaves headroom one size down", u.CPUPeak)
		} else {
			return nil
		}
	case models.WorkloadBursty:
		if u.CPUAvg < 15 && idx > 0 {
			targetIdx = idx - 1
			reason = fmt.Sprintf("average CPU %.0f%% despite bursts; burstable shape fits better", u.CPUAvg)
		} else {
			return nil
		}
	default:
		return nil
	}

	if targetIdx >= idx {
		return nil
	}
	hours := u.HoursPerDay
	if hours <= 0 {
		hours = 24
	}
	saved := (catalog[idx].HourlyCost - catalog[targetIdx].HourlyCost) * hours * hoursPerMonth / 24
	return &models.SizingRecommendation{
		ResourceID:      u.ResourceID,
		Workload:        workload,
		CurrentType:     u.InstanceType,
		RecommendedType: catalog[targetIdx].Name,
		MonthlySavings:  saved,
		Reason:          reason,
	}
}

func reservationAdvice(u models.UtilizationStats, workload string) *models.ReservationAdvice {
	// Reservations only pay off for always-on steady or hot workloads.
	if workload != models.WorkloadSteady && workload != models.WorkloadHot {
		return nil
	}
	hours := u.HoursPerDay
	if hours <= 0 {
		hours = 24
	}
	if hours < 18 {
		return &models.ReservationAdvice{ResourceID: u.ResourceID, Recommend: false}
	}
	onDemandAnnual := u.HourlyCost * hours * 365
	reservedAnnual := u.HourlyCost * (1 - reservedDiscount) * 24 * 365
	savings := onDemandAnnual - reservedAnnual
	if savings <= 0 {
		return &models.ReservationAdvice{ResourceID: u.ResourceID, Recommend: false}
	}
	breakEven := reservedAnnual / (u.HourlyCost * hours * hoursPerMonth / 24)
	return &models.ReservationAdvice{
		ResourceID:      u.ResourceID,
		Recommend:       true,
		BreakEvenMonths: breakEven,
		AnnualSavings:   savings,
	}
}

func catalogIndex(instanceType string) int {
	for i, e := range catalog {
		if e.Name == instanceType {
			return i
		}
	}
	return -1
}
