package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	entriesStored *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	lastDailyCost *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		entriesStored: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cloudcostiq_cost_entries_stored_total",
				Help: "Total number of cost entries written to storage",
			},
			[]string{"provider"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cloudcostiq_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastDailyCost: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cloudcostiq_last_daily_cost",
				Help: "Most recent daily cost observed per organization",
			},
			[]string{"org_id"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cloudcostiq_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordEntryStored counts a stored cost entry per provider.
func (r *Recorder) RecordEntryStored(provider string) {
	r.entriesStored.WithLabelValues(provider).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastDailyCost records the latest observed daily cost for an org.
func (r *Recorder) RecordLastDailyCost(orgID string, cost float64) {
	r.lastDailyCost.WithLabelValues(orgID).Set(cost)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
