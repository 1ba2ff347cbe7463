package usecase

import (
	"context"

	domrepo "CloudCostIQ/internal/domain/repository"
	"CloudCostIQ/pkg/logger"
	"CloudCostIQ/pkg/queue"
)

// ErrorLogsType is the queue message type for aggregated error digests.
const ErrorLogsType = "error_logs"

// ErrorLogsJob consumes aggregated error digests flushed by the log
// collector and surfaces recurring errors.
type ErrorLogsJob struct {
	log     *logger.Logger
	metrics domrepo.Metrics
}

func NewErrorLogsJob(log *logger.Logger, metrics domrepo.Metrics) *ErrorLogsJob {
	return &ErrorLogsJob{log: log, metrics: metrics}
}

func (j *ErrorLogsJob) Name() string { return "error-log-digest" }
func (j *ErrorLogsJob) Type() string { return ErrorLogsType }

func (j *ErrorLogsJob) Handle(ctx context.Context, payload interface{}) error {
	entries, err := queue.ParsePayload[[]logger.AggregatedLogEntry](payload)
	if err != nil {
		return err
	}
	for _, e := range *entries {
		if j.metrics != nil {
			j.metrics.RecordError("recurring_" + e.Level)
		}
		if e.Count < 2 {
			continue
		}
		// Warn, not Error: re-logging at error level would feed the collector
		// again.
		j.log.Warn("recurring error",
			logger.String("message", e.Message),
			logger.String("caller", e.Caller),
			logger.Int("count", e.Count),
		)
	}
	return nil
}

var _ queue.Job = (*ErrorLogsJob)(nil)
