package usecase

import (
	"context"
	"time"

	pkgcache "CloudCostIQ/pkg/cache"
	"CloudCostIQ/pkg/logger"
	"CloudCostIQ/pkg/queue"
)

// TrainModelsType is the queue message type for scheduled retraining.
const TrainModelsType = "train_models"

// TrainModelsPayload selects the org to retrain.
type TrainModelsPayload struct {
	OrgID string `json:"org_id"`
	Days  int    `json:"days"`
}

// RetrainJob retrains both model families for an org from stored history.
// One model failing does not stop the other.
type RetrainJob struct {
	analyzer *CostAnalyzer
	log      *logger.Logger
	locks    pkgcache.Service
}

func NewRetrainJob(analyzer *CostAnalyzer, log *logger.Logger) *RetrainJob {
	return &RetrainJob{analyzer: analyzer, log: log}
}

// SetLocks enables distributed dedup so one org retrains on one worker at a
// time.
func (j *RetrainJob) SetLocks(c pkgcache.Service) { j.locks = c }

func (j *RetrainJob) Name() string { return "retrain-models" }
func (j *RetrainJob) Type() string { return TrainModelsType }

func (j *RetrainJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[TrainModelsPayload](payload)
	if err != nil {
		return err
	}
	days := p.Days
	if days <= 0 {
		days = 365
	}

	if j.locks != nil {
		key := pkgcache.GenerateKey("retrain", p.OrgID)
		ok, lerr := j.locks.TryLock(ctx, key, 10*time.Minute)
		if lerr == nil && !ok {
			j.log.Info("retrain already running", logger.String("org_id", p.OrgID))
			return nil
		}
		if lerr == nil {
			defer func() { _ = j.locks.Unlock(context.Background(), key) }()
		}
	}

	if _, err := j.analyzer.TrainForecaster(ctx, p.OrgID, nil, days, 0); err != nil {
		j.log.Error("retrain forecaster failed",
			logger.String("org_id", p.OrgID), logger.Error(err))
	} else {
		j.log.Info("forecaster retrained", logger.String("org_id", p.OrgID))
	}

	if _, err := j.analyzer.TrainDetector(ctx, p.OrgID, nil, days, 0); err != nil {
		j.log.Error("retrain detector failed",
			logger.String("org_id", p.OrgID), logger.Error(err))
	} else {
		j.log.Info("detector retrained", logger.String("org_id", p.OrgID))
	}
	return nil
}

var _ queue.Job = (*RetrainJob)(nil)
