package repository

import (
	"context"
	"time"

	"CloudCostIQ/internal/domain/models"
)

// Publisher pushes raw cost entries onto the ingestion topic.
type Publisher interface {
	Publish(ctx context.Context, e *models.CostEntry) error
	PublishBatch(ctx context.Context, entries []*models.CostEntry) error
	Close() error
}

// Storage persists cost entries and serves aggregated daily series.
type Storage interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, e *models.CostEntry) error
	StoreBatch(ctx context.Context, entries []*models.CostEntry) error
	DailyCosts(ctx context.Context, orgID string, from, to time.Time) ([]models.CostObservation, error)
	LatestDailyCosts(ctx context.Context, orgID string, days int) ([]models.CostObservation, error)
	Health(ctx context.Context) error // ping
	Close() error
}

// ProviderStore persists encrypted cloud provider credentials.
type ProviderStore interface {
	SaveCredentials(ctx context.Context, orgID, provider, encrypted string) error
	Credentials(ctx context.Context, orgID, provider string) (string, error)
}

// Metrics records operational counters.
type Metrics interface {
	RecordEntryStored(provider string)
	RecordError(kind string)
	RecordLastDailyCost(orgID string, cost float64)
	RecordLatency(op string, seconds float64)
}
