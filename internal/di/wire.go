//go:build wireinject
// +build wireinject

package di

import (
	"CloudCostIQ/pkg/config"
	"CloudCostIQ/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisClient,

		// Repositories
		ProvideCostStorage,
		ProvideProviderStore,
		ProvideEntryPublisher,

		// Model registry and domain services
		ProvideRegistry,
		ProvideCostAnalyzer,
		ProvideOptimizer,
		ProvideEncryptor,

		// Background processing
		ProvideKafkaCostEntriesHandler,
		ProvideQueue,

		// HTTP surface
		ProvideResponseCache,
		ProvideAnalyticsHandler,
		ProvideAlertsHub,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
