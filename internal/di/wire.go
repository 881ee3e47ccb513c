//go:build wireinject
// +build wireinject

package di

import (
	"AllocDesk/pkg/config"
	"AllocDesk/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation in wire_gen.go.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideClickHouseClient,
		ProvideRedisCache,

		// State and pipeline
		ProvideRateLimiter,
		ProvideSessionStore,
		ProvideSnapshotPublisher,
		ProvideSnapshotPipeline,

		// Repositories and caches
		ProvideRunHistory,
		ProvideResultCache,
		ProvideResponseCache,

		// Collaborator clients
		ProvideMarketData,
		ProvideBacktestEngine,

		// Use cases
		ProvideAllocationUseCase,
		ProvideBacktestUseCase,

		// HTTP
		ProvideHandlers,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
