//go:build wireinject
// +build wireinject

package di

import (
	"CandleFeed/pkg/config"
	"CandleFeed/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideMemoryPublisher,
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideHTTPClient,
		ProvideRedisCache,
		ProvideSeriesStore,
		ProvideCandlePublisher,

		// Providers and routing
		ProvideRegistry,
		ProvideLimiter,
		ProvideRouter,
		ProvideStreamManager,

		// Use cases
		ProvideHistoryUseCase,
		ProvideIndicatorsUseCase,

		// HTTP surface
		ProvideFeedHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
