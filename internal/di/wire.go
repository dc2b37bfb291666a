//go:build wireinject
// +build wireinject

package di

import (
	"NetflowWatch/pkg/config"
	"NetflowWatch/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideNetflowStore,
		ProvideRedisClient,
		ProvideKafkaProducer,
		ProvideEtherscanClient,

		// Alert memory and delivery
		ProvideAlertMemoryStore,
		ProvideInstanceLock,
		ProvideAlertMemory,
		ProvideReportWriter,
		ProvideAlertHub,
		ProvideAlertSinks,
		ProvideRelayConsumer,

		// Series sources
		ProvideExchanges,
		ProvideTransferSeriesSource,
		ProvideSeriesSource,
		ProvideDailySource,

		// Use cases
		ProvidePipeline,
		ProvideAgent,
		ProvideTransferIngest,
		ProvideResponseCache,
		ProvideQuery,

		// Application server
		ProvideNetflowHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}
