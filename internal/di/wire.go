//go:build wireinject
// +build wireinject

package di

import (
	"WalletPulse/pkg/config"
	"WalletPulse/pkg/server"

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
		ProvideKafkaProducer,
		ProvideRedisClient,
		ProvideSharedCache,

		// Repositories
		ProvideObservationStore,
		ProvideSignalStore,
		ProvideAlertStore,
		ProvidePublisher,
		ProvidePositionStream,
		ProvideSnapshotFetcher,

		// Domain services
		ProvideEpsilonResolver,
		ProvideGate,
		ProvideAlertQueue,
		ProvideNotifier,
		ProvideEvaluator,

		// Use cases
		ProvideObservationProcessor,
		ProvideSnapshotCollector,
		ProvideKafkaConsumer,
		ProvideKafkaObservationsHandler,
		ProvideSignalRunner,
		ProvideSignalReader,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
