//go:build wireinject
// +build wireinject

package di

import (
	"CardioRisk/internal/domain/repository"
	"CardioRisk/pkg/config"
	"CardioRisk/pkg/metrics"
	"CardioRisk/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,
		wire.Bind(new(repository.Metrics), new(*metrics.Recorder)),

		// Model and infrastructure
		ProvideModel,
		ProvideCache,
		ProvideAuditSinks,

		// Use cases
		ProvidePredictionRecorder,
		ProvideAuditPipeline,
		ProvideRiskAssessor,
		ProvidePredictService,

		// Transport and application
		ProvideRateLimiter,
		ProvideHTTPHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}

// InitializeIngester wires the Kafka to storage ingester.
func InitializeIngester(cfg *config.Config) (*server.Ingester, error) {
	wire.Build(
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,
		wire.Bind(new(repository.Metrics), new(*metrics.Recorder)),

		ProvideIngestSink,
		ProvideAuditIngestHandler,
		ProvideKafkaConsumer,
		ProvideIngestHTTPServer,
		ProvideIngester,
	)
	return &server.Ingester{}, nil
}
