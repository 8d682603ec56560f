package di

import (
	"context"

	"CardioRisk/internal/domain/repository"
	"CardioRisk/internal/handler/api"
	"CardioRisk/internal/usecase"
	"CardioRisk/pkg/config"
	xhttp "CardioRisk/pkg/http"
	pkgkafka "CardioRisk/pkg/kafka"
	"CardioRisk/pkg/logger"
	"CardioRisk/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
)

// IngestSink is the store the ingester writes prediction events to.
type IngestSink struct {
	Store  repository.Storage
	Closer server.Closer
}

// ProvideIngestSink opens the sink named by ingest.sink.
func ProvideIngestSink(cfg *config.Config) (*IngestSink, error) {
	ctx, cancel := context.WithTimeout(context.Background(), infraInitTimeout)
	defer cancel()
	store, closer, err := openStore(ctx, cfg, cfg.Ingest.Sink)
	if err != nil {
		return nil, err
	}
	return &IngestSink{Store: store, Closer: closer}, nil
}

// ProvideAuditIngestHandler decodes events from the audit topic into the sink.
func ProvideAuditIngestHandler(cfg *config.Config, sink *IngestSink, m repository.Metrics) *usecase.AuditIngestHandler {
	return usecase.NewAuditIngestHandler(cfg.Kafka.Topic, sink.Store, m)
}

// ProvideKafkaConsumer creates the group consumer for the audit topic.
func ProvideKafkaConsumer(
	cfg *config.Config,
	h *usecase.AuditIngestHandler,
	reg *prometheus.Registry,
	log *logger.Logger,
) (*pkgkafka.Consumer, error) {
	return pkgkafka.NewConsumer(h,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Ingest.GroupID),
		pkgkafka.WithConsumerRetry(cfg.Ingest.RetryMax, cfg.Ingest.BackoffMin, cfg.Ingest.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Ingest.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Ingest.MinBytes, cfg.Ingest.MaxBytes),
		pkgkafka.WithConsumerRegisterer(reg),
		pkgkafka.WithConsumerLogger(log.With(logger.String("component", "consumer"))),
	)
}

// ProvideIngestHTTPServer serves /health, /ready and metrics on ingest.metrics_port.
func ProvideIngestHTTPServer(cfg *config.Config, sink *IngestSink, log *logger.Logger, reg *prometheus.Registry) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Ingest.MetricsPort),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path, reg, reg))
	}
	return xhttp.NewServer(api.NewIngestEchoHandler(log, sink.Store), log.With(logger.String("component", "http")), opts...)
}

// ProvideIngester assembles the ingester.
func ProvideIngester(
	cfg *config.Config,
	log *logger.Logger,
	consumer *pkgkafka.Consumer,
	srv *xhttp.Server,
	sink *IngestSink,
) *server.Ingester {
	return server.NewIngester(cfg, log, consumer, srv, sink.Closer)
}
