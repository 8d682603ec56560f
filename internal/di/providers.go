package di

import (
	"context"
	"fmt"
	"time"

	"CardioRisk/internal/domain/repository"
	"CardioRisk/internal/handler/api"
	mid "CardioRisk/internal/middleware"
	internalrepo "CardioRisk/internal/repository"
	"CardioRisk/internal/service/ratelimit"
	"CardioRisk/internal/services/artifact"
	"CardioRisk/internal/usecase"
	"CardioRisk/pkg/cache"
	pkgch "CardioRisk/pkg/clickhouse"
	"CardioRisk/pkg/config"
	xhttp "CardioRisk/pkg/http"
	pkgkafka "CardioRisk/pkg/kafka"
	"CardioRisk/pkg/logger"
	"CardioRisk/pkg/metrics"
	"CardioRisk/pkg/server"
	"CardioRisk/pkg/sqlite"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const infraInitTimeout = 10 * time.Second

// AuditSinks holds the audit backend chosen by audit.backend. Pub is set for
// kafka, Store for clickhouse and sqlite; both are nil for none.
type AuditSinks struct {
	Pub     repository.Publisher
	Store   repository.Storage
	Closers []server.Closer
}

// ProvideLogger creates the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates the Prometheus registry served on /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) *metrics.Recorder {
	return metrics.New(reg)
}

// ProvideModel loads the artifact once. A failed load is not an error: the
// service starts and answers every prediction with -1.
func ProvideModel(cfg *config.Config, log *logger.Logger, m repository.Metrics) *artifact.Handle {
	h := artifact.Load(cfg.Model.Path,
		artifact.WithEntrypoint(artifact.Entrypoint(cfg.Model.Entrypoint)),
		artifact.WithStep(cfg.Model.Step),
		artifact.WithLogger(log),
	)
	m.RecordModelLoaded(h.Ready())
	return h
}

// ProvideCache creates the result cache, or nil when caching is disabled.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	l1 := cache.MemoryConfig{MaxSize: cfg.Cache.MemorySize, TTL: cfg.Cache.TTL}
	if cfg.Cache.Backend == "memory" {
		return cache.NewMemoryCache(l1), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), infraInitTimeout)
	defer cancel()
	l2, err := cache.NewRedisCache(ctx, cache.RedisConfig{
		Host:     cfg.Cache.Redis.Host,
		Port:     cfg.Cache.Redis.Port,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(l2, l1), nil
}

// ProvideAuditSinks connects to the configured audit backend and prepares its schema.
func ProvideAuditSinks(cfg *config.Config, reg *prometheus.Registry) (*AuditSinks, error) {
	ctx, cancel := context.WithTimeout(context.Background(), infraInitTimeout)
	defer cancel()

	switch cfg.Audit.Backend {
	case usecase.BackendKafka:
		kp := cfg.Kafka.Producer
		producer, err := pkgkafka.NewProducer(pkgkafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			RequiredAcks: cfg.Kafka.RequiredAcks,
			Compression:  cfg.Kafka.Compression,
			MaxAttempts:  kp.MaxAttempts,
			WriteTimeout: kp.WriteTimeout,
			ReadTimeout:  kp.ReadTimeout,
			BatchSize:    kp.BatchSize,
			BatchBytes:   kp.BatchBytes,
			BatchTimeout: kp.Linger,
			Async:        kp.Async,
			HashByKey:    true,
		}, reg)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		// Closed through the recorder.
		return &AuditSinks{Pub: internalrepo.NewKafkaPublisher(producer)}, nil

	case usecase.BackendClickHouse, usecase.BackendSQLite:
		store, closer, err := openStore(ctx, cfg, cfg.Audit.Backend)
		if err != nil {
			return nil, err
		}
		return &AuditSinks{Store: store, Closers: []server.Closer{closer}}, nil

	default:
		return &AuditSinks{}, nil
	}
}

// ProvidePredictionRecorder routes audit events to the configured sink.
func ProvidePredictionRecorder(cfg *config.Config, sinks *AuditSinks, m repository.Metrics) *usecase.PredictionRecorder {
	return usecase.NewPredictionRecorder(sinks.Pub, sinks.Store, m, cfg.Audit.Backend)
}

// ProvideAuditPipeline creates the async audit pipeline, or nil for backend none.
func ProvideAuditPipeline(
	cfg *config.Config,
	rec *usecase.PredictionRecorder,
	m repository.Metrics,
	log *logger.Logger,
) *mid.AuditPipeline {
	if cfg.Audit.Backend == usecase.BackendNone {
		return nil
	}
	return mid.NewAuditPipeline(rec, m,
		mid.WithBufferSize(cfg.Audit.BufferSize),
		mid.WithBatchSize(cfg.Audit.BatchSize),
		mid.WithFlushInterval(cfg.Audit.FlushInterval),
		mid.WithLogger(log.With(logger.String("component", "audit"))),
	)
}

// ProvideRiskAssessor creates the inference handler around the loaded artifact.
func ProvideRiskAssessor(model *artifact.Handle, m repository.Metrics, log *logger.Logger) *usecase.RiskAssessor {
	return usecase.NewRiskAssessor(model, m, log)
}

// ProvidePredictService puts the optional result cache in front of the assessor.
func ProvidePredictService(
	cfg *config.Config,
	assessor *usecase.RiskAssessor,
	model *artifact.Handle,
	c cache.Service,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.PredictService {
	info, _ := model.Info()
	return usecase.NewPredictService(assessor, c, cfg.Cache.TTL, info.Checksum, m, log)
}

// ProvideRateLimiter creates the per-IP limiter with its pruning janitor, or
// nil when rate limiting is off.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	l := ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec)
	l.StartJanitor(cfg.RateLimit.PruneInterval)
	return l
}

// ProvideHTTPHandler creates the prediction API handler.
func ProvideHTTPHandler(
	cfg *config.Config,
	log *logger.Logger,
	svc *usecase.PredictService,
	model *artifact.Handle,
	audit *mid.AuditPipeline,
	sinks *AuditSinks,
	limiter *ratelimit.Limiter,
) xhttp.Handler {
	opts := []api.HandlerOption{api.WithAllowedOrigins(cfg.Server.WSOrigins...)}
	if audit != nil {
		opts = append(opts, api.WithAuditor(audit))
	}
	if sinks.Store != nil {
		opts = append(opts, api.WithHistory(sinks.Store))
	}
	if limiter != nil {
		opts = append(opts, api.WithRateLimit(limiter))
	}
	return api.NewPredictEchoHandler(log, svc, model, opts...)
}

// ProvideHTTPServer creates the echo server.
func ProvideHTTPServer(cfg *config.Config, h xhttp.Handler, log *logger.Logger, reg *prometheus.Registry) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithCORS(cfg.Server.CORS),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path, reg, reg))
	}
	return xhttp.NewServer(h, log.With(logger.String("component", "http")), opts...)
}

// ProvideApp assembles the application and its shutdown order.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	srv *xhttp.Server,
	audit *mid.AuditPipeline,
	rec *usecase.PredictionRecorder,
	sinks *AuditSinks,
	c cache.Service,
	limiter *ratelimit.Limiter,
) *server.App {
	closers := append([]server.Closer{}, sinks.Closers...)
	closers = append(closers, server.Closer{Name: "audit recorder", Close: func() error {
		rec.Close()
		return nil
	}})
	if c != nil {
		closers = append(closers, server.Closer{Name: "result cache", Close: c.Close})
	}
	if limiter != nil {
		closers = append(closers, server.Closer{Name: "rate limiter", Close: limiter.Close})
	}
	return server.New(cfg, log, srv, audit, closers...)
}

// openStore connects to a SQL sink and ensures its table exists.
func openStore(ctx context.Context, cfg *config.Config, backend string) (repository.Storage, server.Closer, error) {
	switch backend {
	case usecase.BackendClickHouse:
		ch := cfg.ClickHouse
		client, err := pkgch.NewClient(ctx, pkgch.Config{
			Host:         ch.Host,
			Port:         ch.Port,
			Database:     ch.Database,
			User:         ch.User,
			Password:     ch.Password,
			UseHTTP:      ch.UseHTTP,
			AsyncInsert:  ch.AsyncInsert,
			WaitForAsync: ch.WaitForAsync,
			DialTimeout:  ch.DialTimeout,
			ReadTimeout:  ch.ReadTimeout,
			MaxExecTime:  ch.MaxExecutionTime,
		})
		if err != nil {
			return nil, server.Closer{}, fmt.Errorf("clickhouse client: %w", err)
		}
		store := internalrepo.NewSQLStorage(client.DB(), cfg.ClickHouse.Table, internalrepo.DialectClickHouse)
		if err := store.Init(ctx); err != nil {
			_ = client.Close()
			return nil, server.Closer{}, fmt.Errorf("clickhouse schema: %w", err)
		}
		return store, server.Closer{Name: "clickhouse", Close: client.Close}, nil

	case usecase.BackendSQLite:
		client, err := sqlite.Open(ctx, cfg.SQLite.Path, cfg.SQLite.WAL)
		if err != nil {
			return nil, server.Closer{}, fmt.Errorf("sqlite: %w", err)
		}
		store := internalrepo.NewSQLStorage(client.DB(), cfg.SQLite.Table, internalrepo.DialectSQLite)
		if err := store.Init(ctx); err != nil {
			_ = client.Close()
			return nil, server.Closer{}, fmt.Errorf("sqlite schema: %w", err)
		}
		return store, server.Closer{Name: "sqlite", Close: client.Close}, nil
	}
	return nil, server.Closer{}, fmt.Errorf("unsupported store backend %q", backend)
}
