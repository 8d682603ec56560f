package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"CardioRisk/pkg/config"
	xhttp "CardioRisk/pkg/http"
	applogger "CardioRisk/pkg/logger"
)

// Worker is a background loop with an explicit stop, such as a Kafka consumer.
type Worker interface {
	Start(ctx context.Context)
	Stop(ctx context.Context) error
}

// Ingester runs the audit consumer next to a small health and metrics server.
type Ingester struct {
	cfg     *config.Config
	log     *applogger.Logger
	worker  Worker
	http    *xhttp.Server
	closers []Closer
}

// NewIngester creates an Ingester. httpServer may be nil.
func NewIngester(cfg *config.Config, log *applogger.Logger, worker Worker, httpServer *xhttp.Server, closers ...Closer) *Ingester {
	if log == nil {
		log = applogger.Nop()
	}
	return &Ingester{cfg: cfg, log: log, worker: worker, http: httpServer, closers: closers}
}

// Run blocks until SIGINT or SIGTERM.
func (i *Ingester) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return i.RunContext(ctx)
}

// RunContext consumes until ctx is done or the HTTP listener fails.
func (i *Ingester) RunContext(ctx context.Context) error {
	var httpErrs <-chan error
	if i.http != nil {
		if err := i.http.Start(); err != nil {
			return err
		}
		httpErrs = i.http.Errors()
	}

	i.worker.Start(ctx)
	i.log.Info("ingester started",
		applogger.String("topic", i.cfg.Kafka.Topic),
		applogger.String("sink", i.cfg.Ingest.Sink),
	)

	var runErr error
	select {
	case <-ctx.Done():
		i.log.Info("shutdown signal received")
	case runErr = <-httpErrs:
		i.log.Error("http server failed", applogger.Error(runErr))
	}

	i.shutdown()
	return runErr
}

func (i *Ingester) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(i.cfg))
	defer cancel()

	// Consumer first: an in-flight message still needs the sink.
	if err := i.worker.Stop(ctx); err != nil {
		i.log.Warn("consumer stop error", applogger.Error(err))
	}
	if i.http != nil {
		if err := i.http.Stop(ctx); err != nil {
			i.log.Error("http shutdown error", applogger.Error(err))
		}
	}
	closeAll(i.log, i.closers)
	i.log.Info("ingester stopped")
}
