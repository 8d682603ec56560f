package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	mid "CardioRisk/internal/middleware"
	"CardioRisk/pkg/config"
	xhttp "CardioRisk/pkg/http"
	applogger "CardioRisk/pkg/logger"
)

// Closer is an infrastructure resource released on shutdown.
type Closer struct {
	Name  string
	Close func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	audit      *mid.AuditPipeline
	closers    []Closer
}

// New creates a new App instance. audit may be nil when auditing is disabled.
// Closers run in reverse order after the HTTP server and audit pipeline stop.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	audit *mid.AuditPipeline,
	closers ...Closer,
) *App {
	if log == nil {
		log = applogger.Nop()
	}
	return &App{
		cfg:        cfg,
		log:        log,
		httpServer: httpServer,
		audit:      audit,
		closers:    closers,
	}
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts the application and blocks until ctx is done or the HTTP
// listener fails, then shuts everything down.
func (a *App) RunContext(ctx context.Context) error {
	if a.audit != nil {
		a.audit.Start(ctx)
		a.log.Info("audit pipeline started", applogger.String("backend", a.cfg.Audit.Backend))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case runErr = <-a.httpServer.Errors():
		a.log.Error("http server failed", applogger.Error(runErr))
	}

	a.shutdown()
	return runErr
}

// shutdown gracefully stops all services. It uses a fresh context because the
// run context is already cancelled.
func (a *App) shutdown() {
	a.log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(a.cfg))
	defer cancel()

	// Stop accepting requests first so no event is enqueued after the final flush.
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.audit != nil {
		if err := a.audit.Stop(ctx); err != nil {
			a.log.Warn("audit pipeline stop error", applogger.Error(err))
		}
	}

	closeAll(a.log, a.closers)
	a.log.Info("shutdown complete")
}

// closeAll runs closers in reverse order.
func closeAll(log *applogger.Logger, closers []Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		if err := c.Close(); err != nil {
			log.Warn("close error", applogger.String("resource", c.Name), applogger.Error(err))
		}
	}
}

func shutdownTimeout(cfg *config.Config) time.Duration {
	if cfg != nil && cfg.Server.ShutdownTimeout > 0 {
		return cfg.Server.ShutdownTimeout
	}
	return 15 * time.Second
}
