package api

import (
	"context"
	"net/http"
	"time"

	domrepo "CardioRisk/internal/domain/repository"
	xlogger "CardioRisk/pkg/logger"

	"github.com/labstack/echo/v4"
)

const sinkPingTimeout = 2 * time.Second

// IngestEchoHandler serves liveness and readiness for the audit ingester.
type IngestEchoHandler struct {
	logger *xlogger.Logger
	sink   domrepo.Storage
}

func NewIngestEchoHandler(logger *xlogger.Logger, sink domrepo.Storage) *IngestEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &IngestEchoHandler{logger: logger, sink: sink}
}

func (h *IngestEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/ready", h.Ready)
}

func (h *IngestEchoHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Ready pings the sink; the ingester is useless while it is down.
func (h *IngestEchoHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), sinkPingTimeout)
	defer cancel()
	if err := h.sink.Health(ctx); err != nil {
		h.logger.Warn("sink not ready", xlogger.Error(err))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
