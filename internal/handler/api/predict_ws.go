package api

import (
	"errors"
	"time"

	"CardioRisk/internal/domain/models"
	xhttp "CardioRisk/pkg/http"
	xlogger "CardioRisk/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsReadLimit   = 4096
	wsIdleTimeout = 60 * time.Second
	wsWriteWait   = 5 * time.Second
)

type streamError struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// PredictStream upgrades to a websocket and answers every text frame holding a
// predict request with one PredictionResult frame. Invalid frames get an error
// frame and the connection stays open.
func (h *PredictEchoHandler) PredictStream(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	conn.SetReadLimit(wsReadLimit)
	ctx := c.Request().Context()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
		mt, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				h.logger.Debug("websocket read ended", xlogger.Error(err))
			}
			return nil
		}

		var out interface{}
		if mt != websocket.TextMessage {
			out = streamError{Error: "expected a text frame"}
		} else {
			req := &models.PredictRequest{}
			if verr := xhttp.DecodeAndValidate(ctx, data, req); verr != nil {
				out = streamError{Error: "invalid request", Details: verr}
			} else {
				out = h.assess(c, transportWS, req.Features()).Result
			}
		}

		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(out); err != nil {
			h.logger.Debug("websocket write failed", xlogger.Error(err))
			return nil
		}
	}
}
