package api

import (
	_ "embed"
	"net/http"
	"net/url"
	"strings"
	"time"

	"CardioRisk/internal/domain/models"
	domrepo "CardioRisk/internal/domain/repository"
	"CardioRisk/internal/service/ratelimit"
	"CardioRisk/internal/usecase"
	xhttp "CardioRisk/pkg/http"
	xlogger "CardioRisk/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

//go:embed static/index.html
var indexHTML []byte

const (
	historyWindow       = 24 * time.Hour
	historyDefaultLimit = 100
	historyMaxLimit     = 1000
	transportHTTP       = "http"
	transportWS         = "ws"
)

// ModelInspector exposes what is known about the loaded artifact.
type ModelInspector interface {
	Ready() bool
	Info() (models.ModelInfo, bool)
}

// Auditor accepts prediction events without blocking the request.
type Auditor interface {
	Enqueue(e *models.PredictionEvent) bool
}

// PredictEchoHandler serves the prediction API and the demo form.
type PredictEchoHandler struct {
	logger   *xlogger.Logger
	svc      *usecase.PredictService
	model    ModelInspector
	auditor  Auditor
	history  domrepo.Storage
	limiter  *ratelimit.Limiter
	origins  map[string]struct{}
	upgrader websocket.Upgrader
}

// HandlerOption configures PredictEchoHandler.
type HandlerOption func(*PredictEchoHandler)

// WithAuditor records an event for every prediction served.
func WithAuditor(a Auditor) HandlerOption {
	return func(h *PredictEchoHandler) { h.auditor = a }
}

// WithHistory enables GET /predictions backed by s.
func WithHistory(s domrepo.Storage) HandlerOption {
	return func(h *PredictEchoHandler) { h.history = s }
}

// WithAllowedOrigins lets browsers on the given origins open /ws/predict in
// addition to same-host pages. Entries are scheme://host[:port].
func WithAllowedOrigins(origins ...string) HandlerOption {
	return func(h *PredictEchoHandler) {
		for _, o := range origins {
			h.origins[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
		}
	}
}

// WithRateLimit guards POST /predict with l.
func WithRateLimit(l *ratelimit.Limiter) HandlerOption {
	return func(h *PredictEchoHandler) { h.limiter = l }
}

func NewPredictEchoHandler(logger *xlogger.Logger, svc *usecase.PredictService, model ModelInspector, opts ...HandlerOption) *PredictEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	h := &PredictEchoHandler{
		logger:  logger,
		svc:     svc,
		model:   model,
		origins: map[string]struct{}{},
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// checkOrigin accepts non-browser clients (no Origin header), pages served
// from the same host, and explicitly allowed origins.
func (h *PredictEchoHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	_, ok := h.origins[strings.ToLower(u.Scheme+"://"+u.Host)]
	return ok
}

func (h *PredictEchoHandler) RegisterRoutes(e *echo.Echo) {
	var mw []echo.MiddlewareFunc
	if h.limiter != nil {
		mw = append(mw, h.limiter.Middleware())
	}
	e.GET("/", h.Index)
	e.POST("/predict", h.Predict, mw...)
	e.GET("/model-info", h.ModelInfo)
	e.GET("/health", h.Health)
	e.GET("/ready", h.Ready)
	e.GET("/ws/predict", h.PredictStream)
	if h.history != nil {
		e.GET("/predictions", h.History)
	}
}

func (h *PredictEchoHandler) Index(c echo.Context) error {
	return c.HTMLBlob(http.StatusOK, indexHTML)
}

// Predict answers with the bare PredictionResult. Model failures keep the 200
// status and are reported as prediction -1.
func (h *PredictEchoHandler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.BindAndValidate(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res := h.assess(c, transportHTTP, req.Features())
	return c.JSON(http.StatusOK, res.Result)
}

func (h *PredictEchoHandler) assess(c echo.Context, transport string, p models.PatientFeatures) models.Assessment {
	res := h.svc.Assess(c.Request().Context(), p)
	if h.auditor != nil {
		info, _ := h.model.Info()
		if !h.auditor.Enqueue(usecase.NewPredictionEvent(transport, p, res, info)) {
			h.logger.Debug("audit event dropped", xlogger.String("transport", transport))
		}
	}
	return res
}

func (h *PredictEchoHandler) ModelInfo(c echo.Context) error {
	info, ok := h.model.Info()
	if !ok {
		return c.JSON(http.StatusOK, models.ModelInfoUnavailable{Error: "pipeline not loaded"})
	}
	return c.JSON(http.StatusOK, models.ModelInfoResponse{
		PipelineType:  info.PipelineType,
		PipelineSteps: info.Steps,
		Features:      models.FeatureNames(),
		Version:       info.Version,
		Entrypoint:    info.Entrypoint,
		Checksum:      info.Checksum,
	})
}

// Health is liveness: the process serves requests even without a model.
func (h *PredictEchoHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, models.HealthResponse{Status: "ok", ModelLoaded: h.model.Ready()})
}

func (h *PredictEchoHandler) Ready(c echo.Context) error {
	if !h.model.Ready() {
		return c.JSON(http.StatusServiceUnavailable, models.HealthResponse{Status: "unavailable"})
	}
	return c.JSON(http.StatusOK, models.HealthResponse{Status: "ok", ModelLoaded: true})
}

// History lists recorded predictions, newest first.
func (h *PredictEchoHandler) History(c echo.Context) error {
	r, aerr := xhttp.ParseTimeRange(c.QueryParam("from"), c.QueryParam("to"), historyWindow, time.Now())
	if aerr != nil {
		return xhttp.ErrorResponse(c, aerr)
	}
	limit := xhttp.ParseIntDefault(c.QueryParam("limit"), historyDefaultLimit)
	if limit <= 0 || limit > historyMaxLimit {
		return xhttp.ErrorResponse(c, xhttp.BadRequestErrorf("limit", "limit must be in 1..%d", historyMaxLimit))
	}

	rows, err := h.history.Query(c.Request().Context(), r.From, r.To, limit)
	if err != nil {
		h.logger.Error("prediction history query failed", xlogger.Error(err))
		return xhttp.ErrorResponse(c, xhttp.InternalError("history unavailable").WithError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.PageResponse(c, rows, len(rows), r)
}
