package di

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"CardioRisk/internal/domain/models"
	"CardioRisk/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleModel = "../../models/heart_pipeline.json"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Log.Level = "error"
	cfg.Model.Path = sampleModel
	return cfg
}

func TestPredictThroughSQLiteAudit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Audit.Backend = "sqlite"
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "events.db")
	cfg.Cache.Enabled = true
	cfg.RateLimit.Enabled = true
	require.NoError(t, cfg.Validate())

	log, err := ProvideLogger(cfg)
	require.NoError(t, err)
	reg := ProvideRegistry()
	rec := ProvideMetrics(reg)
	model := ProvideModel(cfg, log, rec)
	require.True(t, model.Ready())
	c, err := ProvideCache(cfg)
	require.NoError(t, err)
	sinks, err := ProvideAuditSinks(cfg, reg)
	require.NoError(t, err)
	recorder := ProvidePredictionRecorder(cfg, sinks, rec)
	audit := ProvideAuditPipeline(cfg, recorder, rec, log)
	require.NotNil(t, audit)
	svc := ProvidePredictService(cfg, ProvideRiskAssessor(model, rec, log), model, c, rec, log)
	limiter := ProvideRateLimiter(cfg)
	require.NotNil(t, limiter)
	srv := ProvideHTTPServer(cfg, ProvideHTTPHandler(cfg, log, svc, model, audit, sinks, limiter), log, reg)

	audit.Start(context.Background())
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/predict",
			strings.NewReader(`{"systolic_blood_pressure": 180, "blood_sugar": 250, "age": 70}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		srv.Echo().ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"prediction":1`)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, audit.Stop(ctx))

	events, err := sinks.Store.Query(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.StatusSuccess, events[0].Status)
	assert.Equal(t, "2024.06-logreg", events[0].ModelVersion)

	w := httptest.NewRecorder()
	srv.Echo().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/predictions?limit=1", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	srv.Echo().ServeHTTP(w, httptest.NewRequest(http.MethodGet, cfg.Metrics.Path, nil))
	assert.Contains(t, w.Body.String(), "cardiorisk_predictions_total")
	assert.Contains(t, w.Body.String(), "cardiorisk_model_loaded 1")

	app := ProvideApp(cfg, log, srv, audit, recorder, sinks, c, limiter)
	require.NotNil(t, app)
	assert.NoError(t, limiter.Close())
	for _, cl := range sinks.Closers {
		assert.NoError(t, cl.Close())
	}
}

func TestProvideRateLimiterDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit.Enabled = false
	assert.Nil(t, ProvideRateLimiter(cfg))
}

func TestInitializeAppWithoutModel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Model.Path = ""
	cfg.Metrics.Enabled = false

	app, err := InitializeApp(cfg)
	require.NoError(t, err)
	require.NotNil(t, app)
}

func TestProvideAuditPipelineNone(t *testing.T) {
	cfg := testConfig(t)
	sinks, err := ProvideAuditSinks(cfg, ProvideRegistry())
	require.NoError(t, err)
	assert.Nil(t, sinks.Pub)
	assert.Nil(t, sinks.Store)
	assert.Nil(t, ProvideAuditPipeline(cfg, nil, nil, nil))
}

func TestProvideCacheDisabled(t *testing.T) {
	c, err := ProvideCache(testConfig(t))
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestIngesterWritesToSQLite(t *testing.T) {
	cfg := testConfig(t)
	cfg.Kafka.Brokers = []string{"127.0.0.1:9092"}
	cfg.Ingest.Sink = "sqlite"
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "ingest.db")
	require.NoError(t, cfg.ValidateIngest())

	sink, err := ProvideIngestSink(cfg)
	require.NoError(t, err)
	defer sink.Closer.Close()

	h := ProvideAuditIngestHandler(cfg, sink, ProvideMetrics(ProvideRegistry()))
	b, err := json.Marshal(models.PredictionEvent{
		ID:        "evt-1",
		Timestamp: time.Now().UTC(),
		Transport: "http",
		Status:    models.StatusSuccess,
		Features:  map[string]float64{"age": 70},
		RiskLevel: "high risk",
	})
	require.NoError(t, err)
	require.NoError(t, h.Handle(context.Background(), b))

	events, err := sink.Store.Query(context.Background(), time.Now().Add(-time.Hour), time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "evt-1", events[0].ID)
}

func TestInitializeIngester(t *testing.T) {
	cfg := testConfig(t)
	cfg.Kafka.Brokers = []string{"127.0.0.1:9092"}
	cfg.Ingest.Sink = "sqlite"
	cfg.Ingest.MetricsPort = 0
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "ingest.db")

	ing, err := InitializeIngester(cfg)
	require.NoError(t, err)
	require.NotNil(t, ing)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, ing.RunContext(ctx))
}
