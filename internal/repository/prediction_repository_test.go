package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"CardioRisk/internal/domain/models"
	pkgkafka "CardioRisk/pkg/kafka"
	"CardioRisk/pkg/sqlite"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStorage(t *testing.T) *SQLStorage {
	t.Helper()
	client, err := sqlite.Open(context.Background(), ":memory:", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	s := NewSQLStorage(client.DB(), "prediction_events", DialectSQLite)
	require.NoError(t, s.Init(context.Background()))
	return s
}

func event(id string, ts time.Time, prediction int) *models.PredictionEvent {
	return &models.PredictionEvent{
		ID:        id,
		Timestamp: ts,
		Transport: "http",
		Status:    models.StatusSuccess,
		Features: map[string]float64{
			models.FeatureSystolicBloodPressure: 150,
			models.FeatureBloodSugar:            120,
			models.FeatureAge:                   61.5,
		},
		Prediction:    prediction,
		RiskLevel:     models.RiskLevelHigh,
		Message:       models.MessageHighRisk,
		LatencyMicros: 42,
		ModelVersion:  "v1",
		ModelChecksum: "abc",
	}
}

func TestSQLStorageStoreAndQuery(t *testing.T) {
	s := newSQLiteStorage(t)
	ctx := context.Background()
	base := time.Date(2024, 10, 16, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Store(ctx, event("e1", base, 1)))
	require.NoError(t, s.StoreBatch(ctx, []*models.PredictionEvent{
		event("e2", base.Add(time.Minute), 0),
		nil,
		event("e3", base.Add(2*time.Minute), 1),
	}))

	got, err := s.Query(ctx, base, base.Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "e3", got[0].ID)
	assert.Equal(t, "e1", got[2].ID)
	assert.True(t, base.Equal(got[2].Timestamp))
	assert.Equal(t, models.StatusSuccess, got[0].Status)
	assert.Equal(t, 61.5, got[0].Features[models.FeatureAge])
	assert.Equal(t, int64(42), got[0].LatencyMicros)
	assert.Equal(t, 0, got[1].Prediction)
}

func TestSQLStorageRedeliveryIsIdempotent(t *testing.T) {
	s := newSQLiteStorage(t)
	ctx := context.Background()
	base := time.Date(2024, 10, 16, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Store(ctx, event("dup", base, 1)))
	require.NoError(t, s.Store(ctx, event("dup", base, 1)))

	got, err := s.Query(ctx, base.Add(-time.Minute), base.Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSQLStorageQueryWindowAndLimit(t *testing.T) {
	s := newSQLiteStorage(t)
	ctx := context.Background()
	base := time.Date(2024, 10, 16, 12, 0, 0, 0, time.UTC)

	events := make([]*models.PredictionEvent, 0, 10)
	for i := 0; i < 10; i++ {
		events = append(events, event(fmt.Sprintf("e%d", i), base.Add(time.Duration(i)*time.Minute), 1))
	}
	require.NoError(t, s.StoreBatch(ctx, events))

	got, err := s.Query(ctx, base.Add(2*time.Minute), base.Add(6*time.Minute), 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "e6", got[0].ID)
	assert.Equal(t, "e4", got[2].ID)
}

func TestSQLStorageInitIsIdempotent(t *testing.T) {
	s := newSQLiteStorage(t)
	assert.NoError(t, s.Init(context.Background()))
	assert.NoError(t, s.Health(context.Background()))
}

func TestSQLStorageUnknownDialect(t *testing.T) {
	s := NewSQLStorage(nil, "t", Dialect("oracle"))
	assert.Error(t, s.Init(context.Background()))
}

func TestSQLStorageWindowReadsCollapseDuplicatesOnClickHouse(t *testing.T) {
	ch := NewSQLStorage(nil, "prediction_events", DialectClickHouse).selectWindow()
	assert.Contains(t, ch, "FROM prediction_events FINAL WHERE")

	lite := NewSQLStorage(nil, "prediction_events", DialectSQLite).selectWindow()
	assert.Contains(t, lite, "FROM prediction_events WHERE")
	assert.NotContains(t, lite, "FINAL")
}

type capturingWriter struct {
	msgs []kafka.Message
}

func (w *capturingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *capturingWriter) Close() error { return nil }

func TestKafkaPublisherKeysByEventID(t *testing.T) {
	w := &capturingWriter{}
	p := NewKafkaPublisher(pkgkafka.NewProducerWithWriter(w, "prediction-events", "gzip", nil))
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, p.Publish(ctx, event("a", now, 1)))
	require.NoError(t, p.PublishBatch(ctx, []*models.PredictionEvent{event("b", now, 0), nil, event("c", now, 1)}))
	require.NoError(t, p.PublishBatch(ctx, nil))

	require.Len(t, w.msgs, 3)
	assert.Equal(t, "a", string(w.msgs[0].Key))
	assert.Equal(t, "c", string(w.msgs[2].Key))

	var decoded models.PredictionEvent
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &decoded))
	assert.Equal(t, "b", decoded.ID)
	assert.Equal(t, 0, decoded.Prediction)
	assert.Equal(t, "http", decoded.Transport)
	assert.Equal(t, now, w.msgs[1].Time)
	require.Len(t, w.msgs[1].Headers, 1)
	assert.Equal(t, "model_checksum", w.msgs[1].Headers[0].Key)
}
