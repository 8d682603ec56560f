package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"CardioRisk/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditIngestHandlerStoresEvent(t *testing.T) {
	store := &fakeStorage{}
	m := newFakeMetrics()
	h := NewAuditIngestHandler("cardiorisk.predictions", store, m)

	ev := NewPredictionEvent("http", patient, models.Assessment{
		Status: models.StatusSuccess,
		Result: models.PredictionResult{Prediction: 1, RiskLevel: "high risk", Message: "ok"},
	}, models.ModelInfo{Version: "v1", Checksum: "sum"})
	b, err := json.Marshal(ev)
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), b))
	require.Len(t, store.stored, 1)
	assert.Equal(t, ev.ID, store.stored[0].ID)
	assert.Equal(t, "high risk", store.stored[0].RiskLevel)
	assert.Equal(t, "cardiorisk.predictions", h.Topic())
	assert.Empty(t, m.errors)
}

func TestAuditIngestHandlerRejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		kind    string
	}{
		{"malformed", `{"id":`, "ingest_unmarshal"},
		{"missing id", `{"timestamp":"2026-01-02T03:04:05Z"}`, "ingest_invalid"},
		{"missing timestamp", `{"id":"x"}`, "ingest_invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStorage{}
			m := newFakeMetrics()
			h := NewAuditIngestHandler("t", store, m)

			assert.Error(t, h.Handle(context.Background(), []byte(tt.payload)))
			assert.Empty(t, store.stored)
			assert.Equal(t, 1, m.errors[tt.kind])
		})
	}
}

func TestAuditIngestHandlerStoreFailure(t *testing.T) {
	boom := errors.New("db down")
	m := newFakeMetrics()
	h := NewAuditIngestHandler("t", &fakeStorage{err: boom}, m)

	b, _ := json.Marshal(models.PredictionEvent{ID: "x", Timestamp: time.Now()})
	assert.ErrorIs(t, h.Handle(context.Background(), b), boom)
	assert.Equal(t, 1, m.errors["ingest_store"])
}
