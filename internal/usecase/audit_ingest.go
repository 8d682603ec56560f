package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"CardioRisk/internal/domain/models"
	domrepo "CardioRisk/internal/domain/repository"
)

// AuditIngestHandler consumes prediction events from Kafka and writes them to storage.
type AuditIngestHandler struct {
	topic   string
	storage domrepo.Storage
	metrics domrepo.Metrics
}

func NewAuditIngestHandler(topic string, storage domrepo.Storage, metrics domrepo.Metrics) *AuditIngestHandler {
	return &AuditIngestHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *AuditIngestHandler) Topic() string { return h.topic }

// Handle decodes one PredictionEvent and stores it.
func (h *AuditIngestHandler) Handle(ctx context.Context, b []byte) error {
	var e models.PredictionEvent
	if err := json.Unmarshal(b, &e); err != nil {
		h.recordError("ingest_unmarshal")
		return fmt.Errorf("decode prediction event: %w", err)
	}
	if e.ID == "" || e.Timestamp.IsZero() {
		h.recordError("ingest_invalid")
		return fmt.Errorf("prediction event missing id or timestamp")
	}

	start := time.Now()
	err := h.storage.Store(ctx, &e)
	h.recordLatency("ingest_store", time.Since(start).Seconds())
	if err != nil {
		h.recordError("ingest_store")
		return err
	}
	// from prediction to durable storage
	h.recordLatency("ingest_e2e", time.Since(e.Timestamp).Seconds())
	return nil
}

func (h *AuditIngestHandler) recordError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}

func (h *AuditIngestHandler) recordLatency(op string, seconds float64) {
	if h.metrics != nil {
		h.metrics.RecordLatency(op, seconds)
	}
}
