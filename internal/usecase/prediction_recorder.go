package usecase

import (
	"context"
	"fmt"
	"time"

	"CardioRisk/internal/domain/models"
	drepo "CardioRisk/internal/domain/repository"

	"github.com/google/uuid"
)

// Audit backends.
const (
	BackendNone       = "none"
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
	BackendSQLite     = "sqlite"
)

// PredictionRecorder routes prediction events to the configured audit backend.
type PredictionRecorder struct {
	pub     drepo.Publisher
	store   drepo.Storage
	metrics drepo.Metrics
	backend string
}

// NewPredictionRecorder creates a new PredictionRecorder instance.
func NewPredictionRecorder(
	pub drepo.Publisher,
	store drepo.Storage,
	metrics drepo.Metrics,
	backend string,
) *PredictionRecorder {
	return &PredictionRecorder{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
	}
}

// Backend returns the configured backend name.
func (r *PredictionRecorder) Backend() string { return r.backend }

// Process records a single event.
func (r *PredictionRecorder) Process(ctx context.Context, e *models.PredictionEvent) error {
	if e == nil {
		return fmt.Errorf("event is nil")
	}
	return r.ProcessBatch(ctx, []*models.PredictionEvent{e})
}

// ProcessBatch records events in one round-trip to the backend.
func (r *PredictionRecorder) ProcessBatch(ctx context.Context, events []*models.PredictionEvent) error {
	if len(events) == 0 {
		return nil
	}

	start := time.Now()
	var err error

	switch r.backend {
	case BackendNone:
		return nil
	case BackendKafka:
		err = r.pub.PublishBatch(ctx, events)
	case BackendClickHouse, BackendSQLite:
		err = r.store.StoreBatch(ctx, events)
	default:
		err = fmt.Errorf("unknown backend: %s", r.backend)
	}

	if err != nil {
		r.metrics.RecordError("audit_" + r.backend)
		return fmt.Errorf("record %d events: %w", len(events), err)
	}

	r.metrics.RecordLatency("audit_"+r.backend, time.Since(start).Seconds())
	return nil
}

// Close closes underlying resources if available.
func (r *PredictionRecorder) Close() {
	if r.pub != nil {
		_ = r.pub.Close()
	}
	if r.store != nil {
		_ = r.store.Close()
	}
}

// NewPredictionEvent builds the audit record for one finished assessment.
func NewPredictionEvent(transport string, p models.PatientFeatures, a models.Assessment, info models.ModelInfo) *models.PredictionEvent {
	return &models.PredictionEvent{
		ID:            uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		Transport:     transport,
		Status:        a.Status,
		Features:      models.NewFeatureVector(p).Map(),
		Prediction:    a.Result.Prediction,
		RiskLevel:     a.Result.RiskLevel,
		Message:       a.Result.Message,
		LatencyMicros: a.Latency.Microseconds(),
		ModelVersion:  info.Version,
		ModelChecksum: info.Checksum,
	}
}
