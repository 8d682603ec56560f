package repository

import (
	"context"
	"time"

	"CardioRisk/internal/domain/models"
)

// Publisher streams prediction events to a message broker.
type Publisher interface {
	Publish(ctx context.Context, e *models.PredictionEvent) error
	PublishBatch(ctx context.Context, events []*models.PredictionEvent) error
	Close() error
}

// Storage persists prediction events for offline analysis.
type Storage interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, e *models.PredictionEvent) error
	StoreBatch(ctx context.Context, events []*models.PredictionEvent) error
	Query(ctx context.Context, from, to time.Time, limit int) ([]*models.PredictionEvent, error)
	Health(ctx context.Context) error // ping
	Close() error
}

type Metrics interface {
	RecordPrediction(status models.AssessmentStatus, prediction int)
	RecordInferenceLatency(seconds float64)
	RecordModelLoaded(loaded bool)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
