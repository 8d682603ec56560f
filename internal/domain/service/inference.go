package service

import "CardioRisk/internal/domain/models"

// Predictor is the normalized inference capability of a loaded artifact.
// Implementations must be safe for concurrent use.
type Predictor interface {
	Predict(v models.FeatureVector) (models.Outcome, error)
}

// ModelHandle is the process-wide reference to the artifact. When Ready is false,
// Predict must not be called.
type ModelHandle interface {
	Predictor
	Ready() bool
}
