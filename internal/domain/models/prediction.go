package models

import (
	"errors"
	"fmt"
	"time"
)

// Prediction values carried in PredictionResult.Prediction.
const (
	PredictionHighRisk   = 1
	PredictionLowRisk    = 0
	PredictionNoVerdict  = -1
	RiskLevelHigh        = "high risk"
	RiskLevelLow         = "low risk"
	RiskLevelError       = "error"
	MessageHighRisk      = "A detailed health examination is recommended, please consult a doctor"
	MessageLowRisk       = "Heart attack risk is low"
	MessageModelNotReady = "model not loaded"
)

// ErrModelUnavailable means the artifact failed to load or was never configured.
var ErrModelUnavailable = errors.New("model not loaded")

// InferenceError wraps a failure raised by a loaded artifact during one prediction.
type InferenceError struct {
	Cause error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("prediction failed: %v", e.Cause)
}

// Unwrap returns the underlying cause.
func (e *InferenceError) Unwrap() error { return e.Cause }

// PredictionResult is the response entity. Prediction is 1 (high risk), 0 (low risk)
// or -1 when no verdict was produced.
type PredictionResult struct {
	Prediction int    `json:"prediction"`
	RiskLevel  string `json:"risk_level"`
	Message    string `json:"message"`
}

// NoVerdict reports whether r carries the -1 sentinel.
func (r PredictionResult) NoVerdict() bool { return r.Prediction == PredictionNoVerdict }

// AssessmentStatus tags which terminal state a request reached.
type AssessmentStatus string

const (
	StatusSuccess          AssessmentStatus = "success"
	StatusModelUnavailable AssessmentStatus = "model_unavailable"
	StatusInferenceFailure AssessmentStatus = "inference_failure"
)

// Assessment is the explicit result variant returned by the inference handler.
type Assessment struct {
	Status  AssessmentStatus
	Result  PredictionResult
	Err     error
	Latency time.Duration
}

// Outcome is the raw output of one artifact call: either a scalar label or a
// batch holding one label per input row.
type Outcome struct {
	labels []int
	scalar bool
}

// ScalarOutcome wraps a single label.
func ScalarOutcome(label int) Outcome {
	return Outcome{labels: []int{label}, scalar: true}
}

// BatchOutcome wraps per-row labels.
func BatchOutcome(labels ...int) Outcome {
	out := make([]int, len(labels))
	copy(out, labels)
	return Outcome{labels: out}
}

// IsScalar reports whether the artifact returned a bare label.
func (o Outcome) IsScalar() bool { return o.scalar }

// Label normalizes either shape to one integer label.
func (o Outcome) Label() (int, error) {
	if o.scalar {
		return o.labels[0], nil
	}
	if len(o.labels) != 1 {
		return 0, fmt.Errorf("expected exactly one prediction, got %d", len(o.labels))
	}
	return o.labels[0], nil
}
