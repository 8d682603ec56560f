package models

import "time"

// ModelInfo describes a successfully loaded artifact.
type ModelInfo struct {
	Path         string   `json:"path"`
	Version      string   `json:"version,omitempty"`
	PipelineType string   `json:"pipeline_type"`
	Steps        []string `json:"steps"`
	Features     []string `json:"features"`
	Entrypoint   string   `json:"entrypoint"`
	Checksum     string   `json:"checksum"`
}

// PredictionEvent is the audit record emitted after each prediction.
// Note: no transport (json/http) concerns beyond field tags used by sinks.
type PredictionEvent struct {
	ID            string             `json:"id"`
	Timestamp     time.Time          `json:"timestamp"`
	Transport     string             `json:"transport"`
	Status        AssessmentStatus   `json:"status"`
	Features      map[string]float64 `json:"features"`
	Prediction    int                `json:"prediction"`
	RiskLevel     string             `json:"risk_level"`
	Message       string             `json:"message"`
	LatencyMicros int64              `json:"latency_us"`
	ModelVersion  string             `json:"model_version"`
	ModelChecksum string             `json:"model_checksum"`
}
