package models

// Requests for prediction endpoints. Fields are pointers so that a missing field
// fails `required` while an explicit 0 passes.

type PredictRequest struct {
	SystolicBloodPressure *float64 `json:"systolic_blood_pressure" validate:"required"`
	BloodSugar            *float64 `json:"blood_sugar" validate:"required"`
	Age                   *float64 `json:"age" validate:"required"`
}

// Features converts a validated request. Call only after validation succeeded.
func (r *PredictRequest) Features() PatientFeatures {
	return PatientFeatures{
		SystolicBloodPressure: *r.SystolicBloodPressure,
		BloodSugar:            *r.BloodSugar,
		Age:                   *r.Age,
	}
}

// ModelInfoResponse is the body of GET /model-info when the pipeline is loaded.
type ModelInfoResponse struct {
	PipelineType  string   `json:"pipeline_type"`
	PipelineSteps []string `json:"pipeline_steps"`
	Features      []string `json:"features"`
	Version       string   `json:"version,omitempty"`
	Entrypoint    string   `json:"entrypoint"`
	Checksum      string   `json:"checksum"`
}

// ModelInfoUnavailable is the body of GET /model-info when no pipeline is loaded.
type ModelInfoUnavailable struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /health and GET /ready.
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}
