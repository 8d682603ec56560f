package usecase

import (
	"fmt"
	"time"

	"CardioRisk/internal/domain/models"
	drepo "CardioRisk/internal/domain/repository"
	"CardioRisk/internal/domain/service"
	"CardioRisk/pkg/logger"
)

// RiskAssessor turns patient features into a risk verdict using the loaded artifact.
// It holds no per-request state and is safe for concurrent use.
type RiskAssessor struct {
	model   service.ModelHandle
	metrics drepo.Metrics
	log     *logger.Logger
}

// NewRiskAssessor creates a new RiskAssessor instance.
func NewRiskAssessor(model service.ModelHandle, metrics drepo.Metrics, log *logger.Logger) *RiskAssessor {
	if log == nil {
		log = logger.Nop()
	}
	return &RiskAssessor{model: model, metrics: metrics, log: log}
}

// Predict returns only the response entity of Assess.
func (a *RiskAssessor) Predict(p models.PatientFeatures) models.PredictionResult {
	return a.Assess(p).Result
}

// Assess runs one prediction. It never returns an error: model absence and
// inference failures are reported as a -1 verdict with the status set accordingly.
func (a *RiskAssessor) Assess(p models.PatientFeatures) models.Assessment {
	if a.model == nil || !a.model.Ready() {
		res := models.Assessment{
			Status: models.StatusModelUnavailable,
			Result: models.PredictionResult{
				Prediction: models.PredictionNoVerdict,
				RiskLevel:  models.RiskLevelError,
				Message:    models.MessageModelNotReady,
			},
			Err: models.ErrModelUnavailable,
		}
		a.record(res)
		return res
	}

	v := models.NewFeatureVector(p)

	start := time.Now()
	label, err := a.infer(v)
	latency := time.Since(start)
	if a.metrics != nil {
		a.metrics.RecordInferenceLatency(latency.Seconds())
	}

	if err != nil {
		ierr := &models.InferenceError{Cause: err}
		a.log.Warn("prediction failed",
			logger.Any("features", v.Map()),
			logger.Error(err),
		)
		res := models.Assessment{
			Status: models.StatusInferenceFailure,
			Result: models.PredictionResult{
				Prediction: models.PredictionNoVerdict,
				RiskLevel:  models.RiskLevelError,
				Message:    ierr.Error(),
			},
			Err:     ierr,
			Latency: latency,
		}
		a.record(res)
		return res
	}

	res := models.Assessment{
		Status:  models.StatusSuccess,
		Result:  MapLabel(label),
		Latency: latency,
	}
	a.record(res)
	return res
}

// infer calls the artifact with exactly one row. A panic inside the artifact is
// converted into an error so it never reaches the transport.
func (a *RiskAssessor) infer(v models.FeatureVector) (label int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	out, err := a.model.Predict(v)
	if err != nil {
		return 0, err
	}
	return out.Label()
}

func (a *RiskAssessor) record(res models.Assessment) {
	if a.metrics == nil {
		return
	}
	a.metrics.RecordPrediction(res.Status, res.Result.Prediction)
	if res.Status != models.StatusSuccess {
		a.metrics.RecordError(string(res.Status))
	}
}

// MapLabel maps a class label to the response entity. Only 1 means high risk;
// every other label, including unexpected ones, is reported as low risk.
func MapLabel(label int) models.PredictionResult {
	if label == models.PredictionHighRisk {
		return models.PredictionResult{
			Prediction: models.PredictionHighRisk,
			RiskLevel:  models.RiskLevelHigh,
			Message:    models.MessageHighRisk,
		}
	}
	return models.PredictionResult{
		Prediction: models.PredictionLowRisk,
		RiskLevel:  models.RiskLevelLow,
		Message:    models.MessageLowRisk,
	}
}
