package metrics

import (
	"strconv"

	"CardioRisk/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	predictions *prometheus.CounterVec
	inference   prometheus.Histogram
	modelLoaded prometheus.Gauge
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New creates a Prometheus metrics recorder registered on reg.
// Pass prometheus.DefaultRegisterer to expose metrics on the default /metrics handler.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		predictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardiorisk_predictions_total",
				Help: "Total number of predictions by terminal status and verdict",
			},
			[]string{"status", "prediction"},
		),
		inference: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cardiorisk_inference_duration_seconds",
				Help:    "Duration of a single artifact predict call",
				Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			},
		),
		modelLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "cardiorisk_model_loaded",
				Help: "1 when the artifact loaded at startup, 0 otherwise",
			},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardiorisk_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cardiorisk_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordPrediction counts one finished request.
func (r *Recorder) RecordPrediction(status models.AssessmentStatus, prediction int) {
	r.predictions.WithLabelValues(string(status), strconv.Itoa(prediction)).Inc()
}

// RecordInferenceLatency observes one artifact call.
func (r *Recorder) RecordInferenceLatency(seconds float64) {
	r.inference.Observe(seconds)
}

// RecordModelLoaded sets the model readiness gauge.
func (r *Recorder) RecordModelLoaded(loaded bool) {
	if loaded {
		r.modelLoaded.Set(1)
		return
	}
	r.modelLoaded.Set(0)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
