package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"CardioRisk/internal/domain/models"
	"CardioRisk/internal/domain/service"
	"CardioRisk/pkg/logger"
)

// Entrypoint selects which callable of the artifact serves predictions.
type Entrypoint string

const (
	// EntrypointPipeline runs the full pipeline and yields a batch outcome.
	EntrypointPipeline Entrypoint = "pipeline"
	// EntrypointStep calls one named inner estimator and yields a scalar outcome.
	EntrypointStep Entrypoint = "step"
)

// DefaultStep is the inner estimator name used by the step entrypoint.
const DefaultStep = "models"

// ErrNoPath is returned by Load when no artifact path is configured.
var ErrNoPath = errors.New("artifact path is empty")

type options struct {
	entrypoint Entrypoint
	step       string
	log        *logger.Logger
}

// Option configures Load.
type Option func(*options)

// WithEntrypoint selects the pipeline or step entrypoint.
func WithEntrypoint(e Entrypoint) Option {
	return func(o *options) {
		o.entrypoint = e
	}
}

// WithStep names the inner estimator for EntrypointStep.
func WithStep(name string) Option {
	return func(o *options) {
		o.step = name
	}
}

// WithLogger sets the logger used for the startup diagnostic.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// Handle is the process-wide reference to a loaded artifact. A handle is either
// present (Ready) or absent, in which case Err holds the load failure.
// It is written once by Load and is read-only afterwards.
type Handle struct {
	predictor service.Predictor
	info      models.ModelInfo
	err       error
}

var _ service.ModelHandle = (*Handle)(nil)

// Load reads the artifact at path and prepares it for inference. It never fails
// hard: any problem yields an absent handle carrying the cause.
func Load(path string, opts ...Option) *Handle {
	o := options{entrypoint: EntrypointPipeline, step: DefaultStep, log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	h := load(path, o)
	if h.err != nil {
		o.log.Error("model artifact not loaded",
			logger.String("path", path),
			logger.String("entrypoint", string(o.entrypoint)),
			logger.Error(h.err),
		)
		return h
	}

	o.log.Info("model artifact loaded",
		logger.String("path", h.info.Path),
		logger.String("version", h.info.Version),
		logger.String("pipeline_type", h.info.PipelineType),
		logger.Strings("steps", h.info.Steps),
		logger.Strings("features", h.info.Features),
		logger.String("entrypoint", h.info.Entrypoint),
		logger.String("checksum", h.info.Checksum),
	)
	return h
}

func load(path string, o options) *Handle {
	if path == "" {
		return Absent(ErrNoPath)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Absent(fmt.Errorf("read artifact: %w", err))
	}

	doc, err := Decode(b)
	if err != nil {
		return Absent(err)
	}

	predictor, err := Build(doc, o.entrypoint, o.step)
	if err != nil {
		return Absent(err)
	}

	features := append([]string(nil), doc.FeatureNames...)
	if len(features) == 0 {
		features = models.FeatureNames()
	}

	sum := sha256.Sum256(b)
	return &Handle{
		predictor: predictor,
		info: models.ModelInfo{
			Path:         path,
			Version:      doc.Version,
			PipelineType: doc.PipelineType,
			Steps:        doc.StepNames(),
			Features:     features,
			Entrypoint:   string(o.entrypoint),
			Checksum:     hex.EncodeToString(sum[:]),
		},
	}
}

// Build turns a decoded document into the predictor for the chosen entrypoint.
func Build(doc *Document, entrypoint Entrypoint, stepName string) (service.Predictor, error) {
	steps := make([]step, 0, len(doc.Steps))
	for _, spec := range doc.Steps {
		s, err := buildStep(spec, len(doc.FeatureNames))
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}

	switch entrypoint {
	case EntrypointPipeline:
		return newPipeline(doc.FeatureNames, steps)
	case EntrypointStep:
		return newNamedStep(doc.FeatureNames, steps, stepName)
	default:
		return nil, fmt.Errorf("unknown entrypoint %q", entrypoint)
	}
}

// Absent returns a handle that is not ready and reports err.
func Absent(err error) *Handle {
	return &Handle{err: err}
}

// Ready reports whether the artifact loaded.
func (h *Handle) Ready() bool {
	return h != nil && h.predictor != nil
}

// Predict runs one row through the artifact.
func (h *Handle) Predict(v models.FeatureVector) (models.Outcome, error) {
	if !h.Ready() {
		return models.Outcome{}, models.ErrModelUnavailable
	}
	return h.predictor.Predict(v)
}

// Info describes the loaded artifact. ok is false for an absent handle.
func (h *Handle) Info() (models.ModelInfo, bool) {
	if !h.Ready() {
		return models.ModelInfo{}, false
	}
	info := h.info
	info.Steps = append([]string(nil), h.info.Steps...)
	info.Features = append([]string(nil), h.info.Features...)
	return info, true
}

// Err is the load failure of an absent handle, nil otherwise.
func (h *Handle) Err() error {
	if h == nil {
		return models.ErrModelUnavailable
	}
	return h.err
}
