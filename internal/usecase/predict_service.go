package usecase

import (
	"context"
	"errors"
	"time"

	"CardioRisk/internal/domain/models"
	drepo "CardioRisk/internal/domain/repository"
	"CardioRisk/pkg/cache"
	"CardioRisk/pkg/logger"
)

// PredictService is the entry point transports call. It puts an optional
// read-through result cache in front of RiskAssessor. Only successful verdicts
// are cached, keyed by the artifact checksum and the exact feature values.
type PredictService struct {
	assessor *RiskAssessor
	cache    cache.Service
	ttl      time.Duration
	checksum string
	metrics  drepo.Metrics
	log      *logger.Logger
}

// NewPredictService creates a new PredictService. c may be nil to disable caching;
// an empty checksum also disables it.
func NewPredictService(
	assessor *RiskAssessor,
	c cache.Service,
	ttl time.Duration,
	checksum string,
	metrics drepo.Metrics,
	log *logger.Logger,
) *PredictService {
	if log == nil {
		log = logger.Nop()
	}
	if checksum == "" {
		c = nil
	}
	return &PredictService{
		assessor: assessor,
		cache:    c,
		ttl:      ttl,
		checksum: checksum,
		metrics:  metrics,
		log:      log,
	}
}

// Assess returns the verdict for p, from cache when possible.
func (s *PredictService) Assess(ctx context.Context, p models.PatientFeatures) models.Assessment {
	if s.cache == nil {
		return s.assessor.Assess(p)
	}

	key := s.key(p)
	var cached models.PredictionResult
	err := s.cache.Get(ctx, key, &cached)
	switch {
	case err == nil:
		s.record(models.StatusSuccess, cached.Prediction)
		return models.Assessment{Status: models.StatusSuccess, Result: cached}
	case !errors.Is(err, cache.ErrCacheMiss):
		s.recordError("cache_get")
		s.log.Warn("result cache read failed", logger.String("key", key), logger.Error(err))
	}

	res := s.assessor.Assess(p)
	if res.Status != models.StatusSuccess {
		return res
	}
	if err := s.cache.Set(ctx, key, res.Result, s.ttl); err != nil {
		s.recordError("cache_set")
		s.log.Warn("result cache write failed", logger.String("key", key), logger.Error(err))
	}
	return res
}

func (s *PredictService) key(p models.PatientFeatures) string {
	return cache.VerdictKey(s.checksum, p.SystolicBloodPressure, p.BloodSugar, p.Age)
}

func (s *PredictService) record(status models.AssessmentStatus, prediction int) {
	if s.metrics != nil {
		s.metrics.RecordPrediction(status, prediction)
	}
}

func (s *PredictService) recordError(kind string) {
	if s.metrics != nil {
		s.metrics.RecordError(kind)
	}
}
