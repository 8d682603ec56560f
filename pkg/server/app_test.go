package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"CardioRisk/internal/domain/models"
	mid "CardioRisk/internal/middleware"
	"CardioRisk/pkg/config"
	xhttp "CardioRisk/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sink struct {
	mu     sync.Mutex
	events []*models.PredictionEvent
}

func (s *sink) ProcessBatch(_ context.Context, events []*models.PredictionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

type nopMetrics struct{}

func (nopMetrics) RecordPrediction(models.AssessmentStatus, int) {}
func (nopMetrics) RecordInferenceLatency(float64)                {}
func (nopMetrics) RecordModelLoaded(bool)                        {}
func (nopMetrics) RecordError(string)                            {}
func (nopMetrics) RecordLatency(string, float64)                 {}

func TestRunContextShutsDownInOrder(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Server.ShutdownTimeout = 2 * time.Second

	s := &sink{}
	audit := mid.NewAuditPipeline(s, nopMetrics{}, mid.WithFlushInterval(time.Hour))
	require.True(t, audit.Enqueue(&models.PredictionEvent{ID: "e1", Timestamp: time.Now()}))

	var order []string
	closer := func(name string, err error) Closer {
		return Closer{Name: name, Close: func() error {
			order = append(order, name)
			return err
		}}
	}

	srv := xhttp.NewServer(nil, nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0))
	app := New(cfg, nil, srv, audit, closer("first", nil), closer("second", errors.New("already closed")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, app.RunContext(ctx))

	assert.Equal(t, []string{"second", "first"}, order)
	require.Len(t, s.events, 1)
	assert.Equal(t, "e1", s.events[0].ID)
	assert.False(t, audit.Enqueue(&models.PredictionEvent{ID: "late", Timestamp: time.Now()}))
}

func TestRunContextWithoutAudit(t *testing.T) {
	srv := xhttp.NewServer(nil, nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0))
	app := New(nil, nil, srv, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, app.RunContext(ctx))
}
