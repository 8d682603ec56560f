package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"CardioRisk/internal/domain/models"
	domrepo "CardioRisk/internal/domain/repository"
	"CardioRisk/pkg/logger"
)

// BatchProc is the minimal processor interface the pipeline needs.
type BatchProc interface {
	ProcessBatch(ctx context.Context, events []*models.PredictionEvent) error
}

// AuditPipeline decouples request handling from the audit sink. Enqueue never
// blocks; a background worker flushes events in batches by size or interval.
// Sink failures are logged and counted, never reported to the caller.
type AuditPipeline struct {
	proc          BatchProc
	metrics       domrepo.Metrics
	log           *logger.Logger
	bufSize       int
	batchSize     int
	flushInterval time.Duration
	flushTimeout  time.Duration

	bufCh   chan *models.PredictionEvent
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	started bool
	stopped bool
}

type PipelineOption func(*AuditPipeline)

// WithBufferSize sets the queue capacity. Events beyond it are dropped.
func WithBufferSize(n int) PipelineOption {
	return func(p *AuditPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithBatchSize sets the max events per flush.
func WithBatchSize(n int) PipelineOption {
	return func(p *AuditPipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithFlushInterval sets how long a partial batch may wait.
func WithFlushInterval(d time.Duration) PipelineOption {
	return func(p *AuditPipeline) {
		if d > 0 {
			p.flushInterval = d
		}
	}
}

// WithLogger sets the logger for sink failures.
func WithLogger(l *logger.Logger) PipelineOption {
	return func(p *AuditPipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// NewAuditPipeline creates a new pipeline. Call Start before Enqueue.
func NewAuditPipeline(proc BatchProc, metrics domrepo.Metrics, opts ...PipelineOption) *AuditPipeline {
	p := &AuditPipeline{
		proc:          proc,
		metrics:       metrics,
		log:           logger.Nop(),
		bufSize:       1000,
		batchSize:     100,
		flushInterval: time.Second,
		flushTimeout:  5 * time.Second,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.PredictionEvent, p.bufSize)
	return p
}

// Start launches the background flush worker.
func (p *AuditPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.run(ctx)
}

func (p *AuditPipeline) run(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	batch := make([]*models.PredictionEvent, 0, p.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		p.flush(ctx, batch)
		batch = make([]*models.PredictionEvent, 0, p.batchSize)
	}

	for {
		select {
		case e := <-p.bufCh:
			batch = append(batch, e)
			if len(batch) >= p.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-p.stopCh:
			// drain what is already queued
			for {
				select {
				case e := <-p.bufCh:
					batch = append(batch, e)
					if len(batch) >= p.batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

func (p *AuditPipeline) flush(ctx context.Context, batch []*models.PredictionEvent) {
	start := time.Now()
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.flushTimeout)
	defer cancel()

	if err := p.proc.ProcessBatch(fctx, batch); err != nil {
		p.metrics.RecordError("audit_flush")
		p.log.Error("audit flush failed",
			logger.Int("events", len(batch)),
			logger.Error(err),
		)
		return
	}
	p.metrics.RecordLatency("audit_flush", time.Since(start).Seconds())
}

// Enqueue queues an event without blocking. It reports false when the event
// was dropped because the queue is full or the pipeline is stopped.
func (p *AuditPipeline) Enqueue(e *models.PredictionEvent) bool {
	if err := validateEvent(e); err != nil {
		p.metrics.RecordError("audit_validate")
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}

	select {
	case p.bufCh <- e:
		return true
	default:
		p.metrics.RecordError("audit_buffer_full")
		return false
	}
}

// Depth is the number of queued events.
func (p *AuditPipeline) Depth() int {
	return len(p.bufCh)
}

// Stop flushes queued events and stops the worker. It waits until the final
// flush finishes or ctx is done.
func (p *AuditPipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	started := p.started
	p.mu.Unlock()

	if !started {
		return nil
	}
	close(p.stopCh)

	select {
	case <-p.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit pipeline stop: %w", ctx.Err())
	}
}

func validateEvent(e *models.PredictionEvent) error {
	if e == nil {
		return fmt.Errorf("event nil")
	}
	if e.ID == "" {
		return fmt.Errorf("event id empty")
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("event timestamp empty")
	}
	return nil
}
