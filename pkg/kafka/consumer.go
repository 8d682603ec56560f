package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"CardioRisk/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// Reader is the subset of *kafka.Reader used by Consumer.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerOption configures Consumer.
type ConsumerOption func(*ConsumerConfig)

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	Brokers    []string
	GroupID    string
	RetryMax   int
	BackoffMin time.Duration
	BackoffMax time.Duration
	DLQTopic   string
	MinBytes   int
	MaxBytes   int
	Registerer prometheus.Registerer
	Logger     *logger.Logger
}

// WithConsumerBrokers sets Kafka brokers.
func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.Brokers = brokers
	}
}

// WithConsumerGroupID sets consumer group ID.
func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.GroupID = groupID
	}
}

// WithConsumerRetry configures retry attempts and backoff range.
func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.RetryMax = max
		c.BackoffMin = backoffMin
		c.BackoffMax = backoffMax
	}
}

// WithConsumerDLQ sets a Kafka topic name for DLQ.
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.DLQTopic = topic
	}
}

// WithConsumerFetch sets fetch min/max bytes.
func WithConsumerFetch(minBytes, maxBytes int) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.MinBytes = minBytes
		c.MaxBytes = maxBytes
	}
}

// WithConsumerRegisterer registers consumer metrics on reg.
func WithConsumerRegisterer(reg prometheus.Registerer) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.Registerer = reg
	}
}

// WithConsumerLogger sets the consumer logger.
func WithConsumerLogger(l *logger.Logger) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.Logger = l
	}
}

func defaultConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		GroupID:    "default",
		RetryMax:   3,
		BackoffMin: 50 * time.Millisecond,
		BackoffMax: 2 * time.Second,
		MinBytes:   1,
		MaxBytes:   10e6, // 10MB
		Logger:     logger.Nop(),
	}
}

// Consumer reads one topic in a consumer group and hands each message to a
// handler. Messages are processed one at a time: fetch, handle with retries,
// dead-letter on exhaustion, then commit. Group offsets are cumulative, so the
// loop never moves past a message that neither succeeded nor reached the DLQ:
// it keeps retrying that message, waiting BackoffMax between rounds, until it
// settles or the consumer is stopped.
type Consumer struct {
	cfg     *ConsumerConfig
	reader  Reader
	handler MessageHandler
	dlq     Writer
	log     *logger.Logger
	metrics *consumerMetrics

	stopOnce sync.Once
	cancel   context.CancelFunc
	doneCh   chan struct{}
}

// NewConsumer creates a group consumer for handler.Topic().
func NewConsumer(handler MessageHandler, opts ...ConsumerOption) (*Consumer, error) {
	cfg := defaultConsumerConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if handler == nil || handler.Topic() == "" {
		return nil, fmt.Errorf("handler with a topic is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    handler.Topic(),
		GroupID:  cfg.GroupID,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})

	var dlq Writer
	if cfg.DLQTopic != "" {
		dlq = &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.DLQTopic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		}
	}

	return newConsumer(cfg, reader, dlq, handler), nil
}

// NewConsumerWithReader wraps existing reader and DLQ writer. dlq may be nil.
func NewConsumerWithReader(r Reader, dlq Writer, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	cfg := defaultConsumerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return newConsumer(cfg, r, dlq, handler)
}

func newConsumer(cfg *ConsumerConfig, r Reader, dlq Writer, handler MessageHandler) *Consumer {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Consumer{
		cfg:     cfg,
		reader:  r,
		handler: handler,
		dlq:     dlq,
		log:     log.With(logger.String("topic", handler.Topic())),
		metrics: newConsumerMetrics(cfg.Registerer),
		doneCh:  make(chan struct{}),
	}
}

// Start launches the consume loop in the background.
func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)
	c.log.Info("kafka consumer started", logger.String("group", c.cfg.GroupID))
}

func (c *Consumer) run(ctx context.Context) {
	defer close(c.doneCh)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			c.log.Warn("kafka fetch failed", logger.Error(err))
			if !sleepCtx(ctx, c.cfg.BackoffMax) {
				return
			}
			continue
		}

		if !c.settle(ctx, msg) {
			return
		}

		if err := c.commit(ctx, msg); err != nil {
			c.log.Warn("kafka commit failed",
				logger.Int("partition", msg.Partition),
				logger.Int64("offset", msg.Offset),
				logger.Error(err),
			)
		}
	}
}

// settle processes msg until it is handled or dead-lettered. It returns false
// when ctx ended first; msg then stays uncommitted and is redelivered.
func (c *Consumer) settle(ctx context.Context, msg kafka.Message) bool {
	topic := c.handler.Topic()
	for round := 1; ; round++ {
		start := time.Now()
		result, err := c.process(ctx, msg)
		c.metrics.observe(topic, result, time.Since(start))
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		c.log.Error("message blocked, retrying",
			logger.Int("partition", msg.Partition),
			logger.Int64("offset", msg.Offset),
			logger.Int("round", round),
			logger.Error(err),
		)
		if !sleepCtx(ctx, c.cfg.BackoffMax) {
			return false
		}
	}
}

// process handles msg with retries. It returns an error only when msg must not
// be committed.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) (string, error) {
	var err error
	for attempt := 1; ; attempt++ {
		if err = c.safeHandle(ctx, msg.Value); err == nil {
			return "ok", nil
		}
		if attempt > c.cfg.RetryMax {
			break
		}
		if !sleepCtx(ctx, backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)) {
			return "aborted", ctx.Err()
		}
	}

	c.log.Warn("message handling failed",
		logger.Int("attempts", c.cfg.RetryMax+1),
		logger.Int64("offset", msg.Offset),
		logger.Error(err),
	)
	if c.dlq == nil {
		return "failed", err
	}
	if dlqErr := c.dlq.WriteMessages(ctx, kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "source_topic", Value: []byte(msg.Topic)},
			{Key: "error", Value: []byte(err.Error())},
		},
	}); dlqErr != nil {
		return "failed", fmt.Errorf("dlq write: %w", dlqErr)
	}
	return "dead_lettered", nil
}

func (c *Consumer) safeHandle(ctx context.Context, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return c.handler.Handle(ctx, data)
}

// commit retries a few times; a lost commit only causes redelivery.
func (c *Consumer) commit(ctx context.Context, msg kafka.Message) error {
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err = c.reader.CommitMessages(cctx, msg)
		cancel()
		if err == nil {
			return nil
		}
		if !sleepCtx(ctx, backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt)) {
			break
		}
	}
	return err
}

// Stop stops the loop and closes the reader and DLQ writer.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
			select {
			case <-c.doneCh:
			case <-ctx.Done():
				stopErr = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
			}
		}
		if err := c.reader.Close(); err != nil {
			c.log.Warn("kafka reader close error", logger.Error(err))
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.log.Warn("kafka dlq close error", logger.Error(err))
			}
		}
		c.log.Info("kafka consumer stopped")
	})
	return stopErr
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	// exponential backoff base
	exp := min * time.Duration(1<<uint(attempt-1))
	if exp > max || exp <= 0 {
		exp = max
	}
	// jitter up to 50%
	jitter := time.Duration(rand.Int63n(int64(exp)/2 + 1))
	return exp - jitter
}

type consumerMetrics struct {
	handled *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

func newConsumerMetrics(reg prometheus.Registerer) *consumerMetrics {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)
	return &consumerMetrics{
		handled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardiorisk_kafka_consumer_messages_total",
				Help: "Messages consumed by final result",
			},
			[]string{"topic", "result"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cardiorisk_kafka_consumer_handle_seconds",
				Help:    "Handling time per message including retries",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"topic"},
		),
	}
}

func (m *consumerMetrics) observe(topic, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.handled.WithLabelValues(topic, result).Inc()
	m.latency.WithLabelValues(topic).Observe(d.Seconds())
}
