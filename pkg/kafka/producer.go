package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// Writer is the part of *kafka.Writer a Producer needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Message is one record to publish. Value is sent as-is when it is a string
// or []byte and JSON-encoded otherwise. A zero Time means "now".
type Message struct {
	Key     []byte
	Value   interface{}
	Time    time.Time
	Headers map[string]string
}

// Producer writes messages to a single topic.
type Producer struct {
	writer  Writer
	topic   string
	codec   string
	metrics *producerMetrics
}

// NewProducer builds a kafka-go writer from cfg. reg may be nil.
func NewProducer(cfg ProducerConfig, reg prometheus.Registerer) (*Producer, error) {
	if err := cfg.prepare(); err != nil {
		return nil, err
	}
	return NewProducerWithWriter(cfg.writer(), cfg.Topic, cfg.Compression, reg), nil
}

// NewProducerWithWriter wraps w; codec only labels metrics.
func NewProducerWithWriter(w Writer, topic, codec string, reg prometheus.Registerer) *Producer {
	return &Producer{writer: w, topic: topic, codec: codec, metrics: newProducerMetrics(reg)}
}

func (p *Producer) Topic() string { return p.topic }

// Publish sends a single keyed value.
func (p *Producer) Publish(ctx context.Context, key []byte, value interface{}) error {
	return p.PublishBatch(ctx, []Message{{Key: key, Value: value}})
}

// PublishBatch encodes every message first and writes them in one call, so
// an encoding failure sends nothing.
func (p *Producer) PublishBatch(ctx context.Context, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}
	start := time.Now()

	out := make([]kafka.Message, len(messages))
	var size int64
	for i, m := range messages {
		km, err := m.toKafka(start)
		if err != nil {
			return err
		}
		out[i] = km
		size += int64(len(km.Value))
	}

	err := p.writer.WriteMessages(ctx, out...)
	p.metrics.observe(p.topic, p.codec, size, len(out), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("kafka write %s: %w", p.topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func (m Message) toKafka(now time.Time) (kafka.Message, error) {
	var value []byte
	switch v := m.Value.(type) {
	case []byte:
		value = v
	case string:
		value = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return kafka.Message{}, fmt.Errorf("marshal value: %w", err)
		}
		value = b
	}

	ts := m.Time
	if ts.IsZero() {
		ts = now
	}
	km := kafka.Message{Key: m.Key, Value: value, Time: ts}
	for k, v := range m.Headers {
		km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return km, nil
}

type producerMetrics struct {
	msgs    *prometheus.CounterVec
	errs    *prometheus.CounterVec
	bytes   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

func newProducerMetrics(reg prometheus.Registerer) *producerMetrics {
	if reg == nil {
		return nil
	}
	f := promauto.With(reg)
	return &producerMetrics{
		msgs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cardiorisk_kafka_producer_messages_total",
			Help: "Messages handed to the Kafka writer, by outcome.",
		}, []string{"topic", "compression", "result"}),
		errs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cardiorisk_kafka_producer_errors_total",
			Help: "Failed Kafka writes.",
		}, []string{"topic"}),
		bytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cardiorisk_kafka_producer_bytes_total",
			Help: "Uncompressed payload bytes written.",
		}, []string{"topic", "compression"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cardiorisk_kafka_producer_publish_seconds",
			Help:    "Time spent in one batch write.",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"}),
	}
}

func (m *producerMetrics) observe(topic, codec string, size int64, n int, took time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
		m.errs.WithLabelValues(topic).Inc()
	}
	m.msgs.WithLabelValues(topic, codec, result).Add(float64(n))
	m.bytes.WithLabelValues(topic, codec).Add(float64(size))
	m.latency.WithLabelValues(topic).Observe(took.Seconds())
}
