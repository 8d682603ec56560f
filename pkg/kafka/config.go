package kafka

import (
	"errors"
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/segmentio/kafka-go"
)

// ProducerConfig describes the writer behind a Producer. Zero fields take
// the default tag.
type ProducerConfig struct {
	Brokers []string
	Topic   string

	// RequiredAcks is -1 for all in-sync replicas, 1 for the leader only.
	// Zero reads as unset.
	RequiredAcks int    `default:"-1"`
	Compression  string `default:"gzip"`
	MaxAttempts  int    `default:"3"`

	WriteTimeout time.Duration `default:"10s"`
	ReadTimeout  time.Duration `default:"10s"`

	BatchSize    int           `default:"100"`
	BatchBytes   int           `default:"1048576"`
	BatchTimeout time.Duration `default:"1s"`

	// Async returns from Publish before the broker acknowledges.
	Async bool
	// HashByKey routes equal keys to the same partition.
	HashByKey       bool
	AutoCreateTopic bool
}

func (c *ProducerConfig) prepare() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("producer defaults: %w", err)
	}
	switch {
	case len(c.Brokers) == 0:
		return errors.New("kafka producer: brokers are required")
	case c.Topic == "":
		return errors.New("kafka producer: topic is required")
	}
	return nil
}

func (c *ProducerConfig) writer() *kafka.Writer {
	var bal kafka.Balancer = &kafka.LeastBytes{}
	if c.HashByKey {
		bal = &kafka.Hash{}
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Topic:                  c.Topic,
		Balancer:               bal,
		RequiredAcks:           kafka.RequiredAcks(c.RequiredAcks),
		Compression:            parseCompression(c.Compression),
		MaxAttempts:            c.MaxAttempts,
		WriteTimeout:           c.WriteTimeout,
		ReadTimeout:            c.ReadTimeout,
		BatchSize:              c.BatchSize,
		BatchBytes:             int64(c.BatchBytes),
		BatchTimeout:           c.BatchTimeout,
		Async:                  c.Async,
		AllowAutoTopicCreation: c.AutoCreateTopic,
	}
}

// parseCompression maps a codec name to kafka-go's; unknown names fall back to gzip.
func parseCompression(s string) kafka.Compression {
	switch s {
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Gzip
	}
}
