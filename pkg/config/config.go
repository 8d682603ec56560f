package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8001"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"500ms"`
		CORS            bool          `yaml:"cors" default:"true"`
		WSOrigins       []string      `yaml:"ws_origins"`
	} `yaml:"server"`
	Log struct {
		Level      string `yaml:"level" default:"info"`
		Format     string `yaml:"format" default:"console"`
		Output     string `yaml:"output" default:"stdout"`
		MaxSizeMB  int    `yaml:"max_size_mb" default:"100"`
		MaxBackups int    `yaml:"max_backups" default:"5"`
		MaxAgeDays int    `yaml:"max_age_days" default:"28"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Model struct {
		Path       string `yaml:"path"`
		Entrypoint string `yaml:"entrypoint" default:"pipeline"`
		Step       string `yaml:"step" default:"models"`
	} `yaml:"model"`
	RateLimit struct {
		Enabled       bool          `yaml:"enabled"`
		Capacity      float64       `yaml:"capacity" default:"20"`
		RefillPerSec  float64       `yaml:"refill_per_sec" default:"10"`
		PruneInterval time.Duration `yaml:"prune_interval" default:"1m"`
	} `yaml:"rate_limit"`
	Cache struct {
		Enabled    bool          `yaml:"enabled"`
		Backend    string        `yaml:"backend" default:"memory"`
		TTL        time.Duration `yaml:"ttl" default:"10m"`
		MemorySize int           `yaml:"memory_size" default:"10000"`
		Redis      struct {
			Host     string `yaml:"host" default:"localhost"`
			Port     int    `yaml:"port" default:"6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"cardiorisk"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Audit struct {
		Backend       string        `yaml:"backend" default:"none"`
		BufferSize    int           `yaml:"buffer_size" default:"1000"`
		BatchSize     int           `yaml:"batch_size" default:"100"`
		FlushInterval time.Duration `yaml:"flush_interval" default:"1s"`
	} `yaml:"audit"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"prediction-events"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"1s"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Ingest struct {
		Sink        string        `yaml:"sink" default:"clickhouse"`
		GroupID     string        `yaml:"group_id" default:"cardiorisk-ingest"`
		RetryMax    int           `yaml:"retry_max" default:"3"`
		BackoffMin  time.Duration `yaml:"backoff_min" default:"100ms"`
		BackoffMax  time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic    string        `yaml:"dlq_topic"`
		MinBytes    int           `yaml:"min_bytes" default:"1"`
		MaxBytes    int           `yaml:"max_bytes" default:"10485760"`
		MetricsPort int           `yaml:"metrics_port" default:"9101"`
	} `yaml:"ingest"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"cardiorisk"`
		Table            string        `yaml:"table" default:"prediction_events"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	SQLite struct {
		Path  string `yaml:"path" default:"data/predictions.db"`
		Table string `yaml:"table" default:"prediction_events"`
		WAL   bool   `yaml:"wal" default:"true"`
	} `yaml:"sqlite"`
}

// Default returns a configuration populated only from struct defaults.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("MODEL_PATH"); v != "" {
		c.Model.Path = v
	}
	if v := os.Getenv("MODEL_ENTRYPOINT"); v != "" {
		c.Model.Entrypoint = v
	}
	if v := os.Getenv("MODEL_STEP"); v != "" {
		c.Model.Step = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("AUDIT_BACKEND"); v != "" {
		c.Audit.Backend = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.SQLite.Path = v
	}
	if v := os.Getenv("INGEST_SINK"); v != "" {
		c.Ingest.Sink = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Cache.Redis.Host = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks if the configuration is valid.
// An empty model.path is allowed: the service starts with no model and reports it per request.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	for _, o := range c.Server.WSOrigins {
		if u, err := url.Parse(o); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("server.ws_origins entries must be scheme://host, got '%s'", o)
		}
	}
	switch c.Model.Entrypoint {
	case "pipeline":
	case "step":
		if c.Model.Step == "" {
			return fmt.Errorf("model.step is required when model.entrypoint is 'step'")
		}
	default:
		return fmt.Errorf("model.entrypoint must be 'pipeline' or 'step', got '%s'", c.Model.Entrypoint)
	}
	if c.RateLimit.Enabled && (c.RateLimit.Capacity < 1 || c.RateLimit.RefillPerSec <= 0) {
		return fmt.Errorf("rate_limit.capacity must be >= 1 and rate_limit.refill_per_sec > 0")
	}
	if c.RateLimit.Enabled && c.RateLimit.PruneInterval <= 0 {
		return fmt.Errorf("rate_limit.prune_interval must be > 0")
	}
	if c.Cache.Enabled && c.Cache.Backend != "memory" && c.Cache.Backend != "layered" {
		return fmt.Errorf("cache.backend must be 'memory' or 'layered', got '%s'", c.Cache.Backend)
	}
	switch c.Audit.Backend {
	case "none":
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when audit.backend is 'kafka'")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required when audit.backend is 'kafka'")
		}
	case "clickhouse":
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required when audit.backend is 'clickhouse'")
		}
	case "sqlite":
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite.path is required when audit.backend is 'sqlite'")
		}
	default:
		return fmt.Errorf("audit.backend must be one of none, kafka, clickhouse, sqlite; got '%s'", c.Audit.Backend)
	}
	if c.Audit.Backend != "none" && (c.Audit.BufferSize <= 0 || c.Audit.BatchSize <= 0) {
		return fmt.Errorf("audit.buffer_size and audit.batch_size must be positive")
	}
	return nil
}

// ValidateIngest checks the sections the Kafka ingester needs.
func (c *Config) ValidateIngest() error {
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty")
	}
	if c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required")
	}
	if c.Ingest.GroupID == "" {
		return fmt.Errorf("ingest.group_id is required")
	}
	if c.Ingest.DLQTopic != "" && c.Ingest.DLQTopic == c.Kafka.Topic {
		return fmt.Errorf("ingest.dlq_topic must differ from kafka.topic")
	}
	switch c.Ingest.Sink {
	case "clickhouse":
		if c.ClickHouse.Host == "" {
			return fmt.Errorf("clickhouse.host is required when ingest.sink is 'clickhouse'")
		}
	case "sqlite":
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite.path is required when ingest.sink is 'sqlite'")
		}
	default:
		return fmt.Errorf("ingest.sink must be 'clickhouse' or 'sqlite', got '%s'", c.Ingest.Sink)
	}
	if c.Ingest.RetryMax < 0 {
		return fmt.Errorf("ingest.retry_max cannot be negative")
	}
	if c.Ingest.BackoffMin <= 0 || c.Ingest.BackoffMax < c.Ingest.BackoffMin {
		return fmt.Errorf("ingest backoff must satisfy 0 < backoff_min <= backoff_max")
	}
	if c.Ingest.MinBytes <= 0 || c.Ingest.MaxBytes < c.Ingest.MinBytes {
		return fmt.Errorf("ingest fetch must satisfy 0 < min_bytes <= max_bytes")
	}
	return nil
}
