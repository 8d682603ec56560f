package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"CardioRisk/internal/domain/models"
	"CardioRisk/internal/domain/repository"
	pkgkafka "CardioRisk/pkg/kafka"
)

// Dialect selects DDL and type mapping for SQLStorage.
type Dialect string

const (
	DialectClickHouse Dialect = "clickhouse"
	DialectSQLite     Dialect = "sqlite"
)

const eventColumns = "event_id, ts, transport, status, systolic_blood_pressure, blood_sugar, age, prediction, risk_level, message, latency_us, model_version, model_checksum"

// SQLStorage implements Storage on database/sql for ClickHouse or SQLite.
type SQLStorage struct {
	db      *sql.DB
	table   string
	dialect Dialect
}

// NewSQLStorage creates SQL-backed prediction storage.
func NewSQLStorage(db *sql.DB, table string, dialect Dialect) *SQLStorage {
	return &SQLStorage{db: db, table: table, dialect: dialect}
}

var _ repository.Storage = (*SQLStorage)(nil)

// Init creates the events table if missing.
func (s *SQLStorage) Init(ctx context.Context) error {
	var ddl string
	switch s.dialect {
	case DialectClickHouse:
		ddl = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			event_id String,
			ts DateTime64(3, 'UTC'),
			transport LowCardinality(String),
			status LowCardinality(String),
			systolic_blood_pressure Float64,
			blood_sugar Float64,
			age Float64,
			prediction Int8,
			risk_level LowCardinality(String),
			message String,
			latency_us Int64,
			model_version String,
			model_checksum String
		) ENGINE = ReplacingMergeTree ORDER BY (ts, event_id)`, s.table)
	case DialectSQLite:
		ddl = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			event_id TEXT PRIMARY KEY,
			ts TIMESTAMP NOT NULL,
			transport TEXT NOT NULL,
			status TEXT NOT NULL,
			systolic_blood_pressure REAL NOT NULL,
			blood_sugar REAL NOT NULL,
			age REAL NOT NULL,
			prediction INTEGER NOT NULL,
			risk_level TEXT NOT NULL,
			message TEXT NOT NULL,
			latency_us INTEGER NOT NULL,
			model_version TEXT NOT NULL,
			model_checksum TEXT NOT NULL
		)`, s.table)
	default:
		return fmt.Errorf("unknown dialect: %s", s.dialect)
	}

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	if s.dialect == DialectSQLite {
		idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_ts ON %s (ts)", s.table, s.table)
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func (s *SQLStorage) Store(ctx context.Context, e *models.PredictionEvent) error {
	return s.StoreBatch(ctx, []*models.PredictionEvent{e})
}

// StoreBatch inserts events with multi-row VALUES, chunked to bound statement size.
// Inserting an event ID twice is not an error: SQLite ignores the row and
// ClickHouse collapses it on merge.
func (s *SQLStorage) StoreBatch(ctx context.Context, events []*models.PredictionEvent) error {
	const chunkSize = 500
	insert := "INSERT INTO"
	if s.dialect == DialectSQLite {
		insert = "INSERT OR IGNORE INTO"
	}
	for start := 0; start < len(events); start += chunkSize {
		end := start + chunkSize
		if end > len(events) {
			end = len(events)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*13)
		for _, e := range events[start:end] {
			if e == nil || e.ID == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				e.ID,
				e.Timestamp.UTC(),
				e.Transport,
				string(e.Status),
				e.Features[models.FeatureSystolicBloodPressure],
				e.Features[models.FeatureBloodSugar],
				e.Features[models.FeatureAge],
				e.Prediction,
				e.RiskLevel,
				e.Message,
				e.LatencyMicros,
				e.ModelVersion,
				e.ModelChecksum,
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("%s %s (%s) VALUES %s", insert, s.table, eventColumns, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert events: %w", err)
		}
	}
	return nil
}

// Query returns events in [from, to], newest first.
func (s *SQLStorage) Query(ctx context.Context, from, to time.Time, limit int) ([]*models.PredictionEvent, error) {
	rows, err := s.db.QueryContext(ctx, s.selectWindow(), from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []*models.PredictionEvent
	for rows.Next() {
		var (
			e      models.PredictionEvent
			status string
			sbp    float64
			sugar  float64
			age    float64
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Transport, &status, &sbp, &sugar, &age,
			&e.Prediction, &e.RiskLevel, &e.Message, &e.LatencyMicros, &e.ModelVersion, &e.ModelChecksum); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Status = models.AssessmentStatus(status)
		e.Features = map[string]float64{
			models.FeatureSystolicBloodPressure: sbp,
			models.FeatureBloodSugar:            sugar,
			models.FeatureAge:                   age,
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// selectWindow reads with FINAL on ClickHouse so redelivered events that
// ReplacingMergeTree has not merged yet come back once.
func (s *SQLStorage) selectWindow() string {
	from := s.table
	if s.dialect == DialectClickHouse {
		from += " FINAL"
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE ts >= ? AND ts <= ? ORDER BY ts DESC LIMIT ?", eventColumns, from)
}

func (s *SQLStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op: the connection pool belongs to its client.
func (s *SQLStorage) Close() error {
	return nil
}

// KafkaPublisher implements Publisher for Kafka. Events are keyed by ID.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

var _ repository.Publisher = (*KafkaPublisher)(nil)

func (p *KafkaPublisher) Publish(ctx context.Context, e *models.PredictionEvent) error {
	return p.producer.PublishBatch(ctx, []pkgkafka.Message{eventMessage(e)})
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, events []*models.PredictionEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(events))
	for _, e := range events {
		if e == nil {
			continue
		}
		msgs = append(msgs, eventMessage(e))
	}
	return p.producer.PublishBatch(ctx, msgs)
}

// eventMessage keys by event ID so redeliveries land on one partition, and
// stamps the model checksum as a header for consumers that filter by artifact.
func eventMessage(e *models.PredictionEvent) pkgkafka.Message {
	return pkgkafka.Message{
		Key:     []byte(e.ID),
		Value:   e,
		Time:    e.Timestamp,
		Headers: map[string]string{"model_checksum": e.ModelChecksum},
	}
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
