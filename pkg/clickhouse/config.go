package clickhouse

import (
	"errors"
	"fmt"
	"time"

	"github.com/creasty/defaults"
)

// Config describes one ClickHouse pool. Zero fields take the default tag.
type Config struct {
	Host     string
	Port     int `default:"9000"`
	Database string
	User     string `default:"default"`
	Password string

	// UseHTTP talks to the HTTP interface (port 8123) instead of native.
	UseHTTP bool
	// AsyncInsert lets the server batch small inserts; WaitForAsync makes
	// the insert return only once the batch is flushed.
	AsyncInsert  bool
	WaitForAsync bool

	MaxOpenConns    int           `default:"10"`
	MaxIdleConns    int           `default:"5"`
	ConnMaxLifetime time.Duration `default:"5m"`
	DialTimeout     time.Duration `default:"5s"`
	ReadTimeout     time.Duration `default:"10s"`
	MaxExecTime     time.Duration

	// SkipCreateDatabase disables CREATE DATABASE IF NOT EXISTS on connect.
	SkipCreateDatabase bool
}

func (c Config) addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) prepare() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("clickhouse defaults: %w", err)
	}
	switch {
	case c.Host == "":
		return errors.New("clickhouse: host is required")
	case c.Database == "":
		return errors.New("clickhouse: database is required")
	}
	return nil
}
