package cache

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"
)

// RedisConfig describes the shared L2 store. Zero fields fall back to the
// default tag when the cache is built.
type RedisConfig struct {
	Host         string `default:"localhost"`
	Port         int    `default:"6379"`
	Password     string
	DB           int
	PoolSize     int           `default:"10"`
	MinIdleConns int           `default:"2"`
	PoolTimeout  time.Duration `default:"30s"`
	DialTimeout  time.Duration `default:"5s"`
	Prefix       string        `default:"cardiorisk"`
}

// Addr is host:port.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MemoryConfig bounds the in-process LRU. TTL caps every entry's lifetime.
type MemoryConfig struct {
	MaxSize int           `default:"1000"`
	TTL     time.Duration `default:"10m"`
}

func withDefaults[T any](cfg T) T {
	// Only zero fields are touched; errors mean a malformed tag above.
	if err := defaults.Set(&cfg); err != nil {
		panic(fmt.Sprintf("cache defaults: %v", err))
	}
	return cfg
}
