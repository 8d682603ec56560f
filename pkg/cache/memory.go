package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryCache implements Service with a size-bounded LRU whose entries share one TTL.
// Per-call expirations shorter than the TTL are honored on read.
type MemoryCache struct {
	lru *expirable.LRU[string, memoryItem]
	ttl time.Duration
}

type memoryItem struct {
	data     []byte
	expireAt time.Time
}

// NewMemoryCache creates an in-memory cache; zero fields of cfg take defaults.
func NewMemoryCache(cfg MemoryConfig) *MemoryCache {
	cfg = withDefaults(cfg)
	return &MemoryCache{
		lru: expirable.NewLRU[string, memoryItem](cfg.MaxSize, nil, cfg.TTL),
		ttl: cfg.TTL,
	}
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if expiration <= 0 || expiration > mc.ttl {
		expiration = mc.ttl
	}
	mc.lru.Add(key, memoryItem{data: data, expireAt: time.Now().Add(expiration)})
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	item, ok := mc.lru.Get(key)
	if !ok {
		return ErrCacheMiss
	}
	if time.Now().After(item.expireAt) {
		mc.lru.Remove(key)
		return ErrCacheMiss
	}
	return decode(item.data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		mc.lru.Remove(key)
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	for _, key := range keys {
		if item, ok := mc.lru.Peek(key); ok && time.Now().Before(item.expireAt) {
			return true, nil
		}
	}
	return false, nil
}

// Len is the number of live entries.
func (mc *MemoryCache) Len() int {
	return mc.lru.Len()
}

// Close drops all entries.
func (mc *MemoryCache) Close() error {
	mc.lru.Purge()
	return nil
}
