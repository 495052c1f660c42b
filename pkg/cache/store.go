// Package cache holds provider responses so repeated trips do not repeat
// upstream calls. Entries live in process memory or in a shared Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"github.com/NERVsystems/tripcarbon/pkg/monitoring"
)

// Store is a byte-oriented cache shared by provider clients.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value for ttl. A zero ttl uses the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Kind names the backend for metrics and tracing.
	Kind() string
	Close() error
}

// MemoryStore is a bounded in-process Store. Once full, the least
// recently used entry is dropped; expired entries are dropped on read and
// by a periodic sweep.
type MemoryStore struct {
	entries    *lru.Cache[string, memoryEntry]
	defaultTTL time.Duration

	hits, misses atomic.Uint64
	stop         chan struct{}
	stopOnce     sync.Once
}

type memoryEntry struct {
	value   []byte
	expires time.Time // zero never expires
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

// Stats reports how well the store is serving lookups.
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Items  int    `json:"items"`
}

const (
	defaultMemoryItems = 10000
	sweepInterval      = time.Minute
)

// NewMemoryStore holds at most maxItems entries; a non-positive maxItems
// selects a default. defaultTTL applies when Set is given a zero TTL.
func NewMemoryStore(defaultTTL time.Duration, maxItems int) *MemoryStore {
	if maxItems <= 0 {
		maxItems = defaultMemoryItems
	}
	entries, _ := lru.New[string, memoryEntry](maxItems)
	m := &MemoryStore{
		entries:    entries,
		defaultTTL: defaultTTL,
		stop:       make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := m.entries.Get(key)
	if ok && e.expired(time.Now()) {
		m.entries.Remove(key)
		ok = false
	}
	if !ok {
		m.misses.Add(1)
		return nil, false, nil
	}
	m.hits.Add(1)
	return e.value, true, nil
}

// Set stores value for ttl. Zero means the store default and a negative
// ttl never expires.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = m.defaultTTL
	}
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expires = time.Now().Add(ttl)
	}
	m.entries.Add(key, e)
	return nil
}

func (m *MemoryStore) Delete(key string) {
	m.entries.Remove(key)
}

func (m *MemoryStore) Kind() string { return "memory" }

func (m *MemoryStore) Stats() Stats {
	return Stats{Hits: m.hits.Load(), Misses: m.misses.Load(), Items: m.entries.Len()}
}

func (m *MemoryStore) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep(time.Now())
		case <-m.stop:
			return
		}
	}
}

// sweep drops every entry expired at now.
func (m *MemoryStore) sweep(now time.Time) {
	for _, k := range m.entries.Keys() {
		if e, ok := m.entries.Peek(k); ok && e.expired(now) {
			m.entries.Remove(k)
		}
	}
	monitoring.UpdateCacheSize(m.Kind(), m.entries.Len())
}

// Close stops the sweep. It is safe to call more than once.
func (m *MemoryStore) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}

// RedisStore keeps entries in Redis under a key prefix so several
// instances can share provider responses.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// DialRedis connects to addr and verifies the connection with PING.
func DialRedis(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return NewRedisStore(client, "tripcarbon:"), nil
}

func (r *RedisStore) key(k string) string { return r.prefix + k }

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return b, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisStore) Kind() string { return "redis" }

func (r *RedisStore) Close() error { return r.client.Close() }
