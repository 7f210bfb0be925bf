package erddap

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/couchcryptid/coral-risk-etl/internal/domain"
)

// Cache stores snapshots by query key. Implementations treat backend
// failures as misses.
type Cache interface {
	Get(ctx context.Context, key string) (domain.Snapshot, bool)
	Set(ctx context.Context, key string, snap domain.Snapshot)
}

// LRUCache is a thread-safe in-process cache with a fixed entry count.
type LRUCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value domain.Snapshot
	prev  *entry
	next  *entry
}

// NewLRUCache creates an LRU holding at most maxEntries snapshots.
func NewLRUCache(maxEntries int) *LRUCache {
	return &LRUCache{
		maxEntries: max(maxEntries, 1),
		entries:    make(map[string]*entry),
	}
}

func (c *LRUCache) Get(_ context.Context, key string) (domain.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.Snapshot{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *LRUCache) Set(_ context.Context, key string, value domain.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

// Len reports the number of cached snapshots.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *LRUCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *LRUCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *LRUCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *LRUCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}

// RedisCache shares snapshots between processes with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// NewRedisCache wraps an existing client. A ttl of zero keeps entries forever.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, prefix: "coral:", logger: logger}
}

func (c *RedisCache) Get(ctx context.Context, key string) (domain.Snapshot, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Snapshot{}, false
	}
	if err != nil {
		c.logger.Warn("redis cache get failed", "key", key, "error", err)
		return domain.Snapshot{}, false
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		c.logger.Warn("redis cache entry corrupt", "key", key, "error", err)
		return domain.Snapshot{}, false
	}
	return snap, true
}

func (c *RedisCache) Set(ctx context.Context, key string, snap domain.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		c.logger.Warn("redis cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("redis cache set failed", "key", key, "error", err)
	}
}
