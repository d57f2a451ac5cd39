// ABOUTME: In-memory cache with TTL-based expiration
// ABOUTME: Thread-safe cache using sync.Map; Take gives one-shot reads for token rotation

package cache

import (
	"log/slog"
	"sync"
	"time"
)

type entry struct {
	data      interface{}
	expiresAt time.Time
}

type Cache struct {
	store sync.Map
	ttl   time.Duration
	done  chan struct{}
	once  sync.Once
}

func New(ttl time.Duration) *Cache {
	c := &Cache{
		ttl:  ttl,
		done: make(chan struct{}),
	}
	go c.startCleanup(time.Minute)
	return c
}

func (c *Cache) Get(key string) (interface{}, bool) {
	val, ok := c.store.Load(key)
	if !ok {
		slog.Debug("Cache miss", "key_prefix", keyPrefix(key))
		return nil, false
	}

	e := val.(entry)
	if time.Now().After(e.expiresAt) {
		c.store.Delete(key)
		slog.Debug("Cache expired", "key_prefix", keyPrefix(key))
		return nil, false
	}

	return e.data, true
}

// Take removes the entry and returns it if it was present and unexpired.
// Concurrent callers racing on the same key see at most one success.
func (c *Cache) Take(key string) (interface{}, bool) {
	val, ok := c.store.LoadAndDelete(key)
	if !ok {
		return nil, false
	}
	e := val.(entry)
	if time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.data, true
}

func (c *Cache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value with a custom TTL
func (c *Cache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	e := entry{
		data:      value,
		expiresAt: time.Now().Add(ttl),
	}
	c.store.Store(key, e)
	slog.Debug("Cache set", "key_prefix", keyPrefix(key), "ttl", ttl)
}

func (c *Cache) Clear(key string) {
	c.store.Delete(key)
}

// Close stops the background cleanup goroutine
func (c *Cache) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Cache) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.sweep(time.Now())
		}
	}
}

func (c *Cache) sweep(now time.Time) {
	c.store.Range(func(key, val interface{}) bool {
		e := val.(entry)
		if now.After(e.expiresAt) {
			c.store.Delete(key)
		}
		return true
	})
}

// keyPrefix keeps secrets such as refresh tokens out of debug logs
func keyPrefix(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i]
		}
	}
	return "-"
}
