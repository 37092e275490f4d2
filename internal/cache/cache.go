// Package cache implements the process-wide quote cache: TTL expiry,
// size-bounded LRU eviction, and single-flight load coalescing.
package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader produces the value for a key on a cache miss.
type Loader func(ctx context.Context) (interface{}, error)

type entry struct {
	key      string
	value    interface{}
	storedAt time.Time
}

// Cache is safe for concurrent use. Entries expire ttl after their
// successful load; loader failures are never cached.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently used
	size    int

	group singleflight.Group

	// now is replaceable in tests
	now func() time.Time

	hits   int64
	misses int64
}

// New creates a cache bounded to size entries.
func New(size int) *Cache {
	if size < 1 {
		size = 1
	}
	return &Cache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		size:    size,
		now:     time.Now,
	}
}

// Key builds a cache key from an operation name and its arguments.
func Key(op string, args ...interface{}) string {
	key := op
	for _, a := range args {
		key += fmt.Sprintf("|%v", a)
	}
	return key
}

// Get returns a fresh cached value, or coalesces concurrent misses for
// the same key into one loader invocation shared by all waiters.
func (c *Cache) Get(ctx context.Context, key string, ttl time.Duration, loader Loader) (interface{}, error) {
	if v, ok := c.lookup(key, ttl); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// another waiter may have stored the value while we queued
		if v, ok := c.lookup(key, ttl); ok {
			return v, nil
		}
		v, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key, v)
		return v, nil
	})
	return v, err
}

// lookup returns the value when present and fresh, updating recency.
func (c *Cache) lookup(key string, ttl time.Duration) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}

	e := el.Value.(*entry)
	if c.now().Sub(e.storedAt) >= ttl {
		c.order.Remove(el)
		delete(c.entries, key)
		c.misses++
		return nil, false
	}

	c.order.MoveToFront(el)
	c.hits++
	return e.value, true
}

func (c *Cache) store(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.storedAt = c.now()
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&entry{key: key, value: value, storedAt: c.now()})
	c.entries[key] = el

	for len(c.entries) > c.size {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
	}
}

// Invalidate drops a single key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}
}

// Len returns the number of resident entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cumulative hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// SetNow replaces the clock, for tests.
func (c *Cache) SetNow(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
