package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// LRUCache bounds memory two ways: entries expire after the TTL, and when
// the cache is full the least recently used entry is evicted. Response
// caches key their entries as "userID|param" so a user's entries can be
// dropped together on write.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	byKey   map[string]*list.Element
	order   *list.List // front = most recently used
}

type entry[T any] struct {
	key       string
	value     T
	expiresAt time.Time
}

func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	return &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		byKey:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get returns the cached value for key. An expired entry is removed and
// reported as a miss.
func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, ok := c.byKey[key]
	if !ok {
		return zero, false
	}
	e := elem.Value.(*entry[T])
	if time.Now().After(e.expiresAt) {
		c.evict(elem)
		return zero, false
	}

	c.order.MoveToFront(elem)
	return e.value, true
}

// Set stores value under key with a fresh TTL, evicting the least recently
// used entry if the cache is full.
func (c *LRUCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry[T]{key: key, value: value, expiresAt: time.Now().Add(c.ttl)}
	if elem, ok := c.byKey[key]; ok {
		elem.Value = e
		c.order.MoveToFront(elem)
		return
	}

	c.byKey[key] = c.order.PushFront(e)
	if c.order.Len() > c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.evict(oldest)
		}
	}
}

func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.byKey[key]; ok {
		c.evict(elem)
	}
}

// DeletePrefix removes every entry whose key starts with prefix, returning
// how many were removed. This is the write-invalidation path: all of a
// user's cached responses share a key prefix.
func (c *LRUCache[T]) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.evictWhere(func(e *entry[T]) bool {
		return strings.HasPrefix(e.key, prefix)
	})
}

// CleanExpired removes entries past their TTL, returning how many were
// removed.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	return c.evictWhere(func(e *entry[T]) bool {
		return now.After(e.expiresAt)
	})
}

// Size returns the number of entries currently held.
func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byKey)
}

// evictWhere removes every entry matching the predicate. Caller holds the
// lock.
func (c *LRUCache[T]) evictWhere(match func(*entry[T]) bool) int {
	var doomed []*list.Element
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		if match(elem.Value.(*entry[T])) {
			doomed = append(doomed, elem)
		}
	}
	for _, elem := range doomed {
		c.evict(elem)
	}
	return len(doomed)
}

func (c *LRUCache[T]) evict(elem *list.Element) {
	e := elem.Value.(*entry[T])
	delete(c.byKey, e.key)
	c.order.Remove(elem)
}
