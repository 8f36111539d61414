// Package cache holds idle-expiring values in a size-bounded LRU.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// EvictReason tells an eviction callback why a value left the cache.
type EvictReason int

const (
	// Expired values were idle for longer than the TTL.
	Expired EvictReason = iota
	// Capacity values were the least recently used when the cache was full.
	Capacity
)

func (r EvictReason) String() string {
	if r == Capacity {
		return "capacity"
	}
	return "expired"
}

// LRU keeps at most maxSize values. Every Get or Set of a key pushes its
// expiry ttl into the future, so a value only expires after ttl of idleness.
// Explicit Deletes do not call the eviction callback.
type LRU[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	byKey   map[string]*list.Element
	recency *list.List // front is most recently used
	now     func() time.Time
	onEvict func(key string, value T, reason EvictReason)
}

type slot[T any] struct {
	key      string
	value    T
	deadline time.Time
}

type eviction[T any] struct {
	slot   *slot[T]
	reason EvictReason
}

// New creates a cache holding at most maxSize values that expire after ttl
// of idleness. onEvict may be nil; it runs without the cache lock held.
func New[T any](maxSize int, ttl time.Duration, onEvict func(key string, value T, reason EvictReason)) *LRU[T] {
	if maxSize < 1 {
		maxSize = 1
	}
	return &LRU[T]{
		maxSize: maxSize,
		ttl:     ttl,
		byKey:   make(map[string]*list.Element),
		recency: list.New(),
		now:     time.Now,
		onEvict: onEvict,
	}
}

// Get returns the value for key and extends its lifetime. An expired value is
// evicted and reported missing.
func (c *LRU[T]) Get(key string) (T, bool) {
	var zero T
	c.mu.Lock()
	elem, ok := c.byKey[key]
	if !ok {
		c.mu.Unlock()
		return zero, false
	}
	s := elem.Value.(*slot[T])
	now := c.now()
	if now.After(s.deadline) {
		c.unlink(elem)
		c.mu.Unlock()
		c.notify([]eviction[T]{{s, Expired}})
		return zero, false
	}
	s.deadline = now.Add(c.ttl)
	c.recency.MoveToFront(elem)
	c.mu.Unlock()
	return s.value, true
}

// Set stores value under key. When the cache is full the least recently used
// value makes room.
func (c *LRU[T]) Set(key string, value T) {
	c.mu.Lock()
	deadline := c.now().Add(c.ttl)
	if elem, ok := c.byKey[key]; ok {
		s := elem.Value.(*slot[T])
		s.value, s.deadline = value, deadline
		c.recency.MoveToFront(elem)
		c.mu.Unlock()
		return
	}
	c.byKey[key] = c.recency.PushFront(&slot[T]{key: key, value: value, deadline: deadline})

	var evicted []eviction[T]
	for c.recency.Len() > c.maxSize {
		oldest := c.recency.Back()
		c.unlink(oldest)
		evicted = append(evicted, eviction[T]{oldest.Value.(*slot[T]), Capacity})
	}
	c.mu.Unlock()
	c.notify(evicted)
}

// Delete removes key.
func (c *LRU[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.byKey[key]; ok {
		c.unlink(elem)
	}
}

// CleanExpired evicts every idle value and returns how many it evicted.
// Expiry follows recency, so the scan stops at the first live value from the
// back.
func (c *LRU[T]) CleanExpired() int {
	c.mu.Lock()
	now := c.now()
	var evicted []eviction[T]
	for elem := c.recency.Back(); elem != nil; {
		s := elem.Value.(*slot[T])
		if !now.After(s.deadline) {
			break
		}
		prev := elem.Prev()
		c.unlink(elem)
		evicted = append(evicted, eviction[T]{s, Expired})
		elem = prev
	}
	c.mu.Unlock()
	c.notify(evicted)
	return len(evicted)
}

// Len returns the number of values held, including idle ones not yet cleaned.
func (c *LRU[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byKey)
}

func (c *LRU[T]) unlink(elem *list.Element) {
	delete(c.byKey, elem.Value.(*slot[T]).key)
	c.recency.Remove(elem)
}

func (c *LRU[T]) notify(evicted []eviction[T]) {
	if c.onEvict == nil {
		return
	}
	for _, e := range evicted {
		c.onEvict(e.slot.key, e.slot.value, e.reason)
	}
}
