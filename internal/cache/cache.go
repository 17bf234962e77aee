// Package cache is the bounded in-memory response cache. Eviction is strict FIFO:
// the oldest inserted entry goes first and reads never refresh recency.
package cache

import (
	"container/list"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 100

type entry struct {
	key   string
	value any
	seq   uint64
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries   int    `json:"entries"`
	Capacity  int    `json:"capacity"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

// ResponseCache maps derived request keys to computed responses.
type ResponseCache struct {
	capacity int
	items    map[string]*list.Element
	order    *list.List // front is oldest
	seq      uint64

	hits, misses, evictions uint64
	mu                      sync.Mutex

	singleFlight bool
	group        singleflight.Group
}

// Option configures a ResponseCache.
type Option func(*ResponseCache)

// WithSingleFlight makes Do collapse concurrent computations of the same key into one.
func WithSingleFlight(enabled bool) Option {
	return func(c *ResponseCache) {
		c.singleFlight = enabled
	}
}

// New creates a cache holding at most capacity entries.
func New(capacity int, opts ...Option) *ResponseCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &ResponseCache{
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value cached under key. It does not change eviction order.
func (c *ResponseCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.hits++
		return elem.Value.(*entry).value, true
	}
	c.misses++
	return nil, false
}

// Put stores value under key. Replacing an existing key keeps its insertion position.
// A new key on a full cache first evicts the oldest inserted entry.
func (c *ResponseCache) Put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value.(*entry).value = value
		return
	}
	if c.order.Len() >= c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*entry).key)
		c.evictions++
	}
	c.seq++
	c.items[key] = c.order.PushBack(&entry{key: key, value: value, seq: c.seq})
}

// Do returns the cached value for key, or computes it with fn. The value is stored only
// when fn reports it cacheable. cached is true when the value was already in the cache.
// With single-flight enabled, concurrent callers for the same key share one computation;
// otherwise duplicate concurrent work may happen and the last writer wins.
func (c *ResponseCache) Do(key string, fn func() (value any, cacheable bool, err error)) (value any, cached bool, err error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}
	compute := func() (any, error) {
		v, cacheable, err := fn()
		if err != nil {
			return nil, err
		}
		if cacheable {
			c.Put(key, v)
		}
		return v, nil
	}
	if !c.singleFlight {
		v, err := compute()
		return v, false, err
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		// A flight that finished just before this one started may have filled the entry.
		if v, ok := c.peek(key); ok {
			return v, nil
		}
		return compute()
	})
	return v, false, err
}

func (c *ResponseCache) peek(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		return elem.Value.(*entry).value, true
	}
	return nil, false
}

// Len returns the number of entries.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Capacity returns the maximum number of entries.
func (c *ResponseCache) Capacity() int {
	return c.capacity
}

// Keys returns the cached keys from oldest to newest.
func (c *ResponseCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, c.order.Len())
	for e := c.order.Front(); e != nil; e = e.Next() {
		keys = append(keys, e.Value.(*entry).key)
	}
	return keys
}

// Stats returns a snapshot of the counters.
func (c *ResponseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:   c.order.Len(),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// Invalidate drops every entry whose key starts with prefix and returns how many were
// removed. The remaining entries keep their order.
func (c *ResponseCache) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int
	for e := c.order.Front(); e != nil; {
		next := e.Next()
		if key := e.Value.(*entry).key; strings.HasPrefix(key, prefix) {
			c.order.Remove(e)
			delete(c.items, key)
			n++
		}
		e = next
	}
	return n
}

// Clear drops every entry. Counters are kept.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element, c.capacity)
	c.order.Init()
}
