// Package cache implements a generic TTL+LRU cache: the same shape as the
// teacher's strategy.optionChainCacheEntry/chainCache pair, generalized from
// a single option-chain cache into a reusable component so every provider
// adapter and signal stage can bound its own reuse window.
package cache

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	key       string
	value     any
	insertedAt time.Time
}

// Cloner is implemented by cached values that hold shared mutable state —
// pointers, slices, maps — so Get can hand back a defensive copy instead of
// the stored reference (§4.2). Values that don't implement it are assumed
// immutable after Set (plain value types: numbers, strings, structs with no
// reference fields) and are returned as-is; storing a mutable value without
// implementing Cloner lets a caller's later mutation corrupt every reader's
// cached copy.
type Cloner interface {
	Clone() any
}

// Stats are the counters exposed alongside cache contents.
type Stats struct {
	Hits    int64
	Misses  int64
	Size    int
	MaxSize int
}

// HitRate returns hits/(hits+misses), or 0 when there have been no lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is a fixed-capacity, TTL-bounded, least-recently-used cache. All
// operations are atomic under a single mutex, matching the teacher's
// cacheMutex sync.RWMutex discipline around chainCache.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	ll      *list.List
	items   map[string]*list.Element
	hits    int64
	misses  int64
	now     func() time.Time
}

// New constructs a Cache with the given TTL and maximum entry count.
func New(ttl time.Duration, maxSize int) *Cache {
	return &Cache{
		ttl:     ttl,
		maxSize: maxSize,
		ll:      list.New(),
		items:   make(map[string]*list.Element),
		now:     time.Now,
	}
}

// Get returns the cached value for key. A miss occurs when the key is
// absent or its entry has aged past the TTL; a hit promotes the entry to
// the MRU end.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	e := el.Value.(*entry)
	if c.now().Sub(e.insertedAt) > c.ttl {
		c.removeElement(el)
		c.misses++
		return nil, false
	}
	c.ll.MoveToFront(el)
	c.hits++
	if cl, ok := e.value.(Cloner); ok {
		return cl.Clone(), true
	}
	return e.value, true
}

// Set inserts or replaces key's value, evicting the LRU entry first if the
// cache is at capacity.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.insertedAt = c.now()
		c.ll.MoveToFront(el)
		return
	}

	if c.maxSize > 0 && len(c.items) >= c.maxSize {
		c.evictLRU()
	}

	e := &entry{key: key, value: value, insertedAt: c.now()}
	el := c.ll.PushFront(e)
	c.items[key] = el
}

// Delete removes key unconditionally.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

func (c *Cache) evictLRU() {
	el := c.ll.Back()
	if el != nil {
		c.removeElement(el)
	}
}

func (c *Cache) removeElement(el *list.Element) {
	e := el.Value.(*entry)
	c.ll.Remove(el)
	delete(c.items, e.key)
}

// StatsSnapshot returns a consistent snapshot of the cache's counters.
func (c *Cache) StatsSnapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:    c.hits,
		Misses:  c.misses,
		Size:    len(c.items),
		MaxSize: c.maxSize,
	}
}

// Standard TTL/size profiles named in the component design (§4.2).
const (
	FundamentalsTTL  = 15 * time.Minute
	FundamentalsSize = 1000
	SentimentTTL     = 24 * time.Hour
	VRPTTL           = 1 * time.Hour
)
