package cache

import (
	"sync"

	"github.com/sharedcode/graphcore"
)

// lruEntry is both the map value and a link of the recency ring: entries
// chain themselves, so a hit relinks in O(1) with no auxiliary list nodes.
type lruEntry[TK comparable, TV any] struct {
	key  TK
	data TV
	prev *lruEntry[TK, TV]
	next *lruEntry[TK, TV]
}

// LruCache is a fixed, access-ordered map: on overflow the least-recently
// used entry goes. Recency is a circular ring around a sentinel —
// sentinel.next is the most recent entry, sentinel.prev the eviction
// candidate. Resize re-bounds the cache immediately, so it integrates with
// the adaptive manager's heap-pressure signal.
type LruCache[TK comparable, TV any] struct {
	name     string
	mu       sync.Mutex
	lookup   map[TK]*lruEntry[TK, TV]
	sentinel lruEntry[TK, TV]
	capacity int
}

// NewLru creates an LruCache with the given diagnostic name and capacity.
func NewLru[TK comparable, TV any](name string, capacity int) (*LruCache[TK, TV], error) {
	if err := validate(name, capacity); err != nil {
		return nil, err
	}
	c := &LruCache[TK, TV]{
		name:     name,
		lookup:   make(map[TK]*lruEntry[TK, TV], capacity),
		capacity: capacity,
	}
	c.sentinel.prev = &c.sentinel
	c.sentinel.next = &c.sentinel
	return c, nil
}

func (c *LruCache[TK, TV]) Name() string {
	return c.name
}

// unlink detaches e from the ring. Callers must hold mu.
func (c *LruCache[TK, TV]) unlink(e *lruEntry[TK, TV]) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

// touch links (or relinks) e in as the most recent entry. Callers must hold
// mu.
func (c *LruCache[TK, TV]) touch(e *lruEntry[TK, TV]) {
	e.prev = &c.sentinel
	e.next = c.sentinel.next
	e.prev.next = e
	e.next.prev = e
}

func (c *LruCache[TK, TV]) Put(key TK, value TV) error {
	if isNilValue(value) {
		return nilValueError(c.name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.lookup[key]; ok {
		e.data = value
		c.unlink(e)
		c.touch(e)
	} else {
		e := &lruEntry[TK, TV]{key: key, data: value}
		c.lookup[key] = e
		c.touch(e)
	}
	c.evictLocked()
	return nil
}

func (c *LruCache[TK, TV]) PutAll(items []graphcore.KeyValuePair[TK, TV]) error {
	for i := range items {
		if err := c.Put(items[i].Key, items[i].Value); err != nil {
			return err
		}
	}
	return nil
}

func (c *LruCache[TK, TV]) Get(key TK) (TV, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lookup[key]
	if !ok {
		var zero TV
		return zero, false
	}
	c.unlink(e)
	c.touch(e)
	return e.data, true
}

func (c *LruCache[TK, TV]) Remove(key TK) (TV, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lookup[key]
	if !ok {
		var zero TV
		return zero, false
	}
	c.unlink(e)
	delete(c.lookup, key)
	return e.data, true
}

// evictLocked drops entries off the cold end of the ring until the
// population is within capacity. Callers must hold mu.
func (c *LruCache[TK, TV]) evictLocked() {
	for len(c.lookup) > c.capacity {
		victim := c.sentinel.prev
		if victim == &c.sentinel {
			break
		}
		c.unlink(victim)
		delete(c.lookup, victim.key)
	}
}

// Resize changes capacity and shrinks the population to at most newCapacity
// before returning.
func (c *LruCache[TK, TV]) Resize(newCapacity int) {
	if newCapacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.capacity = newCapacity
	c.evictLocked()
}

func (c *LruCache[TK, TV]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookup = make(map[TK]*lruEntry[TK, TV], c.capacity)
	c.sentinel.prev = &c.sentinel
	c.sentinel.next = &c.sentinel
}

func (c *LruCache[TK, TV]) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lookup)
}
