package cache

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sharedcode/graphcore"
)

// clockPage is one slot of the circular queue. The value slot and the
// reference bit are atomics so lookups and the evictor never contend on the
// structural mutex. The key is the page's identity tag: it ties the page to
// its index entry so the evictor can prune pages displaced by Remove.
type clockPage[TK comparable, TV any] struct {
	key   TK
	flag  atomic.Bool
	value atomic.Pointer[TV]
}

// ClockCache runs second-chance eviction over a FIFO circular queue of
// pages. Pages are installed with the reference bit clear; any later hit
// (Get, or Put over a resident page) sets it. The evictor walks the queue:
// a set bit buys the page another lap, a clear bit makes its value slot
// eligible for a compare-and-swap clear. A cleared page stays in the queue
// and is revived by a later Put of the same key.
type ClockCache[TK comparable, TV any] struct {
	name string
	// mu serializes Put, Resize, and Clear against each other and guards the
	// queue. Get and Remove never take it.
	mu   sync.Mutex
	ring []*clockPage[TK, TV]

	imu   sync.RWMutex
	index map[TK]*clockPage[TK, TV]

	capacity   int
	population atomic.Int64
}

// NewClock creates a ClockCache with the given diagnostic name and capacity.
func NewClock[TK comparable, TV any](name string, capacity int) (*ClockCache[TK, TV], error) {
	if err := validate(name, capacity); err != nil {
		return nil, err
	}
	return &ClockCache[TK, TV]{
		name:     name,
		capacity: capacity,
		index:    make(map[TK]*clockPage[TK, TV], capacity),
	}, nil
}

func (c *ClockCache[TK, TV]) Name() string {
	return c.name
}

func (c *ClockCache[TK, TV]) Put(key TK, value TV) error {
	if isNilValue(value) {
		return nilValueError(c.name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.imu.RLock()
	pg := c.index[key]
	c.imu.RUnlock()
	if pg == nil {
		pg = &clockPage[TK, TV]{key: key}
		c.imu.Lock()
		c.index[key] = pg
		c.imu.Unlock()
		c.ring = append(c.ring, pg)
	} else {
		// A hit on a resident page earns it a second chance.
		pg.flag.Store(true)
	}
	for {
		prev := pg.value.Load()
		if !pg.value.CompareAndSwap(prev, &value) {
			continue
		}
		if prev == nil {
			if c.population.Add(1) > int64(c.capacity) {
				c.evict()
			}
		}
		break
	}
	if n := c.population.Load(); n > int64(c.capacity) {
		return graphcore.Error{
			Code:     graphcore.CacheStateFailure,
			Err:      fmt.Errorf("population %d exceeds capacity %d after put", n, c.capacity),
			UserData: c.name,
		}
	}
	return nil
}

func (c *ClockCache[TK, TV]) PutAll(items []graphcore.KeyValuePair[TK, TV]) error {
	for i := range items {
		if err := c.Put(items[i].Key, items[i].Value); err != nil {
			return err
		}
	}
	return nil
}

func (c *ClockCache[TK, TV]) Get(key TK) (TV, bool) {
	c.imu.RLock()
	pg := c.index[key]
	c.imu.RUnlock()
	var zero TV
	if pg == nil {
		return zero, false
	}
	v := pg.value.Load()
	if v == nil {
		return zero, false
	}
	pg.flag.Store(true)
	return *v, true
}

// Remove evicts on demand. The page is left in the queue; the evictor prunes
// it once it notices the index no longer points at it. The whole operation
// runs under the index lock so Clear cannot reset the population between the
// unmap and the accounting here.
func (c *ClockCache[TK, TV]) Remove(key TK) (TV, bool) {
	c.imu.Lock()
	defer c.imu.Unlock()
	pg := c.index[key]
	var zero TV
	if pg == nil {
		return zero, false
	}
	delete(c.index, key)
	for {
		prev := pg.value.Load()
		if prev == nil {
			return zero, false
		}
		if pg.value.CompareAndSwap(prev, nil) {
			pg.flag.Store(false)
			c.population.Add(-1)
			return *prev, true
		}
	}
}

// evict walks the queue until the population is back within capacity.
// Callers must hold mu. The value-clear step is a compare-and-swap so a
// concurrent Remove and the evictor cannot both account for the same page.
func (c *ClockCache[TK, TV]) evict() {
	target := int64(c.capacity)
	// Bounded by one extra lap over the queue: after the first full lap every
	// reference bit is clear.
	for spins := 2 * len(c.ring); c.population.Load() > target && spins > 0 && len(c.ring) > 0; spins-- {
		pg := c.ring[0]
		c.ring = c.ring[1:]

		c.imu.RLock()
		current := c.index[pg.key]
		c.imu.RUnlock()
		if current != pg {
			// Displaced by Remove; drop it instead of re-queueing. A Put that
			// raced the removal may have left a referent behind.
			if v := pg.value.Load(); v != nil && pg.value.CompareAndSwap(v, nil) {
				c.population.Add(-1)
			}
			continue
		}
		if pg.flag.CompareAndSwap(true, false) {
			c.ring = append(c.ring, pg)
			continue
		}
		v := pg.value.Load()
		if v != nil && pg.value.CompareAndSwap(v, nil) {
			c.population.Add(-1)
		}
		c.ring = append(c.ring, pg)
	}
}

// Resize changes capacity, evicting down to the new bound before returning.
func (c *ClockCache[TK, TV]) Resize(newCapacity int) {
	if newCapacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.capacity = newCapacity
	c.evict()
}

func (c *ClockCache[TK, TV]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.imu.Lock()
	c.index = make(map[TK]*clockPage[TK, TV], c.capacity)
	c.imu.Unlock()
	c.ring = nil
	c.population.Store(0)
}

func (c *ClockCache[TK, TV]) Count() int {
	return int(c.population.Load())
}
