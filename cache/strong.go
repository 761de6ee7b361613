package cache

import (
	"fmt"
	"sync"

	"github.com/sharedcode/graphcore"
)

// StrongCache is unbounded: nothing is ever evicted. Resize is a no-op
// because there is no eviction policy to enforce a bound with.
type StrongCache[TK comparable, TV any] struct {
	name   string
	mu     sync.RWMutex
	lookup map[TK]TV
}

// NewStrong creates a StrongCache with the given diagnostic name.
func NewStrong[TK comparable, TV any](name string) (*StrongCache[TK, TV], error) {
	if name == "" {
		return nil, graphcore.Error{Code: graphcore.InvalidArgument, Err: fmt.Errorf("name cannot be empty")}
	}
	return &StrongCache[TK, TV]{name: name, lookup: make(map[TK]TV)}, nil
}

func (c *StrongCache[TK, TV]) Name() string {
	return c.name
}

func (c *StrongCache[TK, TV]) Put(key TK, value TV) error {
	if isNilValue(value) {
		return nilValueError(c.name)
	}
	c.mu.Lock()
	c.lookup[key] = value
	c.mu.Unlock()
	return nil
}

func (c *StrongCache[TK, TV]) PutAll(items []graphcore.KeyValuePair[TK, TV]) error {
	for i := range items {
		if err := c.Put(items[i].Key, items[i].Value); err != nil {
			return err
		}
	}
	return nil
}

func (c *StrongCache[TK, TV]) Get(key TK) (TV, bool) {
	c.mu.RLock()
	v, ok := c.lookup[key]
	c.mu.RUnlock()
	return v, ok
}

func (c *StrongCache[TK, TV]) Remove(key TK) (TV, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lookup[key]
	if ok {
		delete(c.lookup, key)
	}
	return v, ok
}

func (c *StrongCache[TK, TV]) Resize(newCapacity int) {
}

func (c *StrongCache[TK, TV]) Clear() {
	c.mu.Lock()
	c.lookup = make(map[TK]TV)
	c.mu.Unlock()
}

func (c *StrongCache[TK, TV]) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.lookup)
}
