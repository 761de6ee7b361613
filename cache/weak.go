package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sharedcode/graphcore"
)

// WeakCache approximates weak-reference reachability: entries survive only
// while recently used, and the adaptive manager's pressure signal drives the
// capacity down when the heap is tight. The backing store is a strict LRU.
type WeakCache[TK comparable, TV any] struct {
	name string
	lru  *lru.Cache[TK, TV]
}

// NewWeak creates a WeakCache with the given diagnostic name and capacity.
func NewWeak[TK comparable, TV any](name string, capacity int) (*WeakCache[TK, TV], error) {
	if err := validate(name, capacity); err != nil {
		return nil, err
	}
	backing, err := lru.New[TK, TV](capacity)
	if err != nil {
		return nil, graphcore.Error{Code: graphcore.InvalidArgument, Err: err, UserData: name}
	}
	return &WeakCache[TK, TV]{name: name, lru: backing}, nil
}

func (c *WeakCache[TK, TV]) Name() string {
	return c.name
}

func (c *WeakCache[TK, TV]) Put(key TK, value TV) error {
	if isNilValue(value) {
		return nilValueError(c.name)
	}
	c.lru.Add(key, value)
	return nil
}

func (c *WeakCache[TK, TV]) PutAll(items []graphcore.KeyValuePair[TK, TV]) error {
	for i := range items {
		if err := c.Put(items[i].Key, items[i].Value); err != nil {
			return err
		}
	}
	return nil
}

func (c *WeakCache[TK, TV]) Get(key TK) (TV, bool) {
	return c.lru.Get(key)
}

func (c *WeakCache[TK, TV]) Remove(key TK) (TV, bool) {
	v, ok := c.lru.Peek(key)
	if !ok {
		var zero TV
		return zero, false
	}
	c.lru.Remove(key)
	return v, true
}

func (c *WeakCache[TK, TV]) Resize(newCapacity int) {
	if newCapacity <= 0 {
		return
	}
	c.lru.Resize(newCapacity)
}

func (c *WeakCache[TK, TV]) Clear() {
	c.lru.Purge()
}

func (c *WeakCache[TK, TV]) Count() int {
	return c.lru.Len()
}
