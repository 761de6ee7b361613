package cache

import (
	"fmt"

	"github.com/sharedcode/graphcore"
)

// NoneCache disables caching: Put is a no-op and Get always misses, so every
// access goes back to the record loader.
type NoneCache[TK comparable, TV any] struct {
	name string
}

// NewNone creates a NoneCache with the given diagnostic name.
func NewNone[TK comparable, TV any](name string) (*NoneCache[TK, TV], error) {
	if name == "" {
		return nil, graphcore.Error{Code: graphcore.InvalidArgument, Err: fmt.Errorf("name cannot be empty")}
	}
	return &NoneCache[TK, TV]{name: name}, nil
}

func (c *NoneCache[TK, TV]) Name() string {
	return c.name
}

func (c *NoneCache[TK, TV]) Put(key TK, value TV) error {
	if isNilValue(value) {
		return nilValueError(c.name)
	}
	return nil
}

func (c *NoneCache[TK, TV]) PutAll(items []graphcore.KeyValuePair[TK, TV]) error {
	return nil
}

func (c *NoneCache[TK, TV]) Get(key TK) (TV, bool) {
	var zero TV
	return zero, false
}

func (c *NoneCache[TK, TV]) Remove(key TK) (TV, bool) {
	var zero TV
	return zero, false
}

func (c *NoneCache[TK, TV]) Resize(newCapacity int) {
}

func (c *NoneCache[TK, TV]) Clear() {
}

func (c *NoneCache[TK, TV]) Count() int {
	return 0
}
