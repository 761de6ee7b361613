// Package cache contains the bounded in-process caches used by the entity
// layer. It offers a generic Cache interface and interchangeable eviction
// policies: clock (second chance), lru (adaptively resizable), weak and soft
// (pressure-governed), strong (unbounded), and none (pass-through).
package cache

import (
	"fmt"
	"reflect"

	"github.com/sharedcode/graphcore"
)

// Cache is the contract shared by all eviction policies. Implementations are
// fully thread-safe: Get, Put, and Remove may run concurrently; Resize and
// Clear are serialized against all mutators.
type Cache[TK comparable, TV any] interface {
	// Name returns the diagnostic name given at construction.
	Name() string
	// Put installs or replaces the value for key.
	Put(key TK, value TV) error
	// PutAll bulk-inserts the given pairs.
	PutAll(items []graphcore.KeyValuePair[TK, TV]) error
	// Get returns the current referent for key, or false when absent.
	Get(key TK) (TV, bool)
	// Remove evicts key on demand and returns the displaced value, if any.
	Remove(key TK) (TV, bool)
	// Resize changes capacity, shrinking the population to at most
	// newCapacity before returning.
	Resize(newCapacity int)
	// Clear empties the cache.
	Clear()
	// Count returns the population. Best-effort for the soft policy.
	Count() int
}

// New creates an entity cache of the configured policy, keyed by 64-bit
// entity id. It fails with InvalidArgument when name is empty or capacity is
// not positive (the strong and none policies ignore capacity).
func New[TV any](t graphcore.CacheType, name string, capacity int) (Cache[int64, TV], error) {
	switch t {
	case graphcore.Clock:
		return NewClock[int64, TV](name, capacity)
	case graphcore.Lru:
		return NewLru[int64, TV](name, capacity)
	case graphcore.Weak:
		return NewWeak[int64, TV](name, capacity)
	case graphcore.Soft:
		return NewSoft[TV](name, capacity)
	case graphcore.Strong:
		return NewStrong[int64, TV](name)
	case graphcore.NoCache:
		return NewNone[int64, TV](name)
	}
	return nil, graphcore.Error{
		Code:     graphcore.InvalidArgument,
		Err:      fmt.Errorf("unknown cache type %d", t),
		UserData: name,
	}
}

// validate applies the shared constructor checks.
func validate(name string, capacity int) error {
	if name == "" {
		return graphcore.Error{Code: graphcore.InvalidArgument, Err: fmt.Errorf("name cannot be empty")}
	}
	if capacity <= 0 {
		return graphcore.Error{Code: graphcore.InvalidArgument, Err: fmt.Errorf("%d is not > 0", capacity), UserData: name}
	}
	return nil
}

// isNilValue reports whether the boxed value is nil or a nil pointer-kind.
// Caching a nil referent would make a hit indistinguishable from a miss.
func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func nilValueError(name string) error {
	return graphcore.Error{Code: graphcore.InvalidArgument, Err: fmt.Errorf("null value not allowed"), UserData: name}
}
