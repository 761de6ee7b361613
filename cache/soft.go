package cache

import (
	"github.com/dgraph-io/ristretto/v2"

	"github.com/sharedcode/graphcore"
)

// SoftCache holds entries until memory is tight: residency is governed by a
// cost budget and an admission policy rather than strict recency. Admission
// is asynchronous, so an entry set moments ago may still read as a miss (the
// reference-queue race of runtime-managed soft references); callers treat
// that as a plain miss and re-load. Count is best-effort.
type SoftCache[TV any] struct {
	name string
	rc   *ristretto.Cache[int64, TV]
}

// NewSoft creates a SoftCache with the given diagnostic name and capacity,
// expressed as an entry budget.
func NewSoft[TV any](name string, capacity int) (*SoftCache[TV], error) {
	if err := validate(name, capacity); err != nil {
		return nil, err
	}
	rc, err := ristretto.NewCache(&ristretto.Config[int64, TV]{
		NumCounters: int64(capacity) * 10,
		MaxCost:     int64(capacity),
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, graphcore.Error{Code: graphcore.InvalidArgument, Err: err, UserData: name}
	}
	return &SoftCache[TV]{name: name, rc: rc}, nil
}

func (c *SoftCache[TV]) Name() string {
	return c.name
}

func (c *SoftCache[TV]) Put(key int64, value TV) error {
	if isNilValue(value) {
		return nilValueError(c.name)
	}
	c.rc.Set(key, value, 1)
	return nil
}

func (c *SoftCache[TV]) PutAll(items []graphcore.KeyValuePair[int64, TV]) error {
	for i := range items {
		if err := c.Put(items[i].Key, items[i].Value); err != nil {
			return err
		}
	}
	return nil
}

func (c *SoftCache[TV]) Get(key int64) (TV, bool) {
	return c.rc.Get(key)
}

func (c *SoftCache[TV]) Remove(key int64) (TV, bool) {
	v, ok := c.rc.Get(key)
	c.rc.Del(key)
	if !ok {
		var zero TV
		return zero, false
	}
	return v, true
}

// Resize adjusts the cost budget. Shrinking takes effect as the policy
// processes subsequent traffic; like Count, the bound is best-effort.
func (c *SoftCache[TV]) Resize(newCapacity int) {
	if newCapacity <= 0 {
		return
	}
	c.rc.UpdateMaxCost(int64(newCapacity))
}

func (c *SoftCache[TV]) Clear() {
	c.rc.Clear()
}

// Count derives the population from the admission metrics. Pending buffered
// writes and un-tracked deletes make it approximate.
func (c *SoftCache[TV]) Count() int {
	m := c.rc.Metrics
	if m == nil {
		return 0
	}
	added := m.KeysAdded()
	evicted := m.KeysEvicted()
	if evicted >= added {
		return 0
	}
	return int(added - evicted)
}

// Flush blocks until buffered writes are applied. Intended for tests and
// shutdown paths that need a stable view.
func (c *SoftCache[TV]) Flush() {
	c.rc.Wait()
}
