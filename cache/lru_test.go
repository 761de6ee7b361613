package cache

import (
	"fmt"
	"testing"

	"github.com/sharedcode/graphcore"
)

func TestLruCache_BasicOperations(t *testing.T) {
	c, err := NewLru[int64, string]("lru", 3)
	if err != nil {
		t.Fatalf("NewLru failed: %v", err)
	}
	if err := c.Put(1, "one"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if v, ok := c.Get(1); !ok || v != "one" {
		t.Fatalf("Get returned (%v, %v)", v, ok)
	}
	c.Put(2, "two")
	c.Put(3, "three")
	// The puts of 2 and 3 left 1 least recently used; touching it makes 2 the
	// eviction candidate.
	c.Get(1)
	c.Put(4, "four")
	if c.Count() != 3 {
		t.Errorf("Count returned %d, expected 3", c.Count())
	}
	if _, ok := c.Get(2); ok {
		t.Errorf("least-recently-used key 2 should have been evicted")
	}
	if _, ok := c.Get(1); !ok {
		t.Errorf("recently used key 1 was evicted")
	}
	if v, ok := c.Remove(4); !ok || v != "four" {
		t.Errorf("Remove returned (%v, %v)", v, ok)
	}
}

func TestLruCache_ConstructorErrors(t *testing.T) {
	if _, err := NewLru[int64, string]("", 3); !graphcore.IsCode(err, graphcore.InvalidArgument) {
		t.Errorf("expected InvalidArgument for empty name, got %v", err)
	}
	if _, err := NewLru[int64, string]("lru", 0); !graphcore.IsCode(err, graphcore.InvalidArgument) {
		t.Errorf("expected InvalidArgument for zero capacity, got %v", err)
	}
}

// Shrinking from 1000 to 100 must leave at most 100 entries, and every
// survivor must be among the 100 most recently accessed keys.
func TestLruCache_ShrinkKeepsMostRecent(t *testing.T) {
	c, err := NewLru[int64, int]("shrink", 1000)
	if err != nil {
		t.Fatalf("NewLru failed: %v", err)
	}
	for i := int64(0); i < 1000; i++ {
		if err := c.Put(i, int(i)); err != nil {
			t.Fatalf("Put(%d) failed: %v", i, err)
		}
	}
	// Refresh a known window so the recency order is deterministic.
	for i := int64(900); i < 1000; i++ {
		if _, ok := c.Get(i); !ok {
			t.Fatalf("Get(%d) missed during refresh", i)
		}
	}
	c.Resize(100)
	if c.Count() > 100 {
		t.Fatalf("Count after Resize(100) returned %d, expected <= 100", c.Count())
	}
	for i := int64(0); i < 1000; i++ {
		_, ok := peekLru(c, i)
		if ok && i < 900 {
			t.Errorf("key %d survived but is not among the 100 most recently accessed", i)
		}
		if !ok && i >= 900 {
			t.Errorf("recently accessed key %d was evicted", i)
		}
	}
}

// peekLru checks membership without disturbing recency order.
func peekLru[TK comparable, TV any](c *LruCache[TK, TV], key TK) (TV, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lookup[key]
	if !ok {
		var zero TV
		return zero, false
	}
	return v.data, true
}

func TestLruCache_ClearAndPutAll(t *testing.T) {
	c, err := NewLru[int64, string]("bulk", 10)
	if err != nil {
		t.Fatalf("NewLru failed: %v", err)
	}
	items := make([]graphcore.KeyValuePair[int64, string], 4)
	for i := range items {
		items[i] = graphcore.KeyValuePair[int64, string]{Key: int64(i), Value: fmt.Sprintf("v%d", i)}
	}
	if err := c.PutAll(items); err != nil {
		t.Fatalf("PutAll failed: %v", err)
	}
	if c.Count() != 4 {
		t.Errorf("Count returned %d, expected 4", c.Count())
	}
	c.Clear()
	if c.Count() != 0 {
		t.Errorf("Count after Clear returned %d, expected 0", c.Count())
	}
}
