package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/sharedcode/graphcore"
)

func TestClockCache_Constructor(t *testing.T) {
	if _, err := NewClock[int64, string]("", 3); err == nil {
		t.Errorf("expected error for empty name")
	}
	if _, err := NewClock[int64, string]("c", 0); err == nil {
		t.Errorf("expected error for zero capacity")
	}
	if _, err := NewClock[int64, string]("c", -1); err == nil {
		t.Errorf("expected error for negative capacity")
	}
	c, err := NewClock[int64, string]("c", 3)
	if err != nil {
		t.Fatalf("NewClock failed: %v", err)
	}
	if c.Name() != "c" {
		t.Errorf("Name returned %s, expected c", c.Name())
	}
}

func TestClockCache_BasicOperations(t *testing.T) {
	c, err := NewClock[int64, string]("basic", 10)
	if err != nil {
		t.Fatalf("NewClock failed: %v", err)
	}
	if err := c.Put(1, "one"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	v, ok := c.Get(1)
	if !ok || v != "one" {
		t.Fatalf("Get returned (%v, %v), expected (one, true)", v, ok)
	}
	if _, ok := c.Get(2); ok {
		t.Errorf("Get of absent key returned a hit")
	}
	if err := c.Put(1, "uno"); err != nil {
		t.Fatalf("Put replace failed: %v", err)
	}
	if v, _ := c.Get(1); v != "uno" {
		t.Errorf("Get after replace returned %s, expected uno", v)
	}
	if c.Count() != 1 {
		t.Errorf("Count returned %d, expected 1", c.Count())
	}

	old, ok := c.Remove(1)
	if !ok || old != "uno" {
		t.Errorf("Remove returned (%v, %v), expected (uno, true)", old, ok)
	}
	if _, ok := c.Get(1); ok {
		t.Errorf("Get after remove returned a hit")
	}
	if c.Count() != 0 {
		t.Errorf("Count after remove returned %d, expected 0", c.Count())
	}
	if _, ok := c.Remove(1); ok {
		t.Errorf("second Remove reported a displaced value")
	}
}

func TestClockCache_NilValueRejected(t *testing.T) {
	c, err := NewClock[int64, *string]("nilcheck", 3)
	if err != nil {
		t.Fatalf("NewClock failed: %v", err)
	}
	if err := c.Put(1, nil); !graphcore.IsCode(err, graphcore.InvalidArgument) {
		t.Errorf("Put(nil) returned %v, expected InvalidArgument", err)
	}
}

// Second-chance scenario: with capacity 3 and keys A, B, C resident, a hit
// on A followed by a fourth put must keep A and the new key resident and
// evict exactly one of B, C.
func TestClockCache_SecondChanceEviction(t *testing.T) {
	c, err := NewClock[string, int]("clock", 3)
	if err != nil {
		t.Fatalf("NewClock failed: %v", err)
	}
	for i, k := range []string{"A", "B", "C"} {
		if err := c.Put(k, i); err != nil {
			t.Fatalf("Put(%s) failed: %v", k, err)
		}
	}
	if _, ok := c.Get("A"); !ok {
		t.Fatalf("Get(A) missed")
	}
	if err := c.Put("D", 3); err != nil {
		t.Fatalf("Put(D) failed: %v", err)
	}

	if c.Count() != 3 {
		t.Errorf("Count returned %d, expected 3", c.Count())
	}
	if _, ok := c.Get("A"); !ok {
		t.Errorf("A was evicted; the referenced page should have survived")
	}
	if _, ok := c.Get("D"); !ok {
		t.Errorf("D was evicted; the fresh page should be resident")
	}
	_, bResident := c.Get("B")
	_, cResident := c.Get("C")
	if bResident == cResident {
		t.Errorf("exactly one of B, C should have been evicted; B=%v C=%v", bResident, cResident)
	}
}

func TestClockCache_RemovedPageRevivedByPut(t *testing.T) {
	c, err := NewClock[string, int]("revive", 3)
	if err != nil {
		t.Fatalf("NewClock failed: %v", err)
	}
	c.Put("A", 1)
	c.Remove("A")
	if err := c.Put("A", 2); err != nil {
		t.Fatalf("Put after Remove failed: %v", err)
	}
	if v, ok := c.Get("A"); !ok || v != 2 {
		t.Errorf("Get returned (%v, %v), expected (2, true)", v, ok)
	}
	if c.Count() != 1 {
		t.Errorf("Count returned %d, expected 1", c.Count())
	}
}

func TestClockCache_Resize(t *testing.T) {
	c, err := NewClock[int64, int]("resize", 100)
	if err != nil {
		t.Fatalf("NewClock failed: %v", err)
	}
	for i := int64(0); i < 100; i++ {
		if err := c.Put(i, int(i)); err != nil {
			t.Fatalf("Put(%d) failed: %v", i, err)
		}
	}
	c.Resize(10)
	if c.Count() > 10 {
		t.Errorf("Count after Resize(10) returned %d, expected <= 10", c.Count())
	}
	c.Clear()
	if c.Count() != 0 {
		t.Errorf("Count after Clear returned %d, expected 0", c.Count())
	}
}

// Population must never exceed capacity between operations, under any
// interleaving of concurrent puts, gets, and removes.
func TestClockCache_ConcurrentBound(t *testing.T) {
	const capacity = 32
	c, err := NewClock[int64, int]("bound", capacity)
	if err != nil {
		t.Fatalf("NewClock failed: %v", err)
	}
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			for i := int64(0); i < 500; i++ {
				key := (seed*500 + i) % 200
				if err := c.Put(key, int(i)); err != nil {
					t.Errorf("Put failed: %v", err)
					return
				}
				c.Get(key)
				if i%7 == 0 {
					c.Remove(key)
				}
			}
		}(int64(g))
	}
	wg.Wait()
	if n := c.Count(); n > capacity {
		t.Errorf("population %d exceeds capacity %d", n, capacity)
	}
	if n := c.Count(); n < 0 {
		t.Errorf("population went negative: %d", n)
	}
}

func TestClockCache_PutAll(t *testing.T) {
	c, err := NewClock[int64, string]("bulk", 10)
	if err != nil {
		t.Fatalf("NewClock failed: %v", err)
	}
	items := make([]graphcore.KeyValuePair[int64, string], 5)
	for i := range items {
		items[i] = graphcore.KeyValuePair[int64, string]{Key: int64(i), Value: fmt.Sprintf("v%d", i)}
	}
	if err := c.PutAll(items); err != nil {
		t.Fatalf("PutAll failed: %v", err)
	}
	if c.Count() != 5 {
		t.Errorf("Count returned %d, expected 5", c.Count())
	}
	for i := range items {
		if v, ok := c.Get(int64(i)); !ok || v != items[i].Value {
			t.Errorf("Get(%d) returned (%v, %v)", i, v, ok)
		}
	}
}
