package redis

import (
	"context"
	"testing"
	"time"

	"github.com/sharedcode/graphcore"
)

// The tests below need a live Redis on localhost; they skip when none is
// reachable.
func openTestManager(t *testing.T) *LockManager {
	t.Helper()
	m, err := NewLockManager(graphcore.RedisConfig{Address: "localhost:6379"}, time.Minute)
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	if err := m.Ping(ctx); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	return m
}

func TestLockManager_AcquireRelease(t *testing.T) {
	m := openTestManager(t)
	ctx := context.Background()
	owner := graphcore.NewUUID()
	res := graphcore.Resource{Kind: graphcore.KindNode, ID: time.Now().UnixNano()}

	if err := m.Acquire(ctx, owner, res, graphcore.WriteLock); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	// Reentrant for the same owner.
	if err := m.Acquire(ctx, owner, res, graphcore.WriteLock); err != nil {
		t.Fatalf("reentrant Acquire failed: %v", err)
	}
	// A foreign owner cannot release it.
	foreign := graphcore.NewUUID()
	if err := m.Release(ctx, foreign, res, graphcore.WriteLock); !graphcore.IsCode(err, graphcore.LockFailure) {
		t.Errorf("foreign release succeeded: %v", err)
	}
	if err := m.Release(ctx, owner, res, graphcore.WriteLock); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	// Released keys read as free: a second release is a no-op.
	if err := m.Release(ctx, owner, res, graphcore.WriteLock); err != nil {
		t.Errorf("release of an expired key should be a no-op, got %v", err)
	}
}

func TestLockManager_ContentionTimesOut(t *testing.T) {
	m := openTestManager(t)
	ctx := context.Background()
	holder := graphcore.NewUUID()
	res := graphcore.Resource{Kind: graphcore.KindRelationship, ID: time.Now().UnixNano()}

	if err := m.Acquire(ctx, holder, res, graphcore.WriteLock); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer m.Release(ctx, holder, res, graphcore.WriteLock)

	waiter := graphcore.NewUUID()
	shortCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	if err := m.Acquire(shortCtx, waiter, res, graphcore.WriteLock); !graphcore.IsCode(err, graphcore.LockFailure) {
		t.Errorf("expected LockFailure on contended acquire, got %v", err)
	}
}
