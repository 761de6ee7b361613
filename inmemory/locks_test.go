package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/sharedcode/graphcore"
)

var testResource = graphcore.Resource{Kind: graphcore.KindNode, ID: 1}

func TestLockManager_WriteExclusive(t *testing.T) {
	m := NewLockManager()
	ctx := context.Background()
	owner1 := graphcore.NewUUID()
	owner2 := graphcore.NewUUID()

	if err := m.Acquire(ctx, owner1, testResource, graphcore.WriteLock); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	// A foreign writer times out while the lock is held.
	shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := m.Acquire(shortCtx, owner2, testResource, graphcore.WriteLock); !graphcore.IsCode(err, graphcore.LockFailure) {
		t.Fatalf("expected LockFailure on contended acquire, got %v", err)
	}
	if err := m.Release(ctx, owner1, testResource, graphcore.WriteLock); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	// Freed now.
	if err := m.Acquire(ctx, owner2, testResource, graphcore.WriteLock); err != nil {
		t.Fatalf("Acquire after release failed: %v", err)
	}
	m.Release(ctx, owner2, testResource, graphcore.WriteLock)
}

func TestLockManager_WriteReentrant(t *testing.T) {
	m := NewLockManager()
	ctx := context.Background()
	owner := graphcore.NewUUID()

	for i := 0; i < 3; i++ {
		if err := m.Acquire(ctx, owner, testResource, graphcore.WriteLock); err != nil {
			t.Fatalf("reentrant Acquire %d failed: %v", i, err)
		}
	}
	other := graphcore.NewUUID()
	for i := 0; i < 3; i++ {
		// Still held until the matching releases run down.
		shortCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		if err := m.Acquire(shortCtx, other, testResource, graphcore.WriteLock); !graphcore.IsCode(err, graphcore.LockFailure) {
			t.Fatalf("foreign acquire succeeded with %d holds left", 3-i)
		}
		cancel()
		if err := m.Release(ctx, owner, testResource, graphcore.WriteLock); err != nil {
			t.Fatalf("Release %d failed: %v", i, err)
		}
	}
	if err := m.Acquire(ctx, other, testResource, graphcore.WriteLock); err != nil {
		t.Fatalf("Acquire after full release failed: %v", err)
	}
	m.Release(ctx, other, testResource, graphcore.WriteLock)
}

func TestLockManager_ReadersShare(t *testing.T) {
	m := NewLockManager()
	ctx := context.Background()
	r1 := graphcore.NewUUID()
	r2 := graphcore.NewUUID()

	if err := m.Acquire(ctx, r1, testResource, graphcore.ReadLock); err != nil {
		t.Fatalf("first read Acquire failed: %v", err)
	}
	if err := m.Acquire(ctx, r2, testResource, graphcore.ReadLock); err != nil {
		t.Fatalf("second read Acquire failed: %v", err)
	}
	// A writer waits for both readers.
	w := graphcore.NewUUID()
	shortCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := m.Acquire(shortCtx, w, testResource, graphcore.WriteLock); !graphcore.IsCode(err, graphcore.LockFailure) {
		t.Fatalf("writer acquired despite active readers")
	}
	m.Release(ctx, r1, testResource, graphcore.ReadLock)
	m.Release(ctx, r2, testResource, graphcore.ReadLock)
	if err := m.Acquire(ctx, w, testResource, graphcore.WriteLock); err != nil {
		t.Fatalf("writer failed after readers left: %v", err)
	}
	m.Release(ctx, w, testResource, graphcore.WriteLock)
}

func TestLockManager_BlockedWriterWakesOnRelease(t *testing.T) {
	m := NewLockManager()
	ctx := context.Background()
	holder := graphcore.NewUUID()
	waiter := graphcore.NewUUID()

	if err := m.Acquire(ctx, holder, testResource, graphcore.WriteLock); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	acquired := make(chan error, 1)
	go func() {
		acquired <- m.Acquire(ctx, waiter, testResource, graphcore.WriteLock)
	}()
	time.Sleep(20 * time.Millisecond)
	if err := m.Release(ctx, holder, testResource, graphcore.WriteLock); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	select {
	case err := <-acquired:
		if err != nil {
			t.Fatalf("waiter failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("waiter never woke up")
	}
	m.Release(ctx, waiter, testResource, graphcore.WriteLock)
}

func TestLockManager_ReleaseErrors(t *testing.T) {
	m := NewLockManager()
	ctx := context.Background()
	owner := graphcore.NewUUID()

	if err := m.Release(ctx, owner, testResource, graphcore.WriteLock); !graphcore.IsCode(err, graphcore.LockFailure) {
		t.Errorf("expected LockFailure releasing an unheld lock, got %v", err)
	}
	if err := m.Acquire(ctx, owner, testResource, graphcore.WriteLock); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	foreign := graphcore.NewUUID()
	if err := m.Release(ctx, foreign, testResource, graphcore.WriteLock); !graphcore.IsCode(err, graphcore.LockFailure) {
		t.Errorf("expected LockFailure for foreign release, got %v", err)
	}
	m.Release(ctx, owner, testResource, graphcore.WriteLock)
}
