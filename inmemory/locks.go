package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/sharedcode/graphcore"
)

type lockEntry struct {
	writeOwner graphcore.UUID
	writeCount int
	readers    int
	// released is closed and replaced whenever the entry frees up, waking
	// every waiter to retry.
	released chan struct{}
}

// LockManager is the in-process lock table used in standalone mode. Write
// locks are exclusive and reentrant per owner; read locks are shared and
// blocked only by a foreign write owner.
type LockManager struct {
	mu    sync.Mutex
	locks map[graphcore.Resource]*lockEntry
}

// NewLockManager creates an empty lock table.
func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[graphcore.Resource]*lockEntry)}
}

func (m *LockManager) Acquire(ctx context.Context, owner graphcore.UUID, resource graphcore.Resource, mode graphcore.LockMode) error {
	for {
		m.mu.Lock()
		e, ok := m.locks[resource]
		if !ok {
			e = &lockEntry{released: make(chan struct{})}
			m.locks[resource] = e
		}
		granted := false
		if mode == graphcore.WriteLock {
			switch {
			case e.writeCount > 0 && e.writeOwner == owner:
				e.writeCount++
				granted = true
			case e.writeCount == 0 && e.readers == 0:
				e.writeOwner = owner
				e.writeCount = 1
				granted = true
			}
		} else {
			if e.writeCount == 0 || e.writeOwner == owner {
				e.readers++
				granted = true
			}
		}
		wait := e.released
		m.mu.Unlock()
		if granted {
			return nil
		}
		select {
		case <-ctx.Done():
			return graphcore.Error{Code: graphcore.LockFailure, Err: ctx.Err(), UserData: resource}
		case <-wait:
		}
	}
}

func (m *LockManager) Release(ctx context.Context, owner graphcore.UUID, resource graphcore.Resource, mode graphcore.LockMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.locks[resource]
	if !ok {
		return graphcore.Error{Code: graphcore.LockFailure, Err: fmt.Errorf("resource not locked"), UserData: resource}
	}
	if mode == graphcore.WriteLock {
		if e.writeCount == 0 || e.writeOwner != owner {
			return graphcore.Error{Code: graphcore.LockFailure, Err: fmt.Errorf("write lock not held by owner"), UserData: resource}
		}
		e.writeCount--
	} else {
		if e.readers == 0 {
			return graphcore.Error{Code: graphcore.LockFailure, Err: fmt.Errorf("read lock not held"), UserData: resource}
		}
		e.readers--
	}
	if e.writeCount == 0 && e.readers == 0 {
		delete(m.locks, resource)
		close(e.released)
		return nil
	}
	// Wake waiters: a reentrant drop can still unblock shared readers.
	close(e.released)
	e.released = make(chan struct{})
	return nil
}
