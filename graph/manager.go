package graph

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"github.com/sharedcode/graphcore"
	"github.com/sharedcode/graphcore/cache"
)

// EntityManager is the public facade of the entity layer. It creates and
// deletes nodes and relationships, mutates properties, reads neighbors,
// hands out proxies, and mediates between the entity cache, the transaction
// change set, the lock manager, and the record loader.
type EntityManager struct {
	options graphcore.Options
	loader  graphcore.RecordLoader
	locks   graphcore.LockManager
	txns    graphcore.TransactionContext
	ids     graphcore.IdGenerator

	cache      *entityCache
	adaptive   *cache.AdaptiveManager
	typeHolder *RelationshipTypeHolder
	keyHolder  *PropertyKeyHolder
	refHolder  *ReferenceNodeHolder

	trackerMu    sync.RWMutex
	nodeTrackers []PropertyTracker
	relTrackers  []PropertyTracker

	txMu     sync.Mutex
	txStates map[graphcore.UUID]*txState

	started bool
}

// txState collects what a transaction has accumulated inside the entity
// layer: its change set and the write locks to release at completion.
type txState struct {
	tx    graphcore.Transaction
	mu    sync.Mutex
	cs    *changeSet
	locks []graphcore.Resource
}

// NewEntityManager assembles the facade over the given collaborators.
func NewEntityManager(options graphcore.Options, loader graphcore.RecordLoader,
	locks graphcore.LockManager, txns graphcore.TransactionContext,
	ids graphcore.IdGenerator) (*EntityManager, error) {
	if loader == nil || locks == nil || txns == nil || ids == nil {
		return nil, graphcore.Error{Code: graphcore.InvalidArgument, Err: fmt.Errorf("nil collaborator")}
	}
	options.Normalize()
	m := &EntityManager{
		options:  options,
		loader:   loader,
		locks:    locks,
		txns:     txns,
		ids:      ids,
		adaptive: cache.NewAdaptiveManager(3 * time.Second),
		txStates: make(map[graphcore.UUID]*txState),
	}
	m.typeHolder = newRelationshipTypeHolder(loader, ids)
	m.keyHolder = newPropertyKeyHolder(loader, ids)
	m.refHolder = newReferenceNodeHolder(loader, ids)
	ec, err := newEntityCache(options.CacheType, options.MaxNodeCacheSize,
		options.MaxRelationshipCacheSize, loader, m.typeHolder)
	if err != nil {
		return nil, err
	}
	m.cache = ec
	return m, nil
}

// Start loads the name registries and, when configured, registers the
// entity caches with the adaptive manager and launches it.
func (m *EntityManager) Start(ctx context.Context) error {
	if m.started {
		return nil
	}
	if err := m.typeHolder.load(ctx, m.loader); err != nil {
		return err
	}
	if err := m.keyHolder.load(ctx, m.loader); err != nil {
		return err
	}
	if err := m.refHolder.load(ctx); err != nil {
		return err
	}
	if m.options.UseAdaptiveCache && m.adaptiveEligible() {
		m.adaptive.Register(m.cache.nodes, m.options.AdaptiveCacheHeapRatio,
			m.options.MinNodeCacheSize, m.options.MaxNodeCacheSize)
		m.adaptive.Register(m.cache.rels, m.options.AdaptiveCacheHeapRatio,
			m.options.MinRelationshipCacheSize, m.options.MaxRelationshipCacheSize)
		m.adaptive.Start()
	}
	m.started = true
	return nil
}

// Stop halts the adaptive manager.
func (m *EntityManager) Stop() {
	if !m.started {
		return
	}
	if m.options.UseAdaptiveCache && m.adaptiveEligible() {
		m.adaptive.Stop()
		m.adaptive.Unregister(m.cache.nodes)
		m.adaptive.Unregister(m.cache.rels)
	}
	m.started = false
}

// adaptiveEligible reports whether the configured policy honors external
// resizing: the pressure signal would be lost on soft (cost-governed),
// strong (unbounded), and none.
func (m *EntityManager) adaptiveEligible() bool {
	switch m.options.CacheType {
	case graphcore.Lru, graphcore.Weak, graphcore.Clock:
		return true
	}
	return false
}

// CacheType returns the configured eviction policy.
func (m *EntityManager) CacheType() graphcore.CacheType {
	return m.options.CacheType
}

// ClearCache empties both entity caches. Nothing is deleted on disk.
func (m *EntityManager) ClearCache() {
	m.cache.clear()
}

// Caches enumerates the entity caches for diagnostics.
func (m *EntityManager) Caches() []cache.Resizable {
	return []cache.Resizable{m.cache.nodes, m.cache.rels}
}

// RemoveNodeFromCache evicts the node from memory. Nothing is deleted on
// disk; the next access faults it back in.
func (m *EntityManager) RemoveNodeFromCache(id int64) {
	m.cache.evictNode(id)
}

// RemoveRelationshipFromCache evicts the relationship from memory.
func (m *EntityManager) RemoveRelationshipFromCache(id int64) {
	m.cache.evictRelationship(id)
}

// RemoveRelationshipTypeFromCache drops a lazily registered type whose
// transaction rolled back.
func (m *EntityManager) RemoveRelationshipTypeFromCache(id int32) {
	m.typeHolder.remove(id)
}

// RemoveReferenceNodeFromCache drops a reference-node registration whose
// transaction rolled back.
func (m *EntityManager) RemoveReferenceNodeFromCache(id int32) {
	m.refHolder.remove(id)
}

// RelationshipTypes returns the registered relationship type names.
func (m *EntityManager) RelationshipTypes() []string {
	return m.typeHolder.names()
}

// HighestIDInUse surfaces the loader's id accounting.
func (m *EntityManager) HighestIDInUse(ctx context.Context, kind graphcore.EntityKind) (int64, error) {
	return m.loader.HighestIDInUse(ctx, kind)
}

// currentTx returns the context's transaction, required for writes.
func (m *EntityManager) currentTx(ctx context.Context) (graphcore.Transaction, error) {
	return m.txns.Current(ctx)
}

// optionalState returns the calling transaction's state, or nil outside a
// transaction. Reads merge the change set only when one exists.
func (m *EntityManager) optionalState(ctx context.Context) *txState {
	tx, err := m.txns.Current(ctx)
	if err != nil || tx == nil {
		return nil
	}
	return m.stateFor(tx)
}

// stateFor returns the transaction's state, lazily creating it and
// registering the completion hook on first touch.
func (m *EntityManager) stateFor(tx graphcore.Transaction) *txState {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	if st, ok := m.txStates[tx.ID()]; ok {
		return st
	}
	st := &txState{tx: tx, cs: newChangeSet(tx.ID())}
	m.txStates[tx.ID()] = st
	tx.RegisterSynchronization(func(committed bool) {
		m.complete(st, committed)
	})
	return st
}

// acquireWrite takes the entity write lock through the lock manager and
// schedules its release at transaction completion.
func (m *EntityManager) acquireWrite(ctx context.Context, st *txState, res graphcore.Resource) error {
	if err := m.locks.Acquire(ctx, st.tx.ID(), res, graphcore.WriteLock); err != nil {
		st.tx.SetRollbackOnly()
		return graphcore.Error{Code: graphcore.LockFailure, Err: err, UserData: res}
	}
	st.mu.Lock()
	st.locks = append(st.locks, res)
	st.mu.Unlock()
	return nil
}

// complete is the deferred releaser: it runs once per transaction, applies
// or undoes the change set's cache effects, and releases every lock the
// transaction accumulated.
func (m *EntityManager) complete(st *txState, committed bool) {
	if committed {
		m.applyChanges(st)
	} else {
		m.undoCreated(st)
	}
	if err := m.releaseAll(st); err != nil {
		log.Error("failed to release transaction locks", "tx", st.tx.ID().String(), "details", err.Error())
	}
	m.txMu.Lock()
	delete(m.txStates, st.tx.ID())
	m.txMu.Unlock()
}

// releaseAll releases the accumulated locks in reverse acquisition order.
// Every release is attempted even when a previous one failed; the combined
// outcome is a single LockFailure.
func (m *EntityManager) releaseAll(st *txState) error {
	st.mu.Lock()
	locks := st.locks
	st.locks = nil
	st.mu.Unlock()

	ctx := context.Background()
	owner := st.tx.ID()
	var failures []error
	for i := len(locks) - 1; i >= 0; i-- {
		if err := m.locks.Release(ctx, owner, locks[i], graphcore.WriteLock); err != nil {
			log.Warn("failed to release lock", "resource", locks[i], "details", err.Error())
			failures = append(failures, err)
		}
	}
	if len(failures) > 0 {
		return graphcore.Error{Code: graphcore.LockFailure, Err: errors.Join(failures...), UserData: st.tx.ID().String()}
	}
	return nil
}

// applyChanges materializes the committed change set into the caches:
// deleted entities leave, pending relationship additions merge into resident
// nodes whose chains are fully paged, and partially paged nodes are
// invalidated so the next read refetches committed state.
func (m *EntityManager) applyChanges(st *txState) {
	st.mu.Lock()
	defer st.mu.Unlock()

	for _, key := range st.cs.deletedKeys() {
		switch key.kind {
		case graphcore.KindNode:
			m.cache.evictNode(key.id)
		case graphcore.KindRelationship:
			m.cache.evictRelationship(key.id)
		}
	}
	for key, ch := range st.cs.entities {
		if key.kind != graphcore.KindNode || ch.state == stateDeleted {
			continue
		}
		if len(ch.relAdds) == 0 && len(ch.relRemoves) == 0 {
			continue
		}
		n, ok := m.cache.nodes.Get(key.id)
		if !ok {
			continue
		}
		if !n.chainComplete() {
			m.cache.evictNode(key.id)
			continue
		}
		n.mu.Lock()
		for _, d := range ch.relAdds {
			if ch.relRemoves != nil {
				if _, gone := ch.relRemoves[d.id]; gone {
					continue
				}
			}
			arr, found := n.relationships[d.typeName]
			if !found {
				arr = newRelIDArray(d.typeName, d.dir == graphcore.Both)
				n.relationships[d.typeName] = arr
			}
			arr.add(d.id, d.dir)
		}
		for relID := range ch.relRemoves {
			for _, arr := range n.relationships {
				arr.remove(relID)
			}
		}
		n.mu.Unlock()
	}
}

// undoCreated replays the inverse cache effects of a rolled back
// transaction: entities it created and installed are scrubbed so no residue
// stays visible to other transactions.
func (m *EntityManager) undoCreated(st *txState) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, key := range st.cs.createdKeys() {
		switch key.kind {
		case graphcore.KindNode:
			m.cache.evictNode(key.id)
		case graphcore.KindRelationship:
			m.cache.evictRelationship(key.id)
		}
	}
}

// asStoreError wraps a loader failure, keeping already-typed errors intact.
func asStoreError(err error, userData any) error {
	var ge graphcore.Error
	if errors.As(err, &ge) {
		return err
	}
	return graphcore.Error{Code: graphcore.StoreFailure, Err: err, UserData: userData}
}
