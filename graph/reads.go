package graph

import (
	"context"
	"fmt"
	"iter"

	"github.com/sharedcode/graphcore"
)

// GetNodeByID returns a proxy for the node, faulting it in on a miss. It
// fails NotFound when the id never existed, is tombstoned, or was deleted by
// the calling transaction.
func (m *EntityManager) GetNodeByID(ctx context.Context, id int64) (NodeProxy, error) {
	p, ok, err := m.getNodeOrNil(ctx, id)
	if err != nil {
		return NodeProxy{}, err
	}
	if !ok {
		return NodeProxy{}, graphcore.Error{Code: graphcore.NotFound, Err: fmt.Errorf("node[%d]", id), UserData: id}
	}
	return p, nil
}

// getNodeOrNil is the fast-path read: cache hit, or stripe-locked
// double-checked load.
func (m *EntityManager) getNodeOrNil(ctx context.Context, id int64) (NodeProxy, bool, error) {
	if st := m.optionalState(ctx); st != nil {
		st.mu.Lock()
		deleted := st.cs.isDeleted(nodeKey(id))
		st.mu.Unlock()
		if deleted {
			return NodeProxy{}, false, nil
		}
	}
	n, err := m.cache.getNode(ctx, id)
	if err != nil {
		return NodeProxy{}, false, m.failRead(ctx, err, id)
	}
	if n == nil {
		return NodeProxy{}, false, nil
	}
	return NodeProxy{id: id, m: m}, true, nil
}

// GetRelationshipByID returns a proxy for the relationship, faulting it in
// on a miss.
func (m *EntityManager) GetRelationshipByID(ctx context.Context, id int64) (RelationshipProxy, error) {
	if st := m.optionalState(ctx); st != nil {
		st.mu.Lock()
		deleted := st.cs.isDeleted(relKey(id))
		st.mu.Unlock()
		if deleted {
			return RelationshipProxy{}, graphcore.Error{Code: graphcore.NotFound, Err: fmt.Errorf("relationship[%d]", id), UserData: id}
		}
	}
	r, err := m.cache.getRelationship(ctx, id)
	if err != nil {
		return RelationshipProxy{}, m.failRead(ctx, err, id)
	}
	if r == nil {
		return RelationshipProxy{}, graphcore.Error{Code: graphcore.NotFound, Err: fmt.Errorf("relationship[%d]", id), UserData: id}
	}
	return RelationshipProxy{id: id, m: m}, nil
}

// nodeForProxy resolves the internal node behind a proxy, failing NotFound
// when it is gone.
func (m *EntityManager) nodeForProxy(ctx context.Context, id int64) (*node, error) {
	n, err := m.cache.getNode(ctx, id)
	if err != nil {
		return nil, m.failRead(ctx, err, id)
	}
	if n == nil {
		return nil, graphcore.Error{Code: graphcore.NotFound, Err: fmt.Errorf("node[%d] not found", id), UserData: id}
	}
	return n, nil
}

// relForProxy resolves the internal relationship behind a proxy.
func (m *EntityManager) relForProxy(ctx context.Context, id int64) (*relationship, error) {
	r, err := m.cache.getRelationship(ctx, id)
	if err != nil {
		return nil, m.failRead(ctx, err, id)
	}
	if r == nil {
		return nil, graphcore.Error{Code: graphcore.NotFound, Err: fmt.Errorf("relationship[%d] not found", id), UserData: id}
	}
	return r, nil
}

// AllNodes returns a lazy, restartable sequence over every allocated node
// id, silently skipping absent ones. Iteration stops at the first loader
// failure, yielding the error.
func (m *EntityManager) AllNodes(ctx context.Context) iter.Seq2[NodeProxy, error] {
	return func(yield func(NodeProxy, error) bool) {
		high, err := m.loader.HighestIDInUse(ctx, graphcore.KindNode)
		if err != nil {
			yield(NodeProxy{}, asStoreError(err, graphcore.KindNode))
			return
		}
		for id := int64(0); id <= high; id++ {
			p, ok, err := m.getNodeOrNil(ctx, id)
			if err != nil {
				yield(NodeProxy{}, err)
				return
			}
			if !ok {
				continue
			}
			if !yield(p, nil) {
				return
			}
		}
	}
}

// AllRelationships is the relationship-side twin of AllNodes.
func (m *EntityManager) AllRelationships(ctx context.Context) iter.Seq2[RelationshipProxy, error] {
	return func(yield func(RelationshipProxy, error) bool) {
		high, err := m.loader.HighestIDInUse(ctx, graphcore.KindRelationship)
		if err != nil {
			yield(RelationshipProxy{}, asStoreError(err, graphcore.KindRelationship))
			return
		}
		for id := int64(0); id <= high; id++ {
			if st := m.optionalState(ctx); st != nil {
				st.mu.Lock()
				deleted := st.cs.isDeleted(relKey(id))
				st.mu.Unlock()
				if deleted {
					continue
				}
			}
			r, err := m.cache.getRelationship(ctx, id)
			if err != nil {
				yield(RelationshipProxy{}, m.failRead(ctx, err, id))
				return
			}
			if r == nil {
				continue
			}
			if !yield(RelationshipProxy{id: id, m: m}, nil) {
				return
			}
		}
	}
}

// Relationships pages in the node's relationship chain and returns its
// relationships with the calling transaction's pending changes merged over
// the committed base.
func (m *EntityManager) Relationships(ctx context.Context, p NodeProxy) ([]RelationshipView, error) {
	st := m.optionalState(ctx)
	if st != nil {
		st.mu.Lock()
		deleted := st.cs.isDeleted(nodeKey(p.id))
		st.mu.Unlock()
		if deleted {
			return nil, graphcore.Error{Code: graphcore.NotFound, Err: fmt.Errorf("node[%d]", p.id), UserData: p.id}
		}
	}
	n, err := m.nodeForProxy(ctx, p.id)
	if err != nil {
		return nil, err
	}
	if err := m.cache.loadAllRelationships(ctx, n); err != nil {
		return nil, m.failRead(ctx, err, p.id)
	}

	base := n.snapshotRelationships()
	var removes map[int64]struct{}
	var adds []relDelta
	if st != nil {
		st.mu.Lock()
		removes = st.cs.relRemovals(p.id)
		adds = st.cs.relAdditions(p.id)
		deletedRels := make(map[int64]struct{})
		for key, ch := range st.cs.entities {
			if key.kind == graphcore.KindRelationship && ch.state == stateDeleted {
				deletedRels[key.id] = struct{}{}
			}
		}
		st.mu.Unlock()
		if len(deletedRels) > 0 {
			if removes == nil {
				removes = deletedRels
			} else {
				merged := make(map[int64]struct{}, len(removes)+len(deletedRels))
				for id := range removes {
					merged[id] = struct{}{}
				}
				for id := range deletedRels {
					merged[id] = struct{}{}
				}
				removes = merged
			}
		}
	}

	views := make([]RelationshipView, 0, len(base)+len(adds))
	for _, ref := range base {
		if removes != nil {
			if _, gone := removes[ref.id]; gone {
				continue
			}
		}
		views = append(views, RelationshipView{
			Relationship: RelationshipProxy{id: ref.id, m: m},
			Type:         ref.typeName,
			Direction:    ref.dir,
		})
	}
	for _, d := range adds {
		views = append(views, RelationshipView{
			Relationship: RelationshipProxy{id: d.id, m: m},
			Type:         d.typeName,
			Direction:    d.dir,
		})
	}
	return views, nil
}

// failRead wraps a load failure and, when it is a store failure inside a
// transaction, marks the transaction rollback-only. The cache never
// swallows a loader error to return a hit.
func (m *EntityManager) failRead(ctx context.Context, err error, userData any) error {
	wrapped := asStoreError(err, userData)
	if graphcore.IsCode(wrapped, graphcore.StoreFailure) {
		if tx, terr := m.txns.Current(ctx); terr == nil && tx != nil {
			tx.SetRollbackOnly()
		}
	}
	return wrapped
}
