package graph

import (
	"context"
	"fmt"

	"github.com/sharedcode/graphcore"
)

// CreateNode allocates a node id, records the creation with the loader,
// installs the node in the cache, and returns its proxy. The write lock on
// the new node stays held until transaction completion.
func (m *EntityManager) CreateNode(ctx context.Context) (NodeProxy, error) {
	tx, err := m.currentTx(ctx)
	if err != nil {
		return NodeProxy{}, err
	}
	id, err := m.ids.NextID(ctx, graphcore.KindNode)
	if err != nil {
		return NodeProxy{}, asStoreError(err, graphcore.KindNode)
	}
	n := newNode(id, graphcore.NoNextRelationship, graphcore.NoNextProperty, LoadFullNew)
	proxy := NodeProxy{id: id, m: m}
	st := m.stateFor(tx)
	if err := m.acquireWrite(ctx, st, proxy.resource()); err != nil {
		return NodeProxy{}, err
	}
	success := false
	defer func() {
		if !success {
			tx.SetRollbackOnly()
		}
	}()
	if err := m.loader.CreateNode(ctx, id); err != nil {
		return NodeProxy{}, asStoreError(err, id)
	}
	if err := m.cache.nodes.Put(id, n); err != nil {
		return NodeProxy{}, err
	}
	st.mu.Lock()
	st.cs.recordCreate(nodeKey(id))
	st.mu.Unlock()
	success = true
	return proxy, nil
}

// CreateRelationship creates a relationship of the named type between the
// two nodes, auto-registering the type if unknown. Write locks are taken in
// a fixed order (relationship, smaller node id, larger node id) so symmetric
// writes cannot deadlock, and stay held until transaction completion.
// Pending additions are visible only through the calling transaction's
// change set until commit.
func (m *EntityManager) CreateRelationship(ctx context.Context, start, end NodeProxy, typeName string) (RelationshipProxy, error) {
	if start.m == nil || end.m == nil || typeName == "" {
		return RelationshipProxy{}, graphcore.Error{
			Code: graphcore.InvalidArgument,
			Err:  fmt.Errorf("null parameter, startNode=%v, endNode=%v, type=%q", start.m != nil, end.m != nil, typeName),
		}
	}
	tx, err := m.currentTx(ctx)
	if err != nil {
		return RelationshipProxy{}, err
	}
	typeID, err := m.typeHolder.getOrCreate(ctx, typeName)
	if err != nil {
		return RelationshipProxy{}, asStoreError(err, typeName)
	}
	startID, endID := start.id, end.id

	// Fault in both endpoints as light nodes; a concurrently deleted
	// endpoint fails the create before anything is recorded.
	startNode, err := m.cache.getNode(ctx, startID)
	if err != nil {
		tx.SetRollbackOnly()
		return RelationshipProxy{}, asStoreError(err, startID)
	}
	secondNode, err := m.cache.getNode(ctx, endID)
	if err != nil {
		tx.SetRollbackOnly()
		return RelationshipProxy{}, asStoreError(err, endID)
	}
	if startNode == nil || secondNode == nil {
		tx.SetRollbackOnly()
		missing := startID
		if startNode != nil {
			missing = endID
		}
		return RelationshipProxy{}, graphcore.Error{
			Code: graphcore.NotFound,
			Err:  fmt.Errorf("second node[%d] deleted", missing), UserData: missing,
		}
	}

	id, err := m.ids.NextID(ctx, graphcore.KindRelationship)
	if err != nil {
		return RelationshipProxy{}, asStoreError(err, graphcore.KindRelationship)
	}
	rel := &relationship{
		id:       id,
		start:    startID,
		end:      endID,
		typeID:   typeID,
		nextProp: graphcore.NoNextProperty,
		state:    LoadFullNew,
	}
	proxy := RelationshipProxy{id: id, m: m}
	st := m.stateFor(tx)

	// Fixed multi-entity order: relationship, then node ids ascending.
	if err := m.acquireWrite(ctx, st, proxy.resource()); err != nil {
		return RelationshipProxy{}, err
	}
	lo, hi := startID, endID
	if lo > hi {
		lo, hi = hi, lo
	}
	if err := m.acquireWrite(ctx, st, graphcore.Resource{Kind: graphcore.KindNode, ID: lo}); err != nil {
		return RelationshipProxy{}, err
	}
	if lo != hi {
		if err := m.acquireWrite(ctx, st, graphcore.Resource{Kind: graphcore.KindNode, ID: hi}); err != nil {
			return RelationshipProxy{}, err
		}
	}

	success := false
	defer func() {
		if !success {
			tx.SetRollbackOnly()
		}
	}()
	if err := m.loader.CreateRelationship(ctx, id, typeID, startID, endID); err != nil {
		return RelationshipProxy{}, asStoreError(err, id)
	}
	st.mu.Lock()
	if startID == endID {
		st.cs.recordRelAdd(nodeKey(startID), relDelta{id: id, typeName: typeName, dir: graphcore.Both})
	} else {
		st.cs.recordRelAdd(nodeKey(startID), relDelta{id: id, typeName: typeName, dir: graphcore.Outgoing})
		st.cs.recordRelAdd(nodeKey(endID), relDelta{id: id, typeName: typeName, dir: graphcore.Incoming})
	}
	st.cs.recordCreate(relKey(id))
	st.mu.Unlock()
	if err := m.cache.rels.Put(id, rel); err != nil {
		return RelationshipProxy{}, err
	}
	success = true
	return proxy, nil
}

// DeleteNode tombstones the node through the loader, drops any reference
// node registration pointing at it, and schedules the cache removal for
// commit time. The committed properties are returned.
func (m *EntityManager) DeleteNode(ctx context.Context, p NodeProxy) (map[int32]any, error) {
	tx, err := m.currentTx(ctx)
	if err != nil {
		return nil, err
	}
	st := m.stateFor(tx)
	if err := m.acquireWrite(ctx, st, p.resource()); err != nil {
		return nil, err
	}
	st.mu.Lock()
	alreadyDeleted := st.cs.isDeleted(nodeKey(p.id))
	st.mu.Unlock()
	if alreadyDeleted {
		return nil, graphcore.Error{Code: graphcore.NotFound, Err: fmt.Errorf("node[%d]", p.id), UserData: p.id}
	}
	props, err := m.loader.DeleteNode(ctx, p.id)
	if err != nil {
		tx.SetRollbackOnly()
		return nil, asStoreError(err, p.id)
	}
	if ref, ok := m.refHolder.byNodeID(p.id); ok {
		if err := m.loader.DeleteReferenceNode(ctx, ref.ID); err != nil {
			tx.SetRollbackOnly()
			return nil, asStoreError(err, ref.Name)
		}
		m.refHolder.remove(ref.ID)
	}
	st.mu.Lock()
	st.cs.markDeleted(nodeKey(p.id))
	st.mu.Unlock()
	return props, nil
}

// DeleteRelationship tombstones the relationship, records the removal on
// both endpoints' change sets so same-transaction reads exclude it, and
// schedules the cache removal for commit time.
func (m *EntityManager) DeleteRelationship(ctx context.Context, p RelationshipProxy) (map[int32]any, error) {
	tx, err := m.currentTx(ctx)
	if err != nil {
		return nil, err
	}
	rel, err := m.relForProxy(ctx, p.id)
	if err != nil {
		return nil, err
	}
	st := m.stateFor(tx)
	if err := m.acquireWrite(ctx, st, p.resource()); err != nil {
		return nil, err
	}
	lo, hi := rel.start, rel.end
	if lo > hi {
		lo, hi = hi, lo
	}
	if err := m.acquireWrite(ctx, st, graphcore.Resource{Kind: graphcore.KindNode, ID: lo}); err != nil {
		return nil, err
	}
	if lo != hi {
		if err := m.acquireWrite(ctx, st, graphcore.Resource{Kind: graphcore.KindNode, ID: hi}); err != nil {
			return nil, err
		}
	}
	st.mu.Lock()
	alreadyDeleted := st.cs.isDeleted(relKey(p.id))
	st.mu.Unlock()
	if alreadyDeleted {
		return nil, graphcore.Error{Code: graphcore.NotFound, Err: fmt.Errorf("relationship[%d]", p.id), UserData: p.id}
	}
	props, err := m.loader.DeleteRelationship(ctx, p.id)
	if err != nil {
		tx.SetRollbackOnly()
		return nil, asStoreError(err, p.id)
	}
	st.mu.Lock()
	st.cs.markDeleted(relKey(p.id))
	st.cs.recordRelRemove(nodeKey(rel.start), p.id)
	if rel.start != rel.end {
		st.cs.recordRelRemove(nodeKey(rel.end), p.id)
	}
	st.mu.Unlock()
	return props, nil
}
