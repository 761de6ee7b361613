package graph

import (
	"context"
	"fmt"

	"github.com/sharedcode/graphcore"
)

// AddNodePropertyTracker registers a tracker for node property mutations.
func (m *EntityManager) AddNodePropertyTracker(t PropertyTracker) {
	m.trackerMu.Lock()
	m.nodeTrackers = append(m.nodeTrackers, t)
	m.trackerMu.Unlock()
}

// RemoveNodePropertyTracker unregisters a node tracker.
func (m *EntityManager) RemoveNodePropertyTracker(t PropertyTracker) {
	m.trackerMu.Lock()
	defer m.trackerMu.Unlock()
	for i := range m.nodeTrackers {
		if m.nodeTrackers[i] == t {
			m.nodeTrackers = append(m.nodeTrackers[:i], m.nodeTrackers[i+1:]...)
			return
		}
	}
}

// AddRelationshipPropertyTracker registers a tracker for relationship
// property mutations.
func (m *EntityManager) AddRelationshipPropertyTracker(t PropertyTracker) {
	m.trackerMu.Lock()
	m.relTrackers = append(m.relTrackers, t)
	m.trackerMu.Unlock()
}

// RemoveRelationshipPropertyTracker unregisters a relationship tracker.
func (m *EntityManager) RemoveRelationshipPropertyTracker(t PropertyTracker) {
	m.trackerMu.Lock()
	defer m.trackerMu.Unlock()
	for i := range m.relTrackers {
		if m.relTrackers[i] == t {
			m.relTrackers = append(m.relTrackers[:i], m.relTrackers[i+1:]...)
			return
		}
	}
}

func (m *EntityManager) trackersFor(kind graphcore.EntityKind) []PropertyTracker {
	m.trackerMu.RLock()
	defer m.trackerMu.RUnlock()
	if kind == graphcore.KindNode {
		return append([]PropertyTracker(nil), m.nodeTrackers...)
	}
	return append([]PropertyTracker(nil), m.relTrackers...)
}

// SetNodeProperty adds or changes a property on the node. Trackers are
// notified before the mutation is recorded; the change set is the
// authoritative view within the transaction, and the cache is never updated
// in place for properties.
func (m *EntityManager) SetNodeProperty(ctx context.Context, p NodeProxy, key string, value any) error {
	return m.setProperty(ctx, p, p.resource(), key, value)
}

// RemoveNodeProperty removes a property from the node.
func (m *EntityManager) RemoveNodeProperty(ctx context.Context, p NodeProxy, key string) error {
	return m.removeProperty(ctx, p, p.resource(), key)
}

// NodeProperty returns the calling transaction's pending view of the
// property: the pending value when one exists, absent when none is pending
// or the key has a pending removal.
func (m *EntityManager) NodeProperty(ctx context.Context, p NodeProxy, key string) (any, bool, error) {
	return m.pendingPropertyView(ctx, p.resource(), key)
}

// SetRelationshipProperty adds or changes a property on the relationship.
func (m *EntityManager) SetRelationshipProperty(ctx context.Context, p RelationshipProxy, key string, value any) error {
	return m.setProperty(ctx, p, p.resource(), key, value)
}

// RemoveRelationshipProperty removes a property from the relationship.
func (m *EntityManager) RemoveRelationshipProperty(ctx context.Context, p RelationshipProxy, key string) error {
	return m.removeProperty(ctx, p, p.resource(), key)
}

// RelationshipProperty returns the pending view of the property.
func (m *EntityManager) RelationshipProperty(ctx context.Context, p RelationshipProxy, key string) (any, bool, error) {
	return m.pendingPropertyView(ctx, p.resource(), key)
}

func (m *EntityManager) setProperty(ctx context.Context, entity Entity, res graphcore.Resource, key string, value any) error {
	if key == "" || value == nil {
		return graphcore.Error{Code: graphcore.InvalidArgument, Err: fmt.Errorf("null key or value not allowed"), UserData: res}
	}
	tx, err := m.currentTx(ctx)
	if err != nil {
		return err
	}
	st := m.stateFor(tx)
	if err := m.acquireWrite(ctx, st, res); err != nil {
		return err
	}
	keyID, err := m.keyHolder.getOrCreate(ctx, key)
	if err != nil {
		return asStoreError(err, key)
	}
	ek := entityKey{kind: res.Kind, id: res.ID}
	st.mu.Lock()
	if st.cs.isDeleted(ek) {
		st.mu.Unlock()
		return graphcore.Error{Code: graphcore.NotFound, Err: fmt.Errorf("%v[%d]", res.Kind, res.ID), UserData: res.ID}
	}
	old, hadOld, _ := st.cs.pendingProperty(ek, keyID)
	st.mu.Unlock()

	// Trackers observe the mutation before it is recorded; a failing tracker
	// aborts both the mutation and the transaction.
	for _, t := range m.trackersFor(res.Kind) {
		var terr error
		if hadOld {
			terr = t.PropertyChanged(entity, key, old.Value, value)
		} else {
			terr = t.PropertyAdded(entity, key, value)
		}
		if terr != nil {
			tx.SetRollbackOnly()
			return terr
		}
	}

	var rec graphcore.PropertyRecord
	if hadOld {
		rec, err = m.changePropertyRecord(ctx, res, old, value)
	} else {
		rec, err = m.addPropertyRecord(ctx, res, keyID, value)
	}
	if err != nil {
		tx.SetRollbackOnly()
		return asStoreError(err, res.ID)
	}
	rec.KeyID = keyID
	rec.Value = value
	st.mu.Lock()
	st.cs.recordPropertySet(ek, rec)
	st.mu.Unlock()
	return nil
}

func (m *EntityManager) removeProperty(ctx context.Context, entity Entity, res graphcore.Resource, key string) error {
	if key == "" {
		return graphcore.Error{Code: graphcore.InvalidArgument, Err: fmt.Errorf("null key not allowed"), UserData: res}
	}
	tx, err := m.currentTx(ctx)
	if err != nil {
		return err
	}
	keyID, ok := m.keyHolder.idByName(key)
	if !ok {
		return graphcore.Error{Code: graphcore.NotFound, Err: fmt.Errorf("property key %q", key), UserData: key}
	}
	st := m.stateFor(tx)
	if err := m.acquireWrite(ctx, st, res); err != nil {
		return err
	}
	ek := entityKey{kind: res.Kind, id: res.ID}
	st.mu.Lock()
	if st.cs.isDeleted(ek) {
		st.mu.Unlock()
		return graphcore.Error{Code: graphcore.NotFound, Err: fmt.Errorf("%v[%d]", res.Kind, res.ID), UserData: res.ID}
	}
	old, _, _ := st.cs.pendingProperty(ek, keyID)
	st.mu.Unlock()
	old.KeyID = keyID

	for _, t := range m.trackersFor(res.Kind) {
		if terr := t.PropertyRemoved(entity, key, old.Value); terr != nil {
			tx.SetRollbackOnly()
			return terr
		}
	}
	if err := m.removePropertyRecord(ctx, res, old); err != nil {
		tx.SetRollbackOnly()
		return asStoreError(err, res.ID)
	}
	st.mu.Lock()
	st.cs.recordPropertyRemove(ek, old)
	st.mu.Unlock()
	return nil
}

func (m *EntityManager) pendingPropertyView(ctx context.Context, res graphcore.Resource, key string) (any, bool, error) {
	keyID, ok := m.keyHolder.idByName(key)
	if !ok {
		return nil, false, nil
	}
	st := m.optionalState(ctx)
	if st == nil {
		return nil, false, nil
	}
	ek := entityKey{kind: res.Kind, id: res.ID}
	st.mu.Lock()
	defer st.mu.Unlock()
	rec, present, removed := st.cs.pendingProperty(ek, keyID)
	if removed || !present {
		return nil, false, nil
	}
	return rec.Value, true, nil
}

func (m *EntityManager) addPropertyRecord(ctx context.Context, res graphcore.Resource, keyID int32, value any) (graphcore.PropertyRecord, error) {
	if res.Kind == graphcore.KindNode {
		return m.loader.NodeAddProperty(ctx, res.ID, keyID, value)
	}
	return m.loader.RelationshipAddProperty(ctx, res.ID, keyID, value)
}

func (m *EntityManager) changePropertyRecord(ctx context.Context, res graphcore.Resource, old graphcore.PropertyRecord, value any) (graphcore.PropertyRecord, error) {
	if res.Kind == graphcore.KindNode {
		return m.loader.NodeChangeProperty(ctx, res.ID, old, value)
	}
	return m.loader.RelationshipChangeProperty(ctx, res.ID, old, value)
}

func (m *EntityManager) removePropertyRecord(ctx context.Context, res graphcore.Resource, old graphcore.PropertyRecord) error {
	if res.Kind == graphcore.KindNode {
		return m.loader.NodeRemoveProperty(ctx, res.ID, old)
	}
	return m.loader.RelationshipRemoveProperty(ctx, res.ID, old)
}

// GraphAddProperty records a graph-level property through the loader.
func (m *EntityManager) GraphAddProperty(ctx context.Context, key string, value any) (graphcore.PropertyRecord, error) {
	keyID, err := m.keyHolder.getOrCreate(ctx, key)
	if err != nil {
		return graphcore.PropertyRecord{}, asStoreError(err, key)
	}
	rec, err := m.loader.GraphAddProperty(ctx, keyID, value)
	if err != nil {
		return graphcore.PropertyRecord{}, asStoreError(err, key)
	}
	return rec, nil
}

// GraphChangeProperty updates a graph-level property.
func (m *EntityManager) GraphChangeProperty(ctx context.Context, property graphcore.PropertyRecord, value any) (graphcore.PropertyRecord, error) {
	rec, err := m.loader.GraphChangeProperty(ctx, property, value)
	if err != nil {
		return graphcore.PropertyRecord{}, asStoreError(err, property.KeyID)
	}
	return rec, nil
}

// GraphRemoveProperty removes a graph-level property.
func (m *EntityManager) GraphRemoveProperty(ctx context.Context, property graphcore.PropertyRecord) error {
	if err := m.loader.GraphRemoveProperty(ctx, property); err != nil {
		return asStoreError(err, property.KeyID)
	}
	return nil
}

// ReferenceNode returns the named well-known root node, creating and
// registering it when the name is unknown. Two concurrent callers for the
// same name settle on one node; the loader records exactly one creation.
func (m *EntityManager) ReferenceNode(ctx context.Context, name string) (NodeProxy, error) {
	nodeID, err := m.refHolder.getOrCreate(ctx, name, func(ctx context.Context) (int64, error) {
		p, err := m.CreateNode(ctx)
		if err != nil {
			return 0, err
		}
		return p.ID(), nil
	})
	if err != nil {
		return NodeProxy{}, err
	}
	return m.GetNodeByID(ctx, nodeID)
}

// ReferenceNodeIfExists returns the named root node without ever creating
// one.
func (m *EntityManager) ReferenceNodeIfExists(ctx context.Context, name string) (NodeProxy, bool, error) {
	nodeID, ok := m.refHolder.get(name)
	if !ok {
		return NodeProxy{}, false, nil
	}
	p, err := m.GetNodeByID(ctx, nodeID)
	if err != nil {
		return NodeProxy{}, false, err
	}
	return p, true, nil
}
