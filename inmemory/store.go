// Package inmemory provides in-process implementations of the collaborators
// the entity layer consumes: a RecordLoader over plain maps, an IdGenerator,
// a LockManager, and a TransactionContext. They back standalone embeddings
// and the package tests; there is no durability.
package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/sharedcode/graphcore"
)

type nodeRecord struct {
	deleted bool
	// relationship ids in chain order; paged out in batches.
	rels  []int64
	props map[int32]any
}

type relRecord struct {
	start   int64
	end     int64
	typeID  int32
	deleted bool
	props   map[int32]any
}

// Store is the in-memory record store. All methods are safe for concurrent
// use; every mutation is immediately visible (the store itself has no
// transaction scope, that is the entity layer's job).
type Store struct {
	// BatchSize bounds one relationship chain page. Defaults to 100.
	BatchSize int

	mu         sync.RWMutex
	nodes      map[int64]*nodeRecord
	rels       map[int64]*relRecord
	relTypes   []graphcore.NameRecord
	propKeys   []graphcore.NameRecord
	refs       map[int32]graphcore.ReferenceRecord
	graphProps map[int32]any
	highest    map[graphcore.EntityKind]int64
	nextPropID int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		BatchSize:  100,
		nodes:      make(map[int64]*nodeRecord),
		rels:       make(map[int64]*relRecord),
		refs:       make(map[int32]graphcore.ReferenceRecord),
		graphProps: make(map[int32]any),
		highest:    make(map[graphcore.EntityKind]int64),
	}
}

func (s *Store) bump(kind graphcore.EntityKind, id int64) {
	if cur, ok := s.highest[kind]; !ok || id > cur {
		s.highest[kind] = id
	}
}

func (s *Store) LoadLightNode(ctx context.Context, id int64) (*graphcore.NodeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok || n.deleted {
		return nil, nil
	}
	rec := &graphcore.NodeRecord{
		ID:               id,
		NextRelationship: graphcore.NoNextRelationship,
		NextProperty:     graphcore.NoNextProperty,
	}
	if len(n.rels) > 0 {
		rec.NextRelationship = n.rels[0]
	}
	return rec, nil
}

func (s *Store) LoadLightRelationship(ctx context.Context, id int64) (*graphcore.RelationshipRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rels[id]
	if !ok || r.deleted {
		return nil, nil
	}
	return &graphcore.RelationshipRecord{
		ID:           id,
		StartNode:    r.start,
		EndNode:      r.end,
		TypeID:       r.typeID,
		NextProperty: graphcore.NoNextProperty,
	}, nil
}

func (s *Store) RelationshipChainPosition(ctx context.Context, nodeID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[nodeID]
	if !ok || n.deleted || len(n.rels) == 0 {
		return graphcore.NoChainPosition, nil
	}
	return 0, nil
}

func (s *Store) MoreRelationships(ctx context.Context, nodeID int64, position int64) (graphcore.RelationshipBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	batch := graphcore.RelationshipBatch{
		Records:      make(map[graphcore.Direction][]graphcore.RelationshipRecord),
		NextPosition: graphcore.NoChainPosition,
	}
	n, ok := s.nodes[nodeID]
	if !ok || n.deleted {
		return batch, nil
	}
	if position < 0 || position >= int64(len(n.rels)) {
		return batch, nil
	}
	size := s.BatchSize
	if size <= 0 {
		size = 100
	}
	end := position + int64(size)
	if end > int64(len(n.rels)) {
		end = int64(len(n.rels))
	}
	for _, relID := range n.rels[position:end] {
		r, ok := s.rels[relID]
		if !ok || r.deleted {
			continue
		}
		rec := graphcore.RelationshipRecord{
			ID:           relID,
			StartNode:    r.start,
			EndNode:      r.end,
			TypeID:       r.typeID,
			NextProperty: graphcore.NoNextProperty,
		}
		dir := graphcore.Incoming
		switch {
		case r.start == r.end:
			dir = graphcore.Both
		case r.start == nodeID:
			dir = graphcore.Outgoing
		}
		batch.Records[dir] = append(batch.Records[dir], rec)
	}
	if end < int64(len(n.rels)) {
		batch.NextPosition = end
	}
	return batch, nil
}

func (s *Store) CreateNode(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.nodes[id]; ok && !existing.deleted {
		return fmt.Errorf("node[%d] already exists", id)
	}
	s.nodes[id] = &nodeRecord{props: make(map[int32]any)}
	s.bump(graphcore.KindNode, id)
	return nil
}

func (s *Store) CreateRelationship(ctx context.Context, id int64, typeID int32, startNode, endNode int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	start, ok := s.nodes[startNode]
	if !ok || start.deleted {
		return fmt.Errorf("start node[%d] not found", startNode)
	}
	end, ok := s.nodes[endNode]
	if !ok || end.deleted {
		return fmt.Errorf("end node[%d] not found", endNode)
	}
	if existing, ok := s.rels[id]; ok && !existing.deleted {
		return fmt.Errorf("relationship[%d] already exists", id)
	}
	s.rels[id] = &relRecord{start: startNode, end: endNode, typeID: typeID, props: make(map[int32]any)}
	start.rels = append(start.rels, id)
	if startNode != endNode {
		end.rels = append(end.rels, id)
	}
	s.bump(graphcore.KindRelationship, id)
	return nil
}

func (s *Store) DeleteNode(ctx context.Context, id int64) (map[int32]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok || n.deleted {
		return nil, fmt.Errorf("node[%d] not found", id)
	}
	n.deleted = true
	props := n.props
	n.props = make(map[int32]any)
	return props, nil
}

func (s *Store) DeleteRelationship(ctx context.Context, id int64) (map[int32]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rels[id]
	if !ok || r.deleted {
		return nil, fmt.Errorf("relationship[%d] not found", id)
	}
	r.deleted = true
	props := r.props
	r.props = make(map[int32]any)
	return props, nil
}

func (s *Store) nodeProps(id int64) (map[int32]any, error) {
	n, ok := s.nodes[id]
	if !ok || n.deleted {
		return nil, fmt.Errorf("node[%d] not found", id)
	}
	return n.props, nil
}

func (s *Store) relProps(id int64) (map[int32]any, error) {
	r, ok := s.rels[id]
	if !ok || r.deleted {
		return nil, fmt.Errorf("relationship[%d] not found", id)
	}
	return r.props, nil
}

func (s *Store) addProperty(props map[int32]any, keyID int32, value any) graphcore.PropertyRecord {
	s.nextPropID++
	props[keyID] = value
	return graphcore.PropertyRecord{ID: s.nextPropID, KeyID: keyID, Value: value}
}

func (s *Store) NodeAddProperty(ctx context.Context, nodeID int64, keyID int32, value any) (graphcore.PropertyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	props, err := s.nodeProps(nodeID)
	if err != nil {
		return graphcore.PropertyRecord{}, err
	}
	return s.addProperty(props, keyID, value), nil
}

func (s *Store) NodeChangeProperty(ctx context.Context, nodeID int64, property graphcore.PropertyRecord, value any) (graphcore.PropertyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	props, err := s.nodeProps(nodeID)
	if err != nil {
		return graphcore.PropertyRecord{}, err
	}
	props[property.KeyID] = value
	property.Value = value
	return property, nil
}

func (s *Store) NodeRemoveProperty(ctx context.Context, nodeID int64, property graphcore.PropertyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	props, err := s.nodeProps(nodeID)
	if err != nil {
		return err
	}
	delete(props, property.KeyID)
	return nil
}

func (s *Store) RelationshipAddProperty(ctx context.Context, relID int64, keyID int32, value any) (graphcore.PropertyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	props, err := s.relProps(relID)
	if err != nil {
		return graphcore.PropertyRecord{}, err
	}
	return s.addProperty(props, keyID, value), nil
}

func (s *Store) RelationshipChangeProperty(ctx context.Context, relID int64, property graphcore.PropertyRecord, value any) (graphcore.PropertyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	props, err := s.relProps(relID)
	if err != nil {
		return graphcore.PropertyRecord{}, err
	}
	props[property.KeyID] = value
	property.Value = value
	return property, nil
}

func (s *Store) RelationshipRemoveProperty(ctx context.Context, relID int64, property graphcore.PropertyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	props, err := s.relProps(relID)
	if err != nil {
		return err
	}
	delete(props, property.KeyID)
	return nil
}

func (s *Store) GraphAddProperty(ctx context.Context, keyID int32, value any) (graphcore.PropertyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addProperty(s.graphProps, keyID, value), nil
}

func (s *Store) GraphChangeProperty(ctx context.Context, property graphcore.PropertyRecord, value any) (graphcore.PropertyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphProps[property.KeyID] = value
	property.Value = value
	return property, nil
}

func (s *Store) GraphRemoveProperty(ctx context.Context, property graphcore.PropertyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.graphProps, property.KeyID)
	return nil
}

func (s *Store) LoadRelationshipTypes(ctx context.Context) ([]graphcore.NameRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]graphcore.NameRecord(nil), s.relTypes...), nil
}

func (s *Store) LoadPropertyKeys(ctx context.Context) ([]graphcore.NameRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]graphcore.NameRecord(nil), s.propKeys...), nil
}

func (s *Store) LoadReferenceNodes(ctx context.Context) ([]graphcore.ReferenceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]graphcore.ReferenceRecord, 0, len(s.refs))
	for _, rec := range s.refs {
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) CreateRelationshipType(ctx context.Context, id int32, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relTypes = append(s.relTypes, graphcore.NameRecord{ID: id, Name: name})
	s.bump(graphcore.KindRelationshipType, int64(id))
	return nil
}

func (s *Store) CreatePropertyKey(ctx context.Context, id int32, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.propKeys = append(s.propKeys, graphcore.NameRecord{ID: id, Name: name})
	s.bump(graphcore.KindPropertyKey, int64(id))
	return nil
}

func (s *Store) CreateReferenceNode(ctx context.Context, id int32, name string, nodeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs[id] = graphcore.ReferenceRecord{ID: id, Name: name, NodeID: nodeID}
	s.bump(graphcore.KindReferenceNode, int64(id))
	return nil
}

func (s *Store) DeleteReferenceNode(ctx context.Context, id int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refs, id)
	return nil
}

func (s *Store) HighestIDInUse(ctx context.Context, kind graphcore.EntityKind) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if high, ok := s.highest[kind]; ok {
		return high, nil
	}
	return -1, nil
}

// IsCreated reports whether the node or relationship exists and is not
// tombstoned. The store has no transaction scope, so it cannot tell entities
// created by the current transaction apart from committed ones; other kinds
// always report false.
func (s *Store) IsCreated(ctx context.Context, kind graphcore.EntityKind, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch kind {
	case graphcore.KindNode:
		n, ok := s.nodes[id]
		return ok && !n.deleted, nil
	case graphcore.KindRelationship:
		r, ok := s.rels[id]
		return ok && !r.deleted, nil
	}
	return false, nil
}
