package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/sharedcode/graphcore"
)

// nameRegistry is the shared shape of the relationship-type and property-key
// holders: name to small integer id, created lazily under a single-writer
// lock, never evicted. Reads take the fast path once a name is published.
type nameRegistry struct {
	kind   graphcore.EntityKind
	create func(ctx context.Context, id int32, name string) error

	mu     sync.RWMutex
	byName map[string]int32
	byID   map[int32]string

	ids graphcore.IdGenerator
}

func newNameRegistry(kind graphcore.EntityKind, ids graphcore.IdGenerator,
	create func(ctx context.Context, id int32, name string) error) *nameRegistry {
	return &nameRegistry{
		kind:   kind,
		create: create,
		byName: make(map[string]int32),
		byID:   make(map[int32]string),
		ids:    ids,
	}
}

// addRaw publishes committed records loaded at startup.
func (r *nameRegistry) addRaw(records []graphcore.NameRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		r.byName[rec.Name] = rec.ID
		r.byID[rec.ID] = rec.Name
	}
}

func (r *nameRegistry) idByName(name string) (int32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	return id, ok
}

func (r *nameRegistry) nameByID(id int32) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byID[id]
	return name, ok
}

// getOrCreate returns the id for name, allocating and recording a fresh one
// when unknown. A collision with a concurrent creator resolves by re-reading
// under the write lock and reusing the published id.
func (r *nameRegistry) getOrCreate(ctx context.Context, name string) (int32, error) {
	if name == "" {
		return 0, graphcore.Error{Code: graphcore.InvalidArgument, Err: fmt.Errorf("empty name not allowed")}
	}
	if id, ok := r.idByName(name); ok {
		return id, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byName[name]; ok {
		return id, nil
	}
	raw, err := r.ids.NextID(ctx, r.kind)
	if err != nil {
		return 0, err
	}
	id := int32(raw)
	if err := r.create(ctx, id, name); err != nil {
		return 0, err
	}
	r.byName[name] = id
	r.byID[id] = name
	return id, nil
}

// remove drops the id from the registry; used to undo a lazy creation whose
// transaction rolled back.
func (r *nameRegistry) remove(id int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name, ok := r.byID[id]; ok {
		delete(r.byName, name)
		delete(r.byID, id)
	}
}

func (r *nameRegistry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	return out
}

// RelationshipTypeHolder registers relationship type names.
type RelationshipTypeHolder struct {
	*nameRegistry
}

func newRelationshipTypeHolder(loader graphcore.RecordLoader, ids graphcore.IdGenerator) *RelationshipTypeHolder {
	return &RelationshipTypeHolder{
		nameRegistry: newNameRegistry(graphcore.KindRelationshipType, ids, loader.CreateRelationshipType),
	}
}

func (h *RelationshipTypeHolder) load(ctx context.Context, loader graphcore.RecordLoader) error {
	records, err := loader.LoadRelationshipTypes(ctx)
	if err != nil {
		return err
	}
	h.addRaw(records)
	return nil
}

// PropertyKeyHolder registers property key names.
type PropertyKeyHolder struct {
	*nameRegistry
}

func newPropertyKeyHolder(loader graphcore.RecordLoader, ids graphcore.IdGenerator) *PropertyKeyHolder {
	return &PropertyKeyHolder{
		nameRegistry: newNameRegistry(graphcore.KindPropertyKey, ids, loader.CreatePropertyKey),
	}
}

func (h *PropertyKeyHolder) load(ctx context.Context, loader graphcore.RecordLoader) error {
	records, err := loader.LoadPropertyKeys(ctx)
	if err != nil {
		return err
	}
	h.addRaw(records)
	return nil
}

// ReferenceNodeHolder is the directory of well-known named root nodes.
type ReferenceNodeHolder struct {
	loader graphcore.RecordLoader
	ids    graphcore.IdGenerator

	mu     sync.RWMutex
	byName map[string]graphcore.ReferenceRecord
	byNode map[int64]graphcore.ReferenceRecord
}

func newReferenceNodeHolder(loader graphcore.RecordLoader, ids graphcore.IdGenerator) *ReferenceNodeHolder {
	return &ReferenceNodeHolder{
		loader: loader,
		ids:    ids,
		byName: make(map[string]graphcore.ReferenceRecord),
		byNode: make(map[int64]graphcore.ReferenceRecord),
	}
}

func (h *ReferenceNodeHolder) load(ctx context.Context) error {
	records, err := h.loader.LoadReferenceNodes(ctx)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, rec := range records {
		h.byName[rec.Name] = rec
		h.byNode[rec.NodeID] = rec
	}
	return nil
}

// get returns the registered target node id for name.
func (h *ReferenceNodeHolder) get(name string) (int64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rec, ok := h.byName[name]
	return rec.NodeID, ok
}

// byNodeID returns the registration pointing at the node, if any.
func (h *ReferenceNodeHolder) byNodeID(nodeID int64) (graphcore.ReferenceRecord, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rec, ok := h.byNode[nodeID]
	return rec, ok
}

// getOrCreate returns the target node id for name, invoking createNode to
// anchor a fresh root when the name is unknown. The holder lock is the
// single writer: a second caller for the same name waits and then reuses the
// published id, so the loader records exactly one creation per name.
func (h *ReferenceNodeHolder) getOrCreate(ctx context.Context, name string,
	createNode func(ctx context.Context) (int64, error)) (int64, error) {
	if name == "" {
		return 0, graphcore.Error{Code: graphcore.InvalidArgument, Err: fmt.Errorf("empty name not allowed")}
	}
	if nodeID, ok := h.get(name); ok {
		return nodeID, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if rec, ok := h.byName[name]; ok {
		return rec.NodeID, nil
	}
	nodeID, err := createNode(ctx)
	if err != nil {
		return 0, err
	}
	raw, err := h.ids.NextID(ctx, graphcore.KindReferenceNode)
	if err != nil {
		return 0, err
	}
	rec := graphcore.ReferenceRecord{ID: int32(raw), Name: name, NodeID: nodeID}
	if err := h.loader.CreateReferenceNode(ctx, rec.ID, name, nodeID); err != nil {
		return 0, err
	}
	h.byName[name] = rec
	h.byNode[nodeID] = rec
	return nodeID, nil
}

// remove drops the registration with the given name id.
func (h *ReferenceNodeHolder) remove(id int32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for name, rec := range h.byName {
		if rec.ID == id {
			delete(h.byName, name)
			delete(h.byNode, rec.NodeID)
			return
		}
	}
}
