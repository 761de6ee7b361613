package graph

import (
	"context"
	"fmt"

	"github.com/sharedcode/graphcore"
	"github.com/sharedcode/graphcore/cache"
)

// entityCache layers the bounded node and relationship caches over the
// striped load locks and owns the load-or-fetch protocol: fast-path lookup,
// stripe lock, re-check, record-loader call, install. Any single id is
// loaded from the store at most once concurrently; disjoint ids load in
// parallel.
type entityCache struct {
	nodes     cache.Cache[int64, *node]
	rels      cache.Cache[int64, *relationship]
	loadLocks loadStripes
	loader    graphcore.RecordLoader
	types     *RelationshipTypeHolder
}

func newEntityCache(t graphcore.CacheType, maxNodes, maxRels int,
	loader graphcore.RecordLoader, types *RelationshipTypeHolder) (*entityCache, error) {
	nodes, err := cache.New[*node](t, "NodeCache", maxNodes)
	if err != nil {
		return nil, err
	}
	rels, err := cache.New[*relationship](t, "RelationshipCache", maxRels)
	if err != nil {
		return nil, err
	}
	return &entityCache{
		nodes:  nodes,
		rels:   rels,
		loader: loader,
		types:  types,
	}, nil
}

// getNode returns the node for id, faulting it in as a light node on a
// miss. (nil, nil) means the id never existed or is tombstoned. On a loader
// error the stripe lock is released and the error re-raised; nothing is
// installed.
func (ec *entityCache) getNode(ctx context.Context, id int64) (*node, error) {
	if n, ok := ec.nodes.Get(id); ok {
		return n, nil
	}
	lock := ec.loadLocks.lock(id)
	defer lock.Unlock()
	if n, ok := ec.nodes.Get(id); ok {
		return n, nil
	}
	rec, err := ec.loader.LoadLightNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	n := newNode(id, rec.NextRelationship, rec.NextProperty, LoadLight)
	if err := ec.nodes.Put(id, n); err != nil {
		return nil, err
	}
	return n, nil
}

// getRelationship is the relationship-side twin of getNode. A relationship
// whose type id is unknown to the holder fails NotFound citing the type.
func (ec *entityCache) getRelationship(ctx context.Context, id int64) (*relationship, error) {
	if r, ok := ec.rels.Get(id); ok {
		return r, nil
	}
	lock := ec.loadLocks.lock(id)
	defer lock.Unlock()
	if r, ok := ec.rels.Get(id); ok {
		return r, nil
	}
	rec, err := ec.loader.LoadLightRelationship(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	if _, ok := ec.types.nameByID(rec.TypeID); !ok {
		return nil, graphcore.Error{
			Code:     graphcore.NotFound,
			Err:      fmt.Errorf("relationship[%d] exists but relationship type[%d] not found", id, rec.TypeID),
			UserData: id,
		}
	}
	r := &relationship{
		id:       id,
		start:    rec.StartNode,
		end:      rec.EndNode,
		typeID:   rec.TypeID,
		nextProp: rec.NextProperty,
		state:    LoadLight,
	}
	if err := ec.rels.Put(id, r); err != nil {
		return nil, err
	}
	return r, nil
}

// loadMoreRelationships pages the node's relationship chain one batch
// forward. It returns false when the chain was already exhausted. The batch
// is materialized into a local map first, merged into the node atomically,
// and only then are the new relationship objects bulk-inserted into the
// relationship cache.
func (ec *entityCache) loadMoreRelationships(ctx context.Context, n *node) (bool, error) {
	n.pageMu.Lock()
	defer n.pageMu.Unlock()

	if !n.chainInit {
		pos, err := ec.loader.RelationshipChainPosition(ctx, n.id)
		if err != nil {
			return false, err
		}
		n.mu.Lock()
		n.relationships = make(map[string]*relIDArray)
		n.chainPosition = pos
		n.chainInit = true
		n.mu.Unlock()
	}
	if n.chainPosition == graphcore.NoChainPosition {
		return false, nil
	}

	batch, err := ec.loader.MoreRelationships(ctx, n.id, n.chainPosition)
	if err != nil {
		return false, err
	}

	newArrays := make(map[string]*relIDArray)
	newRels := make(map[int64]*relationship)
	loops := batch.Records[graphcore.Both]
	hasLoops := len(loops) > 0
	if hasLoops {
		if err := ec.receiveRelationships(loops, newArrays, newRels, graphcore.Both, hasLoops); err != nil {
			return false, err
		}
	}
	if err := ec.receiveRelationships(batch.Records[graphcore.Outgoing], newArrays, newRels, graphcore.Outgoing, hasLoops); err != nil {
		return false, err
	}
	if err := ec.receiveRelationships(batch.Records[graphcore.Incoming], newArrays, newRels, graphcore.Incoming, hasLoops); err != nil {
		return false, err
	}

	n.mu.Lock()
	for typeName, arr := range newArrays {
		if existing, ok := n.relationships[typeName]; ok {
			existing.merge(arr)
		} else {
			n.relationships[typeName] = arr
		}
	}
	n.chainPosition = batch.NextPosition
	n.mu.Unlock()

	if len(newRels) > 0 {
		pairs := make([]graphcore.KeyValuePair[int64, *relationship], 0, len(newRels))
		for id, r := range newRels {
			pairs = append(pairs, graphcore.KeyValuePair[int64, *relationship]{Key: id, Value: r})
		}
		if err := ec.rels.PutAll(pairs); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (ec *entityCache) receiveRelationships(records []graphcore.RelationshipRecord,
	newArrays map[string]*relIDArray, newRels map[int64]*relationship,
	dir graphcore.Direction, hasLoops bool) error {
	for _, rec := range records {
		var typeID int32
		if cached, ok := ec.rels.Get(rec.ID); ok {
			typeID = cached.typeID
		} else {
			typeID = rec.TypeID
			newRels[rec.ID] = &relationship{
				id:       rec.ID,
				start:    rec.StartNode,
				end:      rec.EndNode,
				typeID:   rec.TypeID,
				nextProp: rec.NextProperty,
				state:    LoadLight,
			}
		}
		typeName, ok := ec.types.nameByID(typeID)
		if !ok {
			return graphcore.Error{
				Code:     graphcore.NotFound,
				Err:      fmt.Errorf("relationship[%d] exists but relationship type[%d] not found", rec.ID, typeID),
				UserData: rec.ID,
			}
		}
		arr, ok := newArrays[typeName]
		if !ok {
			arr = newRelIDArray(typeName, hasLoops)
			newArrays[typeName] = arr
		}
		arr.add(rec.ID, dir)
	}
	return nil
}

// loadAllRelationships pages the chain until it is exhausted.
func (ec *entityCache) loadAllRelationships(ctx context.Context, n *node) error {
	for {
		more, err := ec.loadMoreRelationships(ctx, n)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

func (ec *entityCache) evictNode(id int64) {
	ec.nodes.Remove(id)
}

func (ec *entityCache) evictRelationship(id int64) {
	ec.rels.Remove(id)
}

func (ec *entityCache) clear() {
	ec.nodes.Clear()
	ec.rels.Clear()
}
