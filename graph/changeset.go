package graph

import (
	"github.com/sharedcode/graphcore"
)

// changeState tracks an entity's life within the transaction:
// untouched (no entry) -> read-through -> modified -> dropped at completion.
type changeState int8

const (
	stateReadThrough changeState = iota
	stateModified
	stateDeleted
)

type entityKey struct {
	kind graphcore.EntityKind
	id   int64
}

func nodeKey(id int64) entityKey {
	return entityKey{kind: graphcore.KindNode, id: id}
}

func relKey(id int64) entityKey {
	return entityKey{kind: graphcore.KindRelationship, id: id}
}

// relDelta is one pending relationship addition on a node, keyed by type
// name and direction-sensitive.
type relDelta struct {
	id       int64
	typeName string
	dir      graphcore.Direction
}

// entityChanges carries the four optional side maps of one touched entity:
// property adds, property removes, relationship-id adds, relationship-id
// removes. All reads merge these over the cached base state.
type entityChanges struct {
	state           changeState
	created         bool
	propertyAdds    map[int32]graphcore.PropertyRecord
	propertyRemoves map[int32]graphcore.PropertyRecord
	relAdds         []relDelta
	relRemoves      map[int64]struct{}
}

// changeSet is the per-transaction copy-on-write layer. It is consulted on
// every read, merged into the cache on commit, and discarded on rollback.
// Calls are serialized by the owning txState's mutex.
type changeSet struct {
	txID     graphcore.UUID
	entities map[entityKey]*entityChanges
}

func newChangeSet(txID graphcore.UUID) *changeSet {
	return &changeSet{
		txID:     txID,
		entities: make(map[entityKey]*entityChanges),
	}
}

func (cs *changeSet) changesFor(key entityKey) *entityChanges {
	ch, ok := cs.entities[key]
	if !ok {
		ch = &entityChanges{state: stateReadThrough}
		cs.entities[key] = ch
	}
	return ch
}

// peek returns the entity's changes without touching it.
func (cs *changeSet) peek(key entityKey) (*entityChanges, bool) {
	ch, ok := cs.entities[key]
	return ch, ok
}

func (cs *changeSet) recordCreate(key entityKey) {
	ch := cs.changesFor(key)
	ch.created = true
	ch.state = stateModified
}

func (cs *changeSet) markDeleted(key entityKey) {
	ch := cs.changesFor(key)
	ch.state = stateDeleted
}

func (cs *changeSet) isDeleted(key entityKey) bool {
	ch, ok := cs.entities[key]
	return ok && ch.state == stateDeleted
}

// recordPropertySet stores the pending value, replacing any earlier pending
// add for the key and clearing a pending removal of it.
func (cs *changeSet) recordPropertySet(key entityKey, rec graphcore.PropertyRecord) {
	ch := cs.changesFor(key)
	ch.state = stateModified
	if ch.propertyAdds == nil {
		ch.propertyAdds = make(map[int32]graphcore.PropertyRecord)
	}
	ch.propertyAdds[rec.KeyID] = rec
	if ch.propertyRemoves != nil {
		delete(ch.propertyRemoves, rec.KeyID)
	}
}

// pendingProperty returns the transaction's view of a property: the pending
// record when one exists, and removed=true when the key has a pending
// removal.
func (cs *changeSet) pendingProperty(key entityKey, keyID int32) (rec graphcore.PropertyRecord, ok, removed bool) {
	ch, found := cs.entities[key]
	if !found {
		return rec, false, false
	}
	if ch.propertyRemoves != nil {
		if _, gone := ch.propertyRemoves[keyID]; gone {
			return rec, false, true
		}
	}
	if ch.propertyAdds != nil {
		if r, present := ch.propertyAdds[keyID]; present {
			return r, true, false
		}
	}
	return rec, false, false
}

func (cs *changeSet) recordPropertyRemove(key entityKey, rec graphcore.PropertyRecord) {
	ch := cs.changesFor(key)
	ch.state = stateModified
	if ch.propertyAdds != nil {
		delete(ch.propertyAdds, rec.KeyID)
	}
	if ch.propertyRemoves == nil {
		ch.propertyRemoves = make(map[int32]graphcore.PropertyRecord)
	}
	ch.propertyRemoves[rec.KeyID] = rec
}

func (cs *changeSet) recordRelAdd(key entityKey, delta relDelta) {
	ch := cs.changesFor(key)
	ch.state = stateModified
	ch.relAdds = append(ch.relAdds, delta)
}

func (cs *changeSet) recordRelRemove(key entityKey, relID int64) {
	ch := cs.changesFor(key)
	ch.state = stateModified
	if ch.relRemoves == nil {
		ch.relRemoves = make(map[int64]struct{})
	}
	ch.relRemoves[relID] = struct{}{}
}

// relAdditions returns the pending additions on the node, minus any that
// were also removed later in the same transaction.
func (cs *changeSet) relAdditions(nodeID int64) []relDelta {
	ch, ok := cs.entities[nodeKey(nodeID)]
	if !ok || len(ch.relAdds) == 0 {
		return nil
	}
	out := make([]relDelta, 0, len(ch.relAdds))
	for _, d := range ch.relAdds {
		if ch.relRemoves != nil {
			if _, gone := ch.relRemoves[d.id]; gone {
				continue
			}
		}
		out = append(out, d)
	}
	return out
}

func (cs *changeSet) relRemovals(nodeID int64) map[int64]struct{} {
	ch, ok := cs.entities[nodeKey(nodeID)]
	if !ok {
		return nil
	}
	return ch.relRemoves
}

// createdKeys returns every entity this transaction created, for the
// rollback-time cache scrub.
func (cs *changeSet) createdKeys() []entityKey {
	var out []entityKey
	for key, ch := range cs.entities {
		if ch.created {
			out = append(out, key)
		}
	}
	return out
}

// deletedKeys returns every entity this transaction deleted, for the
// commit-time cache removal.
func (cs *changeSet) deletedKeys() []entityKey {
	var out []entityKey
	for key, ch := range cs.entities {
		if ch.state == stateDeleted {
			out = append(out, key)
		}
	}
	return out
}
