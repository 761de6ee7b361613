package graph

import (
	"sync"

	"github.com/sharedcode/graphcore"
)

// LoadState tracks how much of an entity has been materialized.
type LoadState int8

const (
	// LoadLight: core fields loaded, property and relationship chains not
	// paged in yet.
	LoadLight LoadState = iota
	// LoadFullNew: created by the current transaction; nothing exists on
	// disk beyond the create record, so the chains are complete by
	// definition.
	LoadFullNew
)

// node is the in-memory representation cached per node id. Proxies do not
// reference it; they re-resolve through the entity cache on every use so the
// node can be evicted at any time.
type node struct {
	id int64
	// Committed chain heads as loaded from the store. Pending additions live
	// only in the transaction change set until commit.
	nextRel  int64
	nextProp int64
	state    LoadState

	// pageMu serializes chain paging, keeping the load-side IO out of mu.
	pageMu sync.Mutex
	// mu guards the fields below. Readers snapshot under it; merges append
	// under it, so concurrent readers see monotonically growing arrays.
	mu            sync.Mutex
	relationships map[string]*relIDArray
	chainPosition int64
	chainInit     bool
}

func newNode(id, nextRel, nextProp int64, state LoadState) *node {
	n := &node{
		id:            id,
		nextRel:       nextRel,
		nextProp:      nextProp,
		state:         state,
		chainPosition: graphcore.NoChainPosition,
	}
	if state == LoadFullNew {
		n.relationships = make(map[string]*relIDArray)
		n.chainInit = true
	}
	return n
}

// chainComplete reports whether every committed relationship of the node has
// been paged in.
func (n *node) chainComplete() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.chainInit && n.chainPosition == graphcore.NoChainPosition
}

// snapshotRelationships copies the current arrays into a flat view.
func (n *node) snapshotRelationships() []relRef {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []relRef
	for _, arr := range n.relationships {
		arr.each(func(id int64, dir graphcore.Direction) bool {
			out = append(out, relRef{id: id, typeName: arr.typeName, dir: dir})
			return true
		})
	}
	return out
}

// relRef is one entry of a node's relationship view.
type relRef struct {
	id       int64
	typeName string
	dir      graphcore.Direction
}

// relationship is the in-memory representation cached per relationship id.
type relationship struct {
	id       int64
	start    int64
	end      int64
	typeID   int32
	nextProp int64
	state    LoadState
}

// directionFor returns the direction the relationship carries relative to
// the given endpoint. Self-loops are Both.
func (r *relationship) directionFor(nodeID int64) graphcore.Direction {
	if r.start == r.end {
		return graphcore.Both
	}
	if r.start == nodeID {
		return graphcore.Outgoing
	}
	return graphcore.Incoming
}
