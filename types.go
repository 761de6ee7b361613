package graphcore

import "github.com/google/uuid"

// EntityKind identifies the id space an entity id was allocated from.
type EntityKind int

const (
	KindNode EntityKind = iota
	KindRelationship
	KindRelationshipType
	KindPropertyKey
	KindReferenceNode
)

// Direction tags a relationship id inside a node's relationship map.
// Self-loops appear once, tagged Both.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
	Both
)

// KeyValuePair is a tuple, used by the caches' bulk insert to allow the
// caller to pair an entity id with its in-memory object.
type KeyValuePair[TK any, TV any] struct {
	Key   TK
	Value TV
}

// UUID identifies lock owners and transactions, never graph entities (those
// use int64 ids). Defining it here keeps the external uuid package out of
// the rest of the codebase.
type UUID uuid.UUID

// NewUUID returns a fresh random identity. Entropy exhaustion is not a
// condition this layer can recover from, so generation failure panics
// (inside uuid.New) rather than returning an error nobody could act on.
func NewUUID() UUID {
	return UUID(uuid.New())
}

// NilUUID is the zero identity; no transaction or lock owner ever carries it.
var NilUUID UUID

// IsNil reports whether the identity is the zero value.
func (id UUID) IsNil() bool {
	return id == NilUUID
}

// String formats the identity in the canonical hex-and-dashes form.
func (id UUID) String() string {
	return uuid.UUID(id).String()
}
