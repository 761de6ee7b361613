package graphcore

// Sentinel chain ids used by the record loader. A light entity whose
// NextRelationship or NextProperty equals the sentinel has an empty chain.
const (
	NoNextRelationship int64 = -1
	NoNextProperty     int64 = -1
	// NoChainPosition marks a relationship chain that is fully paged in.
	NoChainPosition int64 = -1
)

// NodeRecord is the light on-disk representation of a node: its id plus the
// committed heads of its relationship and property chains.
type NodeRecord struct {
	ID               int64
	NextRelationship int64
	NextProperty     int64
}

// RelationshipRecord is the light on-disk representation of a relationship.
type RelationshipRecord struct {
	ID           int64
	StartNode    int64
	EndNode      int64
	TypeID       int32
	NextProperty int64
}

// PropertyRecord identifies one property record in the store, as returned by
// the loader's property mutators. The Value is the committed value at the
// time the record was produced.
type PropertyRecord struct {
	ID    int64
	KeyID int32
	Value any
}

// NameRecord pairs a small integer id with a name: relationship types and
// property keys.
type NameRecord struct {
	ID   int32
	Name string
}

// ReferenceRecord registers a well-known named root node.
type ReferenceRecord struct {
	ID     int32
	Name   string
	NodeID int64
}

// RelationshipBatch is one page of a node's relationship chain. Records are
// grouped by the direction they carry relative to the owning node; self-loops
// arrive under Both. NextPosition is the cursor for the next page, or
// NoChainPosition when the chain is exhausted.
type RelationshipBatch struct {
	Records      map[Direction][]RelationshipRecord
	NextPosition int64
}
