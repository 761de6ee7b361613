package graphcore

import "context"

// RecordLoader is the durable record store consumed by the entity layer.
// Load methods return (nil, nil) for ids that never existed or are
// tombstoned. IO or corruption failures surface as Error{Code: StoreFailure}
// and unconditionally mark the calling transaction rollback-only.
type RecordLoader interface {
	// LoadLightNode fetches a node's committed chain heads without paging in
	// its property or relationship chains.
	LoadLightNode(ctx context.Context, id int64) (*NodeRecord, error)
	// LoadLightRelationship fetches a relationship's endpoints and type.
	LoadLightRelationship(ctx context.Context, id int64) (*RelationshipRecord, error)

	// RelationshipChainPosition returns the initial cursor into the node's
	// on-disk relationship list.
	RelationshipChainPosition(ctx context.Context, nodeID int64) (int64, error)
	// MoreRelationships returns the next page of the node's relationship
	// chain starting at position, plus the cursor for the page after it.
	MoreRelationships(ctx context.Context, nodeID int64, position int64) (RelationshipBatch, error)

	CreateNode(ctx context.Context, id int64) error
	CreateRelationship(ctx context.Context, id int64, typeID int32, startNode, endNode int64) error

	// DeleteNode and DeleteRelationship tombstone the entity and return its
	// committed properties keyed by property-key id.
	DeleteNode(ctx context.Context, id int64) (map[int32]any, error)
	DeleteRelationship(ctx context.Context, id int64) (map[int32]any, error)

	NodeAddProperty(ctx context.Context, nodeID int64, keyID int32, value any) (PropertyRecord, error)
	NodeChangeProperty(ctx context.Context, nodeID int64, property PropertyRecord, value any) (PropertyRecord, error)
	NodeRemoveProperty(ctx context.Context, nodeID int64, property PropertyRecord) error

	RelationshipAddProperty(ctx context.Context, relID int64, keyID int32, value any) (PropertyRecord, error)
	RelationshipChangeProperty(ctx context.Context, relID int64, property PropertyRecord, value any) (PropertyRecord, error)
	RelationshipRemoveProperty(ctx context.Context, relID int64, property PropertyRecord) error

	GraphAddProperty(ctx context.Context, keyID int32, value any) (PropertyRecord, error)
	GraphChangeProperty(ctx context.Context, property PropertyRecord, value any) (PropertyRecord, error)
	GraphRemoveProperty(ctx context.Context, property PropertyRecord) error

	// Name registries. Load* return every committed record at startup;
	// Create* record a lazily allocated name.
	LoadRelationshipTypes(ctx context.Context) ([]NameRecord, error)
	LoadPropertyKeys(ctx context.Context) ([]NameRecord, error)
	LoadReferenceNodes(ctx context.Context) ([]ReferenceRecord, error)
	CreateRelationshipType(ctx context.Context, id int32, name string) error
	CreatePropertyKey(ctx context.Context, id int32, name string) error
	CreateReferenceNode(ctx context.Context, id int32, name string, nodeID int64) error
	DeleteReferenceNode(ctx context.Context, id int32) error

	// HighestIDInUse returns the highest allocated id of the kind, or -1 when
	// none was ever allocated.
	HighestIDInUse(ctx context.Context, kind EntityKind) (int64, error)
	// IsCreated reports whether the id was created within the current
	// transaction's uncommitted scope.
	IsCreated(ctx context.Context, kind EntityKind, id int64) (bool, error)
}

// LockMode selects shared or exclusive access to a Resource.
type LockMode int

const (
	ReadLock LockMode = iota
	WriteLock
)

// Resource names a lockable entity.
type Resource struct {
	Kind EntityKind
	ID   int64
}

// LockManager serializes conflicting transactions on entities both wrote.
// Acquire blocks until the lock is granted or ctx is done. Write lock
// acquisition is reentrant per owner. Failures surface as
// Error{Code: LockFailure}.
type LockManager interface {
	Acquire(ctx context.Context, owner UUID, resource Resource, mode LockMode) error
	Release(ctx context.Context, owner UUID, resource Resource, mode LockMode) error
}

// Transaction is the unit of abort. The entity layer never commits or rolls
// back itself; it marks the transaction rollback-only and registers
// completion hooks through it.
type Transaction interface {
	ID() UUID
	// SetRollbackOnly marks the transaction so the transaction manager's
	// later completion must roll back.
	SetRollbackOnly()
	RollbackOnly() bool
	// RegisterSynchronization registers a hook invoked exactly once at
	// completion, with committed=true on commit and false on rollback.
	RegisterSynchronization(hook func(committed bool))
}

// TransactionContext hands out the transaction bound to the calling context.
type TransactionContext interface {
	// Current returns the context's transaction, or an Error{Code:
	// InvalidArgument} when the context carries none.
	Current(ctx context.Context) (Transaction, error)
}

// IdGenerator allocates entity ids per kind.
type IdGenerator interface {
	NextID(ctx context.Context, kind EntityKind) (int64, error)
}
