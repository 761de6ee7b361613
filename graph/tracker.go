package graph

// PropertyTracker observes property mutations. Callbacks run before the
// underlying mutation is recorded; a callback returning an error aborts the
// mutation and marks the transaction rollback-only.
type PropertyTracker interface {
	PropertyAdded(entity Entity, key string, value any) error
	PropertyChanged(entity Entity, key string, oldValue, newValue any) error
	PropertyRemoved(entity Entity, key string, value any) error
}
