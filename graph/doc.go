// Package graph materializes graph entities from the durable record store on
// demand, caches them under a bounded memory budget, coordinates concurrent
// readers and writers through the transactional lock protocol, and exposes
// proxy handles that fault data in on first access.
//
// EntityManager is the public facade. It mediates between the entity cache
// (bounded caches plus striped load locks), the per-transaction change set,
// the lock manager, and the record loader. Part of where the magic happens.
package graph
