// Package graphcore defines the core types, interfaces, and helpers of the
// in-memory object layer of an embedded graph database. It provides the
// shared error codes, identifiers, configuration options, and the contracts
// consumed from collaborators: the durable record store (RecordLoader), the
// transactional lock protocol (LockManager), the transaction manager
// (TransactionContext), and id allocation (IdGenerator).
//
// The bounded caches live in the cache subpackage; the entity layer (entity
// cache, name holders, change sets, and the EntityManager facade) lives in
// the graph subpackage. In-process collaborator implementations for
// standalone embedding live in inmemory, and a Redis-backed lock manager for
// clustered embeddings lives in redis.
//
// This package is foundational: it carries no behavior of its own beyond
// option normalization, error formatting, and logging setup, and other
// components build on top of it.
package graphcore
