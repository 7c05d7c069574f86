// Package memoryengine provides the in-memory reference implementation of
// the dcb.EventStore contract.
//
// It is the engine used in tests and examples and the semantic reference for
// durable engines: a position ledger with tag and event-type posting lists
// for sublinear existence checks, whole-batch idempotency registries, and
// live-tailing read cursors woken by an append notification channel.
//
// All state lives in process memory; nothing is persisted.
package memoryengine
