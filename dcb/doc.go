// Package dcb provides the core abstractions for an event store with
// dynamic consistency boundaries.
//
// Instead of fixed aggregate or stream identities, the set of events that an
// append must not conflict with is expressed as a Query: a flat OR-list of
// QueryItem(s), each combining event types and tags. An AppendCondition pairs
// such a query with a reference position and is rejected when any event
// committed after that position matches the query.
//
// This package defines the data model (Event, SequencedEvent, Position), the
// query grammar and its matching semantics, append conditions and their
// idempotency keys, the read cursor contract, the error taxonomy, and the
// observability interfaces shared by the engine implementations.
//
// Engine implementations live in subpackages:
//   - memoryengine: in-memory reference engine with live-tailing cursors
//   - postgresengine: durable engine on PostgreSQL
//
// Common usage pattern:
//
//	query := dcb.BuildQuery().
//		Matching().
//		AnyEventTypeOf("CourseDefined").
//		AndAllTagsOf("course:c1").
//		Finalize()
//
//	head, err := store.Head(ctx)
//	// ... decide based on existing events ...
//	position, err = store.Append(ctx, events, dcb.BuildAppendConditionAfter(query, head))
package dcb
