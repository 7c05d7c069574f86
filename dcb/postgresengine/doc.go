// Package postgresengine provides a durable PostgreSQL implementation of the
// dcb.EventStore interface.
//
// Events live in one table with a BIGSERIAL position, a JSONB tag array
// queried via containment, and an optional event id column used to detect
// ambiguous retries. Conditional appends run their check-then-act sequence
// inside a transaction holding a per-store advisory lock, so a condition
// checked against the ledger still holds when the batch commits.
//
// Key features:
//   - Multiple database adapter support (PGX with optional read replica, sql.DB, sqlx)
//   - Conditional appends with tag and type matching enforced atomically
//   - Idempotent retries for fully identified batches
//   - Live-tailing reads through polling subscription cursors
//   - Configurable table names and dual-logger support
//
// Usage examples:
//
//	// Basic usage
//	db, _ := pgxpool.New(context.Background(), dsn)
//	store, _ := postgresengine.NewEventStoreFromPGXPool(db)
//
//	// With a custom table and operational logging
//	store, _ := postgresengine.NewEventStoreFromPGXPool(
//		db,
//		postgresengine.WithTableName("my_events"),
//		postgresengine.WithLogger(logger),
//	)
//
//	position, _ := store.Append(ctx, events, &condition)
//	cursor, _ := store.Read(ctx, query, dcb.FromPosition(position))
package postgresengine
