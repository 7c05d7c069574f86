// Package adapters provides database abstraction implementations for the
// Postgres engine.
//
// It wraps pgx pools, database/sql, and sqlx behind common interfaces so the
// engine builds SQL once and runs it against any of the three stacks. The
// pgx adapter optionally routes reads to a replica pool based on the
// consistency level carried in the context.
package adapters
