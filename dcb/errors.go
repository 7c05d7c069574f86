package dcb

import (
	"errors"
)

// Taxonomy roots. Every error surfaced by an engine wraps exactly one of
// these, so callers can classify with errors.Is without knowing the engine.
var (
	// ErrIntegrityViolation is the root of all consistency rejections: the
	// append condition matched an existing event, or an idempotent retry was
	// ambiguous. Recoverable by the caller: re-read state and retry with a
	// fresh condition. Never retried internally.
	ErrIntegrityViolation = errors.New("integrity violation")

	// ErrStorageFailure is the root of all underlying persistence failures.
	// The caller must treat the store as potentially inconsistent until verified.
	ErrStorageFailure = errors.New("storage failure")

	// ErrInvalidArgument is the root of all malformed-input rejections.
	// Always a caller bug; the operation fails fast with no partial effect.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Integrity errors.
var (
	// ErrAppendConditionViolated is returned when events matching the append
	// condition's query were committed after the condition's position.
	ErrAppendConditionViolated = errors.New("append condition violated, matching events were found")

	// ErrAmbiguousRetry is returned when only part of an append batch matches
	// previously committed events, or an event id was reused with different
	// content. Partial-duplicate batches indicate a caller bug and are never
	// partially applied.
	ErrAmbiguousRetry = errors.New("ambiguous retry, batch partially matches previously committed events")
)

// Invalid-argument errors.
var (
	// ErrEmptyEventBatch is returned when Append is called without events.
	ErrEmptyEventBatch = errors.New("empty event batch supplied")

	// ErrBackwardsSubscribe is returned when a read combines backwards
	// traversal with subscribe; tailing is inherently forward.
	ErrBackwardsSubscribe = errors.New("backwards read cannot be combined with subscribe")

	// ErrEmptyEventsTableName is returned when an empty events table name is configured.
	ErrEmptyEventsTableName = errors.New("empty events table name supplied")

	// ErrNilDatabaseConnection is returned when a nil database connection is supplied.
	ErrNilDatabaseConnection = errors.New("nil database connection supplied")
)

// Storage errors.
var (
	ErrBuildingQueryFailed       = errors.New("building the database query failed")
	ErrQueryingEventsFailed      = errors.New("querying events failed")
	ErrAppendingEventsFailed     = errors.New("appending events failed")
	ErrScanningDBRowFailed       = errors.New("scanning the database row failed")
	ErrGettingRowsAffectedFailed = errors.New("getting rows affected failed")
	ErrBeginningTxFailed         = errors.New("beginning the database transaction failed")
	ErrCommittingTxFailed        = errors.New("committing the database transaction failed")
)

// IntegrityError wraps err into the integrity branch of the taxonomy.
func IntegrityError(err error) error {
	return errors.Join(ErrIntegrityViolation, err)
}

// StorageError wraps err into the storage branch of the taxonomy.
func StorageError(err error) error {
	return errors.Join(ErrStorageFailure, err)
}

// InvalidArgumentError wraps err into the invalid-argument branch of the taxonomy.
func InvalidArgumentError(err error) error {
	return errors.Join(ErrInvalidArgument, err)
}
