package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/bwaidelich/umadb-go/dcb"
	"github.com/bwaidelich/umadb-go/dcb/postgresengine/internal/adapters"
)

const (
	defaultEventTableName       = "events"
	defaultIdempotencyTableName = "append_idempotency"
	defaultPollInterval         = 200 * time.Millisecond
)

// EventStore is the durable engine on PostgreSQL. It implements the
// dcb.EventStore boundary contract on top of a database adapter (pgx pool,
// database/sql, or sqlx) with customizable logging, metrics, and tracing.
//
// All appends run inside a transaction holding the store's advisory lock.
// For conditional appends the lock makes the check-then-act sequence
// atomic, so no two concurrent appends can both pass the existence check
// against the same still-absent conflicting event. Unconditional appends
// take the same lock so they cannot commit between another append's check
// and its insert. Subscribing reads poll for new events at a configurable
// interval.
type EventStore struct {
	db                   adapters.DBAdapter
	eventTableName       string
	idempotencyTableName string
	pollInterval         time.Duration

	logger           dcb.Logger
	contextualLogger dcb.ContextualLogger
	metricsCollector dcb.MetricsCollector
	tracingCollector dcb.TracingCollector
}

// NewEventStoreFromPGXPool creates a new EventStore using a pgx Pool with optional configuration.
func NewEventStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, dcb.InvalidArgumentError(dcb.ErrNilDatabaseConnection)
	}

	return newEventStore(adapters.NewPGXAdapter(db), options...)
}

// NewEventStoreFromPGXPoolWithReplica creates a new EventStore using a
// primary pgx Pool for writes and strongly consistent reads, and a replica
// pool for reads under dcb.WithEventualConsistency.
func NewEventStoreFromPGXPoolWithReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (*EventStore, error) {
	if db == nil || replica == nil {
		return nil, dcb.InvalidArgumentError(dcb.ErrNilDatabaseConnection)
	}

	return newEventStore(adapters.NewPGXAdapterWithReplica(db, replica), options...)
}

// NewEventStoreFromSQLDB creates a new EventStore using a sql.DB with optional configuration.
func NewEventStoreFromSQLDB(db *sql.DB, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, dcb.InvalidArgumentError(dcb.ErrNilDatabaseConnection)
	}

	return newEventStore(adapters.NewSQLAdapter(db), options...)
}

// NewEventStoreFromSQLX creates a new EventStore using a sqlx.DB with optional configuration.
func NewEventStoreFromSQLX(db *sqlx.DB, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, dcb.InvalidArgumentError(dcb.ErrNilDatabaseConnection)
	}

	return newEventStore(adapters.NewSQLXAdapter(db), options...)
}

func newEventStore(db adapters.DBAdapter, options ...Option) (*EventStore, error) {
	es := &EventStore{
		db:                   db,
		eventTableName:       defaultEventTableName,
		idempotencyTableName: defaultIdempotencyTableName,
		pollInterval:         defaultPollInterval,
	}

	for _, option := range options {
		if err := option(es); err != nil {
			return nil, err
		}
	}

	return es, nil
}

// EventTableName returns the configured events table name.
func (es *EventStore) EventTableName() string {
	return es.eventTableName
}

// IdempotencyTableName returns the configured idempotency table name.
func (es *EventStore) IdempotencyTableName() string {
	return es.idempotencyTableName
}

// Head returns the highest assigned position, or 0 if the store is empty.
func (es *EventStore) Head(ctx context.Context) (dcb.Position, error) {
	sqlQuery, buildErr := es.buildHeadQuery()
	if buildErr != nil {
		return 0, buildErr
	}

	start := time.Now()
	rows, queryErr := es.db.Query(ctx, sqlQuery)
	es.logQueryWithDuration(ctx, sqlQuery, logActionHead, time.Since(start))

	if queryErr != nil {
		es.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		return 0, dcb.StorageError(errors.Join(dcb.ErrQueryingEventsFailed, queryErr))
	}
	defer es.closeRows(ctx, rows)

	var head int64
	if rows.Next() {
		if scanErr := rows.Scan(&head); scanErr != nil {
			return 0, dcb.StorageError(errors.Join(dcb.ErrScanningDBRowFailed, scanErr))
		}
	}

	return dcb.Position(head), nil
}

// Append atomically commits the batch and returns the position of the last
// event. See the dcb.EventStore contract for the condition and idempotency
// semantics; positions are assigned by the events table sequence.
func (es *EventStore) Append(ctx context.Context, events dcb.Events, condition *dcb.AppendCondition) (dcb.Position, error) {
	if len(events) == 0 {
		return 0, dcb.InvalidArgumentError(dcb.ErrEmptyEventBatch)
	}

	spanCtx, span := es.startAppendSpan(ctx, len(events), condition != nil)
	start := time.Now()

	var lastPosition dcb.Position
	var appendErr error

	if condition == nil {
		lastPosition, appendErr = es.appendUnconditionally(spanCtx, events)
	} else {
		lastPosition, appendErr = es.appendWithCondition(spanCtx, events, *condition)
	}

	duration := time.Since(start)

	if appendErr != nil {
		es.finishAppendSpanError(spanCtx, span, appendErr, duration)
		return 0, appendErr
	}

	es.finishAppendSpanSuccess(spanCtx, span, lastPosition, duration)
	es.logOperation(spanCtx, logMsgEventsAppended,
		logAttrEventCount, len(events),
		logAttrLastPosition, lastPosition,
		logAttrDurationMS, toMilliseconds(duration))

	return lastPosition, nil
}

// appendUnconditionally inserts the batch with no condition check and no
// idempotency resolution. It still takes the store's advisory lock so it
// cannot commit between a conditional append's existence check and its
// insert.
func (es *EventStore) appendUnconditionally(ctx context.Context, events dcb.Events) (dcb.Position, error) {
	tx, beginErr := es.db.Begin(ctx)
	if beginErr != nil {
		return 0, dcb.StorageError(errors.Join(dcb.ErrBeginningTxFailed, beginErr))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if lockErr := es.acquireAppendLock(ctx, tx); lockErr != nil {
		return 0, lockErr
	}

	lastPosition, insertErr := es.insertEvents(ctx, tx, events)
	if insertErr != nil {
		return 0, insertErr
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return 0, dcb.StorageError(errors.Join(dcb.ErrCommittingTxFailed, commitErr))
	}

	return lastPosition, nil
}

// appendWithCondition runs the enforcer algorithm in one transaction:
// advisory lock, idempotency resolution, existence check, insert, key
// registration. A rejected append leaves both tables untouched.
func (es *EventStore) appendWithCondition(ctx context.Context, events dcb.Events, condition dcb.AppendCondition) (dcb.Position, error) {
	if dcb.DuplicateEventIDInBatch(events) {
		return 0, dcb.IntegrityError(dcb.ErrAmbiguousRetry)
	}

	tx, beginErr := es.db.Begin(ctx)
	if beginErr != nil {
		return 0, dcb.StorageError(errors.Join(dcb.ErrBeginningTxFailed, beginErr))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if lockErr := es.acquireAppendLock(ctx, tx); lockErr != nil {
		return 0, lockErr
	}

	batchKey, keyed := dcb.BatchIdempotencyKey(events, condition)

	if keyed {
		if position, found, lookupErr := es.lookupBatchKey(ctx, tx, batchKey); lookupErr != nil {
			return 0, lookupErr
		} else if found {
			es.logOperation(ctx, logMsgDuplicateResolved,
				logAttrEventCount, len(events),
				logAttrLastPosition, position)

			return position, tx.Commit(ctx)
		}
	}

	if ambiguous, ambiguityErr := es.anyEventIDKnown(ctx, tx, events); ambiguityErr != nil {
		return 0, ambiguityErr
	} else if ambiguous {
		return 0, dcb.IntegrityError(dcb.ErrAmbiguousRetry)
	}

	if conflict, guardErr := es.matchingEventsExist(ctx, tx, condition); guardErr != nil {
		return 0, guardErr
	} else if conflict {
		return 0, dcb.IntegrityError(dcb.ErrAppendConditionViolated)
	}

	lastPosition, insertErr := es.insertEvents(ctx, tx, events)
	if insertErr != nil {
		return 0, insertErr
	}

	if keyed {
		if registerErr := es.registerBatchKey(ctx, tx, batchKey, lastPosition); registerErr != nil {
			return 0, registerErr
		}
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return 0, dcb.StorageError(errors.Join(dcb.ErrCommittingTxFailed, commitErr))
	}

	return lastPosition, nil
}

// acquireAppendLock serializes appends per store with a transaction-scoped
// advisory lock derived from the events table name.
func (es *EventStore) acquireAppendLock(ctx context.Context, tx adapters.DBTx) error {
	sqlQuery := es.buildAdvisoryLockQuery()

	start := time.Now()
	rows, lockErr := tx.Query(ctx, sqlQuery)
	es.logQueryWithDuration(ctx, sqlQuery, logActionLock, time.Since(start))

	if lockErr != nil {
		es.logError(ctx, logMsgDBQueryFailed, lockErr, logAttrQuery, sqlQuery)
		return dcb.StorageError(errors.Join(dcb.ErrAppendingEventsFailed, lockErr))
	}

	return rows.Close()
}

func (es *EventStore) lookupBatchKey(ctx context.Context, tx adapters.DBTx, batchKey string) (dcb.Position, bool, error) {
	sqlQuery, buildErr := es.buildBatchKeyLookupQuery(batchKey)
	if buildErr != nil {
		return 0, false, buildErr
	}

	rows, queryErr := tx.Query(ctx, sqlQuery)
	if queryErr != nil {
		es.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		return 0, false, dcb.StorageError(errors.Join(dcb.ErrQueryingEventsFailed, queryErr))
	}
	defer es.closeRows(ctx, rows)

	if !rows.Next() {
		return 0, false, nil
	}

	var lastPosition int64
	if scanErr := rows.Scan(&lastPosition); scanErr != nil {
		return 0, false, dcb.StorageError(errors.Join(dcb.ErrScanningDBRowFailed, scanErr))
	}

	return dcb.Position(lastPosition), true, nil
}

func (es *EventStore) anyEventIDKnown(ctx context.Context, tx adapters.DBTx, events dcb.Events) (bool, error) {
	sqlQuery, hasIDs, buildErr := es.buildEventIDLookupQuery(events)
	if buildErr != nil {
		return false, buildErr
	}

	if !hasIDs {
		return false, nil
	}

	return es.existsInTx(ctx, tx, sqlQuery)
}

func (es *EventStore) matchingEventsExist(ctx context.Context, tx adapters.DBTx, condition dcb.AppendCondition) (bool, error) {
	sqlQuery, buildErr := es.buildExistenceQuery(condition)
	if buildErr != nil {
		return false, buildErr
	}

	return es.existsInTx(ctx, tx, sqlQuery)
}

func (es *EventStore) existsInTx(ctx context.Context, tx adapters.DBTx, sqlQuery string) (bool, error) {
	start := time.Now()
	rows, queryErr := tx.Query(ctx, sqlQuery)
	es.logQueryWithDuration(ctx, sqlQuery, logActionExistenceCheck, time.Since(start))

	if queryErr != nil {
		es.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		return false, dcb.StorageError(errors.Join(dcb.ErrQueryingEventsFailed, queryErr))
	}
	defer es.closeRows(ctx, rows)

	return rows.Next(), nil
}

func (es *EventStore) insertEvents(ctx context.Context, tx adapters.DBTx, events dcb.Events) (dcb.Position, error) {
	sqlQuery, buildErr := es.buildInsertQuery(events)
	if buildErr != nil {
		return 0, buildErr
	}

	start := time.Now()
	rows, execErr := tx.Query(ctx, sqlQuery)
	es.logQueryWithDuration(ctx, sqlQuery, logActionAppend, time.Since(start))

	if execErr != nil {
		es.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		return 0, dcb.StorageError(errors.Join(dcb.ErrAppendingEventsFailed, execErr))
	}
	defer es.closeRows(ctx, rows)

	return es.scanLastPosition(rows)
}

func (es *EventStore) registerBatchKey(ctx context.Context, tx adapters.DBTx, batchKey string, lastPosition dcb.Position) error {
	sqlQuery, buildErr := es.buildBatchKeyInsertQuery(batchKey, lastPosition)
	if buildErr != nil {
		return buildErr
	}

	if _, execErr := tx.Exec(ctx, sqlQuery); execErr != nil {
		es.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		return dcb.StorageError(errors.Join(dcb.ErrAppendingEventsFailed, execErr))
	}

	return nil
}

// scanLastPosition drains the RETURNING rows of an insert and returns the
// position of the last inserted event.
func (es *EventStore) scanLastPosition(rows adapters.DBRows) (dcb.Position, error) {
	var lastPosition int64

	for rows.Next() {
		if scanErr := rows.Scan(&lastPosition); scanErr != nil {
			return 0, dcb.StorageError(errors.Join(dcb.ErrScanningDBRowFailed, scanErr))
		}
	}

	if lastPosition == 0 {
		return 0, dcb.StorageError(dcb.ErrAppendingEventsFailed)
	}

	return dcb.Position(lastPosition), nil
}

// closeRows safely closes database rows and logs any errors.
func (es *EventStore) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		es.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}
