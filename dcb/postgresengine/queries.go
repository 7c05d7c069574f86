package postgresengine

import (
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/doug-martin/goqu/v9"
	jsoniter "github.com/json-iterator/go"

	"github.com/bwaidelich/umadb-go/dcb"
)

const (
	colPosition     = "position"
	colEventType    = "event_type"
	colData         = "data"
	colTags         = "tags"
	colEventID      = "event_id"
	colBatchKey     = "batch_key"
	colLastPosition = "last_position"
	dialectPostgres = "postgres"
	castText        = "?::text"
	castBytea       = "?::bytea"
	castJsonb       = "?::jsonb"
	castUUID        = "?::uuid"
	nullUUID        = "NULL::uuid"
	eventIDAsText   = "event_id::text"
	aliasHead       = "head"
)

type sqlQueryString = string

func (es *EventStore) builder() goqu.DialectWrapper {
	return goqu.Dialect(dialectPostgres)
}

// buildHeadQuery builds the query for the highest assigned position.
func (es *EventStore) buildHeadQuery() (sqlQueryString, error) {
	selectStmt := es.builder().
		From(es.eventTableName).
		Select(goqu.COALESCE(goqu.MAX(goqu.C(colPosition)), 0).As(aliasHead))

	return es.toSQL(selectStmt.ToSQL())
}

// buildInsertQuery builds the insert statement for an append batch,
// returning the assigned positions.
func (es *EventStore) buildInsertQuery(events dcb.Events) (sqlQueryString, error) {
	insertRows := make([]interface{}, 0, len(events))

	for _, event := range events {
		tagsJSON, marshalErr := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(event.Tags)
		if marshalErr != nil {
			return "", dcb.StorageError(errors.Join(dcb.ErrBuildingQueryFailed, marshalErr))
		}

		eventID := goqu.L(nullUUID)
		if event.HasEventID() {
			eventID = goqu.L(castUUID, event.EventID.String())
		}

		insertRows = append(insertRows, goqu.Record{
			colEventType: goqu.L(castText, event.EventType),
			colData:      goqu.L(castBytea, `\x`+hex.EncodeToString(event.Data)),
			colTags:      goqu.L(castJsonb, string(tagsJSON)),
			colEventID:   eventID,
		})
	}

	insertStmt := es.builder().
		Insert(es.eventTableName).
		Rows(insertRows...).
		Returning(goqu.C(colPosition))

	return es.toSQL(insertStmt.ToSQL())
}

// buildExistenceQuery builds the guard query of an append condition: does
// any event after the condition's position match the condition's query.
func (es *EventStore) buildExistenceQuery(condition dcb.AppendCondition) (sqlQueryString, error) {
	where := []goqu.Expression{es.queryExpression(condition.FailIfEventsMatch)}

	if condition.After != nil {
		where = append(where, goqu.C(colPosition).Gt(int64(*condition.After)))
	}

	selectStmt := es.builder().
		From(es.eventTableName).
		Select(goqu.L("1")).
		Where(where...).
		Limit(1)

	return es.toSQL(selectStmt.ToSQL())
}

// buildEventIDLookupQuery builds the ambiguity check: is any of the batch's
// event ids already present in the store. The second return value is false
// when no event of the batch carries an id.
func (es *EventStore) buildEventIDLookupQuery(events dcb.Events) (sqlQueryString, bool, error) {
	ids := make([]string, 0, len(events))
	for _, event := range events {
		if event.HasEventID() {
			ids = append(ids, event.EventID.String())
		}
	}

	if len(ids) == 0 {
		return "", false, nil
	}

	selectStmt := es.builder().
		From(es.eventTableName).
		Select(goqu.L("1")).
		Where(goqu.L(eventIDAsText).In(ids)).
		Limit(1)

	sqlQuery, toSQLErr := es.toSQL(selectStmt.ToSQL())

	return sqlQuery, true, toSQLErr
}

// buildReadQuery builds one page of a read: all matching events from
// fromPosition on (forwards) or strictly below beforePosition (backwards),
// in position order.
func (es *EventStore) buildReadQuery(
	query dcb.Query,
	fromPosition dcb.Position,
	beforePosition *dcb.Position,
	backwards bool,
	limit *uint,
) (sqlQueryString, error) {
	where := []goqu.Expression{es.queryExpression(query)}

	if backwards {
		if beforePosition != nil {
			where = append(where, goqu.C(colPosition).Lt(int64(*beforePosition)))
		}
	} else if fromPosition > 0 {
		where = append(where, goqu.C(colPosition).Gte(int64(fromPosition)))
	}

	order := goqu.C(colPosition).Asc()
	if backwards {
		order = goqu.C(colPosition).Desc()
	}

	selectStmt := es.builder().
		From(es.eventTableName).
		Select(
			goqu.C(colPosition),
			goqu.C(colEventType),
			goqu.C(colData),
			goqu.C(colTags),
			goqu.L(eventIDAsText),
		).
		Where(where...).
		Order(order)

	if limit != nil {
		selectStmt = selectStmt.Limit(*limit)
	}

	return es.toSQL(selectStmt.ToSQL())
}

// buildBatchKeyLookupQuery builds the idempotency lookup for a batch key.
func (es *EventStore) buildBatchKeyLookupQuery(batchKey string) (sqlQueryString, error) {
	selectStmt := es.builder().
		From(es.idempotencyTableName).
		Select(goqu.C(colLastPosition)).
		Where(goqu.Ex{colBatchKey: batchKey})

	return es.toSQL(selectStmt.ToSQL())
}

// buildBatchKeyInsertQuery builds the idempotency registration for a batch key.
func (es *EventStore) buildBatchKeyInsertQuery(batchKey string, lastPosition dcb.Position) (sqlQueryString, error) {
	insertStmt := es.builder().
		Insert(es.idempotencyTableName).
		Rows(goqu.Record{
			colBatchKey:     batchKey,
			colLastPosition: int64(lastPosition),
		})

	return es.toSQL(insertStmt.ToSQL())
}

// buildAdvisoryLockQuery builds the transaction-scoped advisory lock
// statement; the lock key is derived from the events table name so separate
// stores in one database do not serialize each other.
func (es *EventStore) buildAdvisoryLockQuery() sqlQueryString {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(es.eventTableName))

	return fmt.Sprintf("SELECT pg_advisory_xact_lock(%d)", int64(hasher.Sum64()))
}

// queryExpression renders a dcb.Query as a WHERE expression: OR across
// items, AND of the type membership and the jsonb tag containment within
// an item. The empty query renders TRUE, matching every event.
func (es *EventStore) queryExpression(query dcb.Query) goqu.Expression {
	if query.IsEmpty() {
		return goqu.L("TRUE")
	}

	itemExpressions := make([]goqu.Expression, 0, len(query.Items()))

	for _, item := range query.Items() {
		clauses := make([]goqu.Expression, 0, 2)

		if len(item.EventTypes()) > 0 {
			clauses = append(clauses, goqu.Ex{colEventType: item.EventTypes()})
		}

		if len(item.Tags()) > 0 {
			// constructors sanitize tags, so this marshal cannot fail
			tagsJSON, _ := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(item.Tags())
			clauses = append(clauses, goqu.L(colTags+" @> "+castJsonb, string(tagsJSON)))
		}

		if len(clauses) == 0 {
			itemExpressions = append(itemExpressions, goqu.L("TRUE"))
			continue
		}

		itemExpressions = append(itemExpressions, goqu.And(clauses...))
	}

	return goqu.Or(itemExpressions...)
}

func (es *EventStore) toSQL(sqlQuery string, _ []any, toSQLErr error) (sqlQueryString, error) {
	if toSQLErr != nil {
		return "", dcb.StorageError(errors.Join(dcb.ErrBuildingQueryFailed, toSQLErr))
	}

	return sqlQuery, nil
}
