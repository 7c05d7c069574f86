package postgresengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwaidelich/umadb-go/dcb"
)

// EnsureSchema creates the events and idempotency tables with their
// indexes if they do not exist yet. It is idempotent and safe to run on
// every startup; production deployments may prefer to manage the schema
// with their own migration tooling instead.
func (es *EventStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			position BIGSERIAL PRIMARY KEY,
			event_type TEXT NOT NULL,
			data BYTEA NOT NULL,
			tags JSONB NOT NULL DEFAULT '[]'::jsonb,
			event_id UUID NULL
		)`, es.eventTableName),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_tags ON %s USING GIN (tags jsonb_path_ops)`,
			es.eventTableName, es.eventTableName),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_event_type ON %s (event_type)`,
			es.eventTableName, es.eventTableName),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_event_id ON %s (event_id) WHERE event_id IS NOT NULL`,
			es.eventTableName, es.eventTableName),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			batch_key TEXT PRIMARY KEY,
			last_position BIGINT NOT NULL
		)`, es.idempotencyTableName),
	}

	for _, statement := range statements {
		if _, execErr := es.db.Exec(ctx, statement); execErr != nil {
			es.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, statement)
			return dcb.StorageError(errors.Join(dcb.ErrAppendingEventsFailed, execErr))
		}
	}

	return nil
}

// DropSchema removes the store's tables. It exists for test teardown.
func (es *EventStore) DropSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, es.eventTableName),
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, es.idempotencyTableName),
	}

	for _, statement := range statements {
		if _, execErr := es.db.Exec(ctx, statement); execErr != nil {
			return dcb.StorageError(errors.Join(dcb.ErrAppendingEventsFailed, execErr))
		}
	}

	return nil
}
