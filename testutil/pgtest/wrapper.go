package pgtest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // database/sql driver for the sql.db and sqlx.db adapters
	"github.com/stretchr/testify/require"

	"github.com/bwaidelich/umadb-go/dcb/postgresengine"
)

const pingTimeout = 2 * time.Second

// Wrapper bundles an event store under test with the raw database handle
// needed for setup and cleanup.
type Wrapper struct {
	es      *postgresengine.EventStore
	execSQL func(ctx context.Context, query string) error
	closeFn func()
}

// EventStore returns the event store under test.
func (w *Wrapper) EventStore() *postgresengine.EventStore {
	return w.es
}

// Close releases the underlying database connections.
func (w *Wrapper) Close() {
	w.closeFn()
}

// CreateWrapper connects to the test database with the adapter selected
// through the environment, ensures the schema, and truncates the tables.
// The test is skipped when the database is unreachable.
func CreateWrapper(t testing.TB, options ...postgresengine.Option) *Wrapper {
	t.Helper()

	cfg := LoadConfig()
	ctx := context.Background()

	var wrapper *Wrapper

	switch strings.ToLower(cfg.AdapterType) {
	case AdapterPGXPool, "":
		pool, err := pgxpool.NewWithConfig(ctx, PGXPoolConfig(cfg.DSN))
		require.NoError(t, err, "error connecting to DB pool in test setup")

		skipIfUnreachable(t, pool.Ping, pool.Close)

		es, err := postgresengine.NewEventStoreFromPGXPool(pool, options...)
		require.NoError(t, err, "error creating event store")

		wrapper = &Wrapper{
			es: es,
			execSQL: func(ctx context.Context, query string) error {
				_, execErr := pool.Exec(ctx, query)
				return execErr
			},
			closeFn: pool.Close,
		}

	case AdapterSQLDB:
		db, err := sql.Open("postgres", cfg.DSN)
		require.NoError(t, err, "error opening DB in test setup")

		skipIfUnreachable(t, db.PingContext, func() { _ = db.Close() })

		es, err := postgresengine.NewEventStoreFromSQLDB(db, options...)
		require.NoError(t, err, "error creating event store")

		wrapper = &Wrapper{
			es: es,
			execSQL: func(ctx context.Context, query string) error {
				_, execErr := db.ExecContext(ctx, query)
				return execErr
			},
			closeFn: func() { _ = db.Close() },
		}

	case AdapterSQLX:
		db, err := sqlx.Open("postgres", cfg.DSN)
		require.NoError(t, err, "error opening DB in test setup")

		skipIfUnreachable(t, db.PingContext, func() { _ = db.Close() })

		es, err := postgresengine.NewEventStoreFromSQLX(db, options...)
		require.NoError(t, err, "error creating event store")

		wrapper = &Wrapper{
			es: es,
			execSQL: func(ctx context.Context, query string) error {
				_, execErr := db.ExecContext(ctx, query)
				return execErr
			},
			closeFn: func() { _ = db.Close() },
		}

	default:
		t.Fatalf("unsupported adapter type from env: %s", cfg.AdapterType)
	}

	require.NoError(t, wrapper.es.EnsureSchema(ctx), "error ensuring schema in test setup")
	CleanUp(t, wrapper)

	return wrapper
}

// CleanUp truncates the store's tables so each test starts from position 1.
func CleanUp(t testing.TB, wrapper *Wrapper) {
	t.Helper()

	ctx := context.Background()

	for _, table := range []string{wrapper.es.EventTableName(), wrapper.es.IdempotencyTableName()} {
		err := wrapper.execSQL(ctx, fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY", table))
		require.NoError(t, err, "error cleaning up table %s", table)
	}
}

func skipIfUnreachable(t testing.TB, ping func(ctx context.Context) error, cleanup func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if pingErr := ping(ctx); pingErr != nil {
		cleanup()
		t.Skipf("skipping: test database not reachable: %v", pingErr)
	}
}
