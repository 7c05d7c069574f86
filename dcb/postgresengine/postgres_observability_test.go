package postgresengine_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bwaidelich/umadb-go/dcb"
	"github.com/bwaidelich/umadb-go/dcb/postgresengine"
	"github.com/bwaidelich/umadb-go/testutil/observability"
	"github.com/bwaidelich/umadb-go/testutil/pgtest"
)

func Test_Append_RecordsDurationMetricAndSpan(t *testing.T) {
	metricsSpy := observability.NewMetricsCollectorSpy()
	tracingSpy := observability.NewTracingCollectorSpy()
	wrapper := pgtest.CreateWrapper(t,
		postgresengine.WithMetrics(metricsSpy),
		postgresengine.WithTracing(tracingSpy),
	)
	defer wrapper.Close()

	_, err := wrapper.EventStore().Append(context.Background(), dcb.Events{courseDefined("c1")}, nil)
	require.NoError(t, err)

	durations := metricsSpy.Durations()
	require.Len(t, durations, 1)
	assert.Equal(t, "eventstore_append_duration_seconds", durations[0].Metric)
	assert.Equal(t, "success", durations[0].Labels["status"])

	spans := tracingSpy.FinishedSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "postgresengine.append", spans[0].Name)
	assert.Equal(t, "success", spans[0].Status)
}

func Test_Append_ConflictIncrementsIntegrityCounter(t *testing.T) {
	metricsSpy := observability.NewMetricsCollectorSpy()
	wrapper := pgtest.CreateWrapper(t, postgresengine.WithMetrics(metricsSpy))
	defer wrapper.Close()

	es := wrapper.EventStore()
	ctx := context.Background()

	_, err := es.Append(ctx, dcb.Events{courseDefined("c1")}, nil)
	require.NoError(t, err)

	condition := dcb.BuildAppendCondition(queryForCourse("c1"))
	_, err = es.Append(ctx, dcb.Events{courseDefined("c1")}, condition)

	require.ErrorIs(t, err, dcb.ErrAppendConditionViolated)
	assert.Equal(t, 1, metricsSpy.CounterCount("eventstore_integrity_conflicts_total"))
}

func Test_Append_LogsSQLAtDebugLevel(t *testing.T) {
	logSpy := observability.NewLogHandlerSpy(false)
	wrapper := pgtest.CreateWrapper(t,
		postgresengine.WithContextualLogger(slog.New(logSpy)),
	)
	defer wrapper.Close()

	logSpy.Reset() // drop records from schema setup and cleanup

	_, err := wrapper.EventStore().Append(context.Background(), dcb.Events{courseDefined("c1")}, nil)
	require.NoError(t, err)

	assert.True(t, logSpy.HasLogWithAttr(slog.LevelInfo, "events appended", "last_position"))
	assert.Positive(t, logSpy.RecordCount())
}
