package memoryengine_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bwaidelich/umadb-go/dcb"
	"github.com/bwaidelich/umadb-go/dcb/memoryengine"
	"github.com/bwaidelich/umadb-go/testutil/observability"
)

func Test_Append_RecordsDurationMetricAndSpan(t *testing.T) {
	// arrange
	metricsSpy := observability.NewMetricsCollectorSpy()
	tracingSpy := observability.NewTracingCollectorSpy()
	es := memoryengine.NewEventStore(
		memoryengine.WithMetrics(metricsSpy),
		memoryengine.WithTracing(tracingSpy),
	)

	// act
	_, err := es.Append(context.Background(), dcb.Events{courseDefined("c1")}, nil)

	// assert
	require.NoError(t, err)

	durations := metricsSpy.Durations()
	require.Len(t, durations, 1)
	assert.Equal(t, "eventstore_append_duration_seconds", durations[0].Metric)
	assert.Equal(t, "success", durations[0].Labels["status"])

	spans := tracingSpy.FinishedSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "memoryengine.append", spans[0].Name)
	assert.Equal(t, "success", spans[0].Status)
}

func Test_Append_ConflictIncrementsIntegrityCounter(t *testing.T) {
	// arrange
	metricsSpy := observability.NewMetricsCollectorSpy()
	tracingSpy := observability.NewTracingCollectorSpy()
	es := memoryengine.NewEventStore(
		memoryengine.WithMetrics(metricsSpy),
		memoryengine.WithTracing(tracingSpy),
	)

	ctx := context.Background()
	_, err := es.Append(ctx, dcb.Events{courseDefined("c1")}, nil)
	require.NoError(t, err)

	// act: the same guard again must be rejected
	condition := dcb.BuildAppendCondition(queryForCourse("c1"))
	_, err = es.Append(ctx, dcb.Events{courseDefined("c1")}, condition)

	// assert
	require.ErrorIs(t, err, dcb.ErrAppendConditionViolated)
	assert.Equal(t, 1, metricsSpy.CounterCount("eventstore_integrity_conflicts_total"))

	spans := tracingSpy.FinishedSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "conflict", spans[1].Status)
	assert.Equal(t, "integrity_violation", spans[1].Attributes["error_type"])
}

func Test_Append_LogsThroughContextualLogger(t *testing.T) {
	// arrange
	logSpy := observability.NewLogHandlerSpy(false)
	es := memoryengine.NewEventStore(
		memoryengine.WithContextualLogger(slog.New(logSpy)),
	)

	ctx := context.Background()

	// act
	_, err := es.Append(ctx, dcb.Events{courseDefined("c1")}, nil)
	require.NoError(t, err)

	// assert
	assert.True(t, logSpy.HasLogWithAttr(slog.LevelInfo, "engine operation: events appended", "last_position"))
}

func Test_Append_IdempotentRetryIsLoggedAsDuplicate(t *testing.T) {
	// arrange
	logSpy := observability.NewLogHandlerSpy(false)
	es := memoryengine.NewEventStore(
		memoryengine.WithContextualLogger(slog.New(logSpy)),
	)

	ctx := context.Background()
	event := dcb.BuildEventWithID("CourseDefined", []byte(`{"capacity":10}`), uuid.New(), "course:c1")
	condition := dcb.BuildAppendCondition(queryForCourse("c1"))

	first, err := es.Append(ctx, dcb.Events{event}, condition)
	require.NoError(t, err)
	logSpy.Reset()

	// act: an exact retry of the same conditional batch resolves to the
	// original position instead of failing the condition check
	retried, err := es.Append(ctx, dcb.Events{event}, condition)

	// assert
	require.NoError(t, err)
	assert.Equal(t, first, retried)
	assert.True(t, logSpy.HasLog(slog.LevelInfo, "engine operation: duplicate append resolved idempotently"))
}
