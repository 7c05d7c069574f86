package oteladapters_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/bwaidelich/umadb-go/dcb/oteladapters"
)

func Test_MetricsCollector_RecordDuration(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	collector := oteladapters.NewMetricsCollector(provider.Meter("test"))

	collector.RecordDuration("eventstore_append_duration_seconds", 150*time.Millisecond, map[string]string{
		"operation": "append",
		"status":    "success",
	})

	var resourceMetrics metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &resourceMetrics)
	require.NoError(t, err, "failed to collect metrics")

	histogram := findHistogramMetric(t, resourceMetrics, "eventstore_append_duration_seconds")
	require.Len(t, histogram.DataPoints, 1, "expected exactly one data point")

	dataPoint := histogram.DataPoints[0]
	assert.Equal(t, uint64(1), dataPoint.Count, "histogram count should be 1")
	assert.InDelta(t, 0.15, dataPoint.Sum, 0.001, "histogram sum should be 0.15 seconds")

	expectedAttrs := attribute.NewSet(
		attribute.String("operation", "append"),
		attribute.String("status", "success"),
	)
	assert.True(t, dataPoint.Attributes.Equals(&expectedAttrs), "attributes should match")
}

func Test_MetricsCollector_IncrementCounter(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	collector := oteladapters.NewMetricsCollector(provider.Meter("test"))

	labels := map[string]string{"operation": "append", "conflict_type": "integrity"}

	collector.IncrementCounter("eventstore_integrity_conflicts_total", labels)
	collector.IncrementCounter("eventstore_integrity_conflicts_total", labels)
	collector.IncrementCounterContext(context.Background(), "eventstore_integrity_conflicts_total", labels)

	var resourceMetrics metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &resourceMetrics)
	require.NoError(t, err, "failed to collect metrics")

	counter := findCounterMetric(t, resourceMetrics, "eventstore_integrity_conflicts_total")
	require.Len(t, counter.DataPoints, 1, "expected exactly one data point")
	assert.Equal(t, int64(3), counter.DataPoints[0].Value, "counter should have been incremented three times")
}

func Test_TracingCollector_SpanLifecycle(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	collector := oteladapters.NewTracingCollector(provider.Tracer("test"))

	ctx, span := collector.StartSpan(context.Background(), "postgresengine.append", map[string]string{
		"operation": "append",
	})
	require.NotNil(t, span, "StartSpan should return a span context")
	assert.NotEqual(t, context.Background(), ctx, "StartSpan should return a derived context")

	span.AddAttribute("event_count", "3")
	collector.FinishSpan(span, "success", map[string]string{"last_position": "3"})

	ended := recorder.Ended()
	require.Len(t, ended, 1, "expected exactly one finished span")
	assert.Equal(t, "postgresengine.append", ended[0].Name())
	assert.Equal(t, codes.Ok, ended[0].Status().Code, "success should map to an ok status")
}

func Test_TracingCollector_ErrorStatus(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	collector := oteladapters.NewTracingCollector(provider.Tracer("test"))

	_, span := collector.StartSpan(context.Background(), "postgresengine.append", nil)
	collector.FinishSpan(span, "conflict", map[string]string{"error_type": "integrity_conflict"})

	ended := recorder.Ended()
	require.Len(t, ended, 1, "expected exactly one finished span")
	assert.Equal(t, codes.Error, ended[0].Status().Code, "conflict should map to an error status")
}

func findHistogramMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) metricdata.Histogram[float64] {
	t.Helper()

	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name == name {
				histogram, ok := m.Data.(metricdata.Histogram[float64])
				require.True(t, ok, "metric %s should be a float64 histogram", name)

				return histogram
			}
		}
	}

	t.Fatalf("histogram metric %s not found", name)

	return metricdata.Histogram[float64]{}
}

func findCounterMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) metricdata.Sum[int64] {
	t.Helper()

	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name == name {
				counter, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok, "metric %s should be an int64 sum", name)

				return counter
			}
		}
	}

	t.Fatalf("counter metric %s not found", name)

	return metricdata.Sum[int64]{}
}
