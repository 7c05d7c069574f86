package memoryengine

import (
	"github.com/bwaidelich/umadb-go/dcb"
)

// Option defines a functional option for configuring EventStore.
type Option func(*EventStore)

// WithLogger sets the logger for the EventStore.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Info level: appended batches, resolved duplicate retries, read starts
// Error level: rejected appends with their error classification.
func WithLogger(logger dcb.Logger) Option {
	return func(es *EventStore) {
		es.logger = logger
	}
}

// WithContextualLogger sets the contextual logger for the EventStore.
// The contextual logger receives the same messages as the plain logger plus
// the operation context, enabling automatic trace correlation.
func WithContextualLogger(logger dcb.ContextualLogger) Option {
	return func(es *EventStore) {
		es.contextualLogger = logger
	}
}

// WithMetrics sets the metrics collector for the EventStore.
// The collector will receive append/read durations, event counts, and
// integrity conflict counters.
func WithMetrics(collector dcb.MetricsCollector) Option {
	return func(es *EventStore) {
		es.metricsCollector = collector
	}
}

// WithTracing sets the tracing collector for the EventStore.
// The collector will receive spans for append operations including event
// counts, assigned positions, and error classification.
func WithTracing(collector dcb.TracingCollector) Option {
	return func(es *EventStore) {
		es.tracingCollector = collector
	}
}
