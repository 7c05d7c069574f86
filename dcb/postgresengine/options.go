package postgresengine

import (
	"time"

	"github.com/bwaidelich/umadb-go/dcb"
)

// Option defines a functional option for configuring EventStore.
type Option func(*EventStore) error

// WithTableName sets the events table name for the EventStore.
func WithTableName(tableName string) Option {
	return func(es *EventStore) error {
		if tableName == "" {
			return dcb.InvalidArgumentError(dcb.ErrEmptyEventsTableName)
		}

		es.eventTableName = tableName

		return nil
	}
}

// WithIdempotencyTableName sets the table name the EventStore records
// resolved append batch keys in.
func WithIdempotencyTableName(tableName string) Option {
	return func(es *EventStore) error {
		if tableName == "" {
			return dcb.InvalidArgumentError(dcb.ErrEmptyEventsTableName)
		}

		es.idempotencyTableName = tableName

		return nil
	}
}

// WithPollInterval sets how long a subscribing cursor waits between
// re-queries once it has drained all stored matches.
func WithPollInterval(interval time.Duration) Option {
	return func(es *EventStore) error {
		if interval > 0 {
			es.pollInterval = interval
		}

		return nil
	}
}

// WithLogger sets the logger for the EventStore.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL queries with execution timing (development use)
// Info level: Event counts, positions, resolved duplicate retries (production-safe)
// Warn level: Non-critical issues like cleanup failures
// Error level: Critical failures that cause operation failures.
func WithLogger(logger dcb.Logger) Option {
	return func(es *EventStore) error {
		es.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the EventStore.
// The contextual logger will receive log messages with context information
// including automatic trace/span correlation when tracing is enabled. When
// both loggers are configured, the contextual one wins.
func WithContextualLogger(logger dcb.ContextualLogger) Option {
	return func(es *EventStore) error {
		es.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the EventStore.
// The collector will receive append durations and integrity conflict counts.
func WithMetrics(collector dcb.MetricsCollector) Option {
	return func(es *EventStore) error {
		es.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the EventStore.
// The collector will receive span creation for append operations,
// context propagation, and error tracking.
func WithTracing(collector dcb.TracingCollector) Option {
	return func(es *EventStore) error {
		es.tracingCollector = collector
		return nil
	}
}
