package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bwaidelich/umadb-go/dcb"
)

const (
	logMsgEventsAppended    = "events appended"
	logMsgDuplicateResolved = "append resolved as duplicate retry"
	logMsgSQLExecuted       = "sql executed: "
	logMsgDBQueryFailed     = "database query failed"
	logMsgDBExecFailed      = "database statement failed"
	logMsgCloseRowsFailed   = "closing database rows failed"

	logActionHead           = "head"
	logActionAppend         = "append"
	logActionRead           = "read"
	logActionLock           = "advisory lock"
	logActionExistenceCheck = "existence check"

	logAttrError        = "error"
	logAttrQuery        = "query"
	logAttrEventCount   = "event_count"
	logAttrLastPosition = "last_position"
	logAttrDurationMS   = "duration_ms"

	metricAppendDuration     = "eventstore_append_duration_seconds"
	metricIntegrityConflicts = "eventstore_integrity_conflicts_total"

	spanNameAppend      = "postgresengine.append"
	spanAttrOperation   = "operation"
	spanAttrEventCount  = "event_count"
	spanAttrConditional = "conditional"
	spanAttrPosition    = "last_position"
	spanAttrDurationMS  = "duration_ms"
	spanAttrErrorType   = "error_type"

	operationAppend = "append"

	statusSuccess = "success"
	statusError   = "error"

	errorTypeConflict = "integrity_conflict"
	errorTypeStorage  = "storage_failure"
)

// logQueryWithDuration logs SQL statements with execution time at debug
// level, preferring the contextual logger when both are configured.
func (es *EventStore) logQueryWithDuration(ctx context.Context, sqlQuery string, action string, duration time.Duration) {
	switch {
	case es.contextualLogger != nil:
		es.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
	case es.logger != nil:
		es.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

func (es *EventStore) logOperation(ctx context.Context, message string, args ...any) {
	switch {
	case es.contextualLogger != nil:
		es.contextualLogger.InfoContext(ctx, message, args...)
	case es.logger != nil:
		es.logger.Info(message, args...)
	}
}

func (es *EventStore) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := append([]any{logAttrError, err.Error()}, args...)

	switch {
	case es.contextualLogger != nil:
		es.contextualLogger.ErrorContext(ctx, message, allArgs...)
	case es.logger != nil:
		es.logger.Error(message, allArgs...)
	}
}

func (es *EventStore) logWarn(ctx context.Context, message string, args ...any) {
	switch {
	case es.contextualLogger != nil:
		es.contextualLogger.WarnContext(ctx, message, args...)
	case es.logger != nil:
		es.logger.Warn(message, args...)
	}
}

// startAppendSpan starts a tracing span for an append operation if the
// tracing collector is configured.
func (es *EventStore) startAppendSpan(ctx context.Context, eventCount int, conditional bool) (context.Context, dcb.SpanContext) {
	if es.tracingCollector == nil {
		return ctx, nil
	}

	return es.tracingCollector.StartSpan(ctx, spanNameAppend, map[string]string{
		spanAttrOperation:   operationAppend,
		spanAttrEventCount:  fmt.Sprintf("%d", eventCount),
		spanAttrConditional: fmt.Sprintf("%t", conditional),
	})
}

// finishAppendSpanSuccess finishes a successful append span and records
// the append duration metric.
func (es *EventStore) finishAppendSpanSuccess(ctx context.Context, span dcb.SpanContext, lastPosition dcb.Position, duration time.Duration) {
	if span != nil {
		span.SetStatus(statusSuccess)
		span.AddAttribute(spanAttrPosition, fmt.Sprintf("%d", lastPosition))
		span.AddAttribute(spanAttrDurationMS, fmt.Sprintf("%.2f", toMilliseconds(duration)))

		es.finishSpan(span, statusSuccess, map[string]string{
			spanAttrPosition: fmt.Sprintf("%d", lastPosition),
		})
	}

	es.recordAppendMetrics(ctx, duration, statusSuccess)
}

// finishAppendSpanError finishes an append span with error details and
// records the matching metrics; integrity conflicts get their own counter.
func (es *EventStore) finishAppendSpanError(ctx context.Context, span dcb.SpanContext, err error, duration time.Duration) {
	errorType := errorTypeStorage
	if errors.Is(err, dcb.ErrIntegrityViolation) {
		errorType = errorTypeConflict
	}

	if span != nil {
		span.SetStatus(statusError)
		span.AddAttribute(spanAttrErrorType, errorType)
		span.AddAttribute(spanAttrDurationMS, fmt.Sprintf("%.2f", toMilliseconds(duration)))

		es.finishSpan(span, statusError, map[string]string{spanAttrErrorType: errorType})
	}

	es.recordAppendMetrics(ctx, duration, statusError)

	if errorType == errorTypeConflict {
		es.recordIntegrityConflictMetrics(ctx)
	}
}

func (es *EventStore) finishSpan(span dcb.SpanContext, status string, attrs map[string]string) {
	if es.tracingCollector != nil && span != nil {
		es.tracingCollector.FinishSpan(span, status, attrs)
	}
}

func (es *EventStore) recordAppendMetrics(ctx context.Context, duration time.Duration, status string) {
	if es.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operationAppend,
		"status":          status,
	}

	if contextualCollector, ok := es.metricsCollector.(dcb.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metricAppendDuration, duration, labels)
		return
	}

	es.metricsCollector.RecordDuration(metricAppendDuration, duration, labels)
}

func (es *EventStore) recordIntegrityConflictMetrics(ctx context.Context) {
	if es.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operationAppend,
		"conflict_type":   "integrity",
	}

	if contextualCollector, ok := es.metricsCollector.(dcb.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metricIntegrityConflicts, labels)
		return
	}

	es.metricsCollector.IncrementCounter(metricIntegrityConflicts, labels)
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
