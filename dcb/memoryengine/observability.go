package memoryengine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bwaidelich/umadb-go/dcb"
)

const (
	logMsgEventsAppended    = "engine operation: events appended"
	logMsgDuplicateResolved = "engine operation: duplicate append resolved idempotently"
	logMsgReadStarted       = "engine operation: read started"
	logMsgAppendRejected    = "append rejected"

	logAttrError        = "error"
	logAttrEventCount   = "event_count"
	logAttrLastPosition = "last_position"
	logAttrDurationMS   = "duration_ms"
	logAttrBackwards    = "backwards"
	logAttrSubscribe    = "subscribe"
	logAttrHead         = "head"

	metricAppendDuration     = "eventstore_append_duration_seconds"
	metricIntegrityConflicts = "eventstore_integrity_conflicts_total"

	spanNameAppend        = "memoryengine.append"
	spanAttrOperation     = "operation"
	spanAttrEventCount    = "event_count"
	spanAttrLastPosition  = "last_position"
	spanAttrErrorType     = "error_type"
	spanAttrDurationMS    = "duration_ms"
	operationAppend       = "append"
	statusSuccess         = "success"
	statusError           = "error"
	statusConflict        = "conflict"
	errorTypeIntegrity    = "integrity_violation"
	errorTypeInvalidInput = "invalid_argument"
)

// logOperation logs operational information at info level if a logger is configured.
func (es *EventStore) logOperation(ctx context.Context, msg string, args ...any) {
	if es.contextualLogger != nil {
		es.contextualLogger.InfoContext(ctx, msg, args...)
		return
	}

	if es.logger != nil {
		es.logger.Info(msg, args...)
	}
}

// logError logs error information at the error level if a logger is configured.
func (es *EventStore) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := append([]any{logAttrError, err.Error()}, args...)

	if es.contextualLogger != nil {
		es.contextualLogger.ErrorContext(ctx, msg, allArgs...)
		return
	}

	if es.logger != nil {
		es.logger.Error(msg, allArgs...)
	}
}

func (es *EventStore) startAppendSpan(ctx context.Context, eventCount int) (context.Context, dcb.SpanContext) {
	if es.tracingCollector == nil {
		return ctx, nil
	}

	return es.tracingCollector.StartSpan(ctx, spanNameAppend, map[string]string{
		spanAttrOperation:  operationAppend,
		spanAttrEventCount: fmt.Sprintf("%d", eventCount),
	})
}

func (es *EventStore) finishAppendSpanSuccess(
	ctx context.Context,
	span dcb.SpanContext,
	lastPosition dcb.Position,
	duration time.Duration,
) {
	es.recordAppendMetrics(ctx, duration, statusSuccess)

	if es.tracingCollector == nil || span == nil {
		return
	}

	span.AddAttribute(spanAttrDurationMS, fmt.Sprintf("%.2f", toMilliseconds(duration)))
	es.tracingCollector.FinishSpan(span, statusSuccess, map[string]string{
		spanAttrLastPosition: fmt.Sprintf("%d", lastPosition),
	})
}

func (es *EventStore) finishAppendSpanError(
	ctx context.Context,
	span dcb.SpanContext,
	err error,
	duration time.Duration,
) {
	status := statusError
	errorType := errorTypeInvalidInput

	if errors.Is(err, dcb.ErrIntegrityViolation) {
		status = statusConflict
		errorType = errorTypeIntegrity
		es.recordIntegrityConflictMetrics(ctx)
	}

	es.recordAppendMetrics(ctx, duration, status)
	es.logError(ctx, logMsgAppendRejected, err)

	if es.tracingCollector == nil || span == nil {
		return
	}

	es.tracingCollector.FinishSpan(span, status, map[string]string{
		spanAttrErrorType: errorType,
	})
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
