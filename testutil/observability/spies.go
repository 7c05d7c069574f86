// Package observability provides test doubles for the dcb observability
// interfaces: a slog handler that captures records, and spies for the
// metrics and tracing collectors.
package observability

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/bwaidelich/umadb-go/dcb"
)

// LogHandlerSpy is a slog.Handler implementation that captures log records
// for testing. It can optionally echo records to stdout for debugging.
type LogHandlerSpy struct {
	mu          sync.Mutex
	records     []slog.Record
	logToStdout bool
}

// NewLogHandlerSpy creates a new LogHandlerSpy.
func NewLogHandlerSpy(logToStdout bool) *LogHandlerSpy {
	return &LogHandlerSpy{logToStdout: logToStdout}
}

// Handle implements slog.Handler.
func (s *LogHandlerSpy) Handle(ctx context.Context, record slog.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)

	if s.logToStdout {
		_ = slog.NewJSONHandler(os.Stdout, nil).Handle(ctx, record)
	}

	return nil
}

// Enabled implements slog.Handler; the spy captures every level.
func (s *LogHandlerSpy) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

// WithAttrs implements slog.Handler.
func (s *LogHandlerSpy) WithAttrs(_ []slog.Attr) slog.Handler {
	return s
}

// WithGroup implements slog.Handler.
func (s *LogHandlerSpy) WithGroup(_ string) slog.Handler {
	return s
}

// RecordCount returns the number of captured records.
func (s *LogHandlerSpy) RecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}

// Reset clears all captured records.
func (s *LogHandlerSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = s.records[:0]
}

// HasLog reports whether a record with the given level and message was captured.
func (s *LogHandlerSpy) HasLog(level slog.Level, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.records {
		if record.Level == level && record.Message == message {
			return true
		}
	}

	return false
}

// HasLogWithAttr reports whether a record with the given level and message
// carries the named attribute.
func (s *LogHandlerSpy) HasLogWithAttr(level slog.Level, message string, attrKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.records {
		if record.Level != level || record.Message != message {
			continue
		}

		found := false
		record.Attrs(func(attr slog.Attr) bool {
			if attr.Key == attrKey {
				found = true
				return false
			}

			return true
		})

		if found {
			return true
		}
	}

	return false
}

// RecordedDuration is one RecordDuration call captured by the metrics spy.
type RecordedDuration struct {
	Metric   string
	Duration time.Duration
	Labels   map[string]string
}

// RecordedCounter is one IncrementCounter call captured by the metrics spy.
type RecordedCounter struct {
	Metric string
	Labels map[string]string
}

// MetricsCollectorSpy captures metrics calls for testing. It implements
// both dcb.MetricsCollector and dcb.ContextualMetricsCollector.
type MetricsCollectorSpy struct {
	mu        sync.Mutex
	durations []RecordedDuration
	counters  []RecordedCounter
	values    []float64
}

// NewMetricsCollectorSpy creates a new MetricsCollectorSpy.
func NewMetricsCollectorSpy() *MetricsCollectorSpy {
	return &MetricsCollectorSpy{}
}

func (s *MetricsCollectorSpy) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.durations = append(s.durations, RecordedDuration{Metric: metric, Duration: duration, Labels: labels})
}

func (s *MetricsCollectorSpy) IncrementCounter(metric string, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = append(s.counters, RecordedCounter{Metric: metric, Labels: labels})
}

func (s *MetricsCollectorSpy) RecordValue(_ string, value float64, _ map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = append(s.values, value)
}

func (s *MetricsCollectorSpy) RecordDurationContext(_ context.Context, metric string, duration time.Duration, labels map[string]string) {
	s.RecordDuration(metric, duration, labels)
}

func (s *MetricsCollectorSpy) IncrementCounterContext(_ context.Context, metric string, labels map[string]string) {
	s.IncrementCounter(metric, labels)
}

func (s *MetricsCollectorSpy) RecordValueContext(_ context.Context, metric string, value float64, labels map[string]string) {
	s.RecordValue(metric, value, labels)
}

// Durations returns a copy of the captured duration recordings.
func (s *MetricsCollectorSpy) Durations() []RecordedDuration {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]RecordedDuration, len(s.durations))
	copy(out, s.durations)

	return out
}

// CounterCount returns how often the named counter was incremented.
func (s *MetricsCollectorSpy) CounterCount(metric string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, counter := range s.counters {
		if counter.Metric == metric {
			count++
		}
	}

	return count
}

var _ dcb.MetricsCollector = (*MetricsCollectorSpy)(nil)

var _ dcb.ContextualMetricsCollector = (*MetricsCollectorSpy)(nil)

// FinishedSpan is one finished span captured by the tracing spy.
type FinishedSpan struct {
	Name       string
	Status     string
	Attributes map[string]string
}

// TracingCollectorSpy captures spans for testing.
type TracingCollectorSpy struct {
	mu       sync.Mutex
	finished []FinishedSpan
}

// NewTracingCollectorSpy creates a new TracingCollectorSpy.
func NewTracingCollectorSpy() *TracingCollectorSpy {
	return &TracingCollectorSpy{}
}

func (s *TracingCollectorSpy) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, dcb.SpanContext) {
	span := &spanContextSpy{name: name, attributes: make(map[string]string, len(attrs))}
	for key, value := range attrs {
		span.attributes[key] = value
	}

	return ctx, span
}

func (s *TracingCollectorSpy) FinishSpan(spanCtx dcb.SpanContext, status string, attrs map[string]string) {
	span, ok := spanCtx.(*spanContextSpy)
	if !ok {
		return
	}

	for key, value := range attrs {
		span.attributes[key] = value
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, FinishedSpan{
		Name:       span.name,
		Status:     status,
		Attributes: span.attributes,
	})
}

// FinishedSpans returns a copy of the captured finished spans.
func (s *TracingCollectorSpy) FinishedSpans() []FinishedSpan {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]FinishedSpan, len(s.finished))
	copy(out, s.finished)

	return out
}

var _ dcb.TracingCollector = (*TracingCollectorSpy)(nil)

type spanContextSpy struct {
	name       string
	status     string
	attributes map[string]string
}

func (s *spanContextSpy) SetStatus(status string) {
	s.status = status
}

func (s *spanContextSpy) AddAttribute(key, value string) {
	s.attributes[key] = value
}
