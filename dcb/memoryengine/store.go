package memoryengine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bwaidelich/umadb-go/dcb"
)

// EventStore is the in-memory reference engine. It implements the
// dcb.EventStore boundary contract: conditional atomic appends, idempotent
// retries, lazy bounded and live-tailing reads.
//
// The append path is the single serialization point: the existence check of
// an append condition and the position assignment happen under one mutex, so
// no two concurrent appends can both pass a check against the same
// still-absent conflicting event. Reads run concurrently with appends and
// with each other.
type EventStore struct {
	mu     sync.RWMutex
	ledger ledger

	// idempotency registries, mutated in the same critical section as commits
	batchKeys map[string]dcb.Position
	eventIDs  map[uuid.UUID]struct{}

	// notify is closed and replaced on every commit to wake subscribed cursors
	notify chan struct{}

	logger           dcb.Logger
	contextualLogger dcb.ContextualLogger
	metricsCollector dcb.MetricsCollector
	tracingCollector dcb.TracingCollector
}

// NewEventStore creates a new in-memory EventStore with optional configuration.
func NewEventStore(options ...Option) *EventStore {
	es := &EventStore{
		ledger:    newLedger(),
		batchKeys: make(map[string]dcb.Position),
		eventIDs:  make(map[uuid.UUID]struct{}),
		notify:    make(chan struct{}),
	}

	for _, option := range options {
		option(es)
	}

	return es
}

// Head returns the highest assigned position, or 0 if the store is empty.
func (es *EventStore) Head(_ context.Context) (dcb.Position, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()

	return es.ledger.head(), nil
}

// Append atomically commits the batch and returns the position of the last
// event.
//
// Without a condition the batch is committed unconditionally. With a
// condition, the idempotency registries are consulted first: a retry of an
// identical batch (same event ids, same content, same condition) returns the
// previously assigned position without re-evaluating the condition, while a
// partial duplicate fails as an ambiguous retry. Otherwise the append is
// rejected when any event committed after the condition's position matches
// the condition's query; a rejected append mutates nothing.
func (es *EventStore) Append(ctx context.Context, events dcb.Events, condition *dcb.AppendCondition) (dcb.Position, error) {
	if len(events) == 0 {
		return 0, dcb.InvalidArgumentError(dcb.ErrEmptyEventBatch)
	}

	spanCtx, span := es.startAppendSpan(ctx, len(events))
	start := time.Now()

	es.mu.Lock()
	lastPosition, appendErr := es.appendLocked(events, condition)
	es.mu.Unlock()

	duration := time.Since(start)

	if appendErr != nil {
		es.finishAppendSpanError(spanCtx, span, appendErr, duration)
		return 0, appendErr
	}

	es.finishAppendSpanSuccess(spanCtx, span, lastPosition, duration)
	es.logOperation(spanCtx, logMsgEventsAppended,
		logAttrEventCount, len(events),
		logAttrLastPosition, lastPosition,
		logAttrDurationMS, toMilliseconds(duration))

	return lastPosition, nil
}

func (es *EventStore) appendLocked(events dcb.Events, condition *dcb.AppendCondition) (dcb.Position, error) {
	if condition != nil {
		if position, resolved, resolveErr := es.resolveDuplicateLocked(events, *condition); resolveErr != nil {
			return 0, resolveErr
		} else if resolved {
			return position, nil
		}

		after := dcb.Position(0)
		if condition.After != nil {
			after = *condition.After
		}

		if es.ledger.existsAfter(after, condition.FailIfEventsMatch) {
			return 0, dcb.IntegrityError(dcb.ErrAppendConditionViolated)
		}
	}

	lastPosition := es.ledger.commit(events)

	for _, event := range events {
		if event.HasEventID() {
			es.eventIDs[event.EventID] = struct{}{}
		}
	}

	if condition != nil {
		if batchKey, keyed := dcb.BatchIdempotencyKey(events, *condition); keyed {
			es.batchKeys[batchKey] = lastPosition
		}
	}

	es.wakeSubscribersLocked()

	return lastPosition, nil
}

// resolveDuplicateLocked implements the idempotency resolution for
// conditional appends. It returns the previously assigned position for an
// exact whole-batch retry, and an integrity error when the batch overlaps a
// prior commit only partially or reuses an already committed event id.
func (es *EventStore) resolveDuplicateLocked(events dcb.Events, condition dcb.AppendCondition) (dcb.Position, bool, error) {
	if dcb.DuplicateEventIDInBatch(events) {
		return 0, false, dcb.IntegrityError(dcb.ErrAmbiguousRetry)
	}

	if batchKey, keyed := dcb.BatchIdempotencyKey(events, condition); keyed {
		if position, found := es.batchKeys[batchKey]; found {
			es.logOperation(context.Background(), logMsgDuplicateResolved,
				logAttrEventCount, len(events),
				logAttrLastPosition, position)

			return position, true, nil
		}
	}

	for _, event := range events {
		if !event.HasEventID() {
			continue
		}

		if _, known := es.eventIDs[event.EventID]; known {
			return 0, false, dcb.IntegrityError(dcb.ErrAmbiguousRetry)
		}
	}

	return 0, false, nil
}

// wakeSubscribersLocked rotates the notification channel; closing the old
// channel releases every cursor waiting for new events.
func (es *EventStore) wakeSubscribersLocked() {
	close(es.notify)
	es.notify = make(chan struct{})
}
