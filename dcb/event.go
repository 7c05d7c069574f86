package dcb

import (
	"github.com/google/uuid"
)

// Position is the total order index assigned to a committed event.
// Positions start at 1 and are strictly increasing in commit order;
// 0 is never assigned and doubles as the "empty store" head value.
type Position = uint64

// EventTypeString is a type alias for string, representing an event type.
type EventTypeString = string

// TagString is a type alias for string, representing a tag attached to an event.
type TagString = string

// Events is an alias type for a slice of Event.
type Events = []Event

// SequencedEvents is an alias type for a slice of SequencedEvent.
type SequencedEvents = []SequencedEvent

// Event is an immutable record to be appended to the event store.
//
// It is built on scalars to be completely agnostic of the implementation of
// Domain Events in the client code. Data is an opaque byte payload; the store
// never inspects it. Tags are arbitrary string labels used for cross-cutting
// filtering independent of the event type; equality is exact, case-sensitive
// string match and no normalization is applied.
//
// EventID is caller-supplied and used solely for idempotent retries of
// conditional appends; uuid.Nil means the event carries no idempotency key.
//
// While its properties are exported, it should only be constructed with the
// supplied factory methods:
//   - BuildEvent
//   - BuildEventWithID
type Event struct {
	EventType EventTypeString
	Data      []byte
	Tags      []TagString
	EventID   uuid.UUID
}

// SequencedEvent is an Event together with the Position it was assigned at
// commit time. Instances are only ever produced by an engine.
type SequencedEvent struct {
	Event    Event
	Position Position
}

// BuildEvent is a factory method for Event without an idempotency key.
func BuildEvent(eventType EventTypeString, data []byte, tags ...TagString) Event {
	return Event{
		EventType: eventType,
		Data:      data,
		Tags:      tags,
	}
}

// BuildEventWithID is a factory method for Event carrying an idempotency key.
func BuildEventWithID(eventType EventTypeString, data []byte, eventID uuid.UUID, tags ...TagString) Event {
	return Event{
		EventType: eventType,
		Data:      data,
		Tags:      tags,
		EventID:   eventID,
	}
}

// HasEventID reports whether the event carries an idempotency key.
func (e Event) HasEventID() bool {
	return e.EventID != uuid.Nil
}
