package dcb

import (
	"context"
)

// EventStore is the boundary contract every engine implements.
type EventStore interface {
	// Append atomically commits the batch, assigning contiguous increasing
	// positions in batch order, and returns the position of the last event.
	// With a condition it fails with an integrity error when the condition's
	// query matches any event committed after the condition's position;
	// a failed append leaves the store unchanged.
	Append(ctx context.Context, events Events, condition *AppendCondition) (Position, error)

	// Read produces a lazy sequence of events matching the query, in
	// position order. The empty query matches every event. See ReadOption
	// for start position, direction, limit, and subscription.
	Read(ctx context.Context, query Query, options ...ReadOption) (Cursor, error)

	// Head returns the highest assigned position, or 0 if the store is empty.
	Head(ctx context.Context) (Position, error)
}

// Cursor is a lazy sequence of sequenced events produced by EventStore.Read.
//
// The usage pattern mirrors database rows: call Next until it returns false,
// read the current element with Event, then check Err. A cursor must be
// closed; closing releases any waiting subscription registration promptly.
// Cursors are not safe for concurrent use, except that Close may be called
// from another goroutine to abort a blocked Next.
type Cursor interface {
	Next() bool
	Event() SequencedEvent
	Err() error
	Close() error
}

// ReadAll drains the cursor into a slice and closes it.
// Unbounded subscriptions never return; combine with a limit or a context
// deadline when collecting from a subscribing cursor.
func ReadAll(cursor Cursor) (SequencedEvents, error) {
	defer func() { _ = cursor.Close() }()

	var events SequencedEvents
	for cursor.Next() {
		events = append(events, cursor.Event())
	}

	return events, cursor.Err()
}

// ReadOptions holds the resolved read parameters. Engines obtain it via
// BuildReadOptions; callers use the ReadOption functions.
type ReadOptions struct {
	// Start bounds the read: inclusive lower bound when reading forward,
	// exclusive upper bound when reading backwards. Nil means "from the
	// first position" forward and "from the current head, inclusive"
	// backwards.
	Start *Position

	// Backwards reverses traversal to descending position order.
	Backwards bool

	// Limit caps the number of delivered events; nil means unbounded.
	Limit *uint

	// Subscribe keeps the cursor open after the last committed match and
	// resumes when new matching events are committed.
	Subscribe bool
}

// ReadOption defines a functional option for a single read operation.
type ReadOption func(*ReadOptions)

// FromPosition sets the start position of the read.
func FromPosition(start Position) ReadOption {
	return func(o *ReadOptions) {
		o.Start = &start
	}
}

// Backwards reverses the read to descending position order.
func Backwards() ReadOption {
	return func(o *ReadOptions) {
		o.Backwards = true
	}
}

// WithLimit caps the number of delivered events.
func WithLimit(limit uint) ReadOption {
	return func(o *ReadOptions) {
		o.Limit = &limit
	}
}

// Subscribe turns the read into a live tail: after delivering all committed
// matching events the cursor suspends until new matching events are
// committed. Incompatible with Backwards.
func Subscribe() ReadOption {
	return func(o *ReadOptions) {
		o.Subscribe = true
	}
}

// BuildReadOptions resolves the given options and validates the combination.
func BuildReadOptions(options ...ReadOption) (ReadOptions, error) {
	var resolved ReadOptions

	for _, option := range options {
		option(&resolved)
	}

	if resolved.Backwards && resolved.Subscribe {
		return ReadOptions{}, InvalidArgumentError(ErrBackwardsSubscribe)
	}

	// detach the pointers from the option closures so a ReadOption value
	// can be reused across reads even when an engine mutates the resolved
	// values, e.g. counting a limit down
	if resolved.Start != nil {
		start := *resolved.Start
		resolved.Start = &start
	}

	if resolved.Limit != nil {
		limit := *resolved.Limit
		resolved.Limit = &limit
	}

	return resolved, nil
}
