package memoryengine

import (
	"context"
	"sync"

	"github.com/bwaidelich/umadb-go/dcb"
)

// Read produces a lazy sequence of events matching the query, in ascending
// position order, or descending order with the Backwards option.
//
// A bounded read observes a snapshot of the positions committed at call
// time. A subscribing read keeps delivering: after exhausting committed
// matching events the cursor suspends until new matching events are
// committed, without blocking appends or other reads. Closing the cursor or
// canceling the context releases a suspended cursor promptly.
func (es *EventStore) Read(ctx context.Context, query dcb.Query, options ...dcb.ReadOption) (dcb.Cursor, error) {
	opts, optsErr := dcb.BuildReadOptions(options...)
	if optsErr != nil {
		return nil, optsErr
	}

	es.mu.RLock()
	head := es.ledger.head()
	es.mu.RUnlock()

	c := &cursor{
		es:        es,
		ctx:       ctx,
		query:     query,
		backwards: opts.Backwards,
		subscribe: opts.Subscribe,
		closed:    make(chan struct{}),
	}

	if opts.Limit != nil {
		remaining := *opts.Limit
		c.remaining = &remaining
	}

	if opts.Backwards {
		// start is exclusive when reading backwards; no start means the
		// read begins at the current head, inclusive
		c.next = head
		if opts.Start != nil {
			if *opts.Start <= 1 {
				c.next = 0
			} else {
				c.next = min(*opts.Start-1, head)
			}
		}
	} else {
		// start is inclusive when reading forward
		c.next = 1
		if opts.Start != nil && *opts.Start > 1 {
			c.next = *opts.Start
		}
		c.snapshotHead = head
	}

	es.logOperation(ctx, logMsgReadStarted,
		logAttrBackwards, opts.Backwards,
		logAttrSubscribe, opts.Subscribe,
		logAttrHead, head)

	return c, nil
}

// cursor implements dcb.Cursor against the in-memory ledger. It holds no
// lock between Next calls; each step takes a read lock, so cursors never
// block writers for longer than one scan step.
type cursor struct {
	es        *EventStore
	ctx       context.Context
	query     dcb.Query
	backwards bool
	subscribe bool
	remaining *uint

	// next position to examine: ascending for forward cursors,
	// descending for backward cursors (0 = exhausted)
	next         dcb.Position
	snapshotHead dcb.Position

	current   dcb.SequencedEvent
	err       error
	done      bool
	closed    chan struct{}
	closeOnce sync.Once
}

func (c *cursor) Next() bool {
	if c.done {
		return false
	}

	if c.remaining != nil && *c.remaining == 0 {
		c.done = true
		return false
	}

	if c.aborted() {
		return false
	}

	if c.backwards {
		return c.nextBackwards()
	}

	return c.nextForwards()
}

func (c *cursor) nextForwards() bool {
	for {
		c.es.mu.RLock()

		bound := c.snapshotHead
		if c.subscribe {
			bound = c.es.ledger.head()
		}

		for c.next <= bound {
			sequencedEvent := c.es.ledger.at(c.next)
			c.next++

			if c.query.Matches(sequencedEvent.Event) {
				c.es.mu.RUnlock()
				return c.deliver(sequencedEvent)
			}
		}

		// capture the notification channel under the same lock as the head
		// check so a commit in between cannot be missed
		notify := c.es.notify
		c.es.mu.RUnlock()

		if !c.subscribe {
			c.done = true
			return false
		}

		select {
		case <-notify:
		case <-c.ctx.Done():
			c.err = c.ctx.Err()
			c.done = true
			return false
		case <-c.closed:
			c.done = true
			return false
		}
	}
}

func (c *cursor) nextBackwards() bool {
	c.es.mu.RLock()
	defer c.es.mu.RUnlock()

	for c.next >= 1 {
		sequencedEvent := c.es.ledger.at(c.next)
		c.next--

		if c.query.Matches(sequencedEvent.Event) {
			return c.deliver(sequencedEvent)
		}
	}

	c.done = true

	return false
}

func (c *cursor) deliver(sequencedEvent dcb.SequencedEvent) bool {
	c.current = sequencedEvent

	if c.remaining != nil {
		*c.remaining--
	}

	return true
}

// aborted checks for caller-side termination before scanning.
func (c *cursor) aborted() bool {
	if c.ctx.Err() != nil {
		c.err = c.ctx.Err()
		c.done = true
		return true
	}

	select {
	case <-c.closed:
		c.done = true
		return true
	default:
		return false
	}
}

func (c *cursor) Event() dcb.SequencedEvent {
	return c.current
}

func (c *cursor) Err() error {
	return c.err
}

// Close aborts the cursor. It is safe to call from another goroutine to
// release a Next call suspended in a subscription.
func (c *cursor) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})

	return nil
}
