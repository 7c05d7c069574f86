package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/bwaidelich/umadb-go/dcb"
	"github.com/bwaidelich/umadb-go/dcb/postgresengine/internal/adapters"
)

// Read streams the events matching the query in position order. The first
// page is queried before Read returns, so query building and execution
// failures surface here rather than on the first Next call.
//
// A subscribing cursor re-queries from the position after the last
// delivered event at the store's poll interval once it has drained all
// stored matches. It never reports exhaustion; it ends only through the
// context or Close.
func (es *EventStore) Read(ctx context.Context, query dcb.Query, options ...dcb.ReadOption) (dcb.Cursor, error) {
	opts, optsErr := dcb.BuildReadOptions(options...)
	if optsErr != nil {
		return nil, optsErr
	}

	c := &cursor{
		es:        es,
		ctx:       ctx,
		query:     query,
		backwards: opts.Backwards,
		subscribe: opts.Subscribe,
		remaining: opts.Limit,
		closed:    make(chan struct{}),
	}

	if opts.Backwards {
		c.before = opts.Start
	} else if opts.Start != nil {
		c.nextFrom = *opts.Start
	}

	if queryErr := c.runQuery(); queryErr != nil {
		return nil, queryErr
	}

	return c, nil
}

type cursor struct {
	es    *EventStore
	ctx   context.Context
	query dcb.Query

	backwards bool
	subscribe bool
	nextFrom  dcb.Position  // forwards: lower bound of the next page, inclusive
	before    *dcb.Position // backwards: upper bound, exclusive; nil reads from the head
	remaining *uint

	rows      adapters.DBRows
	current   dcb.SequencedEvent
	err       error
	closed    chan struct{}
	closeOnce sync.Once
}

// runQuery executes one page query and replaces the cursor's row stream.
func (c *cursor) runQuery() error {
	sqlQuery, buildErr := c.es.buildReadQuery(c.query, c.nextFrom, c.before, c.backwards, c.remaining)
	if buildErr != nil {
		return buildErr
	}

	start := time.Now()
	rows, queryErr := c.es.db.Query(c.ctx, sqlQuery)
	c.es.logQueryWithDuration(c.ctx, sqlQuery, logActionRead, time.Since(start))

	if queryErr != nil {
		c.es.logError(c.ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		return dcb.StorageError(errors.Join(dcb.ErrQueryingEventsFailed, queryErr))
	}

	c.rows = rows

	return nil
}

func (c *cursor) Next() bool {
	for {
		if c.isClosed() || c.err != nil {
			return false
		}

		if c.ctxErr() != nil {
			return false
		}

		if c.remaining != nil && *c.remaining == 0 {
			return false
		}

		if c.rows.Next() {
			if scanErr := c.scanCurrent(); scanErr != nil {
				c.err = scanErr
				return false
			}

			if c.remaining != nil {
				*c.remaining--
			}

			return true
		}

		if rowsErr := c.rows.Err(); rowsErr != nil {
			c.err = dcb.StorageError(errors.Join(dcb.ErrQueryingEventsFailed, rowsErr))
			return false
		}

		if !c.subscribe {
			return false
		}

		_ = c.rows.Close()

		if !c.waitForPoll() {
			return false
		}

		if queryErr := c.runQuery(); queryErr != nil {
			c.err = queryErr
			return false
		}
	}
}

func (c *cursor) scanCurrent() error {
	var (
		position  int64
		eventType string
		data      []byte
		tagsJSON  []byte
		eventID   sql.NullString
	)

	if scanErr := c.rows.Scan(&position, &eventType, &data, &tagsJSON, &eventID); scanErr != nil {
		return dcb.StorageError(errors.Join(dcb.ErrScanningDBRowFailed, scanErr))
	}

	var tags []dcb.TagString
	if len(tagsJSON) > 0 {
		if unmarshalErr := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(tagsJSON, &tags); unmarshalErr != nil {
			return dcb.StorageError(errors.Join(dcb.ErrScanningDBRowFailed, unmarshalErr))
		}
	}

	id := uuid.Nil
	if eventID.Valid {
		parsed, parseErr := uuid.Parse(eventID.String)
		if parseErr != nil {
			return dcb.StorageError(errors.Join(dcb.ErrScanningDBRowFailed, parseErr))
		}
		id = parsed
	}

	c.current = dcb.SequencedEvent{
		Event: dcb.Event{
			EventType: dcb.EventTypeString(eventType),
			Data:      data,
			Tags:      tags,
			EventID:   id,
		},
		Position: dcb.Position(position),
	}

	c.nextFrom = c.current.Position + 1

	return nil
}

// waitForPoll sleeps one poll interval; it returns false when the context
// ends or the cursor is closed before the interval elapses.
func (c *cursor) waitForPoll() bool {
	timer := time.NewTimer(c.es.pollInterval)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-c.ctx.Done():
		c.recordCtxErr()
		return false
	case <-c.closed:
		return false
	}
}

func (c *cursor) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *cursor) ctxErr() error {
	if ctxErr := c.ctx.Err(); ctxErr != nil {
		c.recordCtxErr()
		return ctxErr
	}

	return nil
}

func (c *cursor) recordCtxErr() {
	if c.err == nil {
		c.err = c.ctx.Err()
	}
}

func (c *cursor) Event() dcb.SequencedEvent {
	return c.current
}

func (c *cursor) Err() error {
	return c.err
}

// Close ends the cursor. It is safe to call from another goroutine to
// unblock a subscribing Next waiting for the next poll.
func (c *cursor) Close() error {
	var closeErr error

	c.closeOnce.Do(func() {
		close(c.closed)

		if c.rows != nil {
			closeErr = c.rows.Close()
		}
	})

	return closeErr
}
