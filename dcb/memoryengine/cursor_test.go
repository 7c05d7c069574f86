package memoryengine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bwaidelich/umadb-go/dcb"
	"github.com/bwaidelich/umadb-go/dcb/memoryengine"
)

func storeWithFixtureEvents(t *testing.T) *memoryengine.EventStore {
	t.Helper()

	es := memoryengine.NewEventStore()
	events := dcb.Events{
		courseDefined("c1"),             // position 1
		courseDefined("c2"),             // position 2
		studentSubscribed("c1", "s1"),   // position 3
		studentSubscribed("c2", "s1"),   // position 4
		studentSubscribed("c1", "s2"),   // position 5
	}

	_, err := es.Append(context.Background(), events, nil)
	require.NoError(t, err)

	return es
}

func positionsOf(events dcb.SequencedEvents) []dcb.Position {
	if len(events) == 0 {
		return nil
	}

	positions := make([]dcb.Position, 0, len(events))
	for _, sequenced := range events {
		positions = append(positions, sequenced.Position)
	}

	return positions
}

//nolint:funlen
func Test_Read_PositionOrderAndBounds(t *testing.T) {
	tests := []struct {
		name              string
		query             dcb.Query
		options           []dcb.ReadOption
		expectedPositions []dcb.Position
	}{
		{
			name:              "empty_query_reads_everything_in_order",
			query:             dcb.BuildQuery().MatchingAnyEvent(),
			expectedPositions: []dcb.Position{1, 2, 3, 4, 5},
		},
		{
			name:              "query_filters_by_tag",
			query:             queryForCourse("c1"),
			expectedPositions: []dcb.Position{1, 3, 5},
		},
		{
			name:              "query_filters_by_type_and_tag",
			query:             queryForCourse("c1", "StudentSubscribed"),
			expectedPositions: []dcb.Position{3, 5},
		},
		{
			name: "or_items_merge_in_position_order",
			query: dcb.BuildQuery().
				Matching().
				AnyEventTypeOf("CourseDefined").
				OrMatching().
				AllTagsOf("student:s1").
				Finalize(),
			expectedPositions: []dcb.Position{1, 2, 3, 4},
		},
		{
			name:              "from_position_is_inclusive",
			query:             dcb.BuildQuery().MatchingAnyEvent(),
			options:           []dcb.ReadOption{dcb.FromPosition(3)},
			expectedPositions: []dcb.Position{3, 4, 5},
		},
		{
			name:              "limit_counts_delivered_matches",
			query:             queryForCourse("c1"),
			options:           []dcb.ReadOption{dcb.WithLimit(2)},
			expectedPositions: []dcb.Position{1, 3},
		},
		{
			name:              "backwards_reads_descending_from_head",
			query:             dcb.BuildQuery().MatchingAnyEvent(),
			options:           []dcb.ReadOption{dcb.Backwards()},
			expectedPositions: []dcb.Position{5, 4, 3, 2, 1},
		},
		{
			name:              "backwards_start_is_exclusive",
			query:             dcb.BuildQuery().MatchingAnyEvent(),
			options:           []dcb.ReadOption{dcb.Backwards(), dcb.FromPosition(4)},
			expectedPositions: []dcb.Position{3, 2, 1},
		},
		{
			name:              "backwards_with_limit",
			query:             queryForCourse("c1"),
			options:           []dcb.ReadOption{dcb.Backwards(), dcb.WithLimit(2)},
			expectedPositions: []dcb.Position{5, 3},
		},
		{
			name:              "backwards_start_one_yields_nothing",
			query:             dcb.BuildQuery().MatchingAnyEvent(),
			options:           []dcb.ReadOption{dcb.Backwards(), dcb.FromPosition(1)},
			expectedPositions: nil,
		},
		{
			name:              "from_position_beyond_head_yields_nothing",
			query:             dcb.BuildQuery().MatchingAnyEvent(),
			options:           []dcb.ReadOption{dcb.FromPosition(100)},
			expectedPositions: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			es := storeWithFixtureEvents(t)

			cursor, err := es.Read(context.Background(), tt.query, tt.options...)
			require.NoError(t, err)

			events, err := dcb.ReadAll(cursor)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedPositions, positionsOf(events))
		})
	}
}

func Test_Read_DeliversEventContent(t *testing.T) {
	es := memoryengine.NewEventStore()
	ctx := context.Background()

	original := dcb.BuildEvent("CourseDefined", []byte(`{"cap":2}`), "course:c1", "term:2026")
	_, err := es.Append(ctx, dcb.Events{original}, nil)
	require.NoError(t, err)

	cursor, err := es.Read(ctx, dcb.BuildQuery().MatchingAnyEvent())
	require.NoError(t, err)

	events, err := dcb.ReadAll(cursor)
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.Equal(t, dcb.Position(1), events[0].Position)
	assert.Equal(t, "CourseDefined", events[0].Event.EventType)
	assert.Equal(t, []byte(`{"cap":2}`), events[0].Event.Data)
	assert.ElementsMatch(t, []dcb.TagString{"course:c1", "term:2026"}, events[0].Event.Tags)
}

func Test_Read_BoundedReadSnapshotsHeadAtCallTime(t *testing.T) {
	es := storeWithFixtureEvents(t)
	ctx := context.Background()

	cursor, err := es.Read(ctx, dcb.BuildQuery().MatchingAnyEvent())
	require.NoError(t, err)
	defer func() { _ = cursor.Close() }()

	// events appended after the read started are beyond the snapshot
	_, err = es.Append(ctx, dcb.Events{courseDefined("c9")}, nil)
	require.NoError(t, err)

	events, err := dcb.ReadAll(cursor)
	require.NoError(t, err)
	assert.Equal(t, []dcb.Position{1, 2, 3, 4, 5}, positionsOf(events))
}

func Test_Read_RejectsBackwardsSubscribe(t *testing.T) {
	es := memoryengine.NewEventStore()

	_, err := es.Read(context.Background(), dcb.BuildQuery().MatchingAnyEvent(), dcb.Backwards(), dcb.Subscribe())

	assert.ErrorIs(t, err, dcb.ErrBackwardsSubscribe)
}

func Test_Read_Subscribe_DeliversLiveEvents(t *testing.T) {
	es := memoryengine.NewEventStore()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := es.Append(ctx, dcb.Events{courseDefined("c1")}, nil)
	require.NoError(t, err)

	cursor, err := es.Read(ctx, queryForCourse("c1"), dcb.Subscribe())
	require.NoError(t, err)
	defer func() { _ = cursor.Close() }()

	delivered := make(chan dcb.SequencedEvent, 4)
	go func() {
		for cursor.Next() {
			delivered <- cursor.Event()
		}
		close(delivered)
	}()

	first := <-delivered
	assert.Equal(t, dcb.Position(1), first.Position)

	// non-matching events must not wake the cursor with a delivery
	_, err = es.Append(ctx, dcb.Events{courseDefined("c2")}, nil)
	require.NoError(t, err)

	_, err = es.Append(ctx, dcb.Events{studentSubscribed("c1", "s1")}, nil)
	require.NoError(t, err)

	second := <-delivered
	assert.Equal(t, dcb.Position(3), second.Position)
	assert.Equal(t, "StudentSubscribed", second.Event.EventType)
}

func Test_Read_Subscribe_LimitEndsTheTail(t *testing.T) {
	es := storeWithFixtureEvents(t)
	ctx := context.Background()

	cursor, err := es.Read(ctx, dcb.BuildQuery().MatchingAnyEvent(), dcb.Subscribe(), dcb.WithLimit(3))
	require.NoError(t, err)

	events, err := dcb.ReadAll(cursor)
	require.NoError(t, err)
	assert.Equal(t, []dcb.Position{1, 2, 3}, positionsOf(events))
}

func Test_Read_Subscribe_ContextCancelUnblocksNext(t *testing.T) {
	es := memoryengine.NewEventStore()
	ctx, cancel := context.WithCancel(context.Background())

	cursor, err := es.Read(ctx, dcb.BuildQuery().MatchingAnyEvent(), dcb.Subscribe())
	require.NoError(t, err)
	defer func() { _ = cursor.Close() }()

	done := make(chan struct{})
	go func() {
		for cursor.Next() { //nolint:revive
		}
		close(done)
	}()

	cancel()

	select {
	case <-done:
		assert.ErrorIs(t, cursor.Err(), context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelling the context did not unblock the subscribed cursor")
	}
}

func Test_Read_Subscribe_CloseUnblocksNext(t *testing.T) {
	es := memoryengine.NewEventStore()
	ctx := context.Background()

	cursor, err := es.Read(ctx, dcb.BuildQuery().MatchingAnyEvent(), dcb.Subscribe())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for cursor.Next() { //nolint:revive
		}
		close(done)
	}()

	require.NoError(t, cursor.Close())

	select {
	case <-done:
		assert.NoError(t, cursor.Err(), "closing is a clean termination, not an error")
	case <-time.After(5 * time.Second):
		t.Fatal("closing did not unblock the subscribed cursor")
	}
}
