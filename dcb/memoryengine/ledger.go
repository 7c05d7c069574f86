package memoryengine

import (
	"sort"

	"github.com/bwaidelich/umadb-go/dcb"
)

// ledger is the append-only position ledger. It owns position assignment and
// keeps secondary posting lists (sorted position slices per tag and per event
// type) so existence checks do not have to scan the whole store.
//
// The ledger itself is not synchronized; the EventStore serializes all access.
type ledger struct {
	events []dcb.SequencedEvent
	byType map[dcb.EventTypeString][]dcb.Position
	byTag  map[dcb.TagString][]dcb.Position
}

func newLedger() ledger {
	return ledger{
		byType: make(map[dcb.EventTypeString][]dcb.Position),
		byTag:  make(map[dcb.TagString][]dcb.Position),
	}
}

// head returns the highest assigned position, or 0 for the empty ledger.
func (l *ledger) head() dcb.Position {
	return dcb.Position(len(l.events))
}

// at returns the sequenced event at the given position; the position must be
// within 1..head.
func (l *ledger) at(position dcb.Position) dcb.SequencedEvent {
	return l.events[position-1]
}

// commit assigns contiguous increasing positions to the batch, in batch
// order, and indexes the events. It returns the position of the last event.
func (l *ledger) commit(events dcb.Events) dcb.Position {
	for _, event := range events {
		position := l.head() + 1
		l.events = append(l.events, dcb.SequencedEvent{Event: event, Position: position})

		l.byType[event.EventType] = append(l.byType[event.EventType], position)

		for _, tag := range event.Tags {
			postings := l.byTag[tag]
			// batch-internal duplicate tags must not produce duplicate postings
			if len(postings) > 0 && postings[len(postings)-1] == position {
				continue
			}
			l.byTag[tag] = append(postings, position)
		}
	}

	return l.head()
}

// existsAfter reports whether any event with a position greater than after
// matches the query. It consults the posting lists and short-circuits on the
// first hit.
func (l *ledger) existsAfter(after dcb.Position, query dcb.Query) bool {
	if query.IsEmpty() {
		return l.head() > after
	}

	for _, item := range query.Items() {
		if l.itemExistsAfter(after, item) {
			return true
		}
	}

	return false
}

func (l *ledger) itemExistsAfter(after dcb.Position, item dcb.QueryItem) bool {
	switch {
	case len(item.Tags()) > 0:
		// walk the rarest tag's postings and verify the full item per candidate
		for _, position := range postingsAfter(l.shortestTagPostings(item.Tags()), after) {
			if item.Matches(l.at(position).Event) {
				return true
			}
		}

		return false

	case len(item.EventTypes()) > 0:
		// no tags to verify, membership in any type's postings is a full match
		for _, eventType := range item.EventTypes() {
			if len(postingsAfter(l.byType[eventType], after)) > 0 {
				return true
			}
		}

		return false

	default:
		return l.head() > after
	}
}

func (l *ledger) shortestTagPostings(tags []dcb.TagString) []dcb.Position {
	shortest := l.byTag[tags[0]]
	for _, tag := range tags[1:] {
		if postings := l.byTag[tag]; len(postings) < len(shortest) {
			shortest = postings
		}
	}

	return shortest
}

// postingsAfter returns the suffix of a sorted posting list with positions
// strictly greater than after.
func postingsAfter(postings []dcb.Position, after dcb.Position) []dcb.Position {
	first := sort.Search(len(postings), func(i int) bool {
		return postings[i] > after
	})

	return postings[first:]
}
