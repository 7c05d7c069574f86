package dcb

import (
	"slices"
)

// Matches reports whether the event satisfies this query item: the event's
// type must be one of the item's event types (an item without event types
// accepts any type) and every tag of the item must be present on the event
// (an item without tags accepts any event).
//
// Values are compared literally: case-sensitive, no normalization, empty
// strings are just strings. The check is pure and safe for concurrent use.
func (qi QueryItem) Matches(event Event) bool {
	if len(qi.eventTypes) > 0 && !slices.Contains(qi.eventTypes, event.EventType) {
		return false
	}

	for _, tag := range qi.tags {
		if !slices.Contains(event.Tags, tag) {
			return false
		}
	}

	return true
}

// Matches reports whether the event satisfies the query: true when the query
// has no items, otherwise true when at least one item matches (OR semantics).
// It short-circuits on the first matching item; the result is independent of
// item order.
func (q Query) Matches(event Event) bool {
	if len(q.items) == 0 {
		return true
	}

	for _, item := range q.items {
		if item.Matches(event) {
			return true
		}
	}

	return false
}

// MatchesAny reports whether at least one of the given events matches the
// query, short-circuiting on the first hit. It is an existence check, not a
// collection operation.
func (q Query) MatchesAny(events []Event) bool {
	for _, event := range events {
		if q.Matches(event) {
			return true
		}
	}

	return false
}
