package dcb

import (
	"slices"
)

/***** Query *****/

// Query describes which events are relevant for a read or for the
// consistency boundary of an append. An event matches a Query when it
// matches at least one of its items; a Query with no items matches every
// event, which is the convention used for unconditional reads and for
// position checks that must consider the whole store.
type Query struct {
	items []QueryItem
}

// Items returns the query items in caller-supplied order.
func (q Query) Items() []QueryItem {
	return q.items
}

// IsEmpty reports whether the query matches every event.
func (q Query) IsEmpty() bool {
	return len(q.items) == 0
}

/***** QueryItem *****/

// QueryItem is a single predicate group: an event matches the item when its
// type is one of the item's event types (or the item has no event types) and
// the item's tags are a subset of the event's tags (or the item has no tags).
// An item with neither event types nor tags matches every event.
type QueryItem struct {
	eventTypes []EventTypeString
	tags       []TagString
}

// EventTypes returns the event types this item matches; empty means all types.
func (qi QueryItem) EventTypes() []EventTypeString {
	return qi.eventTypes
}

// Tags returns the tags that must all be present on a matching event.
func (qi QueryItem) Tags() []TagString {
	return qi.tags
}

/***** direct constructors *****/

// NewQueryItem creates a QueryItem from slices of event types and tags.
//
// It sanitizes the input:
//   - removing empty strings ("")
//   - sorting the values
//   - removing duplicates
func NewQueryItem(eventTypes []EventTypeString, tags []TagString) QueryItem {
	return QueryItem{
		eventTypes: sanitizeStrings(eventTypes),
		tags:       sanitizeStrings(tags),
	}
}

// NewQuery creates a Query from the given items, keeping their order.
// Called without items it creates the empty query matching every event.
func NewQuery(items ...QueryItem) Query {
	return Query{items: slices.Clone(items)}
}

func sanitizeStrings(values []string) []string {
	sanitized := slices.Clone(values)
	sanitized = slices.DeleteFunc(
		sanitized,
		func(s string) bool {
			return s == ""
		})
	slices.Sort(sanitized)
	sanitized = slices.Compact(sanitized)
	sanitized = slices.Clip(sanitized)

	if len(sanitized) == 0 {
		return nil
	}

	return sanitized
}

/***** QueryBuilder *****/

// QueryBuilder builds a generic event query to be used both for reads and
// for the fail-if-events-match side of append conditions.
// It is designed with the idea to only allow "useful" query shapes for
// consistency boundaries:
//
//   - empty query
//   - (eventType OR eventType...)
//   - (tag AND tag...)
//   - ((eventType OR eventType...) AND (tag AND tag...))
//   - (... OR ...) -> multiple QueryItem(s)
type QueryBuilder interface {
	// Matching starts a new QueryItem.
	Matching() EmptyQueryItemBuilder

	// MatchingAnyEvent directly creates the empty Query.
	MatchingAnyEvent() Query
}

type EmptyQueryItemBuilder interface {
	// AnyEventTypeOf adds one or multiple event types to the current QueryItem.
	//
	// It sanitizes the input:
	//	- removing empty event types ("")
	//	- sorting the event types
	//	- removing duplicate event types
	AnyEventTypeOf(eventType EventTypeString, eventTypes ...EventTypeString) QueryItemBuilderLackingTags

	// AllTagsOf adds one or multiple tags to the current QueryItem,
	// all of which must be present on a matching event.
	//
	// It sanitizes the input:
	//	- removing empty tags ("")
	//	- sorting the tags
	//	- removing duplicate tags
	AllTagsOf(tag TagString, tags ...TagString) QueryItemBuilderLackingEventTypes
}

type QueryItemBuilderLackingTags interface {
	// AndAllTagsOf adds one or multiple tags to the current QueryItem,
	// all of which must be present on a matching event.
	AndAllTagsOf(tag TagString, tags ...TagString) CompletedQueryItemBuilder

	// OrMatching finalizes the current QueryItem and starts a new one.
	OrMatching() EmptyQueryItemBuilder

	// Finalize returns the Query once it has at least one QueryItem with at least one event type OR one tag.
	Finalize() Query
}

type QueryItemBuilderLackingEventTypes interface {
	// AndAnyEventTypeOf adds one or multiple event types to the current QueryItem.
	AndAnyEventTypeOf(eventType EventTypeString, eventTypes ...EventTypeString) CompletedQueryItemBuilder

	// OrMatching finalizes the current QueryItem and starts a new one.
	OrMatching() EmptyQueryItemBuilder

	// Finalize returns the Query once it has at least one QueryItem with at least one event type OR one tag.
	Finalize() Query
}

type CompletedQueryItemBuilder interface {
	// OrMatching finalizes the current QueryItem and starts a new one.
	OrMatching() EmptyQueryItemBuilder

	// Finalize returns the Query once it has at least one QueryItem with at least one event type OR one tag.
	Finalize() Query
}

// queryBuilder implements all the interfaces of QueryBuilder.
type queryBuilder struct {
	query            Query
	currentQueryItem QueryItem
}

// BuildQuery creates a QueryBuilder which must eventually be finalized with
// Finalize() or MatchingAnyEvent().
func BuildQuery() QueryBuilder {
	return queryBuilder{}
}

// Matching starts a new QueryItem.
func (qb queryBuilder) Matching() EmptyQueryItemBuilder {
	qb.currentQueryItem = QueryItem{}

	return qb
}

// AnyEventTypeOf adds one or multiple event types to the current QueryItem expecting ANY of them to match.
func (qb queryBuilder) AnyEventTypeOf(
	eventType EventTypeString,
	eventTypes ...EventTypeString,
) QueryItemBuilderLackingTags {

	qb.currentQueryItem.eventTypes = append(
		qb.currentQueryItem.eventTypes,
		sanitizeStrings(append([]EventTypeString{eventType}, eventTypes...))...,
	)

	return qb
}

// AndAnyEventTypeOf adds one or multiple event types to the current QueryItem expecting ANY of them to match.
func (qb queryBuilder) AndAnyEventTypeOf(
	eventType EventTypeString,
	eventTypes ...EventTypeString,
) CompletedQueryItemBuilder {

	return qb.AnyEventTypeOf(eventType, eventTypes...)
}

// AllTagsOf adds one or multiple tags to the current QueryItem expecting ALL of them to be present.
func (qb queryBuilder) AllTagsOf(
	tag TagString,
	tags ...TagString,
) QueryItemBuilderLackingEventTypes {

	qb.currentQueryItem.tags = append(
		qb.currentQueryItem.tags,
		sanitizeStrings(append([]TagString{tag}, tags...))...,
	)

	return qb
}

// AndAllTagsOf adds one or multiple tags to the current QueryItem expecting ALL of them to be present.
func (qb queryBuilder) AndAllTagsOf(
	tag TagString,
	tags ...TagString,
) CompletedQueryItemBuilder {

	return qb.AllTagsOf(tag, tags...)
}

// OrMatching finalizes the current QueryItem and starts a new one.
func (qb queryBuilder) OrMatching() EmptyQueryItemBuilder {
	qb.query.items = append(qb.query.items, qb.currentQueryItem)
	qb.currentQueryItem = QueryItem{}

	return qb
}

// MatchingAnyEvent directly creates the empty query.
func (qb queryBuilder) MatchingAnyEvent() Query {
	return qb.query
}

// Finalize returns the Query once it has at least one QueryItem with at least one event type OR one tag.
func (qb queryBuilder) Finalize() Query {
	qb.query.items = append(qb.query.items, qb.currentQueryItem)

	return qb.query
}
