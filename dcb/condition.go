package dcb

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// AppendCondition defines a consistency boundary for an append: the append
// must be rejected when any committed event with a position greater than
// After matches FailIfEventsMatch. A nil After means no matching event may
// exist at all, i.e. the check runs from the very first position.
//
// While its properties are exported, it should only be constructed with the
// supplied factory methods:
//   - BuildAppendCondition
//   - BuildAppendConditionAfter
type AppendCondition struct {
	FailIfEventsMatch Query
	After             *Position
}

// BuildAppendCondition is a factory method for AppendCondition without a
// position constraint: the query must not match any event in the store.
func BuildAppendCondition(failIfEventsMatch Query) *AppendCondition {
	return &AppendCondition{FailIfEventsMatch: failIfEventsMatch}
}

// BuildAppendConditionAfter is a factory method for AppendCondition checking
// only events committed after the given position.
func BuildAppendConditionAfter(failIfEventsMatch Query, after Position) *AppendCondition {
	return &AppendCondition{FailIfEventsMatch: failIfEventsMatch, After: &after}
}

// conditionDocument is the canonical serialization shape for fingerprints.
type conditionDocument struct {
	Items []conditionItemDocument `json:"items"`
	After *Position               `json:"after"`
}

type conditionItemDocument struct {
	EventTypes []EventTypeString `json:"event_types"`
	Tags       []TagString       `json:"tags"`
}

// Fingerprint returns a stable hash identifying this condition, used to
// scope idempotency keys to "the same append condition". Constructors
// sanitize event types and tags (sorted, deduplicated), so equal conditions
// produce equal fingerprints regardless of input order within an item.
func (c AppendCondition) Fingerprint() string {
	doc := conditionDocument{
		Items: make([]conditionItemDocument, 0, len(c.FailIfEventsMatch.items)),
		After: c.After,
	}

	for _, item := range c.FailIfEventsMatch.items {
		doc.Items = append(doc.Items, conditionItemDocument{
			EventTypes: item.eventTypes,
			Tags:       item.tags,
		})
	}

	serialized, marshalErr := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(doc)
	if marshalErr != nil {
		// The document only contains strings and an optional integer,
		// marshaling it cannot fail.
		panic(fmt.Sprintf("marshaling append condition fingerprint document: %v", marshalErr))
	}

	digest := sha256.Sum256(serialized)

	return hex.EncodeToString(digest[:])
}
