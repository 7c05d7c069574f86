package dcb

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"slices"
)

// EventContentHash returns a stable hash over the content of an event:
// event type, data, and the tag set (order and duplicates are irrelevant).
// The event id itself is not part of the content; the hash feeds the batch
// idempotency key, which ties each id to the content it was committed with.
func EventContentHash(event Event) string {
	hasher := sha256.New()

	writeLengthPrefixed(hasher, []byte(event.EventType))
	writeLengthPrefixed(hasher, event.Data)

	tags := sanitizeStrings(event.Tags)
	for _, tag := range tags {
		writeLengthPrefixed(hasher, []byte(tag))
	}

	return hex.EncodeToString(hasher.Sum(nil))
}

// BatchIdempotencyKey derives the idempotency key for a conditional append
// batch: it covers every event id, every event's content hash (in batch
// order), and the condition fingerprint. Idempotency is keyed per whole
// batch, not per individual event id.
//
// The second return value is false when any event of the batch carries no
// event id; such batches are never deduplicated.
func BatchIdempotencyKey(events []Event, condition AppendCondition) (string, bool) {
	for _, event := range events {
		if !event.HasEventID() {
			return "", false
		}
	}

	hasher := sha256.New()

	for _, event := range events {
		writeLengthPrefixed(hasher, event.EventID[:])
		writeLengthPrefixed(hasher, []byte(EventContentHash(event)))
	}

	writeLengthPrefixed(hasher, []byte(condition.Fingerprint()))

	return hex.EncodeToString(hasher.Sum(nil)), true
}

// DuplicateEventIDInBatch reports whether the batch itself reuses an event id,
// which makes an append request ambiguous before it ever reaches the store.
func DuplicateEventIDInBatch(events []Event) bool {
	seen := make([]string, 0, len(events))

	for _, event := range events {
		if !event.HasEventID() {
			continue
		}

		id := event.EventID.String()
		if slices.Contains(seen, id) {
			return true
		}

		seen = append(seen, id)
	}

	return false
}

// writeLengthPrefixed writes a length prefix before the value so that
// adjacent fields cannot alias each other in the digest.
func writeLengthPrefixed(hasher interface{ Write([]byte) (int, error) }, value []byte) {
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(value)))
	_, _ = hasher.Write(length[:])
	_, _ = hasher.Write(value)
}
