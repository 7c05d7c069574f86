package dcb_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bwaidelich/umadb-go/dcb"
)

func Test_AppendCondition_Fingerprint_StableAcrossInputOrder(t *testing.T) {
	first := dcb.NewQuery(dcb.NewQueryItem(
		[]dcb.EventTypeString{"B", "A"},
		[]dcb.TagString{"t2", "t1"},
	))
	second := dcb.NewQuery(dcb.NewQueryItem(
		[]dcb.EventTypeString{"A", "B"},
		[]dcb.TagString{"t1", "t2"},
	))

	assert.Equal(t,
		dcb.BuildAppendCondition(first).Fingerprint(),
		dcb.BuildAppendCondition(second).Fingerprint(),
		"sanitized conditions with the same content must fingerprint identically")
}

func Test_AppendCondition_Fingerprint_DiffersPerQuery(t *testing.T) {
	one := dcb.BuildAppendCondition(dcb.NewQuery(
		dcb.NewQueryItem([]dcb.EventTypeString{"A"}, nil),
	))
	other := dcb.BuildAppendCondition(dcb.NewQuery(
		dcb.NewQueryItem([]dcb.EventTypeString{"B"}, nil),
	))

	assert.NotEqual(t, one.Fingerprint(), other.Fingerprint())
}

func Test_AppendCondition_Fingerprint_DiffersPerAfterPosition(t *testing.T) {
	query := dcb.NewQuery(dcb.NewQueryItem([]dcb.EventTypeString{"A"}, nil))

	withoutAfter := dcb.BuildAppendCondition(query)
	afterFive := dcb.BuildAppendConditionAfter(query, 5)
	afterSix := dcb.BuildAppendConditionAfter(query, 6)

	assert.NotEqual(t, withoutAfter.Fingerprint(), afterFive.Fingerprint())
	assert.NotEqual(t, afterFive.Fingerprint(), afterSix.Fingerprint())
}

func Test_AppendCondition_Fingerprint_EmptyQuery(t *testing.T) {
	condition := dcb.BuildAppendCondition(dcb.BuildQuery().MatchingAnyEvent())

	assert.NotEmpty(t, condition.Fingerprint())
	assert.Len(t, condition.Fingerprint(), 64, "fingerprint is a hex sha256 digest")
}
