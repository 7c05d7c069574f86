package dcb_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bwaidelich/umadb-go/dcb"
)

func Test_BuildReadOptions_Defaults(t *testing.T) {
	opts, err := dcb.BuildReadOptions()

	require.NoError(t, err)
	assert.Nil(t, opts.Start)
	assert.Nil(t, opts.Limit)
	assert.False(t, opts.Backwards)
	assert.False(t, opts.Subscribe)
}

func Test_BuildReadOptions_AppliesOptions(t *testing.T) {
	opts, err := dcb.BuildReadOptions(
		dcb.FromPosition(42),
		dcb.Backwards(),
		dcb.WithLimit(10),
	)

	require.NoError(t, err)
	require.NotNil(t, opts.Start)
	assert.Equal(t, dcb.Position(42), *opts.Start)
	require.NotNil(t, opts.Limit)
	assert.Equal(t, uint(10), *opts.Limit)
	assert.True(t, opts.Backwards)
}

func Test_BuildReadOptions_ReusableAcrossReads(t *testing.T) {
	limitOption := dcb.WithLimit(3)
	startOption := dcb.FromPosition(7)

	first, err := dcb.BuildReadOptions(limitOption, startOption)
	require.NoError(t, err)

	// simulate an engine counting the limit down during a read
	*first.Limit = 0
	*first.Start = 99

	second, err := dcb.BuildReadOptions(limitOption, startOption)
	require.NoError(t, err)

	require.NotNil(t, second.Limit)
	assert.Equal(t, uint(3), *second.Limit)
	require.NotNil(t, second.Start)
	assert.Equal(t, dcb.Position(7), *second.Start)
}

func Test_BuildReadOptions_RejectsBackwardsSubscribe(t *testing.T) {
	_, err := dcb.BuildReadOptions(dcb.Backwards(), dcb.Subscribe())

	assert.ErrorIs(t, err, dcb.ErrBackwardsSubscribe)
	assert.ErrorIs(t, err, dcb.ErrInvalidArgument)
}

func Test_ErrorHelpers_WrapRootErrors(t *testing.T) {
	integrity := dcb.IntegrityError(dcb.ErrAppendConditionViolated)
	assert.ErrorIs(t, integrity, dcb.ErrIntegrityViolation)
	assert.ErrorIs(t, integrity, dcb.ErrAppendConditionViolated)

	storage := dcb.StorageError(dcb.ErrQueryingEventsFailed)
	assert.ErrorIs(t, storage, dcb.ErrStorageFailure)

	invalid := dcb.InvalidArgumentError(dcb.ErrEmptyEventBatch)
	assert.ErrorIs(t, invalid, dcb.ErrInvalidArgument)
	assert.NotErrorIs(t, invalid, dcb.ErrIntegrityViolation)
}
