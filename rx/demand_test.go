package rx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemandAccumulatesRequests(t *testing.T) {
	d := &demand{}
	require.NoError(t, d.request(2))
	require.NoError(t, d.request(3))
	assert.Equal(t, int64(5), d.value())

	d.take(4)
	assert.Equal(t, int64(1), d.value())
	assert.False(t, d.unbounded())
}

func TestDemandRejectsNonPositive(t *testing.T) {
	d := &demand{}
	require.NoError(t, d.request(1))

	err := d.request(0)
	require.ErrorIs(t, err, ErrIllegalDemand)
	err = d.request(-5)
	require.ErrorIs(t, err, ErrIllegalDemand)

	// counter is untouched by rejected requests
	assert.Equal(t, int64(1), d.value())
}

func TestDemandSaturatesInsteadOfOverflowing(t *testing.T) {
	d := &demand{}
	require.NoError(t, d.request(Unbounded-1))
	require.NoError(t, d.request(10))
	assert.True(t, d.unbounded())

	// once unbounded, emission no longer consumes demand
	d.take(1)
	assert.True(t, d.unbounded())
	assert.Equal(t, int64(Unbounded), d.value())
}

func TestDemandTakeNeverGoesNegative(t *testing.T) {
	d := &demand{}
	require.NoError(t, d.request(2))
	d.take(5)
	assert.Equal(t, int64(0), d.value())
}
