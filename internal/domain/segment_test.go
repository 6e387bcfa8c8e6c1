package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSegments_Scenario(t *testing.T) {
	segments, err := ComputeSegments(1000, 4)
	require.NoError(t, err)

	expected := []Segment{
		{Index: 0, Start: 0, End: 249},
		{Index: 1, Start: 250, End: 499},
		{Index: 2, Start: 500, End: 749},
		{Index: 3, Start: 750, End: 999},
	}
	assert.Equal(t, expected, segments)
	assert.Equal(t, "bytes=250-499", segments[1].RangeHeader())
}

func TestComputeSegments_RemainderGoesToLast(t *testing.T) {
	segments, err := ComputeSegments(10, 3)
	require.NoError(t, err)

	require.Len(t, segments, 3)
	assert.Equal(t, int64(3), segments[0].Size())
	assert.Equal(t, int64(3), segments[1].Size())
	assert.Equal(t, int64(4), segments[2].Size())
}

func TestComputeSegments_SmallerThanConnections(t *testing.T) {
	segments, err := ComputeSegments(3, 8)
	require.NoError(t, err)

	require.Len(t, segments, 1)
	assert.Equal(t, Segment{Index: 7, Start: 0, End: 2}, segments[0])
}

func TestComputeSegments_Invalid(t *testing.T) {
	_, err := ComputeSegments(0, 4)
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = ComputeSegments(100, 0)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestComputeSegments_Partition(t *testing.T) {
	for total := int64(1); total <= 300; total += 7 {
		for n := 1; n <= 20; n++ {
			segments, err := ComputeSegments(total, n)
			require.NoError(t, err, "total=%d n=%d", total, n)
			require.LessOrEqual(t, len(segments), n)

			next := int64(0)
			lastIndex := -1
			var sum int64
			for _, seg := range segments {
				assert.True(t, seg.Valid())
				assert.Equal(t, next, seg.Start, "gap or overlap at total=%d n=%d", total, n)
				assert.Greater(t, seg.Index, lastIndex)
				next = seg.End + 1
				lastIndex = seg.Index
				sum += seg.Size()
			}
			assert.Equal(t, total, next)
			assert.Equal(t, total, sum)
		}
	}
}
