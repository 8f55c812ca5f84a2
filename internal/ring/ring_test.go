package ring_test

import (
	"testing"

	"codeberg.org/mutker/sysmond/internal/ring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendBelowCapacity(t *testing.T) {
	b := ring.New[int](4)
	b.Append(1)
	b.Append(2)

	assert.Equal(t, 2, b.Len())
	assert.Equal(t, []int{1, 2}, b.Snapshot())
}

func TestAppendEvictsOldestFIFO(t *testing.T) {
	b := ring.New[int](3)
	for i := 1; i <= 5; i++ {
		b.Append(i)
	}

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, []int{3, 4, 5}, b.Snapshot())
}

func TestNeverExceedsCapacity(t *testing.T) {
	b := ring.New[float64](60)
	for i := 0; i < 10000; i++ {
		b.Append(float64(i))
		require.LessOrEqual(t, b.Len(), 60)
	}

	snap := b.Snapshot()
	assert.Len(t, snap, 60)
	assert.Equal(t, float64(9940), snap[0], "oldest surviving entry")
	assert.Equal(t, float64(9999), snap[59])
}

func TestSnapshotIsACopy(t *testing.T) {
	b := ring.New[int](2)
	b.Append(10)
	b.Append(20)

	snap := b.Snapshot()
	snap[0] = 99

	assert.Equal(t, []int{10, 20}, b.Snapshot())
}

func TestLatest(t *testing.T) {
	b := ring.New[int](2)

	_, ok := b.Latest()
	assert.False(t, ok)

	b.Append(1)
	b.Append(2)
	b.Append(3)

	latest, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, 3, latest)
}

func TestClear(t *testing.T) {
	b := ring.New[int](2)
	b.Append(1)
	b.Clear()

	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Snapshot())

	b.Append(7)
	assert.Equal(t, []int{7}, b.Snapshot())
}
