package tilecache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The weak-reference cleanup path (the MVT map dropping entries once no
// style variant holds the cell) only clears after the GC actually collects
// the cell, so it has no deterministic assertion here.

type fakeBundle struct{ size int }

func (f fakeBundle) ApproxBufferSize() int { return f.size }

func TestStartLoadingTileSharesMvtCellAcrossStyles(t *testing.T) {
	tc := New[int](1_000_000)

	cellA := tc.StartLoadingTile(42, 1)
	cellB := tc.StartLoadingTile(42, 2)

	assert.Same(t, cellA, cellB, "both styles of the same tile index must share one MvtCell")
}

func TestEvictsOldTilesUnderWeight(t *testing.T) {
	const capacity = 1_000_000
	const itemSize = 100_000

	tc := New[int](capacity)
	for i := 0; i < 20; i++ {
		cell := tc.StartLoadingTile(i, 1)
		tc.StoreTile(i, 1, cell, Loaded{Bundle: fakeBundle{size: itemSize}})
	}

	assert.LessOrEqual(t, tc.Weight(), capacity, "cache weight must not exceed capacity")
	assert.LessOrEqual(t, tc.Len(), capacity/itemSize, "too many items retained")
	assert.Greater(t, tc.Len(), capacity/itemSize-2, "too few items retained")
}

func TestGetPreparedAndPacked(t *testing.T) {
	tc := New[int](1_000_000)
	cell := tc.StartLoadingTile(1, 1)

	_, _, ok := tc.GetPrepared(1, 1)
	assert.False(t, ok, "still loading, nothing prepared yet")

	bundle := fakeBundle{size: 500}
	tc.StoreTile(1, 1, cell, Loaded{Bundle: bundle})

	prepared, gotCell, ok := tc.GetPrepared(1, 1)
	require.True(t, ok)
	assert.Equal(t, bundle, prepared)
	assert.Same(t, cell, gotCell)

	_, ok = tc.GetPacked(1, 1)
	assert.False(t, ok, "not packed yet")

	tc.StoreTile(1, 1, cell, Packed{Bundle: bundle})
	packed, ok := tc.GetPacked(1, 1)
	require.True(t, ok)
	assert.Equal(t, bundle, packed)
}

func TestContains(t *testing.T) {
	tc := New[int](1_000_000)
	assert.False(t, tc.Contains(7, 1))
	tc.StartLoadingTile(7, 1)
	assert.True(t, tc.Contains(7, 1))
}

func TestMvtCellGetOrInitRunsOnce(t *testing.T) {
	cell := NewMvtCell[int]()
	calls := 0
	for i := 0; i < 3; i++ {
		v, err := cell.GetOrInit(func() (int, error) {
			calls++
			return 99, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 99, v)
	}
	assert.Equal(t, 1, calls)
}
