package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatIndex_SearchOrdersByDistance(t *testing.T) {
	idx := NewFlatIndex(2)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, [][]float32{{10, 10}, {0, 0}, {3, 4}}))

	hits, err := idx.Search(ctx, []float32{0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, 1, hits[0].Position)
	assert.Equal(t, float32(0), hits[0].Distance)
	assert.Equal(t, 2, hits[1].Position)
	assert.Equal(t, float32(25), hits[1].Distance)
	assert.Equal(t, 0, hits[2].Position)
}

func TestFlatIndex_KLargerThanSize(t *testing.T) {
	idx := NewFlatIndex(1)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, [][]float32{{1}, {2}}))

	hits, err := idx.Search(ctx, []float32{0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestFlatIndex_EmptyAndZeroK(t *testing.T) {
	idx := NewFlatIndex(3)
	ctx := context.Background()

	hits, err := idx.Search(ctx, []float32{0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, idx.Add(ctx, [][]float32{{1, 1, 1}}))
	hits, err = idx.Search(ctx, []float32{0, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestFlatIndex_AddIsAllOrNothing(t *testing.T) {
	idx := NewFlatIndex(2)
	ctx := context.Background()

	err := idx.Add(ctx, [][]float32{{1, 2}, {1, 2, 3}})
	require.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 0, idx.Len())
}

func TestFlatIndex_QueryDimensionMismatch(t *testing.T) {
	idx := NewFlatIndex(2)
	_, err := idx.Search(context.Background(), []float32{1}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestFlatIndex_Reset(t *testing.T) {
	idx := NewFlatIndex(1)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, [][]float32{{1}}))
	require.NoError(t, idx.Reset(ctx))
	assert.Equal(t, 0, idx.Len())
}

func TestFlatIndex_DoesNotNormalize(t *testing.T) {
	idx := NewFlatIndex(2)
	ctx := context.Background()
	// Same direction, different magnitude: L2 must prefer the closer one.
	require.NoError(t, idx.Add(ctx, [][]float32{{100, 0}, {1, 0}}))

	hits, err := idx.Search(ctx, []float32{2, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 1, hits[0].Position)
}
