package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// FlatIndex is an exact in-memory index using squared Euclidean distance.
// Vectors are stored as given; nothing is normalised.
type FlatIndex struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float32
}

// NewFlatIndex creates an empty index for vectors of the given dimension.
func NewFlatIndex(dimension int) *FlatIndex {
	return &FlatIndex{dimension: dimension}
}

func (f *FlatIndex) Add(_ context.Context, vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != f.dimension {
			return fmt.Errorf("%w: vector %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(v), f.dimension)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range vectors {
		f.vectors = append(f.vectors, append([]float32(nil), v...))
	}
	return nil
}

func (f *FlatIndex) Search(_ context.Context, query []float32, k int) ([]Hit, error) {
	if len(query) != f.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(query), f.dimension)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if k <= 0 || len(f.vectors) == 0 {
		return nil, nil
	}

	hits := make([]Hit, len(f.vectors))
	for i, v := range f.vectors {
		hits[i] = Hit{Position: i, Distance: squaredL2(v, query)}
	}
	// Stable so equal distances keep insertion order.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func (f *FlatIndex) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

func (f *FlatIndex) Dimension() int { return f.dimension }

func (f *FlatIndex) Reset(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors = nil
	return nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
