package storage

import "context"

// Hit is one search result: the ordinal position of a stored vector and
// its squared Euclidean distance from the query.
type Hit struct {
	Position int
	Distance float32
}

// VectorIndex is an append-only nearest-neighbour index. Vectors are
// addressed by insertion position, which the Store keeps aligned with its
// metadata collections.
type VectorIndex interface {
	// Add appends vectors in order. Either all vectors are added or none.
	Add(ctx context.Context, vectors [][]float32) error
	// Search returns up to k hits ordered by ascending distance.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)
	Len() int
	Dimension() int
	// Reset drops every vector.
	Reset(ctx context.Context) error
}
