// Package embedding maps text to fixed-size vectors and measures their similarity.
package embedding

import (
	"context"
	"math"
	"strings"
)

// DefaultDimension is the vector size produced by every configured backend.
const DefaultDimension = 384

// Embedder turns texts into vectors. Embedding a batch must give the same
// vectors as embedding each text on its own.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Name() string
}

// Similarity returns the cosine similarity of the embeddings of a and b.
// It returns 0 when either text is empty or embedding fails.
func Similarity(ctx context.Context, e Embedder, a, b string) float64 {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0
	}
	vecs, err := e.Embed(ctx, []string{a, b})
	if err != nil || len(vecs) != 2 {
		return 0
	}
	return Cosine(vecs[0], vecs[1])
}

// Cosine returns the cosine of the angle between a and b, or 0 when either
// vector has zero length or the sizes differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
