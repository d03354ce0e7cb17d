package embedding

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// HashingEmbedder is a local, deterministic embedder. Unigrams and
// bigrams are hashed into a fixed number of signed buckets with sublinear
// term weighting, then L2-normalised. It needs no corpus preparation and
// no network.
type HashingEmbedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
}

// NewHashingEmbedder creates a hashing embedder; dimension <= 0 selects DefaultDimension.
func NewHashingEmbedder(dimension int) *HashingEmbedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &HashingEmbedder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*`),
	}
}

func (e *HashingEmbedder) Name() string   { return "hashing" }
func (e *HashingEmbedder) Dimension() int { return e.dimension }

func (e *HashingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embedOne(t)
	}
	return out, nil
}

func (e *HashingEmbedder) embedOne(text string) []float32 {
	tokens := e.tokenPattern.FindAllString(strings.ToLower(text), -1)

	counts := make(map[string]int, len(tokens)*2)
	for i, tok := range tokens {
		counts[tok]++
		if i > 0 {
			counts[tokens[i-1]+" "+tok]++
		}
	}

	acc := make([]float64, e.dimension)
	for feature, n := range counts {
		h := xxhash.Sum64String(feature)
		bucket := h % uint64(e.dimension)
		weight := 1 + math.Log(float64(n))
		if h&(1<<63) != 0 {
			weight = -weight
		}
		acc[bucket] += weight
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	vec := make([]float32, e.dimension)
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}
