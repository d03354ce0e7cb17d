// Package retrieval finds stored question candidates by topic or subject.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/smokycigga/e-2-pi-3/internal/embedding"
	"github.com/smokycigga/e-2-pi-3/internal/storage"
)

// Retriever answers queries against a store.
type Retriever struct {
	store    *storage.Store
	embedder embedding.Embedder
	logger   *slog.Logger
}

// NewRetriever creates a retriever. The embedder must be the one the
// store's question vectors were produced with.
func NewRetriever(store *storage.Store, embedder embedding.Embedder, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{store: store, embedder: embedder, logger: logger}
}

// RetrieveRelevant embeds query, takes the min(2k, n) nearest questions by
// L2 distance and returns the first k of them whose subject matches.
// Fewer than k results is not an error.
func (r *Retriever) RetrieveRelevant(ctx context.Context, query string, subject storage.Subject, k int) ([]storage.QuestionCandidate, error) {
	n := r.store.NumQuestions()
	if k <= 0 || n == 0 {
		return nil, nil
	}

	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("failed to embed query: got %d vectors", len(vecs))
	}

	hits, err := r.store.SearchQuestions(ctx, vecs[0], min(2*k, n))
	if err != nil {
		return nil, fmt.Errorf("failed to search questions: %w", err)
	}

	out := make([]storage.QuestionCandidate, 0, k)
	for _, q := range hits {
		if len(out) == k {
			break
		}
		if q.Subject.Matches(subject) {
			out = append(out, q)
		}
	}

	r.logger.Debug("Retrieved questions", "query", query, "subject", subject,
		"searched", len(hits), "returned", len(out))
	return out, nil
}

// RetrieveFigures embeds query and returns up to k stored images whose
// caption and page text are nearest to it, restricted to subject.
func (r *Retriever) RetrieveFigures(ctx context.Context, query string, subject storage.Subject, k int) ([]storage.ImageRecord, error) {
	n := r.store.NumImages()
	if k <= 0 || n == 0 {
		return nil, nil
	}

	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("failed to embed query: got %d vectors", len(vecs))
	}

	hits, err := r.store.SearchImages(ctx, vecs[0], min(2*k, n))
	if err != nil {
		return nil, fmt.Errorf("failed to search images: %w", err)
	}

	out := make([]storage.ImageRecord, 0, k)
	for _, img := range hits {
		if len(out) == k {
			break
		}
		if img.Subject.Matches(subject) {
			out = append(out, img)
		}
	}

	r.logger.Debug("Retrieved figures", "query", query, "subject", subject,
		"searched", len(hits), "returned", len(out))
	return out, nil
}

// FilterBySubject returns the first k stored questions matching subject,
// in insertion order.
func (r *Retriever) FilterBySubject(subject storage.Subject, k int) []storage.QuestionCandidate {
	if k <= 0 {
		return nil
	}
	return r.store.FilterQuestions(subject, k)
}

// Retrieve uses vector search when topic is set and the subject scan otherwise.
func (r *Retriever) Retrieve(ctx context.Context, subject storage.Subject, topic string, k int) ([]storage.QuestionCandidate, error) {
	if strings.TrimSpace(topic) == "" {
		return r.FilterBySubject(subject, k), nil
	}
	return r.RetrieveRelevant(ctx, topic, subject, k)
}

// FindAssociatedImage returns the image of the first association recorded
// for questionID.
func (r *Retriever) FindAssociatedImage(questionID string) (storage.ImageRecord, bool) {
	return r.store.FindAssociatedImage(questionID)
}
