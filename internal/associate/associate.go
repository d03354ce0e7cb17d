// Package associate captions images from nearby words and links them to
// questions on the same page.
package associate

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/smokycigga/e-2-pi-3/internal/document"
	"github.com/smokycigga/e-2-pi-3/internal/embedding"
	"github.com/smokycigga/e-2-pi-3/internal/storage"
)

const (
	// DefaultCaptionDistance is the largest gap, in points, between a word
	// and an image for the word to join the caption.
	DefaultCaptionDistance = 100.0

	// DefaultThreshold is the similarity a question and caption must exceed.
	DefaultThreshold = 0.3
)

// GapDistance is the smallest of the four absolute differences between
// facing edges of a word and an image box.
func GapDistance(w document.Word, box storage.BoundingBox) float64 {
	return math.Min(
		math.Min(math.Abs(w.X0-box.X1), math.Abs(w.X1-box.X0)),
		math.Min(math.Abs(w.Y0-box.Y1), math.Abs(w.Y1-box.Y0)),
	)
}

// Associator builds captions and semantic links.
type Associator struct {
	embedder        embedding.Embedder
	captionDistance float64
	threshold       float64
	logger          *slog.Logger
}

// Option configures an Associator.
type Option func(*Associator)

func WithCaptionDistance(d float64) Option {
	return func(a *Associator) { a.captionDistance = d }
}

func WithThreshold(t float64) Option {
	return func(a *Associator) { a.threshold = t }
}

// New creates an associator using e to compare question and caption texts.
func New(e embedding.Embedder, logger *slog.Logger, opts ...Option) *Associator {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Associator{
		embedder:        e,
		captionDistance: DefaultCaptionDistance,
		threshold:       DefaultThreshold,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Caption joins, in reading order, every word within the caption distance
// of box. It is empty when no word qualifies.
func (a *Associator) Caption(words []document.Word, box storage.BoundingBox) string {
	var near []string
	for _, w := range words {
		if GapDistance(w, box) <= a.captionDistance {
			near = append(near, w.Text)
		}
	}
	return strings.Join(near, " ")
}

// Link compares every question with every captioned image of one page and
// returns an association for each pair scoring strictly above the
// threshold, image by image. Images without a caption never link. If the
// embedder fails, the page gets no associations.
func (a *Associator) Link(ctx context.Context, questions []storage.QuestionCandidate, images []storage.ImageRecord) []storage.Association {
	if len(questions) == 0 || len(images) == 0 {
		return nil
	}

	texts := make([]string, 0, len(questions)+len(images))
	for _, q := range questions {
		texts = append(texts, q.Text)
	}
	for _, img := range images {
		texts = append(texts, img.Caption)
	}

	vecs, err := a.embedder.Embed(ctx, texts)
	if err != nil || len(vecs) != len(texts) {
		a.logger.Warn("Failed to embed page for association",
			"document", images[0].SourceDocument, "page", images[0].Page, "error", err)
		return nil
	}
	qv, iv := vecs[:len(questions)], vecs[len(questions):]

	var out []storage.Association
	for i, img := range images {
		if strings.TrimSpace(img.Caption) == "" {
			continue
		}
		for j, q := range questions {
			if strings.TrimSpace(q.Text) == "" {
				continue
			}
			score := embedding.Cosine(qv[j], iv[i])
			if score > a.threshold {
				out = append(out, storage.Association{
					QuestionID:      q.ID,
					ImageID:         img.ID,
					SimilarityScore: score,
					Kind:            storage.AssociationSemantic,
				})
			}
		}
	}
	return out
}
