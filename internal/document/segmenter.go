package document

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/smokycigga/e-2-pi-3/internal/content"
	"github.com/smokycigga/e-2-pi-3/internal/storage"
)

// SavedImage is an image written to the content store. ID is unique per
// extraction even when the same file name is ingested twice.
type SavedImage struct {
	ID    string
	Index int
	Path  string
	Box   storage.BoundingBox
}

// Segment is one page ready for question extraction and image association.
type Segment struct {
	Number  int
	Text    string
	Words   []Word
	Subject storage.Subject
	Images  []SavedImage
}

// Segmenter walks a document page by page, tags subjects and persists images.
type Segmenter struct {
	content *content.Store
	logger  *slog.Logger
}

// NewSegmenter creates a segmenter writing images to store.
func NewSegmenter(store *content.Store, logger *slog.Logger) *Segmenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Segmenter{content: store, logger: logger}
}

// Segment returns the readable pages of doc in order. A page that fails
// to extract is skipped; an image that fails to decode or save is skipped.
// Only cancellation of ctx is returned as an error.
func (s *Segmenter) Segment(ctx context.Context, doc Document) ([]Segment, error) {
	tracker := NewSubjectTracker()
	var segments []Segment

	for n := 1; n <= doc.NumPages(); n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := doc.Page(n)
		if err != nil {
			s.logger.Warn("Skipping page", "document", doc.Name(), "page", n, "error", err)
			continue
		}

		seg := Segment{
			Number:  n,
			Text:    page.Text,
			Words:   page.Words,
			Subject: tracker.Observe(page.Text),
		}

		for _, img := range page.Images {
			if img.Err != nil {
				s.logger.Warn("Skipping image", "document", doc.Name(), "page", n, "image", img.Index, "error", img.Err)
				continue
			}
			path, err := s.content.Save(doc.Name(), n, img.Index, img.Ext, img.Data)
			if err != nil {
				s.logger.Warn("Failed to save image", "document", doc.Name(), "page", n, "image", img.Index, "error", err)
				continue
			}
			seg.Images = append(seg.Images, SavedImage{
				ID:    uuid.NewString(),
				Index: img.Index,
				Path:  path,
				Box:   img.Box,
			})
		}

		s.logger.Debug("Segmented page", "document", doc.Name(), "page", n,
			"subject", seg.Subject, "words", len(seg.Words), "images", len(seg.Images))
		segments = append(segments, seg)
	}

	return segments, nil
}
