// Package indexer turns source documents into stored question candidates,
// images and associations.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/smokycigga/e-2-pi-3/internal/associate"
	"github.com/smokycigga/e-2-pi-3/internal/document"
	"github.com/smokycigga/e-2-pi-3/internal/embedding"
	"github.com/smokycigga/e-2-pi-3/internal/extract"
	"github.com/smokycigga/e-2-pi-3/internal/metrics"
	"github.com/smokycigga/e-2-pi-3/internal/storage"
)

// DefaultImageContextChars is how much page text is appended to an
// image caption before embedding it.
const DefaultImageContextChars = 500

// Counts is what one document added to the store.
type Counts struct {
	QuestionsExtracted int `json:"questions_extracted"`
	ImagesExtracted    int `json:"images_extracted"`
	AssociationsFound  int `json:"associations_found"`
}

func (c *Counts) add(o Counts) {
	c.QuestionsExtracted += o.QuestionsExtracted
	c.ImagesExtracted += o.ImagesExtracted
	c.AssociationsFound += o.AssociationsFound
}

// RebuildResult contains statistics about a full rebuild.
type RebuildResult struct {
	TotalDocs      int
	SuccessfulDocs int
	Counts         Counts
	FailedDocs     []FailedDoc
	Duration       time.Duration
}

// FailedDoc represents a document that failed to ingest.
type FailedDoc struct {
	Path   string
	Reason string
}

// Pipeline runs segmentation, extraction, association, embedding and
// indexing. Ingestion jobs never overlap.
type Pipeline struct {
	segmenter         *document.Segmenter
	extractor         *extract.Extractor
	associator        *associate.Associator
	embedder          embedding.Embedder
	store             *storage.Store
	metrics           *metrics.Metrics
	logger            *slog.Logger
	imageContextChars int

	mu sync.Mutex
}

// NewPipeline creates an ingestion pipeline with the given components.
func NewPipeline(
	segmenter *document.Segmenter,
	extractor *extract.Extractor,
	associator *associate.Associator,
	embedder embedding.Embedder,
	store *storage.Store,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		segmenter:         segmenter,
		extractor:         extractor,
		associator:        associator,
		embedder:          embedder,
		store:             store,
		metrics:           m,
		logger:            logger,
		imageContextChars: DefaultImageContextChars,
	}
}

// SetImageContextChars changes how much page text joins an image caption
// for embedding.
func (p *Pipeline) SetImageContextChars(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.imageContextChars = n
}

// IngestFile opens path and appends its records to the store.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (*Counts, error) {
	doc, err := document.Open(path)
	if err != nil {
		p.metrics.DocumentIngested(false)
		return nil, err
	}
	defer doc.Close()

	return p.IngestDocument(ctx, doc)
}

// IngestDocument appends the records of an open document to the store.
func (p *Pipeline) IngestDocument(ctx context.Context, doc document.Document) (*Counts, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	batch, err := p.prepare(ctx, doc)
	if err != nil {
		p.metrics.DocumentIngested(false)
		return nil, err
	}
	if err := p.store.Append(ctx, batch); err != nil {
		p.metrics.DocumentIngested(false)
		return nil, fmt.Errorf("store: %w", err)
	}

	counts := countsOf(batch)
	p.record(counts)
	p.logger.Info("Ingested document", "document", doc.Name(),
		"questions", counts.QuestionsExtracted,
		"images", counts.ImagesExtracted,
		"associations", counts.AssociationsFound,
	)
	return &counts, nil
}

// RebuildAll ingests every supported file directly under dir and swaps
// the result into the store in one step. A document that fails is
// recorded and skipped; readers keep seeing the previous contents until
// the swap.
func (p *Pipeline) RebuildAll(ctx context.Context, dir string) (*RebuildResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	result := &RebuildResult{}

	paths, err := listSources(dir)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	result.TotalDocs = len(paths)
	p.logger.Info("Starting rebuild", "dir", dir, "documents", len(paths))

	var batches []storage.Batch
	for _, path := range paths {
		batch, err := p.prepareFile(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Warn("Failed to process document", "path", path, "error", err)
			p.metrics.DocumentIngested(false)
			result.FailedDocs = append(result.FailedDocs, FailedDoc{
				Path:   path,
				Reason: err.Error(),
			})
			continue
		}
		batches = append(batches, batch)
		result.SuccessfulDocs++
		result.Counts.add(countsOf(batch))
	}

	if err := p.store.Replace(ctx, batches); err != nil {
		return nil, fmt.Errorf("replace store contents: %w", err)
	}
	for _, b := range batches {
		p.record(countsOf(b))
	}

	result.Duration = time.Since(start)
	p.logger.Info("Rebuild complete",
		"successful", result.SuccessfulDocs,
		"failed", len(result.FailedDocs),
		"questions", result.Counts.QuestionsExtracted,
		"images", result.Counts.ImagesExtracted,
		"associations", result.Counts.AssociationsFound,
		"duration", result.Duration,
	)
	return result, nil
}

func (p *Pipeline) prepareFile(ctx context.Context, path string) (storage.Batch, error) {
	doc, err := document.Open(path)
	if err != nil {
		return storage.Batch{}, err
	}
	defer doc.Close()
	return p.prepare(ctx, doc)
}

// prepare extracts and embeds one document without touching the store.
func (p *Pipeline) prepare(ctx context.Context, doc document.Document) (storage.Batch, error) {
	segments, err := p.segmenter.Segment(ctx, doc)
	if err != nil {
		return storage.Batch{}, fmt.Errorf("segment: %w", err)
	}

	var batch storage.Batch
	for _, seg := range segments {
		questions := p.extractor.Extract(seg.Text, seg.Number, doc.Name(), seg.Subject)

		images := make([]storage.ImageRecord, 0, len(seg.Images))
		for _, img := range seg.Images {
			images = append(images, storage.ImageRecord{
				ID:             img.ID,
				Path:           img.Path,
				Caption:        p.associator.Caption(seg.Words, img.Box),
				PageText:       seg.Text,
				Page:           seg.Number,
				SourceDocument: doc.Name(),
				Subject:        seg.Subject,
				Box:            img.Box,
			})
		}

		batch.Questions = append(batch.Questions, questions...)
		batch.Images = append(batch.Images, images...)
		batch.Associations = append(batch.Associations, p.associator.Link(ctx, questions, images)...)
	}

	questionTexts := make([]string, len(batch.Questions))
	for i, q := range batch.Questions {
		questionTexts[i] = q.Text
	}
	batch.QuestionVectors, err = p.embed(ctx, questionTexts)
	if err != nil {
		return storage.Batch{}, fmt.Errorf("embed questions: %w", err)
	}

	imageTexts := make([]string, len(batch.Images))
	for i, img := range batch.Images {
		imageTexts[i] = ImageEmbeddingText(img, p.imageContextChars)
	}
	batch.ImageVectors, err = p.embed(ctx, imageTexts)
	if err != nil {
		return storage.Batch{}, fmt.Errorf("embed images: %w", err)
	}

	p.logger.Debug("Prepared document", "document", doc.Name(), "pages", len(segments),
		"questions", len(batch.Questions), "images", len(batch.Images))
	return batch, nil
}

func (p *Pipeline) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("got %d vectors for %d texts", len(vecs), len(texts))
	}
	return vecs, nil
}

func (p *Pipeline) record(c Counts) {
	p.metrics.DocumentIngested(true)
	p.metrics.Extracted(c.QuestionsExtracted, c.ImagesExtracted, c.AssociationsFound)
	p.metrics.StoreSize(p.store.NumQuestions(), p.store.NumImages())
}

// ImageEmbeddingText is the caption followed by the start of the page text.
func ImageEmbeddingText(img storage.ImageRecord, contextChars int) string {
	text := []rune(img.PageText)
	if contextChars >= 0 && len(text) > contextChars {
		text = text[:contextChars]
	}
	return img.Caption + " " + string(text)
}

func countsOf(b storage.Batch) Counts {
	return Counts{
		QuestionsExtracted: len(b.Questions),
		ImagesExtracted:    len(b.Images),
		AssociationsFound:  len(b.Associations),
	}
}

// listSources returns the supported files directly under dir, sorted by name.
func listSources(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !document.Supported(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
