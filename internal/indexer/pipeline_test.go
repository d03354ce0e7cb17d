package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smokycigga/e-2-pi-3/internal/associate"
	"github.com/smokycigga/e-2-pi-3/internal/content"
	"github.com/smokycigga/e-2-pi-3/internal/document"
	"github.com/smokycigga/e-2-pi-3/internal/embedding"
	"github.com/smokycigga/e-2-pi-3/internal/extract"
	"github.com/smokycigga/e-2-pi-3/internal/metrics"
	"github.com/smokycigga/e-2-pi-3/internal/storage"
)

const physicsNotes = `# Physics

1. A stone is thrown vertically upward with a speed of twenty metres per second.

2. Calculate the time taken by the stone to reach the maximum height.
`

const chemistryNotes = `# Chemistry

Q1. Balance the chemical equation for the combustion of methane in oxygen.
`

type fixture struct {
	pipeline *Pipeline
	store    *storage.Store
	embedder embedding.Embedder
}

func newFixture(t *testing.T, e embedding.Embedder) *fixture {
	t.Helper()
	if e == nil {
		e = embedding.NewHashingEmbedder(0)
	}
	images, err := content.NewStore(t.TempDir())
	require.NoError(t, err)

	store := storage.NewStore(storage.NewFlatIndex(e.Dimension()), storage.NewFlatIndex(e.Dimension()))
	p := NewPipeline(
		document.NewSegmenter(images, nil),
		extract.NewExtractor(nil),
		associate.New(e, nil),
		e,
		store,
		metrics.New(nil),
		nil,
	)
	return &fixture{pipeline: p, store: store, embedder: e}
}

func writeSources(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"physics.md": physicsNotes,
		"chem.md":    chemistryNotes,
		"broken.pdf": "not a pdf at all",
		"notes.txt":  "1. Ignored because the extension is not supported by any reader.",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestRebuildAll(t *testing.T) {
	f := newFixture(t, nil)
	dir := writeSources(t)

	result, err := f.pipeline.RebuildAll(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalDocs)
	assert.Equal(t, 2, result.SuccessfulDocs)
	require.Len(t, result.FailedDocs, 1)
	assert.Equal(t, filepath.Join(dir, "broken.pdf"), result.FailedDocs[0].Path)
	assert.NotEmpty(t, result.FailedDocs[0].Reason)

	// Two numbered physics items; the chemistry item matches both the
	// numbered and the "Q<n>." shapes.
	assert.Equal(t, 4, result.Counts.QuestionsExtracted)
	assert.Equal(t, 0, result.Counts.ImagesExtracted)
	assert.True(t, f.store.Aligned())

	stats := f.store.Stats()
	assert.Equal(t, 4, stats.TotalQuestions)
	assert.Equal(t, 2, stats.SubjectDistribution[storage.SubjectPhysics])
	assert.Equal(t, 2, stats.SubjectDistribution[storage.SubjectChemistry])

	for _, q := range f.store.Questions() {
		assert.Equal(t, 1, q.Page)
		assert.GreaterOrEqual(t, len(q.Text), extract.DefaultMinLength)
	}
}

func TestRebuildAll_IsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	dir := writeSources(t)
	ctx := context.Background()

	first, err := f.pipeline.RebuildAll(ctx, dir)
	require.NoError(t, err)
	before := f.store.Stats()

	second, err := f.pipeline.RebuildAll(ctx, dir)
	require.NoError(t, err)

	assert.Equal(t, first.Counts, second.Counts)
	assert.Equal(t, before.TotalQuestions, f.store.Stats().TotalQuestions)
	assert.Equal(t, before.SubjectDistribution, f.store.Stats().SubjectDistribution)
	assert.True(t, f.store.Aligned())
}

func TestRebuildAll_MissingDir(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.pipeline.RebuildAll(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestIngestFile_Appends(t *testing.T) {
	f := newFixture(t, nil)
	dir := writeSources(t)
	ctx := context.Background()

	counts, err := f.pipeline.IngestFile(ctx, filepath.Join(dir, "physics.md"))
	require.NoError(t, err)
	assert.Equal(t, 2, counts.QuestionsExtracted)

	counts, err = f.pipeline.IngestFile(ctx, filepath.Join(dir, "chem.md"))
	require.NoError(t, err)
	assert.Equal(t, 2, counts.QuestionsExtracted)

	assert.Equal(t, 4, f.store.NumQuestions())
	assert.True(t, f.store.Aligned())

	_, err = f.pipeline.IngestFile(ctx, filepath.Join(dir, "notes.txt"))
	assert.ErrorIs(t, err, document.ErrUnsupportedFormat)
	assert.Equal(t, 4, f.store.NumQuestions())
}

type pageDocument struct {
	pages []*document.Page
}

func (d *pageDocument) Name() string  { return "optics.pdf" }
func (d *pageDocument) NumPages() int { return len(d.pages) }
func (d *pageDocument) Close() error  { return nil }
func (d *pageDocument) Page(n int) (*document.Page, error) {
	return d.pages[n-1], nil
}

func wordsBelow(text string, box storage.BoundingBox) []document.Word {
	var words []document.Word
	x := box.X0
	for _, tok := range strings.Fields(text) {
		words = append(words, document.Word{X0: x, Y0: box.Y1 + 5, X1: x + 20, Y1: box.Y1 + 15, Text: tok})
		x += 25
	}
	return words
}

func TestIngestDocument_AssociatesImages(t *testing.T) {
	f := newFixture(t, nil)

	question := "1. A convex lens of focal length ten centimetres forms an image of a candle; find the magnification."
	box := storage.BoundingBox{X0: 100, Y0: 100, X1: 200, Y1: 200}
	words := wordsBelow(question, box)
	words = append(words, document.Word{X0: 500, Y0: 750, X1: 520, Y1: 760, Text: "footer"})

	doc := &pageDocument{pages: []*document.Page{{
		Number: 1,
		Text:   "Physics\n\n" + question,
		Words:  words,
		Images: []document.Image{
			{Index: 1, Ext: "png", Data: []byte("png"), Box: box},
			{Index: 2, Err: document.ErrUnsupportedImage},
		},
	}}}

	counts, err := f.pipeline.IngestDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, Counts{QuestionsExtracted: 1, ImagesExtracted: 1, AssociationsFound: 1}, *counts)

	images := f.store.Images()
	require.Len(t, images, 1)
	img := images[0]
	assert.Equal(t, question, img.Caption)
	assert.Equal(t, "Physics\n\n"+question, img.PageText)
	assert.Equal(t, storage.SubjectPhysics, img.Subject)
	assert.Equal(t, "optics.pdf", img.SourceDocument)
	assert.FileExists(t, img.Path)

	q := f.store.Questions()[0]
	linked, ok := f.store.FindAssociatedImage(q.ID)
	require.True(t, ok)
	assert.Equal(t, img.ID, linked.ID)

	assoc := f.store.Associations()[0]
	assert.Greater(t, assoc.SimilarityScore, associate.DefaultThreshold)
	assert.Equal(t, storage.AssociationSemantic, assoc.Kind)
	assert.True(t, f.store.Aligned())
}

type failingEmbedder struct{ embedding.Embedder }

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding service down")
}

func TestRebuildAll_AllDocumentsFailing(t *testing.T) {
	dir := writeSources(t)
	good := newFixture(t, nil)
	_, err := good.pipeline.RebuildAll(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, 4, good.store.NumQuestions())

	// Same store, broken embedder: every document fails and the store is
	// swapped to empty rather than left half-built.
	broken := NewPipeline(
		good.pipeline.segmenter,
		good.pipeline.extractor,
		good.pipeline.associator,
		failingEmbedder{embedding.NewHashingEmbedder(0)},
		good.store,
		nil,
		nil,
	)
	result, err := broken.RebuildAll(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 0, result.SuccessfulDocs)
	assert.Len(t, result.FailedDocs, 3)
	assert.Equal(t, 0, good.store.NumQuestions())
	assert.True(t, good.store.Aligned())
}

func TestImageEmbeddingText(t *testing.T) {
	img := storage.ImageRecord{Caption: "Fig 1", PageText: strings.Repeat("x", 800)}
	got := ImageEmbeddingText(img, DefaultImageContextChars)
	assert.Equal(t, "Fig 1 "+strings.Repeat("x", 500), got)

	assert.Equal(t, " page", ImageEmbeddingText(storage.ImageRecord{PageText: "page"}, 500))
}
