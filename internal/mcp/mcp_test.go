package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smokycigga/e-2-pi-3/internal/associate"
	"github.com/smokycigga/e-2-pi-3/internal/content"
	"github.com/smokycigga/e-2-pi-3/internal/document"
	"github.com/smokycigga/e-2-pi-3/internal/embedding"
	"github.com/smokycigga/e-2-pi-3/internal/extract"
	"github.com/smokycigga/e-2-pi-3/internal/indexer"
	"github.com/smokycigga/e-2-pi-3/internal/mcq"
	"github.com/smokycigga/e-2-pi-3/internal/retrieval"
	"github.com/smokycigga/e-2-pi-3/internal/retry"
	"github.com/smokycigga/e-2-pi-3/internal/service"
	"github.com/smokycigga/e-2-pi-3/internal/storage"
)

const notes = `# Physics

1. A stone is thrown vertically upward with a speed of twenty metres per second.

# Chemistry

Q1. Balance the chemical equation for the combustion of methane in oxygen.
`

type fixedCompleter struct{}

func (fixedCompleter) Complete(context.Context, string) (string, error) {
	return "Q: What is g?\nA. 9.8 m/s^2\nB. 8.9 m/s^2\nC. 1 m/s^2\nD. 0\nAnswer: A", nil
}

func newTestService(t *testing.T, withLLM bool) *service.Service {
	t.Helper()
	images, err := content.NewStore(t.TempDir())
	require.NoError(t, err)

	e := embedding.NewHashingEmbedder(0)
	store := storage.NewStore(storage.NewFlatIndex(e.Dimension()), storage.NewFlatIndex(e.Dimension()))
	pipeline := indexer.NewPipeline(
		document.NewSegmenter(images, nil),
		extract.NewExtractor(nil),
		associate.New(e, nil),
		e, store, nil, nil,
	)
	retriever := retrieval.NewRetriever(store, e, nil)

	var batcher *mcq.Batcher
	if withLLM {
		synth := mcq.NewSynthesizer(fixedCompleter{}, mcq.SynthesizerConfig{Policy: retry.Linear(1, 0, 0)}, nil)
		batcher = mcq.NewBatcher(synth, retriever, images, 0, nil, nil)
	}

	svc := service.New(store, pipeline, retriever, batcher, nil, nil, service.Options{SourceDir: t.TempDir()})
	_, _, err = svc.Upload(context.Background(), "notes.md", strings.NewReader(notes))
	require.NoError(t, err)
	return svc
}

func TestSearchQuestions(t *testing.T) {
	handler := makeSearchHandler(newTestService(t, false))
	ctx := context.Background()

	_, out, err := handler(ctx, nil, SearchQuestionsInput{Query: "methane combustion", Subject: "chemistry"})
	require.NoError(t, err)
	require.Len(t, out.Results, 2)
	assert.Equal(t, "Chemistry", out.Results[0].Subject)
	assert.Contains(t, out.Results[0].Text, "methane")
	assert.Equal(t, "notes.md", out.Results[0].SourceDocument)
	assert.False(t, out.Results[0].HasImage)
	assert.Empty(t, out.Message)

	_, out, err = handler(ctx, nil, SearchQuestionsInput{MaxResults: 2})
	require.NoError(t, err)
	assert.Len(t, out.Results, 2)

	_, out, err = handler(ctx, nil, SearchQuestionsInput{Subject: "Biology"})
	require.NoError(t, err)
	assert.Empty(t, out.Results)
	assert.NotNil(t, out.Results)
	assert.NotEmpty(t, out.Message)
}

func TestGenerateMCQs(t *testing.T) {
	handler := makeGenerateHandler(newTestService(t, true))

	_, out, err := handler(context.Background(), nil, GenerateMCQsInput{Subject: "Physics", Count: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Count)
	require.Len(t, out.Questions, 1)
	assert.Equal(t, "What is g?", out.Questions[0].Question)
	assert.Equal(t, "A", out.Questions[0].Answer)
	assert.Equal(t, "Physics", out.Questions[0].Subject)
	assert.Empty(t, out.Message)
}

func TestGenerateMCQs_NotConfigured(t *testing.T) {
	handler := makeGenerateHandler(newTestService(t, false))

	_, _, err := handler(context.Background(), nil, GenerateMCQsInput{Topic: "stone"})
	assert.Error(t, err)
}

func newFigureService(t *testing.T) *service.Service {
	t.Helper()
	e := embedding.NewHashingEmbedder(0)
	store := storage.NewStore(storage.NewFlatIndex(e.Dimension()), storage.NewFlatIndex(e.Dimension()))

	images := []storage.ImageRecord{
		{ID: "img-pulley", Caption: "Figure 2 pulley and two blocks", Page: 4, SourceDocument: "mech.pdf", Subject: storage.SubjectPhysics},
		{ID: "img-benzene", Caption: "Figure 7 benzene ring structure", Page: 9, SourceDocument: "organic.pdf", Subject: storage.SubjectChemistry},
	}
	texts := make([]string, len(images))
	for i, img := range images {
		texts[i] = img.Caption
	}
	vecs, err := e.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.NoError(t, store.Append(context.Background(), storage.Batch{Images: images, ImageVectors: vecs}))

	retriever := retrieval.NewRetriever(store, e, nil)
	return service.New(store, nil, retriever, nil, nil, nil, service.Options{})
}

func TestSearchFigures(t *testing.T) {
	handler := makeFiguresHandler(newFigureService(t))

	_, out, err := handler(context.Background(), nil, SearchFiguresInput{Query: "pulley blocks", MaxResults: 1})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "img-pulley", out.Results[0].ID)
	assert.Equal(t, "mech.pdf", out.Results[0].SourceDocument)
	assert.Equal(t, 4, out.Results[0].Page)

	_, out, err = handler(context.Background(), nil, SearchFiguresInput{Query: "pulley blocks", Subject: "Chemistry"})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "img-benzene", out.Results[0].ID)

	_, out, err = handler(context.Background(), nil, SearchFiguresInput{Query: "pulley", Subject: "Biology"})
	require.NoError(t, err)
	assert.Empty(t, out.Results)
	assert.NotEmpty(t, out.Message)

	_, _, err = handler(context.Background(), nil, SearchFiguresInput{})
	assert.Error(t, err)
}

func TestIndexStats(t *testing.T) {
	handler := makeStatsHandler(newTestService(t, false))

	_, out, err := handler(context.Background(), nil, IndexStatsInput{})
	require.NoError(t, err)
	// "Q1. ..." is also a numbered item, so the chemistry section yields two candidates.
	assert.Equal(t, 3, out.TotalQuestions)
	assert.Equal(t, 0, out.TotalImages)
	assert.Equal(t, map[string]int{"Physics": 1, "Chemistry": 2}, out.SubjectDistribution)
	assert.Equal(t, []string{"Chemistry", "Physics"}, out.Subjects)
}

func TestNewServer(t *testing.T) {
	s := NewServer(&Config{Service: newTestService(t, false)})
	assert.NotNil(t, s.MCPServer())
	assert.NotNil(t, NewHTTPHandler(s, nil))
}

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) Health(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   int
		status string
		index  string
	}{
		{"ready", nil, http.StatusOK, "healthy", "ready"},
		{"unavailable", errors.New("connection refused"), http.StatusServiceUnavailable, "unhealthy", "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(checkerFunc(func(context.Context) error { return tt.err }))
			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

			assert.Equal(t, tt.code, rec.Code)
			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, tt.index, resp.Index)
			assert.NotEmpty(t, resp.Timestamp)
		})
	}
}

func TestLandingHandler(t *testing.T) {
	h := NewLandingHandler()

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "search_questions")

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
