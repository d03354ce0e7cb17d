// Package service is the boundary between the request surfaces (HTTP,
// MCP, CLI) and the ingestion and retrieval core.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/smokycigga/e-2-pi-3/internal/apperrors"
	"github.com/smokycigga/e-2-pi-3/internal/document"
	"github.com/smokycigga/e-2-pi-3/internal/evaluation"
	"github.com/smokycigga/e-2-pi-3/internal/indexer"
	"github.com/smokycigga/e-2-pi-3/internal/mcq"
	"github.com/smokycigga/e-2-pi-3/internal/metrics"
	"github.com/smokycigga/e-2-pi-3/internal/retrieval"
	"github.com/smokycigga/e-2-pi-3/internal/storage"
)

// Generation limits.
const (
	DefaultCount  = 10
	MaxCount      = 25
	PoolFactor    = 3
	sourcePreview = 200
)

// Options tunes a Service. Zero values select the defaults.
type Options struct {
	SourceDir    string
	DefaultCount int
	MaxCount     int
	PoolFactor   int
	// Health reports whether the vector index backend is reachable.
	Health func(ctx context.Context) error
}

// Service exposes the core operations.
type Service struct {
	store     *storage.Store
	pipeline  *indexer.Pipeline
	retriever *retrieval.Retriever
	batcher   *mcq.Batcher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	opts      Options
}

// New creates a service. batcher may be nil when no chat model is configured.
func New(
	store *storage.Store,
	pipeline *indexer.Pipeline,
	retriever *retrieval.Retriever,
	batcher *mcq.Batcher,
	m *metrics.Metrics,
	logger *slog.Logger,
	opts Options,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DefaultCount <= 0 {
		opts.DefaultCount = DefaultCount
	}
	if opts.MaxCount <= 0 {
		opts.MaxCount = MaxCount
	}
	if opts.PoolFactor <= 0 {
		opts.PoolFactor = PoolFactor
	}
	return &Service{
		store:     store,
		pipeline:  pipeline,
		retriever: retriever,
		batcher:   batcher,
		metrics:   m,
		logger:    logger,
		opts:      opts,
	}
}

// SourceDir is where uploads are written and rebuilds read from.
func (s *Service) SourceDir() string { return s.opts.SourceDir }

// Ingest appends one document to the store.
func (s *Service) Ingest(ctx context.Context, path string) (*indexer.Counts, error) {
	counts, err := s.pipeline.IngestFile(ctx, path)
	if err != nil {
		if errors.Is(err, document.ErrUnsupportedFormat) || errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.Wrap(err, apperrors.ErrInvalidInput, http.StatusBadRequest)
		}
		return nil, fmt.Errorf("ingest %s: %w", filepath.Base(path), err)
	}
	return counts, nil
}

// Upload writes r into the source directory under the base of name and
// ingests it.
func (s *Service) Upload(ctx context.Context, name string, r io.Reader) (*indexer.Counts, string, error) {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return nil, "", apperrors.Invalid("no file selected")
	}
	if !document.Supported(base) {
		return nil, "", apperrors.Invalid("unsupported file type: %s", base)
	}
	if s.opts.SourceDir == "" {
		return nil, "", fmt.Errorf("source directory not configured")
	}

	path := filepath.Join(s.opts.SourceDir, base)
	f, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("save upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return nil, "", fmt.Errorf("save upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, "", fmt.Errorf("save upload: %w", err)
	}
	s.logger.Info("Saved upload", "path", path)

	counts, err := s.Ingest(ctx, path)
	if err != nil {
		return nil, path, err
	}
	return counts, path, nil
}

// Rebuild clears the store and ingests the whole source directory.
func (s *Service) Rebuild(ctx context.Context) (*indexer.RebuildResult, error) {
	if s.opts.SourceDir == "" {
		return nil, fmt.Errorf("source directory not configured")
	}
	return s.pipeline.RebuildAll(ctx, s.opts.SourceDir)
}

// Retrieve returns up to count candidates: nearest to topic when topic is
// set, else the first stored ones for subject.
func (s *Service) Retrieve(ctx context.Context, subject storage.Subject, topic string, count int) ([]storage.QuestionCandidate, error) {
	if count <= 0 {
		return nil, apperrors.Invalid("count must be positive, got %d", count)
	}

	start := time.Now()
	mode := metrics.ModeSubject
	if strings.TrimSpace(topic) != "" {
		mode = metrics.ModeVector
	}

	out, err := s.retriever.Retrieve(ctx, subject, topic, count)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	s.metrics.ObserveRetrieval(mode, time.Since(start))
	return out, nil
}

// SearchFigures returns up to count stored images nearest to query.
func (s *Service) SearchFigures(ctx context.Context, subject storage.Subject, query string, count int) ([]storage.ImageRecord, error) {
	if count <= 0 {
		return nil, apperrors.Invalid("count must be positive, got %d", count)
	}
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.Invalid("query is required")
	}

	start := time.Now()
	out, err := s.retriever.RetrieveFigures(ctx, query, subject, count)
	if err != nil {
		return nil, fmt.Errorf("search figures: %w", err)
	}
	s.metrics.ObserveRetrieval(metrics.ModeFigure, time.Since(start))
	return out, nil
}

// FindAssociatedImage returns the first image linked to questionID.
func (s *Service) FindAssociatedImage(questionID string) (storage.ImageRecord, bool) {
	return s.retriever.FindAssociatedImage(questionID)
}

// SynthesizeBatch turns ranked candidates into at most count MCQs.
func (s *Service) SynthesizeBatch(ctx context.Context, candidates []storage.QuestionCandidate, count int) ([]mcq.Generated, error) {
	if s.batcher == nil {
		return nil, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "question generation is not configured")
	}
	return s.batcher.SynthesizeBatch(ctx, candidates, count)
}

// Stats summarises the store.
func (s *Service) Stats() storage.Stats {
	return s.store.Stats()
}

// Subjects lists the subjects present in the store.
func (s *Service) Subjects() []storage.Subject {
	return s.store.Subjects()
}

// Evaluate scores answers against generated questions.
func (s *Service) Evaluate(questions []evaluation.Question, answers []string) (*evaluation.Result, error) {
	res, err := evaluation.Score(questions, answers)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInvalidInput, http.StatusBadRequest)
	}
	return res, nil
}

// Health reports whether the service can answer queries.
func (s *Service) Health(ctx context.Context) error {
	if !s.store.Aligned() {
		return errors.New("index and metadata out of step")
	}
	if s.opts.Health != nil {
		if err := s.opts.Health(ctx); err != nil {
			return apperrors.Wrap(err, apperrors.ErrUnavailable, http.StatusServiceUnavailable)
		}
	}
	return nil
}
