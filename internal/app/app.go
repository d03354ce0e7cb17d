// Package app builds the object graph shared by the server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/smokycigga/e-2-pi-3/internal/api"
	"github.com/smokycigga/e-2-pi-3/internal/associate"
	"github.com/smokycigga/e-2-pi-3/internal/config"
	"github.com/smokycigga/e-2-pi-3/internal/content"
	"github.com/smokycigga/e-2-pi-3/internal/document"
	"github.com/smokycigga/e-2-pi-3/internal/embedding"
	"github.com/smokycigga/e-2-pi-3/internal/extract"
	ghclient "github.com/smokycigga/e-2-pi-3/internal/github"
	"github.com/smokycigga/e-2-pi-3/internal/indexer"
	"github.com/smokycigga/e-2-pi-3/internal/llm"
	"github.com/smokycigga/e-2-pi-3/internal/logger"
	mcpserver "github.com/smokycigga/e-2-pi-3/internal/mcp"
	"github.com/smokycigga/e-2-pi-3/internal/mcq"
	"github.com/smokycigga/e-2-pi-3/internal/metrics"
	"github.com/smokycigga/e-2-pi-3/internal/retrieval"
	"github.com/smokycigga/e-2-pi-3/internal/retry"
	"github.com/smokycigga/e-2-pi-3/internal/service"
	"github.com/smokycigga/e-2-pi-3/internal/storage"
)

// App holds the wired components.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Embedder  embedding.Embedder
	Store     *storage.Store
	Content   *content.Store
	Pipeline  *indexer.Pipeline
	Retriever *retrieval.Retriever
	Batcher   *mcq.Batcher // nil without a chat API key
	Service   *service.Service

	qdrant *storage.QdrantStorage
}

// New wires every component from cfg. A nil logger means slog.Default().
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	if err := os.MkdirAll(cfg.SourceDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create source dir: %w", err)
	}
	images, err := content.NewStore(cfg.ImageDir)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	embedder, err := newEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Logger:   log,
		Metrics:  m,
		Embedder: embedder,
		Content:  images,
	}

	if err := a.buildStore(ctx); err != nil {
		return nil, err
	}

	matchers := extract.DefaultMatchers()
	a.Pipeline = indexer.NewPipeline(
		document.NewSegmenter(images, logger.WithComponent(log, "segmenter")),
		extract.NewExtractorWith(matchers, cfg.Extraction.MinCandidateLength, logger.WithComponent(log, "extract")),
		associate.New(embedder, logger.WithComponent(log, "associate"),
			associate.WithCaptionDistance(cfg.Extraction.CaptionDistance),
			associate.WithThreshold(cfg.Extraction.AssociationThreshold),
		),
		embedder, a.Store, m, logger.WithComponent(log, "indexer"),
	)
	a.Pipeline.SetImageContextChars(cfg.Extraction.ImageContextChars)
	a.Retriever = retrieval.NewRetriever(a.Store, embedder, logger.WithComponent(log, "retrieval"))

	if key := cfg.LLM.APIKey(); key != "" {
		chat, err := llm.NewChatClient(llm.ChatConfig{
			APIKey:      key,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     cfg.LLM.Timeout,
		})
		if err != nil {
			return nil, err
		}
		synth := mcq.NewSynthesizer(chat, mcq.SynthesizerConfig{
			MinTextLength: cfg.Generation.MinTextLength,
			PromptChars:   cfg.Generation.PromptChars,
			Policy:        retry.Linear(cfg.LLM.MaxAttempts, cfg.LLM.RateLimitBackoff, cfg.LLM.TransientBackoff),
		}, logger.WithComponent(log, "synthesizer"))
		a.Batcher = mcq.NewBatcher(synth, a.Retriever, images, cfg.LLM.CallDelay, m, logger.WithComponent(log, "batcher"))
	} else {
		log.Warn("No chat API key set; question generation disabled", "env", cfg.LLM.APIKeyEnv)
	}

	opts := service.Options{
		SourceDir:    cfg.SourceDir,
		DefaultCount: cfg.Generation.DefaultCount,
		MaxCount:     cfg.Generation.MaxCount,
		PoolFactor:   cfg.Generation.PoolFactor,
	}
	if a.qdrant != nil {
		opts.Health = a.qdrant.Health
	}
	a.Service = service.New(a.Store, a.Pipeline, a.Retriever, a.Batcher, m, logger.WithComponent(log, "service"), opts)

	return a, nil
}

func newEmbedder(cfg config.EmbedderConfig) (embedding.Embedder, error) {
	switch cfg.Provider {
	case "hashing":
		return embedding.NewHashingEmbedder(cfg.Dimension), nil
	case "openai":
		client, err := embedding.NewClient(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding client: %w", err)
		}
		return embedding.NewOpenAIEmbedder(client, cfg.Model, cfg.Dimension, cfg.BatchSize), nil
	case "ollama":
		return embedding.NewOllamaEmbedder(cfg.Model, cfg.Dimension, cfg.BaseURL), nil
	}
	return nil, fmt.Errorf("unknown embedder provider %q", cfg.Provider)
}

func (a *App) buildStore(ctx context.Context) error {
	dim := a.Embedder.Dimension()
	if a.Config.Index.Backend != "qdrant" {
		a.Store = storage.NewStore(storage.NewFlatIndex(dim), storage.NewFlatIndex(dim))
		return nil
	}

	q, err := storage.NewQdrantStorage(a.Config.Index.QdrantHost, a.Config.Index.QdrantPort)
	if err != nil {
		return err
	}
	prefix := a.Config.Index.CollectionPrefix
	questions, err := q.Index(ctx, prefix+"_questions", dim)
	if err != nil {
		q.Close()
		return err
	}
	imgs, err := q.Index(ctx, prefix+"_images", dim)
	if err != nil {
		q.Close()
		return err
	}
	a.qdrant = q
	a.Store = storage.NewStore(questions, imgs)
	a.Logger.Info("Using Qdrant index", "host", a.Config.Index.QdrantHost, "port", a.Config.Index.QdrantPort, "prefix", prefix)
	return nil
}

// HTTPServer builds the API server with the MCP endpoint mounted when enabled.
func (a *App) HTTPServer() *api.Server {
	cfg := api.Config{
		Port:           a.Config.HTTP.Port,
		AllowAll:       a.Config.HTTP.AllowAllOrigins,
		RequestTimeout: a.Config.HTTP.RequestTimeout,
		Landing:        mcpserver.NewLandingHandler(),
		Health:         mcpserver.NewHealthHandler(a.Service),
	}
	if a.Config.MCP.Enabled {
		cfg.MCPPath = a.Config.MCP.Path
		cfg.MCP = mcpserver.NewHTTPHandler(a.MCPServer(), &mcpserver.HTTPHandlerOptions{Stateless: true})
	}
	return api.New(cfg, a.Service, a.Metrics, logger.WithComponent(a.Logger, "api"))
}

// MCPServer builds the MCP tool server.
func (a *App) MCPServer() *mcpserver.Server {
	return mcpserver.NewServer(&mcpserver.Config{Service: a.Service})
}

// Fetcher builds the GitHub material fetcher. GITHUB_TOKEN authenticates
// when set.
func (a *App) Fetcher(ctx context.Context) (*ghclient.Fetcher, error) {
	gh := a.Config.GitHub
	if gh.Owner == "" || gh.Repo == "" {
		return nil, errors.New("github.owner and github.repo must be set")
	}
	client, err := ghclient.NewClient(ctx, os.Getenv("GITHUB_TOKEN"))
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}
	return ghclient.NewFetcher(client, gh.Owner, gh.Repo, gh.Path, logger.WithComponent(a.Logger, "github")), nil
}

// Handler is the full HTTP surface, for tests and embedding.
func (a *App) Handler() http.Handler {
	return a.HTTPServer()
}

// Close releases the index backend connection.
func (a *App) Close() error {
	if a.qdrant != nil {
		return a.qdrant.Close()
	}
	return nil
}
