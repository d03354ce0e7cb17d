// Package main provides the examprep CLI for building and querying the question bank.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/smokycigga/e-2-pi-3/internal/app"
	"github.com/smokycigga/e-2-pi-3/internal/config"
	"github.com/smokycigga/e-2-pi-3/internal/indexer"
	"github.com/smokycigga/e-2-pi-3/internal/logger"
	"github.com/smokycigga/e-2-pi-3/internal/service"
	"github.com/smokycigga/e-2-pi-3/internal/storage"
)

var (
	configPath string
	subject    string
	topic      string
	queryCount int
	genCount   int
)

var rootCmd = &cobra.Command{
	Use:   "examprep",
	Short: "Exam question bank tool",
	Long:  "CLI tool for extracting exam questions from study PDFs, searching them and generating MCQs",
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Rebuild the question bank from the source directory",
	Long: `Clears the store and ingests every PDF and markdown file in source_dir.

This command:
1. Segments each document into pages and tags subjects
2. Extracts question candidates and page images
3. Links images to questions by caption similarity
4. Embeds questions and images and swaps in the new index

Environment variables:
  EXAMPREP_*      Configuration overrides (e.g. EXAMPREP_SOURCE_DIR)
  OPENAI_API_KEY  Needed when embedder.provider is openai`,
	RunE: runIngest,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download study material from GitHub into the source directory",
	Long: `Lists PDF and markdown files under github.path in github.owner/github.repo
and downloads the ones not already present in source_dir.

Environment variables:
  GITHUB_TOKEN  GitHub token for higher rate limits (optional)`,
	RunE: runFetch,
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Ingest the source directory and print matching questions",
	RunE:  runQuery,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Ingest the source directory and generate MCQs",
	Long: `Generates multiple-choice questions from stored candidates.

Environment variables:
  GROQ_API_KEY  Chat model API key (name set by llm.api_key_env)`,
	RunE: runGenerate,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to the YAML config file")

	for _, c := range []*cobra.Command{queryCmd, generateCmd} {
		c.Flags().StringVar(&subject, "subject", "All", "subject filter")
		c.Flags().StringVar(&topic, "topic", "", "topic to search for")
	}
	queryCmd.Flags().IntVar(&queryCount, "count", 5, "number of questions")
	generateCmd.Flags().IntVar(&genCount, "count", service.DefaultCount, "number of MCQs")

	rootCmd.AddCommand(ingestCmd, fetchCmd, queryCmd, generateCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup() (context.Context, context.CancelFunc, *app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return ctx, cancel, a, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel, a, err := setup()
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	fmt.Printf("Ingesting %s...\n", a.Config.SourceDir)
	result, err := a.Service.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("Ingestion failed: %w", err)
	}
	printRebuild(result)
	return nil
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, cancel, a, err := setup()
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	fetcher, err := a.Fetcher(ctx)
	if err != nil {
		return err
	}

	gh := a.Config.GitHub
	fmt.Printf("Fetching %s/%s:%s into %s...\n", gh.Owner, gh.Repo, gh.Path, a.Config.SourceDir)
	result, err := fetcher.Sync(ctx, a.Config.SourceDir)
	if err != nil {
		return fmt.Errorf("Fetch failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Fetch complete!")
	fmt.Printf("  Downloaded: %d\n", len(result.Downloaded))
	fmt.Printf("  Already present: %d\n", len(result.Skipped))
	if len(result.Failed) > 0 {
		fmt.Println()
		fmt.Println("Failed files:")
		for _, failed := range result.Failed {
			fmt.Printf("  - %s: %s\n", failed.Path, failed.Reason)
		}
	}
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx, cancel, a, err := setup()
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	if _, err := a.Service.Rebuild(ctx); err != nil {
		return fmt.Errorf("Ingestion failed: %w", err)
	}

	found, err := a.Service.Retrieve(ctx, storage.ParseSubject(subject), topic, queryCount)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		fmt.Println("No matching questions found.")
		return nil
	}

	for i, q := range found {
		fmt.Printf("%d. [%s] %s p.%d\n", i+1, q.Subject, q.SourceDocument, q.Page)
		fmt.Printf("   %s\n", q.Text)
		if img, ok := a.Service.FindAssociatedImage(q.ID); ok {
			fmt.Printf("   image: %s (%s)\n", img.Path, img.Caption)
		}
	}
	return nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, cancel, a, err := setup()
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	if _, err := a.Service.Rebuild(ctx); err != nil {
		return fmt.Errorf("Ingestion failed: %w", err)
	}

	req := service.GenerateRequest{Subject: subject, Count: genCount}
	if topic != "" {
		req.Topics = []string{topic}
	}

	start := time.Now()
	resp, err := a.Service.GenerateQuestions(ctx, req)
	if err != nil {
		return err
	}

	for i, q := range resp.Questions {
		fmt.Printf("%d. %s\n", i+1, q.Question)
		for j, opt := range q.Options {
			fmt.Printf("   %c. %s\n", 'A'+j, opt)
		}
		fmt.Printf("   Answer: %s  (%s p.%d)\n", q.Answer, q.SourceDocument, q.Page)
		fmt.Println()
	}
	fmt.Printf("Generated %d/%d questions in %s\n", resp.Count, genCount, time.Since(start).Round(time.Second))
	return nil
}

func printRebuild(result *indexer.RebuildResult) {
	fmt.Println()
	fmt.Println("Ingestion complete!")
	fmt.Printf("  Documents: %d/%d\n", result.SuccessfulDocs, result.TotalDocs)
	fmt.Printf("  Questions: %d\n", result.Counts.QuestionsExtracted)
	fmt.Printf("  Images: %d\n", result.Counts.ImagesExtracted)
	fmt.Printf("  Associations: %d\n", result.Counts.AssociationsFound)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Millisecond))

	if len(result.FailedDocs) > 0 {
		fmt.Println()
		fmt.Println("Failed documents:")
		for _, failed := range result.FailedDocs {
			fmt.Printf("  - %s: %s\n", failed.Path, failed.Reason)
		}
	}
}
