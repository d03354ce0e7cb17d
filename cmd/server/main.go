// Package main provides the HTTP and MCP server for the question bank.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/smokycigga/e-2-pi-3/internal/app"
	"github.com/smokycigga/e-2-pi-3/internal/config"
	"github.com/smokycigga/e-2-pi-3/internal/logger"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	stdio := flag.Bool("stdio", false, "serve MCP over stdin/stdout instead of HTTP")
	flag.Parse()

	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	a, err := app.New(ctx, cfg, logr)
	if err != nil {
		logr.Error("Failed to initialise", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	logr.Info("Ingesting source directory", "dir", cfg.SourceDir)
	result, err := a.Service.Rebuild(ctx)
	if err != nil {
		logr.Error("Startup ingestion failed", "error", err)
		os.Exit(1)
	}
	logr.Info("Startup ingestion complete",
		"documents", result.SuccessfulDocs,
		"failed", len(result.FailedDocs),
		"questions", result.Counts.QuestionsExtracted,
		"images", result.Counts.ImagesExtracted,
		"associations", result.Counts.AssociationsFound,
		"duration", result.Duration)

	if *stdio {
		logr.Info("Starting MCP server (stdio mode)")
		if err := a.MCPServer().Run(ctx); err != nil {
			logr.Error("MCP server error", "error", err)
			os.Exit(1)
		}
		return
	}

	srv := a.HTTPServer()
	go func() {
		<-ctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logr.Error("HTTP shutdown error", "error", err)
		}
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logr.Error("HTTP server error", "error", err)
		os.Exit(1)
	}
}
