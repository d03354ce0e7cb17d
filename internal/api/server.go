// Package api serves the question bank over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/smokycigga/e-2-pi-3/internal/metrics"
	"github.com/smokycigga/e-2-pi-3/internal/service"
)

// maxUploadBytes caps a single uploaded document.
const maxUploadBytes = 64 << 20

// Config holds server configuration.
type Config struct {
	Port           int
	AllowAll       bool          // allow all CORS origins
	RequestTimeout time.Duration // zero disables the per-request timeout
	MCPPath        string        // where MCP is mounted, when MCP is set
	MCP            http.Handler
	Landing        http.Handler
	Health         http.Handler
}

// Server is the HTTP front of the service.
type Server struct {
	cfg        Config
	svc        *service.Service
	metrics    *metrics.Metrics
	logger     *slog.Logger
	router     chi.Router
	httpServer *http.Server
}

// New creates a server with all routes registered. m may be nil.
func New(cfg Config, svc *service.Service, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		svc:     svc,
		metrics: m,
		logger:  logger,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
		corsOpts.AllowCredentials = false
	}
	r.Use(cors.Handler(corsOpts))

	if s.cfg.Landing != nil {
		r.Method(http.MethodGet, "/", s.cfg.Landing)
	}
	if s.cfg.MCP != nil && s.cfg.MCPPath != "" {
		r.Handle(s.cfg.MCPPath, s.cfg.MCP)
	}
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		// Generation can take minutes; the timeout only guards the API routes.
		if s.cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.cfg.RequestTimeout))
		}
		if s.cfg.Health != nil {
			r.Method(http.MethodGet, "/health", s.cfg.Health)
		} else {
			r.Get("/health", s.handleHealth)
		}
		r.Post("/upload-pdf", s.handleUpload)
		r.Post("/retrieve-questions", s.handleRetrieve)
		r.Post("/generate-questions", s.handleGenerate)
		r.Post("/evaluate", s.handleEvaluate)
		r.Get("/stats", s.handleStats)
		r.Get("/subjects", s.handleSubjects)
	})

	return r
}

// ServeHTTP makes the server usable as a plain handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("HTTP server listening", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// observe records request counts and latency by route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveRequest(r.Method, route, status, time.Since(start))
	})
}
