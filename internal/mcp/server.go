package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/smokycigga/e-2-pi-3/internal/service"
)

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
	svc    *service.Service
}

// Config holds server dependencies.
type Config struct {
	Service *service.Service
	Version string
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "v0.1.0"
	}
	impl := &mcp.Implementation{
		Name:    "examprep-question-bank",
		Version: version,
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_questions",
		Description: "Search exam questions extracted from the ingested study material, by topic and subject. Returns question text, source page and linked figure captions.",
	}, makeSearchHandler(cfg.Service))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_figures",
		Description: "Search figures extracted from PDF study material by caption and surrounding page text. Returns caption, source page and the stored file path.",
	}, makeFiguresHandler(cfg.Service))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_mcqs",
		Description: "Generate multiple-choice questions (four options, one answer) from stored exam questions. Requires a configured chat model.",
	}, makeGenerateHandler(cfg.Service))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_index_stats",
		Description: "Get question bank totals: questions, images, question-image links and the per-subject distribution.",
	}, makeStatsHandler(cfg.Service))

	return &Server{
		server: server,
		svc:    cfg.Service,
	}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
