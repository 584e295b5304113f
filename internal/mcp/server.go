package mcp

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/dshills/memcontext-mcp/internal/indexer"
	"github.com/dshills/memcontext-mcp/internal/notes"
	"github.com/dshills/memcontext-mcp/internal/searcher"
	"github.com/dshills/memcontext-mcp/internal/service"
)

// ServerName is the MCP server name
const ServerName = "memcontext-mcp"

// Backend is the memory index the tools operate on
type Backend interface {
	Search(ctx context.Context, req searcher.Request) (*searcher.Response, error)
	Sync(ctx context.Context, force bool) (*indexer.Statistics, error)
	Read(path string, opts notes.ReadOptions) (string, error)
	Store(ctx context.Context, path, content string) (string, *indexer.Statistics, error)
	Delete(ctx context.Context, path string) (string, *indexer.Statistics, error)
	Status(ctx context.Context) (*service.Status, error)
}

// Server wraps the MCP server with the memory backend
type Server struct {
	mcp     *server.MCPServer
	backend Backend
	logger  zerolog.Logger
}

// NewServer creates an MCP server exposing the memory tools
func NewServer(backend Backend, version string, logger zerolog.Logger) *Server {
	s := &Server{
		mcp:     server.NewMCPServer(ServerName, version, server.WithToolCapabilities(false)),
		backend: backend,
		logger:  logger.With().Str("component", "mcp").Logger(),
	}
	s.registerTools()
	return s
}

// Serve runs the MCP server on stdio until ctx is done or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchTool(), s.handleSearch)
	s.mcp.AddTool(getTool(), s.handleGet)
	s.mcp.AddTool(storeTool(), s.handleStore)
	s.mcp.AddTool(deleteTool(), s.handleDelete)
	s.mcp.AddTool(syncTool(), s.handleSync)
	s.mcp.AddTool(statusTool(), s.handleStatus)
}
