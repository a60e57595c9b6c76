package mcp

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/gocontext-indexd/internal/indexer"
)

const (
	// ServerName is the MCP server name
	ServerName = "gocontext-indexd"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	indexer *indexer.Indexer
	logger  *slog.Logger
}

// NewServer creates a new MCP server that drives idx
func NewServer(idx *indexer.Indexer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcp:     server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		indexer: idx,
		logger:  logger,
	}
	s.registerTools()
	return s
}

// Serve runs the MCP protocol on stdin/stdout until ctx is done or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	return s.Listen(ctx, os.Stdin, os.Stdout)
}

// Listen runs the MCP protocol on the given streams
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, in, out)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexCodebaseTool(), s.handleIndexCodebase)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	s.mcp.AddTool(interruptIndexingTool(), s.handleInterruptIndexing)
}
