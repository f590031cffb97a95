package mcp

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/codeintel/internal/api"
	"github.com/dshills/codeintel/internal/indexer"
)

const (
	// ServerName is the MCP server name
	ServerName = "codeintel"
)

// Indexer is the ingestion side exposed as tools
type Indexer interface {
	IndexCode(ctx context.Context, root string, config *indexer.Config) (*indexer.Statistics, error)
	Import(ctx context.Context, r io.Reader) (*indexer.ImportStats, error)
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	search  api.Searcher
	status  api.StatusReporter
	indexer Indexer
	logger  *log.Logger

	indexDefaults indexer.Config
}

// Option configures a Server
type Option func(*Server)

// WithIndexer registers the index_codebase and import_records tools
func WithIndexer(idx Indexer, defaults indexer.Config) Option {
	return func(s *Server) {
		s.indexer = idx
		s.indexDefaults = defaults
	}
}

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a new MCP server instance
func NewServer(search api.Searcher, status api.StatusReporter, version string, opts ...Option) *Server {
	s := &Server{
		search: search,
		status: status,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.registerTools()
	return s
}

// Serve runs the MCP protocol on stdio until ctx is done or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(s.logger.StandardLog(log.StandardLogOptions{ForceLevel: log.ErrorLevel}))

	s.logger.Info("Serving MCP on stdio", "indexing", s.indexer != nil)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchContextTool(), s.handleSearchContext)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)

	if s.indexer != nil {
		s.mcp.AddTool(indexCodebaseTool(), s.handleIndexCodebase)
		s.mcp.AddTool(importRecordsTool(), s.handleImportRecords)
	}
}
