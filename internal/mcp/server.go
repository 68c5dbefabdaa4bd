package mcp

import (
	"context"
	"errors"
	"io"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/repoindex/internal/indexer"
	"github.com/dshills/repoindex/internal/searcher"
	"github.com/dshills/repoindex/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "repoindex"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Deps are the engine components the tools call into
type Deps struct {
	Store    storage.Store
	Indexer  *indexer.Indexer
	Searcher *searcher.Searcher
	Locks    *indexer.Locks // nil = a private lock set
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	store    storage.Store
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	locks    *indexer.Locks
	logger   *zap.Logger
}

// NewServer creates a new MCP server instance
func NewServer(deps Deps, logger *zap.Logger) (*Server, error) {
	if deps.Store == nil || deps.Indexer == nil || deps.Searcher == nil {
		return nil, errors.New("mcp server requires a store, an indexer and a searcher")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Locks == nil {
		deps.Locks = indexer.NewLocks()
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		store:    deps.Store,
		indexer:  deps.Indexer,
		searcher: deps.Searcher,
		locks:    deps.Locks,
		logger:   logger,
	}
	s.registerTools()
	return s, nil
}

// Serve runs the MCP protocol over in/out until ctx is cancelled or in is
// closed. Diagnostics go to the zap logger, never to out.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger))
	s.logger.Info("mcp server listening on stdio", zap.String("version", ServerVersion))
	return stdio.Listen(ctx, in, out)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexRepositoryTool(), s.handleIndexRepository)
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(getAnalysisTool(), s.handleGetAnalysis)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
