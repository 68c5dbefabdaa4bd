package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/dshills/repoindex/internal/indexer"
	"github.com/dshills/repoindex/internal/searcher"
	"github.com/dshills/repoindex/internal/storage"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeNotIndexed         = -32003 // Project not indexed
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

// search_code output formats
const (
	formatJSONOutput   = "json"
	formatPromptOutput = "prompt"
)

// handleIndexRepository handles the index_repository tool invocation
func (s *Server) handleIndexRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	projectID, err := requireProjectID(args)
	if err != nil {
		return nil, err
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	files, err := getStringSlice(args, "files")
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid files", map[string]interface{}{
			"param":  "files",
			"reason": err.Error(),
		})
	}

	release, ok := s.locks.TryAcquire(projectID)
	if !ok {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress for this project", map[string]interface{}{
			"project_id": projectID,
		})
	}
	defer release()

	res, err := s.indexer.IndexRepository(ctx, indexer.Request{
		ProjectID: projectID,
		Root:      path,
		Files:     files,
		Model:     getStringDefault(args, "model", ""),
	})
	if err != nil {
		code := ErrorCodeInternalError
		if errors.Is(err, indexer.ErrInvalidRequest) || errors.Is(err, indexer.ErrModelUnavailable) {
			code = ErrorCodeInvalidParams
		}
		return nil, newMCPError(code, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":             true,
		"run_id":              res.RunID,
		"files_indexed":       res.FilesIndexed,
		"chunks_written":      res.ChunksWritten,
		"chunks_replaced":     res.Deleted,
		"embedding_dimension": res.EmbeddingDimension,
		"embedding_model":     res.EmbeddingModel,
		"duration_ms":         res.Duration.Milliseconds(),
	}
	if res.Analysis != nil {
		response["primary_language"] = res.Analysis.PrimaryLanguage
		response["framework"] = res.Analysis.FrameworkName()
		response["repository_type"] = res.Analysis.RepositoryType
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchCode handles the search_code tool invocation
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	projectID, err := requireProjectID(args)
	if err != nil {
		return nil, err
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	k := getIntDefault(args, "k", searcher.DefaultK)
	if k < 1 || k > searcher.MaxK {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("k must be between 1 and %d", searcher.MaxK), map[string]interface{}{
			"param": "k",
			"value": k,
		})
	}

	format := getStringDefault(args, "format", formatJSONOutput)
	if format != formatJSONOutput && format != formatPromptOutput {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid format", map[string]interface{}{
			"param":   "format",
			"value":   format,
			"allowed": []string{formatJSONOutput, formatPromptOutput},
		})
	}

	resp, err := s.searcher.Search(ctx, searcher.Request{
		ProjectID:  projectID,
		Query:      query,
		K:          k,
		PathPrefix: getStringDefault(args, "path_prefix", ""),
	})
	if err != nil {
		code := ErrorCodeInternalError
		switch {
		case errors.Is(err, searcher.ErrEmptyQuery):
			code = ErrorCodeEmptyQuery
		case errors.Is(err, searcher.ErrInvalidK), errors.Is(err, storage.ErrDimensionMismatch):
			code = ErrorCodeInvalidParams
		}
		return nil, newMCPError(code, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if format == formatPromptOutput {
		return mcp.NewToolResultText(searcher.FormatForPrompt(resp.Hits, searcher.DefaultPromptChars)), nil
	}

	results := make([]map[string]interface{}, 0, len(resp.Hits))
	for _, h := range resp.Hits {
		results = append(results, map[string]interface{}{
			"path":       h.Path,
			"start_line": h.StartLine,
			"end_line":   h.EndLine,
			"content":    h.Content,
			"distance":   h.Distance,
		})
	}
	response := map[string]interface{}{
		"results":       results,
		"total_results": len(results),
		"model":         resp.Model,
		"duration_ms":   resp.Duration.Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetAnalysis handles the get_analysis tool invocation
func (s *Server) handleGetAnalysis(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	projectID, err := requireProjectID(args)
	if err != nil {
		return nil, err
	}

	analysis, err := s.store.LoadAnalysis(ctx, projectID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, newMCPError(ErrorCodeNotIndexed, "project not indexed. Use index_repository to index it.", map[string]interface{}{
			"project_id": projectID,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load analysis", map[string]interface{}{
			"error": err.Error(),
		})
	}

	data, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to encode analysis", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(string(data)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	projectID, err := requireProjectID(args)
	if err != nil {
		return nil, err
	}

	stats, err := s.store.Stats(ctx, projectID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"project_id":           projectID,
		"indexed":              stats.Chunks > 0,
		"indexing_in_progress": s.locks.Running(projectID),
		"statistics": map[string]interface{}{
			"files_count":         stats.Files,
			"chunks_count":        stats.Chunks,
			"embedding_dimension": stats.Dimension,
		},
	}

	run, err := s.store.LastRun(ctx, projectID)
	switch {
	case err == nil:
		lastRun := map[string]interface{}{
			"run_id":         run.ID,
			"status":         run.Status,
			"model":          run.Model,
			"files_indexed":  run.FilesIndexed,
			"chunks_written": run.ChunksWritten,
			"started_at":     run.StartedAt.UTC().Format(time.RFC3339),
		}
		if !run.FinishedAt.IsZero() {
			lastRun["finished_at"] = run.FinishedAt.UTC().Format(time.RFC3339)
		}
		if run.Error != "" {
			lastRun["error"] = run.Error
		}
		response["last_run"] = lastRun
	case !errors.Is(err, storage.ErrNotFound):
		s.logger.Warn("failed to load last index run", zap.Int64("project_id", projectID), zap.Error(err))
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// requireProjectID extracts a positive integer project_id
func requireProjectID(args map[string]interface{}) (int64, error) {
	var id int64
	switch v := args["project_id"].(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, invalidProjectID("must be an integer")
		}
		id = int64(v)
	case int:
		id = int64(v)
	case int64:
		id = v
	case nil:
		return 0, invalidProjectID("missing")
	default:
		return 0, invalidProjectID("must be an integer")
	}
	if id < 1 {
		return 0, invalidProjectID("must be positive")
	}
	return id, nil
}

func invalidProjectID(reason string) error {
	return newMCPError(ErrorCodeInvalidParams, "project_id parameter is required", map[string]interface{}{
		"param":  "project_id",
		"reason": reason,
	})
}

// validatePath checks if a path exists and is accessible
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts an optional array of strings; absent means nil
func getStringSlice(args map[string]interface{}, key string) ([]string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, errors.New("must be an array of strings")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		str, ok := item.(string)
		if !ok {
			return nil, errors.New("must be an array of strings")
		}
		out = append(out, str)
	}
	return out, nil
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
