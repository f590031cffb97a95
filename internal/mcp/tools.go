package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/codeintel/internal/api"
	"github.com/dshills/codeintel/internal/indexer"
	"github.com/dshills/codeintel/internal/retrieval"
	"github.com/dshills/codeintel/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams        = -32602 // Invalid method parameters
	ErrorCodeInternalError        = -32603 // Internal JSON-RPC error
	ErrorCodeProjectNotFound      = -32001 // Specified path does not contain a Go project
	ErrorCodeIndexingInProgress   = -32002 // Another indexing operation is already running
	ErrorCodeEmbeddingUnavailable = -32005 // The query could not be embedded
)

// handleSearchContext handles the search_context tool invocation
func (s *Server) handleSearchContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, err := parseQuery(args)
	if err != nil {
		return nil, err
	}

	resp, err := s.search.Search(ctx, query)
	if err != nil {
		return nil, searchError(err)
	}

	if resp.Partial() {
		s.logger.Warn("Partial search results", "failed", resp.FailedDocTypes())
	}
	return mcp.NewToolResultText(formatJSON(api.NewSearchResponse(resp))), nil
}

// parseQuery builds a retrieval query from tool arguments
func parseQuery(args map[string]interface{}) (retrieval.Query, error) {
	q := retrieval.Query{
		Text:  getStringDefault(args, "query", ""),
		Limit: getIntDefault(args, "limit", 0),
	}
	if strings.TrimSpace(q.Text) == "" {
		return q, newMCPError(ErrorCodeInvalidParams, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	switch v := args["doc_types"].(type) {
	case nil:
	case string:
		q.DocTypes = strings.Split(v, ",")
	case []interface{}:
		for _, item := range v {
			name, ok := item.(string)
			if !ok {
				return q, newMCPError(ErrorCodeInvalidParams, "doc_types must be strings", map[string]interface{}{
					"param": "doc_types",
					"value": item,
				})
			}
			q.DocTypes = append(q.DocTypes, name)
		}
	default:
		return q, newMCPError(ErrorCodeInvalidParams, "doc_types must be an array of strings", map[string]interface{}{
			"param": "doc_types",
		})
	}

	if raw, present := args["filters"]; present && raw != nil {
		obj, ok := raw.(map[string]interface{})
		if !ok {
			return q, newMCPError(ErrorCodeInvalidParams, "filters must be an object", map[string]interface{}{
				"param": "filters",
			})
		}
		filters, err := toFilters(obj)
		if err != nil {
			return q, newMCPError(ErrorCodeInvalidParams, err.Error(), map[string]interface{}{
				"param": "filters",
			})
		}
		q.Filters = filters
	}
	return q, nil
}

// toFilters flattens a JSON object into string filters. Arrays become
// comma separated lists.
func toFilters(obj map[string]interface{}) (types.Filters, error) {
	filters := make(types.Filters, len(obj))
	for key, raw := range obj {
		switch v := raw.(type) {
		case nil:
		case string:
			filters[key] = v
		case float64:
			filters[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			filters[key] = strconv.FormatBool(v)
		case []interface{}:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				str, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("filter %q must contain only strings", key)
				}
				parts = append(parts, str)
			}
			filters[key] = strings.Join(parts, ",")
		default:
			return nil, fmt.Errorf("filter %q has unsupported type %T", key, raw)
		}
	}
	return filters, nil
}

// searchError maps retrieval errors onto MCP error codes
func searchError(err error) error {
	switch {
	case errors.Is(err, types.ErrInvalidQuery):
		return newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
	case errors.Is(err, types.ErrEmbeddingUnavailable):
		return newMCPError(ErrorCodeEmbeddingUnavailable, "embedding unavailable", map[string]interface{}{
			"error": err.Error(),
		})
	default:
		return newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.status.Report(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"storage":  report.Storage,
		"vectors":  report.Vectors,
		"embedder": report.Embedder,
		"version":  report.Version,
	}
	if stale := report.Stale(); len(stale) > 0 {
		response["stale"] = stale
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIndexCodebase handles the index_codebase tool invocation
func (s *Server) handleIndexCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	if err := validatePath(path); err != nil {
		code := ErrorCodeInvalidParams
		if errors.Is(err, ErrNoGoFiles) {
			code = ErrorCodeProjectNotFound
		}
		return nil, newMCPError(code, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	config := s.indexDefaults
	config.Force = getBoolDefault(args, "force_reindex", false)
	config.IncludeTests = getBoolDefault(args, "include_tests", true)
	config.IncludeVendor = getBoolDefault(args, "include_vendor", false)

	stats, err := s.indexer.IndexCode(ctx, path, &config)
	if errors.Is(err, indexer.ErrIndexingInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":              true,
		"files_indexed":        stats.FilesIndexed,
		"files_skipped":        stats.FilesSkipped,
		"files_failed":         stats.FilesFailed,
		"files_removed":        stats.FilesRemoved,
		"symbols_extracted":    stats.SymbolsExtracted,
		"chunks_created":       stats.ChunksCreated,
		"chunks_deleted":       stats.ChunksDeleted,
		"embeddings_generated": stats.EmbeddingsGenerated,
		"duration_ms":          stats.Duration.Milliseconds(),
	}
	if len(stats.ErrorMessages) > 0 {
		response["errors"] = stats.ErrorMessages
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleImportRecords handles the import_records tool invocation
func (s *Server) handleImportRecords(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	records := getStringDefault(args, "records", "")
	if strings.TrimSpace(records) == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "records parameter is required", map[string]interface{}{
			"param":  "records",
			"reason": "missing or empty",
		})
	}

	stats, err := s.indexer.Import(ctx, strings.NewReader(records))
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "import failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(formatJSON(stats)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
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

// validatePath checks that path is an absolute, readable directory holding Go files
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

	hasGoFiles := false
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(p, ".go") {
			hasGoFiles = true
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return ErrPathNotReadable
	}
	if !hasGoFiles {
		return ErrNoGoFiles
	}
	return nil
}

// formatJSON formats data as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
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

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
	ErrNoGoFiles       = errors.New("directory does not contain Go files")
)
