package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchContextTool returns the tool definition for search_context
func searchContextTool() mcp.Tool {
	return mcp.Tool{
		Name: "search_context",
		Description: "Search code, memories, plans and sessions with one natural language query. " +
			"Results from every doc type are ranked together by confidence.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"doc_types": map[string]interface{}{
					"type":        "array",
					"description": "Doc types to search; omit to search all",
					"items": map[string]interface{}{
						"type": "string",
						"enum": []string{"code", "memory", "plan", "session"},
					},
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results; values above the server maximum are clamped",
					"minimum":     1,
				},
				"filters": map[string]interface{}{
					"type":        "object",
					"description": "Optional filters; each searcher ignores keys it does not use",
					"properties": map[string]interface{}{
						"path": map[string]interface{}{
							"type":        "string",
							"description": "Code: file path glob (e.g. internal/*)",
						},
						"symbol_kind": map[string]interface{}{
							"type":        "string",
							"description": "Code: function, method, struct, interface, type, const or var",
						},
						"package": map[string]interface{}{
							"type":        "string",
							"description": "Code: package name",
						},
						"memory_type": map[string]interface{}{
							"type":        "string",
							"description": "Memory: memory type",
						},
						"tags": map[string]interface{}{
							"type":        "string",
							"description": "Memory: comma separated tags, any may match",
						},
						"session_id": map[string]interface{}{
							"type":        "string",
							"description": "Memory and session: session id",
						},
						"status": map[string]interface{}{
							"type":        "string",
							"description": "Plan and session: lifecycle status",
						},
						"since": map[string]interface{}{
							"type":        "string",
							"description": "RFC 3339 lower bound on creation time",
						},
						"until": map[string]interface{}{
							"type":        "string",
							"description": "RFC 3339 upper bound on creation time",
						},
					},
				},
			},
			Required: []string{"query"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report row and vector counts per doc type and the active embedding provider",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// indexCodebaseTool returns the tool definition for index_codebase
func indexCodebaseTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_codebase",
		Description: "Index a Go codebase so its declarations are searchable as code",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to Go project root",
				},
				"force_reindex": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, re-embed every declaration even when unchanged",
					"default":     false,
				},
				"include_tests": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, index *_test.go files",
					"default":     true,
				},
				"include_vendor": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, index vendor/ directory",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// importRecordsTool returns the tool definition for import_records
func importRecordsTool() mcp.Tool {
	return mcp.Tool{
		Name: "import_records",
		Description: "Import memories, plans, sessions and activities. Each line of records is one JSON object " +
			`with a "kind" of memory, plan, session or activity.`,
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"records": map[string]interface{}{
					"type":        "string",
					"description": "JSON-lines records",
				},
			},
			Required: []string{"records"},
		},
	}
}
