// Package mcp implements the Model Context Protocol (MCP) server for codeintel.
//
// The server exposes the retrieval engine to coding agents over stdio:
//   - search_context: one query across code, memories, plans and sessions
//   - get_status: row and vector counts per doc type
//   - index_codebase: index a Go project (when an indexer is configured)
//   - import_records: load memories, plans, sessions and activities from JSON lines
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// # Tool: search_context
//
//	Request:
//	{
//	  "query": "how are embedding requests retried",
//	  "doc_types": ["code", "memory"],
//	  "limit": 10,
//	  "filters": {"path": "internal/*", "tags": ["retry"]}
//	}
//
// The result text is the same JSON document served by GET /api/search:
// results in rank order with raw similarity, weighted score, confidence and
// doc-type metadata, plus the doc types that failed or returned nothing.
// A response with failed doc types is still a successful tool call.
//
// # Error Codes
//
//	-32602  Invalid params (empty query, unknown doc type, bad filters, bad path)
//	-32603  Internal error
//	-32001  Path does not contain Go files
//	-32002  Indexing already in progress
//	-32005  The query could not be embedded
package mcp
