// Package mcp exposes the indexing engine as a Model Context Protocol server.
//
// The server speaks JSON-RPC 2.0 over stdio and registers four tools:
//   - index_repository: fully reindex a project from a repository path
//   - search_code: k-nearest chunk search over one project
//   - get_analysis: the repository analysis stored by the last index run
//   - get_status: chunk statistics, the last run and whether a run is active
//
// # Basic Usage
//
//	repoindex serve --config repoindex.yaml
//
// stdout is reserved for protocol frames; all logging goes to the zap logger,
// which writes to stderr.
//
// # Tool: index_repository
//
//	Request:
//	{
//	  "name": "index_repository",
//	  "arguments": {
//	    "project_id": 7,
//	    "path": "/srv/repos/shop",
//	    "files": ["app/main.py"],
//	    "model": "nomic-embed-text"
//	  }
//	}
//
//	Response:
//	{
//	  "indexed": true,
//	  "run_id": "5c0c7c4e-...",
//	  "files_indexed": 42,
//	  "chunks_written": 318,
//	  "chunks_replaced": 301,
//	  "embedding_dimension": 768,
//	  "embedding_model": "nomic-embed-text",
//	  "primary_language": "python",
//	  "framework": "fastapi",
//	  "repository_type": "Python Backend",
//	  "duration_ms": 5120
//	}
//
// Only one run per project may be active; a second call fails with
// -32002 until the first returns.
//
// # Tool: search_code
//
//	Request:
//	{
//	  "name": "search_code",
//	  "arguments": {
//	    "project_id": 7,
//	    "query": "where are orders persisted",
//	    "k": 5,
//	    "path_prefix": "app/",
//	    "format": "json"
//	  }
//	}
//
// With "format": "prompt" the result is a single text block of
// "=== path:start-end (dist=0.1234) ===" sections ready for an LLM prompt.
//
// # Error Handling
//
// Errors are returned as *MCPError values carrying a JSON-RPC code:
//   - -32602: invalid params
//   - -32603: internal error
//   - -32002: indexing in progress
//   - -32003: project not indexed
//   - -32004: empty query
package mcp
