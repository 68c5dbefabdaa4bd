package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/repoindex/internal/searcher"
)

var projectIDProperty = map[string]interface{}{
	"type":        "integer",
	"description": "Numeric id of the project the index belongs to",
	"minimum":     1,
}

// indexRepositoryTool returns the tool definition for index_repository
func indexRepositoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_repository",
		Description: "Fully reindex a repository: chunk, embed and replace the stored chunks of the project",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_id": projectIDProperty,
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the repository root",
				},
				"files": map[string]interface{}{
					"type":        "array",
					"description": "Optional file list relative to path; omitted means scan the whole repository",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"model": map[string]interface{}{
					"type":        "string",
					"description": "Optional embedding model id; defaults to the configured model",
				},
			},
			Required: []string{"project_id", "path"},
		},
	}
}

// searchCodeTool returns the tool definition for search_code
func searchCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_code",
		Description: "Find the code chunks of an indexed project most similar to a natural language query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_id": projectIDProperty,
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language search query",
				},
				"k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-50)",
					"default":     searcher.DefaultK,
					"minimum":     1,
					"maximum":     searcher.MaxK,
				},
				"path_prefix": map[string]interface{}{
					"type":        "string",
					"description": "Only return chunks whose path starts with this prefix (e.g., 'internal/')",
				},
				"format": map[string]interface{}{
					"type":        "string",
					"description": "json returns structured hits, prompt returns a context block for an LLM",
					"enum":        []string{formatJSONOutput, formatPromptOutput},
					"default":     formatJSONOutput,
				},
			},
			Required: []string{"project_id", "query"},
		},
	}
}

// getAnalysisTool returns the tool definition for get_analysis
func getAnalysisTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_analysis",
		Description: "Return the repository analysis stored by the last successful index run",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_id": projectIDProperty,
			},
			Required: []string{"project_id"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query index statistics and the last index run of a project",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_id": projectIDProperty,
			},
			Required: []string{"project_id"},
		},
	}
}
