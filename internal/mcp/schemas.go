package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexCodebaseTool returns the tool definition for index_codebase
func indexCodebaseTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_codebase",
		Description: "Index a Go codebase with a pool of workers and merge the results into the store",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to Go project root (must contain .go files)",
				},
				"include_tests": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, keep symbols of *_test.go files",
					"default":     false,
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

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query indexing status, live progress and statistics for a Go project",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to Go project",
				},
			},
			Required: []string{"path"},
		},
	}
}

// interruptIndexingTool returns the tool definition for interrupt_indexing
func interruptIndexingTool() mcp.Tool {
	return mcp.Tool{
		Name:        "interrupt_indexing",
		Description: "Ask the running build to stop after the files currently being indexed",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
