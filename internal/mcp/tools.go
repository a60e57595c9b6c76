package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/gocontext-indexd/internal/indexer"
	"github.com/dshills/gocontext-indexd/internal/storage"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
)

// maxReportedErrors caps the error records included in a tool response
const maxReportedErrors = 5

// handleIndexCodebase handles the index_codebase tool invocation
func (s *Server) handleIndexCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	scope := indexer.Scope{
		IncludeTests:  getBoolDefault(args, "include_tests", s.indexer.DefaultScope().IncludeTests),
		IncludeVendor: getBoolDefault(args, "include_vendor", s.indexer.DefaultScope().IncludeVendor),
	}

	stats, err := s.indexer.IndexProjectWithScope(ctx, path, scope)
	if errors.Is(err, indexer.ErrIndexingInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "another indexing operation is already running", nil)
	}
	if err != nil && stats == nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":           !stats.Interrupted,
		"interrupted":       stats.Interrupted,
		"files_queued":      stats.FilesQueued,
		"files_indexed":     stats.FilesIndexed,
		"bundles_merged":    stats.BundlesMerged,
		"symbols_extracted": stats.SymbolsExtracted,
		"errors_recorded":   stats.ErrorsRecorded,
		"crashed_files":     stats.CrashedFiles,
		"failed_merges":     stats.FailedMerges,
		"duration_ms":       stats.Duration.Milliseconds(),
	}
	if err != nil {
		response["error"] = err.Error()
	}

	if stats.ErrorsRecorded > 0 {
		records, listErr := s.indexer.ProjectErrors(ctx, path, maxReportedErrors)
		if listErr == nil && len(records) > 0 {
			messages := make([]string, 0, len(records))
			for _, rec := range records {
				messages = append(messages, fmt.Sprintf("%s:%d:%d: %s", rec.FilePath, rec.Line, rec.Column, rec.Message))
			}
			response["errors"] = messages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	response := map[string]interface{}{
		"path":     path,
		"indexing": s.progressReport(),
	}

	status, err := s.indexer.ProjectStatus(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		response["indexed"] = false
		response["message"] = "Project not indexed. Use index_codebase tool to index this project."
		return mcp.NewToolResultText(formatJSON(response)), nil
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	project := status.Project
	response["indexed"] = true
	response["project"] = map[string]interface{}{
		"module_name":     project.ModuleName,
		"index_version":   project.IndexVersion,
		"last_indexed_at": project.LastIndexedAt.Format(time.RFC3339),
	}
	response["statistics"] = map[string]interface{}{
		"files_count":   status.FilesCount,
		"symbols_count": status.SymbolsCount,
		"errors_count":  status.ErrorsCount,
		"fatal_count":   status.FatalCount,
	}
	if b := status.LastBuild; b != nil {
		response["last_build"] = map[string]interface{}{
			"status":         string(b.Status),
			"started_at":     b.StartedAt.Format(time.RFC3339),
			"files_queued":   b.FilesQueued,
			"bundles_merged": b.BundlesMerged,
			"crashed_files":  b.CrashedFiles,
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleInterruptIndexing handles the interrupt_indexing tool invocation
func (s *Server) handleInterruptIndexing(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	outcome := s.indexer.Interrupt()
	s.logger.Info("interrupt requested", "outcome", outcome.String())

	switch outcome {
	case indexer.InterruptNoBuild:
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"running":     false,
			"interrupted": false,
			"message":     "No indexing operation is running.",
		})), nil
	case indexer.InterruptIgnored:
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"running":     true,
			"interrupted": false,
			"message":     "Interrupt ignored while a confirmation dialog is open.",
		})), nil
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"running":     true,
		"interrupted": true,
	})), nil
}

// progressReport summarises the live progress of the running build
func (s *Server) progressReport() map[string]interface{} {
	tracker := s.indexer.Tracker()
	snap := tracker.Snapshot()
	return map[string]interface{}{
		"running":       tracker.Indexing(),
		"indexed_count": snap.IndexedCount,
		"total_count":   snap.TotalCount,
		"percent":       snap.Percent,
		"in_flight":     snap.InFlight,
	}
}

// requirePath extracts and validates the path parameter
func requirePath(args map[string]interface{}) (string, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(path); err != nil {
		return "", newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}
	return path, nil
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

// validatePath checks if a path exists and is accessible
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	// Check if path is absolute
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	// Check if path exists
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	// Check if it's a directory
	if !info.IsDir() {
		return ErrNotDirectory
	}

	// Check if directory is readable
	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	// Check for Go files
	hasGoFiles := false
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(p, ".go") {
			hasGoFiles = true
			return filepath.SkipAll
		}
		return nil
	})

	if !hasGoFiles {
		return ErrNoGoFiles
	}

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

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
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
