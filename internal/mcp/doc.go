// Package mcp implements the Model Context Protocol (MCP) server for the indexer.
//
// The MCP server exposes three tools to AI coding assistants:
//   - index_codebase: Run a build over a Go project
//   - get_status: Report stored statistics and live progress
//   - interrupt_indexing: Ask the running build to stop
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Stdout carries protocol messages only, so the server logs to stderr.
//
// # Tool: index_codebase
//
//	Request:
//	{
//	  "name": "index_codebase",
//	  "arguments": {
//	    "path": "/path/to/project",
//	    "include_tests": false,
//	    "include_vendor": false
//	  }
//	}
//
//	Response:
//	{
//	  "indexed": true,
//	  "interrupted": false,
//	  "files_queued": 150,
//	  "files_indexed": 150,
//	  "bundles_merged": 150,
//	  "symbols_extracted": 1243,
//	  "errors_recorded": 2,
//	  "crashed_files": 0,
//	  "duration_ms": 1840
//	}
//
// The call blocks until the build has finished and every worker has stopped.
// Only one build runs at a time; a concurrent call fails with
// ErrorCodeIndexingInProgress.
//
// # Tool: get_status
//
// Returns the stored file, symbol and error counts of a project, its last
// build record and the progress of a build in flight. A project that was
// never indexed reports "indexed": false.
//
// # Tool: interrupt_indexing
//
// Requests a cooperative stop. Files already handed to workers finish; the
// rest of the queue is discarded. The request is ignored while a modal
// confirmation is open.
//
// # Error Handling
//
// Errors are returned as MCPError values carrying a JSON-RPC code:
//
//	-32602  Invalid params (missing or invalid path)
//	-32603  Internal error
//	-32002  Indexing already in progress
package mcp
