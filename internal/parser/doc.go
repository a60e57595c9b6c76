// Package parser is the indexing executor: it turns one work unit, a Go
// source file, into a result bundle.
//
// Parsing uses the standard go/parser, go/ast and go/token packages and
// only looks at top-level declarations:
//   - Functions and methods (with receiver types)
//   - Structs with their fields, interfaces and other named types
//   - Constants and variables
//
// # Error Handling
//
// Syntax errors do not fail a unit. Each one becomes a non-fatal error
// record carrying its line and column, and whatever the partial AST yields
// is still returned:
//
//	bundle, err := p.Index(ctx, unit)
//	// err is nil even for syntax errors
//	for _, rec := range bundle.Errors {
//	    fmt.Printf("%s:%d:%d: %s\n", rec.FilePath, rec.Line, rec.Column, rec.Message)
//	}
//
// An unreadable file is returned as an error, which the worker loop records
// as a fatal error for that unit.
//
// # Caching
//
// Extracted facts are cached by SHA-256 of the file content, so unchanged
// files are not parsed again across builds served by the same process.
package parser
