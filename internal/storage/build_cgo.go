//go:build cgo_sqlite

package storage

// Compiled with the cgo_sqlite tag: uses the C SQLite library.
//
// Build command:
//   CGO_ENABLED=1 go build -tags cgo_sqlite ./...
//
// Worker processes hammer the shared namespace database; the C driver has
// lower per-statement overhead under that load.
//
// Driver used: github.com/mattn/go-sqlite3

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
