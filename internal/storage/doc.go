// Package storage persists merged index results in SQLite.
//
// The build tag cgo_sqlite selects github.com/mattn/go-sqlite3; the default
// build uses the pure-Go modernc.org/sqlite driver. Both run with a WAL
// journal and a busy timeout so that separate processes can share one file,
// which the SQLite-backed IPC namespace relies on.
//
// Provider is the result sink of a build: the coordinator inserts bundles
// and a background loop merges them, one transaction per bundle.
package storage
