// Package indexer runs index builds of Go projects.
//
// IndexProject discovers the project's Go files, turns each into a work
// unit and runs a build-index task over them. Workers parse files as
// goroutines of this process or, in multi-process mode, as separate
// gocontext-indexer processes sharing a SQLite namespace. Bundles are merged
// into storage by a background provider while the build runs.
//
// Only one build runs at a time; a second request returns
// ErrIndexingInProgress. A running build can be interrupted cooperatively
// with Interrupt or killed with Terminate.
package indexer
