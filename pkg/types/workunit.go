package types

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrEmptySourcePath is returned when a work unit has no source path
var ErrEmptySourcePath = errors.New("work unit source path is required")

// WorkUnit is one indexing job: a source file plus the parameters needed to process it.
// It is immutable once enqueued.
type WorkUnit struct {
	ID          string `json:"id"`
	SourcePath  string `json:"source_path"`
	ProjectRoot string `json:"project_root"`

	// IncludeTests controls whether _test.go symbols are kept by the executor
	IncludeTests bool `json:"include_tests"`
}

// RelPath returns the source path relative to the project root, or the
// source path itself when it is not below the root.
func (u WorkUnit) RelPath() string {
	if u.ProjectRoot == "" {
		return u.SourcePath
	}
	rel, err := filepath.Rel(u.ProjectRoot, u.SourcePath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return u.SourcePath
	}
	return rel
}

// Validate checks the unit can be dispatched
func (u WorkUnit) Validate() error {
	if u.SourcePath == "" {
		return ErrEmptySourcePath
	}
	return nil
}
