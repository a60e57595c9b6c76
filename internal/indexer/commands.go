package indexer

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dshills/gocontext-indexd/pkg/types"
)

// CommandList is the batch of work units of one build
type CommandList struct {
	units []types.WorkUnit
}

// NewCommandList creates a list over units
func NewCommandList(units []types.WorkUnit) *CommandList {
	return &CommandList{units: units}
}

// Commands returns the units in discovery order
func (c *CommandList) Commands() []types.WorkUnit { return c.units }

// Len returns the number of units
func (c *CommandList) Len() int { return len(c.units) }

// DiscoverCommands walks rootPath and returns one work unit per Go file.
// Hidden directories and testdata are skipped, vendor and test files
// unless included.
func DiscoverCommands(rootPath string, includeTests, includeVendor bool) (*CommandList, error) {
	root, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, err
	}

	var units []types.WorkUnit
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			name := d.Name()
			if strings.HasPrefix(name, ".") || name == "testdata" {
				return filepath.SkipDir
			}
			if !includeVendor && name == "vendor" {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		if !includeTests && strings.HasSuffix(path, "_test.go") {
			return nil
		}

		units = append(units, types.WorkUnit{
			ID:           strconv.Itoa(len(units)),
			SourcePath:   path,
			ProjectRoot:  root,
			IncludeTests: includeTests,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewCommandList(units), nil
}
