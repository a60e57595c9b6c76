package indexer

import (
	"context"
	"path/filepath"

	"github.com/dshills/gocontext-indexd/internal/storage"
	"github.com/dshills/gocontext-indexd/pkg/types"
)

// ProjectStatus returns the stored statistics of the project rooted at
// rootPath. It returns storage.ErrNotFound when the project was never indexed.
func (idx *Indexer) ProjectStatus(ctx context.Context, rootPath string) (*storage.ProjectStatus, error) {
	root, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, err
	}
	project, err := idx.storage.GetProject(ctx, root)
	if err != nil {
		return nil, err
	}
	return idx.storage.GetStatus(ctx, project.ID)
}

// ProjectErrors returns up to limit error records of the project rooted at rootPath
func (idx *Indexer) ProjectErrors(ctx context.Context, rootPath string, limit int) ([]types.ErrorRecord, error) {
	root, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, err
	}
	project, err := idx.storage.GetProject(ctx, root)
	if err != nil {
		return nil, err
	}
	return idx.storage.ListErrors(ctx, project.ID, limit)
}
