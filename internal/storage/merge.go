package storage

import (
	"context"
	"fmt"

	"github.com/dshills/gocontext-indexd/pkg/types"
)

// MergeBundle writes one result bundle into the project inside a single
// transaction. A file's symbols, imports and error records are replaced.
func MergeBundle(ctx context.Context, store Storage, projectID int64, bundle *types.ResultBundle) error {
	tx, err := store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin merge: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, path := range bundle.SourcePaths {
		if err := tx.ClearErrors(ctx, projectID, path); err != nil {
			return err
		}
	}

	for i := range bundle.Files {
		facts := &bundle.Files[i]
		file := &File{
			ProjectID:   projectID,
			FilePath:    facts.RelPath,
			PackageName: facts.PackageName,
			ContentHash: facts.ContentHash,
			SizeBytes:   facts.SizeBytes,
		}
		if file.FilePath == "" {
			file.FilePath = facts.SourcePath
		}
		if err := tx.UpsertFile(ctx, file); err != nil {
			return err
		}
		if err := tx.ReplaceSymbols(ctx, file.ID, facts.Symbols); err != nil {
			return err
		}
		if err := tx.ReplaceImports(ctx, file.ID, facts.Imports); err != nil {
			return err
		}
	}

	for _, rec := range bundle.Errors {
		if err := tx.InsertError(ctx, projectID, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit merge: %w", err)
	}
	return nil
}
