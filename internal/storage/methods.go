package storage

import (
	"context"

	"github.com/dshills/gocontext-indexd/pkg/types"
)

// The same operations are exposed on the database handle and on transactions.

func (s *SQLiteStorage) CreateProject(ctx context.Context, p *Project) error {
	return createProject(ctx, s.db, p)
}
func (s *SQLiteStorage) GetProject(ctx context.Context, rootPath string) (*Project, error) {
	return getProject(ctx, s.db, rootPath)
}
func (s *SQLiteStorage) UpdateProject(ctx context.Context, p *Project) error {
	return updateProject(ctx, s.db, p)
}
func (s *SQLiteStorage) UpsertFile(ctx context.Context, f *File) error {
	return upsertFile(ctx, s.db, f)
}
func (s *SQLiteStorage) GetFile(ctx context.Context, projectID int64, filePath string) (*File, error) {
	return getFile(ctx, s.db, projectID, filePath)
}
func (s *SQLiteStorage) ListFiles(ctx context.Context, projectID int64) ([]*File, error) {
	return listFiles(ctx, s.db, projectID)
}
func (s *SQLiteStorage) ReplaceSymbols(ctx context.Context, fileID int64, symbols []types.Symbol) error {
	return replaceSymbols(ctx, s.db, fileID, symbols)
}
func (s *SQLiteStorage) ListSymbolsByFile(ctx context.Context, fileID int64) ([]*Symbol, error) {
	return listSymbolsByFile(ctx, s.db, fileID)
}
func (s *SQLiteStorage) ReplaceImports(ctx context.Context, fileID int64, imports []types.Import) error {
	return replaceImports(ctx, s.db, fileID, imports)
}
func (s *SQLiteStorage) ListImportsByFile(ctx context.Context, fileID int64) ([]types.Import, error) {
	return listImportsByFile(ctx, s.db, fileID)
}
func (s *SQLiteStorage) InsertError(ctx context.Context, projectID int64, rec types.ErrorRecord) error {
	return insertError(ctx, s.db, projectID, rec)
}
func (s *SQLiteStorage) ClearErrors(ctx context.Context, projectID int64, filePath string) error {
	return clearErrors(ctx, s.db, projectID, filePath)
}
func (s *SQLiteStorage) ListErrors(ctx context.Context, projectID int64, limit int) ([]types.ErrorRecord, error) {
	return listErrors(ctx, s.db, projectID, limit)
}
func (s *SQLiteStorage) CreateBuild(ctx context.Context, b *Build) error {
	return createBuild(ctx, s.db, b)
}
func (s *SQLiteStorage) FinishBuild(ctx context.Context, b *Build) error {
	return finishBuild(ctx, s.db, b)
}
func (s *SQLiteStorage) GetStatus(ctx context.Context, projectID int64) (*ProjectStatus, error) {
	return getStatus(ctx, s.db, projectID)
}

func (t *sqliteTx) CreateProject(ctx context.Context, p *Project) error {
	return createProject(ctx, t.tx, p)
}
func (t *sqliteTx) GetProject(ctx context.Context, rootPath string) (*Project, error) {
	return getProject(ctx, t.tx, rootPath)
}
func (t *sqliteTx) UpdateProject(ctx context.Context, p *Project) error {
	return updateProject(ctx, t.tx, p)
}
func (t *sqliteTx) UpsertFile(ctx context.Context, f *File) error {
	return upsertFile(ctx, t.tx, f)
}
func (t *sqliteTx) GetFile(ctx context.Context, projectID int64, filePath string) (*File, error) {
	return getFile(ctx, t.tx, projectID, filePath)
}
func (t *sqliteTx) ListFiles(ctx context.Context, projectID int64) ([]*File, error) {
	return listFiles(ctx, t.tx, projectID)
}
func (t *sqliteTx) ReplaceSymbols(ctx context.Context, fileID int64, symbols []types.Symbol) error {
	return replaceSymbols(ctx, t.tx, fileID, symbols)
}
func (t *sqliteTx) ListSymbolsByFile(ctx context.Context, fileID int64) ([]*Symbol, error) {
	return listSymbolsByFile(ctx, t.tx, fileID)
}
func (t *sqliteTx) ReplaceImports(ctx context.Context, fileID int64, imports []types.Import) error {
	return replaceImports(ctx, t.tx, fileID, imports)
}
func (t *sqliteTx) ListImportsByFile(ctx context.Context, fileID int64) ([]types.Import, error) {
	return listImportsByFile(ctx, t.tx, fileID)
}
func (t *sqliteTx) InsertError(ctx context.Context, projectID int64, rec types.ErrorRecord) error {
	return insertError(ctx, t.tx, projectID, rec)
}
func (t *sqliteTx) ClearErrors(ctx context.Context, projectID int64, filePath string) error {
	return clearErrors(ctx, t.tx, projectID, filePath)
}
func (t *sqliteTx) ListErrors(ctx context.Context, projectID int64, limit int) ([]types.ErrorRecord, error) {
	return listErrors(ctx, t.tx, projectID, limit)
}
func (t *sqliteTx) CreateBuild(ctx context.Context, b *Build) error {
	return createBuild(ctx, t.tx, b)
}
func (t *sqliteTx) FinishBuild(ctx context.Context, b *Build) error {
	return finishBuild(ctx, t.tx, b)
}
func (t *sqliteTx) GetStatus(ctx context.Context, projectID int64) (*ProjectStatus, error) {
	return getStatus(ctx, t.tx, projectID)
}
