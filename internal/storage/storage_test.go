package storage

import (
	"context"
	"crypto/sha256"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gocontext-indexd/pkg/types"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestProject(t *testing.T, s Storage) *Project {
	t.Helper()
	p := &Project{RootPath: "/work/demo", ModuleName: "example.com/demo"}
	require.NoError(t, s.CreateProject(context.Background(), p))
	return p
}

func sampleBundle(path string) *types.ResultBundle {
	b := types.NewResultBundle(types.WorkUnit{SourcePath: path})
	b.AddFile(types.FileFacts{
		SourcePath:  path,
		RelPath:     filepath.Base(path),
		PackageName: "demo",
		ContentHash: sha256.Sum256([]byte(path)),
		SizeBytes:   42,
		Imports:     []types.Import{{Path: "fmt"}, {Path: "strings", Alias: "str"}},
		Symbols: []types.Symbol{
			{Name: "Run", Kind: types.KindFunction, Package: "demo", Scope: types.ScopeExported,
				Start: types.Position{Line: 3, Column: 1}, End: types.Position{Line: 5, Column: 2}},
			{Name: "helper", Kind: types.KindFunction, Package: "demo", Scope: types.ScopeUnexported,
				Start: types.Position{Line: 7, Column: 1}, End: types.Position{Line: 9, Column: 2}},
		},
	})
	return b
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	s, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewSQLiteStorage(path)
	require.NoError(t, err)
	defer s.Close()

	v, err := currentVersion(context.Background(), s.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v.String())
}

func TestRollbackMigration(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, RollbackMigration(ctx, s.db))
	v, err := currentVersion(ctx, s.db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v.String())

	require.NoError(t, RollbackMigration(ctx, s.db))
	v, err = currentVersion(ctx, s.db)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0", v.String())

	assert.Error(t, RollbackMigration(ctx, s.db))
	require.NoError(t, ApplyMigrations(ctx, s.db))
}

func TestProjectLifecycle(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	_, err := s.GetProject(ctx, "/missing")
	assert.ErrorIs(t, err, ErrNotFound)

	p := newTestProject(t, s)
	assert.NotZero(t, p.ID)
	assert.Equal(t, CurrentSchemaVersion, p.IndexVersion)

	p.TotalFiles = 3
	p.TotalSymbols = 12
	require.NoError(t, s.UpdateProject(ctx, p))

	got, err := s.GetProject(ctx, p.RootPath)
	require.NoError(t, err)
	assert.Equal(t, "example.com/demo", got.ModuleName)
	assert.Equal(t, 3, got.TotalFiles)
	assert.Equal(t, 12, got.TotalSymbols)
}

func TestMergeBundleReplacesFileContents(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	p := newTestProject(t, s)

	require.NoError(t, MergeBundle(ctx, s, p.ID, sampleBundle("/work/demo/a.go")))

	// Re-indexing the same file replaces symbols and imports
	again := sampleBundle("/work/demo/a.go")
	again.Files[0].Symbols = again.Files[0].Symbols[:1]
	again.Files[0].Imports = nil
	require.NoError(t, MergeBundle(ctx, s, p.ID, again))

	files, err := s.ListFiles(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.go", files[0].FilePath)
	assert.Equal(t, sha256.Sum256([]byte("/work/demo/a.go")), files[0].ContentHash)

	syms, err := s.ListSymbolsByFile(ctx, files[0].ID)
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "Run", syms[0].Name)
	assert.Equal(t, types.KindFunction, syms[0].Kind)
	assert.Equal(t, 3, syms[0].Start.Line)

	imps, err := s.ListImportsByFile(ctx, files[0].ID)
	require.NoError(t, err)
	assert.Empty(t, imps)
}

func TestMergeBundleStoresErrors(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	p := newTestProject(t, s)

	b := &types.ResultBundle{SourcePaths: []string{"/work/demo/a.go", "/work/demo/b.go"}}
	for _, path := range b.SourcePaths {
		b.AddError(types.ErrorRecord{
			Message: "crashed", FilePath: path, Line: 1, Column: 1,
			TranslationUnit: path, Fatal: true, Indexed: true,
		})
	}
	b.AddError(types.ErrorRecord{Message: "expected ';'", FilePath: "/work/demo/c.go", Line: 4, Column: 9})
	require.NoError(t, MergeBundle(ctx, s, p.ID, b))

	errs, err := s.ListErrors(ctx, p.ID, 0)
	require.NoError(t, err)
	require.Len(t, errs, 3)
	assert.Equal(t, b.Errors, errs)

	status, err := s.GetStatus(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, status.ErrorsCount)
	assert.Equal(t, 2, status.FatalCount)
	assert.Nil(t, status.LastBuild)
}

func TestMergeBundleReplacesErrors(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	p := newTestProject(t, s)

	first := &types.ResultBundle{SourcePaths: []string{"/work/demo/a.go"}}
	first.AddError(types.ErrorRecord{Message: "expected ')'", FilePath: "/work/demo/a.go", Line: 3, Column: 14, Indexed: true})
	other := &types.ResultBundle{SourcePaths: []string{"/work/demo/b.go"}}
	other.AddError(types.ErrorRecord{Message: "expected '}'", FilePath: "/work/demo/b.go", Line: 9, Column: 1, Indexed: true})
	require.NoError(t, MergeBundle(ctx, s, p.ID, first))
	require.NoError(t, MergeBundle(ctx, s, p.ID, other))

	// a.go was fixed: re-merging it drops its old records only
	require.NoError(t, MergeBundle(ctx, s, p.ID, &types.ResultBundle{SourcePaths: []string{"/work/demo/a.go"}}))

	errs, err := s.ListErrors(ctx, p.ID, 0)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "/work/demo/b.go", errs[0].FilePath)
}

func TestMergeBundleRollsBackOnError(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	// Unknown project violates the foreign key
	err := MergeBundle(ctx, s, 999, sampleBundle("/work/demo/a.go"))
	require.Error(t, err)

	files, err := s.ListFiles(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestBuildHistory(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	p := newTestProject(t, s)

	b := &Build{ProjectID: p.ID, FilesQueued: 5}
	require.NoError(t, s.CreateBuild(ctx, b))
	assert.NotZero(t, b.ID)

	b.Status = BuildInterrupted
	b.BundlesMerged = 3
	b.CrashedFiles = 1
	require.NoError(t, s.FinishBuild(ctx, b))

	status, err := s.GetStatus(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, status.LastBuild)
	assert.Equal(t, BuildInterrupted, status.LastBuild.Status)
	assert.Equal(t, 5, status.LastBuild.FilesQueued)
	assert.Equal(t, 3, status.LastBuild.BundlesMerged)
	assert.Equal(t, 1, status.LastBuild.CrashedFiles)
	assert.False(t, status.LastBuild.FinishedAt.IsZero())
}

func TestNestedTransactionRejected(t *testing.T) {
	s := newTestStorage(t)
	tx, err := s.BeginTx(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = tx.BeginTx(context.Background())
	assert.Error(t, err)
}

func TestGetStatusIncludesProject(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	p := newTestProject(t, s)
	require.NoError(t, MergeBundle(ctx, s, p.ID, sampleBundle("/work/demo/a.go")))

	status, err := s.GetStatus(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, status.Project)
	assert.Equal(t, p.ID, status.Project.ID)
	assert.Equal(t, "/work/demo", status.Project.RootPath)
	assert.Equal(t, "example.com/demo", status.Project.ModuleName)
	assert.Equal(t, 1, status.FilesCount)

	_, err = s.GetStatus(ctx, p.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)
}
