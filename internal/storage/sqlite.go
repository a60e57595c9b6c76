package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/gocontext-indexd/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
)

// OpenDatabase opens a SQLite database with the settings used by every
// database in this module: WAL journal, a busy timeout so separate processes
// wait for each other's write lock, and a single connection per handle.
func OpenDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}

	return db, nil
}

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := OpenDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Commit() error   { return t.tx.Commit() }
func (t *sqliteTx) Rollback() error { return t.tx.Rollback() }
func (t *sqliteTx) Close() error    { return nil }

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, errors.New("nested transactions are not supported")
}

// Project operations

func createProject(ctx context.Context, q querier, project *Project) error {
	now := time.Now()
	if project.IndexVersion == "" {
		project.IndexVersion = CurrentSchemaVersion
	}
	result, err := q.ExecContext(ctx, `
		INSERT INTO projects (root_path, module_name, index_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, project.RootPath, project.ModuleName, project.IndexVersion, now, now)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	project.ID = id
	project.CreatedAt = now
	project.UpdatedAt = now
	return nil
}

func getProject(ctx context.Context, q querier, rootPath string) (*Project, error) {
	return queryProject(ctx, q, "root_path = ?", rootPath)
}

func getProjectByID(ctx context.Context, q querier, projectID int64) (*Project, error) {
	return queryProject(ctx, q, "id = ?", projectID)
}

func queryProject(ctx context.Context, q querier, where string, arg interface{}) (*Project, error) {
	var project Project
	var moduleName sql.NullString
	var lastIndexedAt sql.NullTime
	err := q.QueryRowContext(ctx, `
		SELECT id, root_path, module_name, total_files, total_symbols,
		       index_version, last_indexed_at, created_at, updated_at
		FROM projects
		WHERE `+where, arg).Scan(
		&project.ID, &project.RootPath, &moduleName, &project.TotalFiles, &project.TotalSymbols,
		&project.IndexVersion, &lastIndexedAt, &project.CreatedAt, &project.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	project.ModuleName = moduleName.String
	if lastIndexedAt.Valid {
		project.LastIndexedAt = lastIndexedAt.Time
	}
	return &project, nil
}

func updateProject(ctx context.Context, q querier, project *Project) error {
	now := time.Now()
	_, err := q.ExecContext(ctx, `
		UPDATE projects
		SET module_name = ?, total_files = ?, total_symbols = ?, last_indexed_at = ?, updated_at = ?
		WHERE id = ?
	`, project.ModuleName, project.TotalFiles, project.TotalSymbols, project.LastIndexedAt, now, project.ID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	project.UpdatedAt = now
	return nil
}

// File operations

func upsertFile(ctx context.Context, q querier, file *File) error {
	now := time.Now()
	err := q.QueryRowContext(ctx, `
		INSERT INTO files (project_id, file_path, package_name, content_hash, size_bytes, last_indexed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, file_path) DO UPDATE SET
			package_name = excluded.package_name,
			content_hash = excluded.content_hash,
			size_bytes = excluded.size_bytes,
			last_indexed_at = excluded.last_indexed_at,
			updated_at = excluded.updated_at
		RETURNING id
	`, file.ProjectID, file.FilePath, file.PackageName, file.ContentHash[:], file.SizeBytes, now, now, now).Scan(&file.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert file %s: %w", file.FilePath, err)
	}
	file.LastIndexedAt = now
	return nil
}

func scanFile(scan func(dest ...interface{}) error) (*File, error) {
	var f File
	var pkg sql.NullString
	var hash []byte
	var lastIndexedAt sql.NullTime
	if err := scan(&f.ID, &f.ProjectID, &f.FilePath, &pkg, &hash, &f.SizeBytes, &lastIndexedAt); err != nil {
		return nil, err
	}
	f.PackageName = pkg.String
	copy(f.ContentHash[:], hash)
	if lastIndexedAt.Valid {
		f.LastIndexedAt = lastIndexedAt.Time
	}
	return &f, nil
}

const fileColumns = `id, project_id, file_path, package_name, content_hash, size_bytes, last_indexed_at`

func getFile(ctx context.Context, q querier, projectID int64, filePath string) (*File, error) {
	row := q.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE project_id = ? AND file_path = ?`, projectID, filePath)
	f, err := scanFile(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return f, err
}

func listFiles(ctx context.Context, q querier, projectID int64) ([]*File, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+fileColumns+` FROM files WHERE project_id = ? ORDER BY file_path`, projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var files []*File
	for rows.Next() {
		f, err := scanFile(rows.Scan)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// Symbol and import operations

func replaceSymbols(ctx context.Context, q querier, fileID int64, symbols []types.Symbol) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM symbols WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("failed to delete symbols: %w", err)
	}
	for _, sym := range symbols {
		_, err := q.ExecContext(ctx, `
			INSERT INTO symbols (file_id, name, kind, package_name, signature, doc_comment, scope, receiver,
			                     start_line, start_col, end_line, end_col)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, fileID, sym.Name, string(sym.Kind), sym.Package, sym.Signature, sym.DocComment, string(sym.Scope), sym.Receiver,
			sym.Start.Line, sym.Start.Column, sym.End.Line, sym.End.Column)
		if err != nil {
			return fmt.Errorf("failed to store symbol %s: %w", sym.Name, err)
		}
	}
	return nil
}

func listSymbolsByFile(ctx context.Context, q querier, fileID int64) ([]*Symbol, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, file_id, name, kind, package_name, signature, doc_comment, scope, receiver,
		       start_line, start_col, end_line, end_col
		FROM symbols WHERE file_id = ? ORDER BY start_line, start_col
	`, fileID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Symbol
	for rows.Next() {
		var s Symbol
		var kind, scope string
		var sig, doc, recv sql.NullString
		if err := rows.Scan(&s.ID, &s.FileID, &s.Name, &kind, &s.Package, &sig, &doc, &scope, &recv,
			&s.Start.Line, &s.Start.Column, &s.End.Line, &s.End.Column); err != nil {
			return nil, err
		}
		s.Kind = types.SymbolKind(kind)
		s.Scope = types.SymbolScope(scope)
		s.Signature, s.DocComment, s.Receiver = sig.String, doc.String, recv.String
		out = append(out, &s)
	}
	return out, rows.Err()
}

func replaceImports(ctx context.Context, q querier, fileID int64, imports []types.Import) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM imports WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("failed to delete imports: %w", err)
	}
	for _, imp := range imports {
		if _, err := q.ExecContext(ctx, `INSERT INTO imports (file_id, import_path, alias) VALUES (?, ?, ?)`,
			fileID, imp.Path, imp.Alias); err != nil {
			return fmt.Errorf("failed to store import %s: %w", imp.Path, err)
		}
	}
	return nil
}

func listImportsByFile(ctx context.Context, q querier, fileID int64) ([]types.Import, error) {
	rows, err := q.QueryContext(ctx, `SELECT import_path, alias FROM imports WHERE file_id = ? ORDER BY id`, fileID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []types.Import
	for rows.Next() {
		var imp types.Import
		var alias sql.NullString
		if err := rows.Scan(&imp.Path, &alias); err != nil {
			return nil, err
		}
		imp.Alias = alias.String
		out = append(out, imp)
	}
	return out, rows.Err()
}

// Error operations

func insertError(ctx context.Context, q querier, projectID int64, rec types.ErrorRecord) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO index_errors (project_id, message, file_path, line, col, translation_unit, fatal, indexed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, projectID, rec.Message, rec.FilePath, rec.Line, rec.Column, rec.TranslationUnit, rec.Fatal, rec.Indexed)
	if err != nil {
		return fmt.Errorf("failed to store error record: %w", err)
	}
	return nil
}

func clearErrors(ctx context.Context, q querier, projectID int64, filePath string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM index_errors WHERE project_id = ? AND file_path = ?`, projectID, filePath)
	if err != nil {
		return fmt.Errorf("failed to clear error records: %w", err)
	}
	return nil
}

func listErrors(ctx context.Context, q querier, projectID int64, limit int) ([]types.ErrorRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.QueryContext(ctx, `
		SELECT message, file_path, line, col, translation_unit, fatal, indexed
		FROM index_errors WHERE project_id = ? ORDER BY id LIMIT ?
	`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []types.ErrorRecord
	for rows.Next() {
		var rec types.ErrorRecord
		var tu sql.NullString
		if err := rows.Scan(&rec.Message, &rec.FilePath, &rec.Line, &rec.Column, &tu, &rec.Fatal, &rec.Indexed); err != nil {
			return nil, err
		}
		rec.TranslationUnit = tu.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Build history

func createBuild(ctx context.Context, q querier, build *Build) error {
	if build.StartedAt.IsZero() {
		build.StartedAt = time.Now()
	}
	if build.Status == "" {
		build.Status = BuildRunning
	}
	result, err := q.ExecContext(ctx, `
		INSERT INTO builds (project_id, started_at, status, files_queued) VALUES (?, ?, ?, ?)
	`, build.ProjectID, build.StartedAt, string(build.Status), build.FilesQueued)
	if err != nil {
		return fmt.Errorf("failed to create build: %w", err)
	}
	build.ID, err = result.LastInsertId()
	return err
}

func finishBuild(ctx context.Context, q querier, build *Build) error {
	if build.FinishedAt.IsZero() {
		build.FinishedAt = time.Now()
	}
	_, err := q.ExecContext(ctx, `
		UPDATE builds SET finished_at = ?, status = ?, bundles_merged = ?, crashed_files = ? WHERE id = ?
	`, build.FinishedAt, string(build.Status), build.BundlesMerged, build.CrashedFiles, build.ID)
	if err != nil {
		return fmt.Errorf("failed to finish build: %w", err)
	}
	return nil
}

func lastBuild(ctx context.Context, q querier, projectID int64) (*Build, error) {
	var b Build
	var status string
	var finishedAt sql.NullTime
	err := q.QueryRowContext(ctx, `
		SELECT id, project_id, started_at, finished_at, status, files_queued, bundles_merged, crashed_files
		FROM builds WHERE project_id = ? ORDER BY id DESC LIMIT 1
	`, projectID).Scan(&b.ID, &b.ProjectID, &b.StartedAt, &finishedAt, &status, &b.FilesQueued, &b.BundlesMerged, &b.CrashedFiles)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b.Status = BuildStatus(status)
	if finishedAt.Valid {
		b.FinishedAt = finishedAt.Time
	}
	return &b, nil
}

func getStatus(ctx context.Context, q querier, projectID int64) (*ProjectStatus, error) {
	project, err := getProjectByID(ctx, q, projectID)
	if err != nil {
		return nil, err
	}
	status := &ProjectStatus{Project: project}
	err = q.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM files WHERE project_id = ?),
			(SELECT COUNT(*) FROM symbols s JOIN files f ON f.id = s.file_id WHERE f.project_id = ?),
			(SELECT COUNT(*) FROM index_errors WHERE project_id = ?),
			(SELECT COUNT(*) FROM index_errors WHERE project_id = ? AND fatal = 1)
	`, projectID, projectID, projectID, projectID).Scan(
		&status.FilesCount, &status.SymbolsCount, &status.ErrorsCount, &status.FatalCount)
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	status.LastBuild, err = lastBuild(ctx, q, projectID)
	if err != nil {
		return nil, err
	}
	return status, nil
}
