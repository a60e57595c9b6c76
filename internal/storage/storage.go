package storage

import (
	"context"
	"time"

	"github.com/dshills/gocontext-indexd/pkg/types"
)

// Storage defines the interface for persisting merged index results
type Storage interface {
	// Project operations
	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, rootPath string) (*Project, error)
	UpdateProject(ctx context.Context, project *Project) error

	// File operations
	UpsertFile(ctx context.Context, file *File) error
	GetFile(ctx context.Context, projectID int64, filePath string) (*File, error)
	ListFiles(ctx context.Context, projectID int64) ([]*File, error)

	// Symbol and import operations, replaced wholesale per file
	ReplaceSymbols(ctx context.Context, fileID int64, symbols []types.Symbol) error
	ListSymbolsByFile(ctx context.Context, fileID int64) ([]*Symbol, error)
	ReplaceImports(ctx context.Context, fileID int64, imports []types.Import) error
	ListImportsByFile(ctx context.Context, fileID int64) ([]types.Import, error)

	// Error operations
	InsertError(ctx context.Context, projectID int64, rec types.ErrorRecord) error
	ClearErrors(ctx context.Context, projectID int64, filePath string) error
	ListErrors(ctx context.Context, projectID int64, limit int) ([]types.ErrorRecord, error)

	// Build history
	CreateBuild(ctx context.Context, build *Build) error
	FinishBuild(ctx context.Context, build *Build) error

	// Status operations
	GetStatus(ctx context.Context, projectID int64) (*ProjectStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage
}

// Project represents an indexed Go codebase
type Project struct {
	ID            int64
	RootPath      string
	ModuleName    string
	TotalFiles    int
	TotalSymbols  int
	IndexVersion  string
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// File represents a tracked Go source file
type File struct {
	ID            int64
	ProjectID     int64
	FilePath      string // Relative to project root
	PackageName   string
	ContentHash   [32]byte
	SizeBytes     int64
	LastIndexedAt time.Time
}

// Symbol is a stored symbol row
type Symbol struct {
	ID     int64
	FileID int64
	types.Symbol
}

// BuildStatus is the outcome recorded for a build
type BuildStatus string

const (
	BuildRunning     BuildStatus = "running"
	BuildCompleted   BuildStatus = "completed"
	BuildInterrupted BuildStatus = "interrupted"
)

// Build is one run of the build-index task over a project
type Build struct {
	ID            int64
	ProjectID     int64
	StartedAt     time.Time
	FinishedAt    time.Time
	Status        BuildStatus
	FilesQueued   int
	BundlesMerged int
	CrashedFiles  int
}

// ProjectStatus contains statistics about an indexed project
type ProjectStatus struct {
	Project      *Project
	FilesCount   int
	SymbolsCount int
	ErrorsCount  int
	FatalCount   int
	LastBuild    *Build
}
