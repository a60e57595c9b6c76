package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/dshills/gocontext-indexd/internal/blackboard"
	"github.com/dshills/gocontext-indexd/internal/buildindex"
	"github.com/dshills/gocontext-indexd/internal/ipc"
	"github.com/dshills/gocontext-indexd/internal/parser"
	"github.com/dshills/gocontext-indexd/internal/proc"
	"github.com/dshills/gocontext-indexd/internal/progress"
	"github.com/dshills/gocontext-indexd/internal/storage"
	"github.com/dshills/gocontext-indexd/internal/task"
	"github.com/dshills/gocontext-indexd/internal/worker"
)

// Config contains configuration for the indexer
type Config struct {
	Workers       int  // Number of concurrent workers (default: runtime.NumCPU())
	MultiProcess  bool // Run workers as separate processes
	IncludeTests  bool // Whether to index test files
	IncludeVendor bool // Whether to index vendor directory

	// AppPath is the directory holding the worker executable
	AppPath string
	// UserDataPath holds the IPC namespaces of multi-process builds
	UserDataPath string
	// LogFile is passed to worker processes
	LogFile string

	Tuning buildindex.Tuning
}

// Statistics contains statistics about one build
type Statistics struct {
	FilesQueued      int
	BundlesMerged    int
	FilesIndexed     int
	SymbolsExtracted int
	ErrorsRecorded   int
	CrashedFiles     int
	FailedMerges     int
	Interrupted      bool
	Duration         time.Duration
}

// Indexer runs builds against one storage
type Indexer struct {
	storage  storage.Storage
	config   Config
	tracker  *progress.Tracker
	executor worker.Executor
	memory   *ipc.MemoryFactory
	logger   *slog.Logger

	lock IndexLock

	mu        sync.Mutex
	current   *buildindex.Task
	last      *Statistics
	preparing bool // lock held, task not created yet
	pending   bool // interrupt requested while preparing
}

// New creates a new Indexer instance
func New(store storage.Storage, config Config, tracker *progress.Tracker, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	if tracker == nil {
		tracker = progress.NewTracker(logger)
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	return &Indexer{
		storage:  store,
		config:   config,
		tracker:  tracker,
		executor: parser.New(),
		memory:   ipc.NewMemoryFactory(),
		logger:   logger,
	}
}

// SetExecutor replaces the in-process executor
func (idx *Indexer) SetExecutor(exec worker.Executor) {
	idx.executor = exec
}

// Tracker returns the progress tracker of this indexer
func (idx *Indexer) Tracker() *progress.Tracker {
	return idx.tracker
}

// Storage returns the underlying storage
func (idx *Indexer) Storage() storage.Storage {
	return idx.storage
}

// Running reports whether a build is in progress
func (idx *Indexer) Running() bool {
	return idx.lock.Held()
}

// LastStatistics returns the statistics of the last finished build, or nil
func (idx *Indexer) LastStatistics() *Statistics {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.last
}

// Scope selects which files of a project a build covers
type Scope struct {
	IncludeTests  bool
	IncludeVendor bool
}

// DefaultScope returns the scope configured on the indexer
func (idx *Indexer) DefaultScope() Scope {
	return Scope{IncludeTests: idx.config.IncludeTests, IncludeVendor: idx.config.IncludeVendor}
}

// IndexProject runs one build over rootPath with the default scope. Cancelling
// ctx interrupts the build cooperatively; IndexProject returns once every
// worker has stopped.
func (idx *Indexer) IndexProject(ctx context.Context, rootPath string) (*Statistics, error) {
	return idx.IndexProjectWithScope(ctx, rootPath, idx.DefaultScope())
}

// IndexProjectWithScope is IndexProject with an explicit file scope
func (idx *Indexer) IndexProjectWithScope(ctx context.Context, rootPath string, scope Scope) (*Statistics, error) {
	if err := idx.lock.Acquire(); err != nil {
		return nil, err
	}
	defer idx.lock.Release()
	return idx.build(ctx, rootPath, scope)
}

// Result is the outcome of a build started with Start
type Result struct {
	Stats *Statistics
	Err   error
}

// Start launches a build in the background and returns a channel that
// receives its result. It fails with ErrIndexingInProgress without starting
// anything when another build holds the lock.
func (idx *Indexer) Start(ctx context.Context, rootPath string, scope Scope) (<-chan Result, error) {
	if err := idx.lock.Acquire(); err != nil {
		return nil, err
	}
	done := make(chan Result, 1)
	go func() {
		stats, err := idx.build(ctx, rootPath, scope)
		idx.lock.Release()
		if err != nil {
			idx.logger.Error("background build failed", "root", rootPath, "error", err)
		}
		done <- Result{Stats: stats, Err: err}
	}()
	return done, nil
}

// build runs one build; the caller holds the lock
func (idx *Indexer) build(ctx context.Context, rootPath string, scope Scope) (*Statistics, error) {
	idx.mu.Lock()
	idx.preparing = true
	idx.pending = false
	idx.mu.Unlock()
	defer func() {
		idx.mu.Lock()
		idx.preparing = false
		idx.pending = false
		idx.mu.Unlock()
	}()

	root, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("invalid project path: %w", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("project path %s is not a directory", root)
	}

	startTime := time.Now()
	project, err := idx.getOrCreateProject(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create project: %w", err)
	}

	commands, err := DiscoverCommands(root, scope.IncludeTests, scope.IncludeVendor)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	build := &storage.Build{ProjectID: project.ID, FilesQueued: commands.Len()}
	if err := idx.storage.CreateBuild(ctx, build); err != nil {
		return nil, err
	}

	board := blackboard.New()
	board.Set(blackboard.KeySourceFileCount, commands.Len())
	board.Set(blackboard.KeyIndexedSourceFileCount, 0)

	provider := storage.NewProvider(idx.storage, project.ID, idx.logger)
	mergeCtx, stopMerge := context.WithCancel(context.WithoutCancel(ctx))
	mergeDone := make(chan struct{})
	go func() {
		defer close(mergeDone)
		_ = provider.Run(mergeCtx)
	}()

	bt := buildindex.New(commands, provider, idx.tracker, board, idx.taskOptions())

	idx.mu.Lock()
	idx.current = bt
	idx.preparing = false
	if idx.pending {
		bt.Interrupt()
		idx.pending = false
	}
	idx.mu.Unlock()
	idx.tracker.Begin()

	idx.logger.Info("indexing started",
		"root", root,
		"files", commands.Len(),
		"workers", idx.config.Workers,
		"multi_process", idx.config.MultiProcess)

	runErr := task.Run(ctx, bt, 0)

	idx.mu.Lock()
	idx.current = nil
	idx.mu.Unlock()
	idx.tracker.End()

	stopMerge()
	<-mergeDone
	provider.Flush(context.WithoutCancel(ctx))

	merged := provider.Stats()
	stats := &Statistics{
		FilesQueued:      commands.Len(),
		BundlesMerged:    merged.BundlesMerged,
		FilesIndexed:     merged.FilesMerged,
		SymbolsExtracted: merged.SymbolsMerged,
		ErrorsRecorded:   merged.ErrorsMerged,
		CrashedFiles:     len(bt.Crashed()),
		FailedMerges:     merged.FailedMerges,
		Interrupted:      board.Bool(blackboard.KeyInterruptedIndexing) || bt.Interrupted(),
		Duration:         time.Since(startTime),
	}

	finishCtx := context.WithoutCancel(ctx)
	build.Status = storage.BuildCompleted
	if stats.Interrupted {
		build.Status = storage.BuildInterrupted
	}
	build.BundlesMerged = stats.BundlesMerged
	build.CrashedFiles = stats.CrashedFiles
	if err := idx.storage.FinishBuild(finishCtx, build); err != nil {
		idx.logger.Error("failed to record build", "error", err)
	}
	if err := idx.updateProjectStats(finishCtx, project); err != nil {
		idx.logger.Error("failed to update project stats", "error", err)
	}

	idx.mu.Lock()
	idx.last = stats
	idx.mu.Unlock()

	idx.logger.Info("indexing finished",
		"root", root,
		"bundles", stats.BundlesMerged,
		"symbols", stats.SymbolsExtracted,
		"errors", stats.ErrorsRecorded,
		"crashed", stats.CrashedFiles,
		"interrupted", stats.Interrupted,
		"duration", stats.Duration)

	if runErr != nil {
		return stats, fmt.Errorf("failed to run build: %w", runErr)
	}
	return stats, nil
}

// InterruptOutcome reports what Interrupt did
type InterruptOutcome int

const (
	// InterruptNoBuild means no build was running
	InterruptNoBuild InterruptOutcome = iota
	// InterruptRequested means the build stops after the units in flight
	InterruptRequested
	// InterruptIgnored means a modal confirmation was open
	InterruptIgnored
)

func (o InterruptOutcome) String() string {
	switch o {
	case InterruptRequested:
		return "requested"
	case InterruptIgnored:
		return "ignored"
	default:
		return "no_build"
	}
}

// Interrupt asks the running build to stop after the units in flight. A
// request made before the build has started its workers is applied as soon
// as it does.
func (idx *Indexer) Interrupt() InterruptOutcome {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.current == nil && !idx.preparing {
		return InterruptNoBuild
	}
	if !idx.tracker.ModalDialogsHidden() {
		idx.logger.Debug("interrupt ignored while a modal dialog is shown")
		return InterruptIgnored
	}
	if idx.current == nil {
		idx.pending = true
		return InterruptRequested
	}
	idx.current.OnInterruptRequested()
	if !idx.current.Interrupted() {
		return InterruptIgnored
	}
	return InterruptRequested
}

// Terminate kills the running build's workers
func (idx *Indexer) Terminate() {
	idx.mu.Lock()
	bt := idx.current
	idx.mu.Unlock()
	if bt != nil {
		bt.Terminate()
	}
}

func (idx *Indexer) taskOptions() buildindex.Options {
	opts := buildindex.Options{
		ProcessCount: idx.config.Workers,
		MultiProcess: idx.config.MultiProcess,
		Executor:     idx.executor,
		AppPath:      idx.config.AppPath,
		UserDataPath: idx.config.UserDataPath,
		LogFile:      idx.config.LogFile,
		Tuning:       idx.config.Tuning,
		Logger:       idx.logger,
	}
	if idx.config.MultiProcess {
		opts.Factory = ipc.SQLiteFactory{Dir: NamespaceDir(idx.config.UserDataPath)}
		// a launcher refuses new processes once terminated
		launcher := proc.NewLauncher(idx.logger)
		tuning := idx.config.Tuning.WithDefaults()
		launcher.Env = worker.ThrottleEnv(tuning.WorkerBacklog, tuning.WorkerPoll)
		opts.Launcher = launcher
	} else {
		opts.Factory = idx.memory
	}
	return opts
}

// NamespaceDir returns the directory holding SQLite namespaces under userDataPath
func NamespaceDir(userDataPath string) string {
	return filepath.Join(userDataPath, "ipc")
}

// getOrCreateProject retrieves an existing project or creates a new one
func (idx *Indexer) getOrCreateProject(ctx context.Context, rootPath string) (*storage.Project, error) {
	project, err := idx.storage.GetProject(ctx, rootPath)
	if err == nil {
		return project, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	project = &storage.Project{
		RootPath:     rootPath,
		IndexVersion: storage.CurrentSchemaVersion,
		ModuleName:   moduleName(filepath.Join(rootPath, "go.mod")),
	}
	if err := idx.storage.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// updateProjectStats updates the project's file and symbol counts
func (idx *Indexer) updateProjectStats(ctx context.Context, project *storage.Project) error {
	status, err := idx.storage.GetStatus(ctx, project.ID)
	if err != nil {
		return err
	}
	project.TotalFiles = status.FilesCount
	project.TotalSymbols = status.SymbolsCount
	project.LastIndexedAt = time.Now()
	return idx.storage.UpdateProject(ctx, project)
}

// moduleName reads the module path from a go.mod file, empty if unavailable
func moduleName(goModPath string) string {
	content, err := os.ReadFile(goModPath)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "module ") {
			return strings.Trim(strings.TrimSpace(strings.TrimPrefix(line, "module")), `"`)
		}
	}
	return ""
}
