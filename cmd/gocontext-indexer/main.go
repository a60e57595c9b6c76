// Command gocontext-indexer is the worker executable of multi-process builds.
//
//	gocontext-indexer <slot> <namespaceID> <appPath> <userDataPath> [logFilePath]
//
// It opens the build's namespace, indexes units from the shared queue until
// the queue is empty and exits 0. Any other exit code makes the supervising
// server record the unit in flight as crashed and relaunch the worker.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/dshills/gocontext-indexd/internal/indexer"
	"github.com/dshills/gocontext-indexd/internal/ipc"
	"github.com/dshills/gocontext-indexd/internal/parser"
	"github.com/dshills/gocontext-indexd/internal/worker"
)

// Exit codes
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

type workerArgs struct {
	slot         int
	namespaceID  string
	appPath      string
	userDataPath string
	logFile      string
}

func parseArgs(args []string) (workerArgs, error) {
	if len(args) < 4 || len(args) > 5 {
		return workerArgs{}, fmt.Errorf("expected 4 or 5 arguments, got %d", len(args))
	}
	slot, err := strconv.Atoi(args[0])
	if err != nil || slot <= ipc.CoordinatorSlot {
		return workerArgs{}, fmt.Errorf("invalid slot %q", args[0])
	}
	wa := workerArgs{
		slot:         slot,
		namespaceID:  args[1],
		appPath:      args[2],
		userDataPath: args[3],
	}
	if len(args) == 5 {
		wa.logFile = args[4]
	}
	if wa.namespaceID == "" || wa.userDataPath == "" {
		return workerArgs{}, fmt.Errorf("namespace id and user data path are required")
	}
	return wa, nil
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	wa, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "usage: %s <slot> <namespaceID> <appPath> <userDataPath> [logFilePath]\n%v\n", os.Args[0], err)
		return exitUsage
	}

	var out io.Writer = stderr
	if wa.logFile != "" {
		f, err := os.OpenFile(wa.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(stderr, "open log file: %v\n", err)
			return exitError
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	logger := slog.New(slog.NewTextHandler(out, nil)).With("slot", wa.slot, "pid", os.Getpid())

	factory := ipc.SQLiteFactory{Dir: indexer.NamespaceDir(wa.userDataPath)}
	ns, err := factory.Open(wa.namespaceID)
	if err != nil {
		logger.Error("failed to open namespace", "namespace", wa.namespaceID, "error", err)
		return exitError
	}
	defer func() { _ = ns.Close() }()

	backlog, poll := worker.ThrottleFromEnv(os.Getenv)
	loop := &worker.Loop{
		Slot:         wa.slot,
		Namespace:    ns,
		Executor:     parser.New(),
		BacklogLimit: backlog,
		PollInterval: poll,
		Logger:       logger,
	}
	logger.Debug("worker started", "namespace", wa.namespaceID)
	if err := loop.Work(ctx); err != nil {
		logger.Error("worker loop failed", "error", err)
		return exitError
	}
	logger.Debug("worker finished")
	return exitOK
}
