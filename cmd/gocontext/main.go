package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/gocontext-indexd/internal/api"
	"github.com/dshills/gocontext-indexd/internal/api/handlers"
	"github.com/dshills/gocontext-indexd/internal/config"
	"github.com/dshills/gocontext-indexd/internal/indexer"
	"github.com/dshills/gocontext-indexd/internal/mcp"
	"github.com/dshills/gocontext-indexd/internal/progress"
	"github.com/dshills/gocontext-indexd/internal/scheduler"
	"github.com/dshills/gocontext-indexd/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	showVersion := flag.Bool("version", false, "print version and exit")
	noStdio := flag.Bool("no-stdio", false, "do not serve MCP on stdio")
	flag.Parse()

	if *showVersion {
		fmt.Printf("GoContext Index Server\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", storage.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
		os.Exit(0)
	}

	if err := run(*configPath, !*noStdio); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func run(configPath string, serveStdio bool) error {
	// stdout is reserved for the MCP protocol
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	logger.Info("gocontext starting",
		"version", version,
		"build_mode", storage.BuildMode,
		"driver", storage.DriverName,
		"db_path", cfg.DBPath,
		"workers", cfg.Workers,
		"multi_process", cfg.MultiProcess,
		"http_addr", cfg.HTTPAddr)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	if err := os.MkdirAll(indexer.NamespaceDir(cfg.UserDataPath), 0755); err != nil {
		return fmt.Errorf("create user data directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	idx := indexer.New(store, cfg.IndexerConfig(), progress.NewTracker(logger), logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// workers of an unfinished build die with the server
	defer idx.Terminate()

	g, gctx := errgroup.WithContext(ctx)

	var sched *scheduler.Scheduler
	if cfg.Schedule != "" && len(cfg.Roots) > 0 {
		sched = scheduler.New(logger)
		if err := sched.SetJob(cfg.Schedule, scheduler.RebuildRoots(gctx, idx, cfg.Roots, logger)); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	if cfg.HTTPAddr != "" {
		var schedule handlers.Schedule
		if sched != nil {
			schedule = sched
		}
		srv := api.New(gctx, cfg.HTTPAddr, idx, schedule, version, logger)
		g.Go(func() error { return srv.Run(gctx) })
	}

	if serveStdio {
		srv := mcp.NewServer(idx, logger)
		g.Go(func() error {
			logger.Info("MCP server ready, listening on stdio")
			err := srv.Serve(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if err != nil {
				return err
			}
			// stdin closed: the client is gone
			stop()
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		if idx.Interrupt() == indexer.InterruptRequested {
			logger.Info("interrupted running build")
		}
		return nil
	})

	return g.Wait()
}
