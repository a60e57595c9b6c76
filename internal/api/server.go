package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dshills/gocontext-indexd/internal/api/handlers"
	"github.com/dshills/gocontext-indexd/internal/indexer"
)

// Server holds the HTTP server and all handler dependencies.
type Server struct {
	addr   string
	srv    *http.Server
	logger *slog.Logger
}

// New wires all routes and returns a Server ready to Run. sched may be nil.
// Builds started over HTTP run under baseCtx.
func New(baseCtx context.Context, addr string, idx *indexer.Indexer, sched handlers.Schedule, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:   addr,
		srv:    &http.Server{Addr: addr, Handler: NewRouter(baseCtx, idx, sched, version, logger), ReadHeaderTimeout: 10 * time.Second},
		logger: logger,
	}
}

// NewRouter returns the API routes.
func NewRouter(baseCtx context.Context, idx *indexer.Indexer, sched handlers.Schedule, version string, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	// stdout belongs to the MCP transport
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(logger.Handler(), slog.LevelInfo),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	statusH := &handlers.StatusHandler{Indexer: idx, Sched: sched, Version: version}
	buildsH := &handlers.BuildsHandler{Indexer: idx, BaseCtx: baseCtx}
	errorsH := &handlers.ErrorsHandler{Indexer: idx}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", statusH.ServeHTTP)
		r.Post("/index", buildsH.Index)
		r.Post("/interrupt", buildsH.Interrupt)
		r.Get("/errors", errorsH.List)
	})
	return r
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", ln.Addr().String())
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
