// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/modlib/internal/api"
	"github.com/starford/modlib/internal/fingerprint"
	"github.com/starford/modlib/internal/index"
	"github.com/starford/modlib/internal/library"
	"github.com/starford/modlib/internal/mcpserver"
	"github.com/starford/modlib/internal/sse"
	"github.com/starford/modlib/internal/storage"
)

// Session is an opened library together with the store backing it.
type Session struct {
	Library *library.Library
	Logger  *slog.Logger

	db *index.DB
}

// Close closes the store.
func (s *Session) Close() error {
	return s.db.Close()
}

// Open opens the configured store and returns a library over it. A store
// that cannot be opened or migrated is fatal.
func Open(opts ...Option) (*Session, error) {
	app := newApplication(opts)
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	fs, err := storage.NewFS(cfg.Library.Extensions)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path, index.Options{Backup: cfg.SQLite.Backup})
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	lib := library.New(db, fs,
		library.WithLogger(logger),
		library.WithComparator(fingerprint.BitComparator{MaxOffset: cfg.Fingerprint.MaxOffset}),
	)
	return &Session{Library: lib, Logger: logger, db: db}, nil
}

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr so they do
// not corrupt the protocol stream.
func RunMCP(ctx context.Context, opts ...Option) error {
	opts = append(opts, WithLogOutput(os.Stderr))
	s, err := Open(opts...)
	if err != nil {
		return err
	}
	defer s.Close()

	return mcpserver.New(s.Library).ServeStdio()
}

// Run starts the HTTP server, the watcher and the optional startup scan.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	s, err := Open(opts...)
	if err != nil {
		return err
	}
	defer s.Close()
	logger, lib := s.Logger, s.Library

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.Any("roots", cfg.Library.Roots),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	apiRouter := api.NewRouter(lib, broker, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := lib.Count(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Startup scan, then the watcher.
	g.Go(func() error {
		if cfg.Library.ScanOnStart {
			for _, root := range cfg.Library.Roots {
				sum, err := lib.ScanDir(gCtx, root)
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					logger.Warn("initial scan failed", slog.String("root", root), slog.String("error", err.Error()))
					continue
				}
				logger.Info("initial scan finished",
					slog.String("root", root),
					slog.Int("seen", sum.Seen),
					slog.Int("added", sum.Added),
					slog.Int("updated", sum.Updated),
					slog.Int("failed", sum.Failed))
			}
		}
		if !cfg.Library.Watch || len(cfg.Library.Roots) == 0 {
			return nil
		}
		if err := lib.Watch(gCtx, cfg.Library.Roots, broker.PublishModuleEvent); err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group once the server has stopped so the watcher
// exits too.
var errShutdown = errors.New("shutdown")
