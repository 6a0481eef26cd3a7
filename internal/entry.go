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

	"github.com/starford/mdchat/internal/api"
	"github.com/starford/mdchat/internal/index"
	"github.com/starford/mdchat/internal/mcpserver"
	"github.com/starford/mdchat/internal/nodeservice"
	"github.com/starford/mdchat/internal/sse"
	"github.com/starford/mdchat/internal/storage"
)

// components holds what every entry point shares.
type components struct {
	cfg     *Config
	logger  *slog.Logger
	reg     *storage.Registry
	backend storage.Backend
	db      *index.DB
}

func (rt *components) close() {
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			rt.logger.Warn("index close failed", slog.String("error", err.Error()))
		}
	}
}

// newComponents applies opts, sets up logging, opens the default storage
// session and, when enabled, the search index with an initial sync.
func newComponents(ctx context.Context, opts []Option) (*components, error) {
	app := &application{logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := NewLogger(app.logOutput, cfg.App.LogFormat, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_type", cfg.Storage.Type),
		slog.String("storage_path", cfg.Storage.Path),
		slog.Bool("index_enabled", cfg.Index.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	reg := storage.NewRegistry(storage.Options{
		Kind:   cfg.Storage.Kind(),
		Path:   cfg.Storage.Path,
		Logger: logger,
	})
	backend, err := reg.Get(ctx, storage.DefaultSession)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	rt := &components{cfg: cfg, logger: logger, reg: reg, backend: backend}
	if !cfg.Index.Enabled {
		return rt, nil
	}

	db, err := index.Open(cfg.Index.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	rt.db = db

	if err := index.Sync(ctx, db, backend, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return rt, nil
}

func (rt *components) service(events nodeservice.Publisher) *nodeservice.Service {
	return nodeservice.NewService(rt.reg, rt.db, events, rt.logger)
}

func (rt *components) version() api.VersionInfo {
	v := rt.cfg.App.Version
	return api.VersionInfo{Version: v.Version, Commit: v.Commit, BuildDate: v.BuildDate}
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	rt, err := newComponents(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.close()

	cfg, logger := rt.cfg, rt.logger

	// SSE broker.
	broker := sse.NewBroker(cfg.Events.TreeThrottle)
	defer broker.Close()

	svc := rt.service(broker)
	apiRouter := api.NewRouter(svc, api.RouterOptions{
		Events:  broker,
		Version: rt.version(),
		Logger:  logger,
	})

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints.
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", rt.ready)

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Follow edits made on disk outside the process.
	if fsb, ok := rt.backend.(*storage.FS); ok && rt.db != nil {
		g.Go(func() error {
			err := index.Watch(gCtx, rt.db, fsb, fsb.Root(), logger, func(kind, path string) {
				broker.PublishNodeEvent(kind, sse.NodeEvent{Session: storage.DefaultSession, Path: path})
			})
			if err != nil {
				logger.Error("watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
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

		// Event streams never end on their own.
		broker.Close()

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

// errShutdown cancels the group once the server is asked to stop, which
// also stops the watcher.
var errShutdown = errors.New("shutdown")

// ready reports whether the default storage session answers.
func (rt *components) ready(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := rt.backend.GetNode(r.Context(), "/"); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// RunMCP serves the storage tools over stdio until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	rt, err := newComponents(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.close()

	rt.logger.Info("MCP server starting on stdio")
	return mcpserver.New(rt.service(nil), rt.cfg.App.Version.Version).ServeStdio()
}

// RunSummarize regenerates the folder summaries below path, renaming
// children after their titles when rename is set.
func RunSummarize(ctx context.Context, path string, rename bool, opts ...Option) error {
	rt, err := newComponents(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.close()

	start := time.Now()
	if err := rt.service(nil).Summarize(ctx, storage.DefaultSession, path, rename); err != nil {
		return fmt.Errorf("summarize %s: %w", path, err)
	}
	rt.logger.Info("Summaries updated",
		slog.String("path", path),
		slog.Bool("rename", rename),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}
