// Package internal provides the application wiring: the long-running
// server, the MCP server and the one-shot CLI operations.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/smarttags/internal/api"
	"github.com/starford/smarttags/internal/index"
	"github.com/starford/smarttags/internal/mcpserver"
	"github.com/starford/smarttags/internal/sse"
	"github.com/starford/smarttags/internal/storage"
	"github.com/starford/smarttags/internal/tagservice"
)

var errConfigRequired = errors.New("config is required")

// defaultIndexFile is used by the long-running surfaces when no index path
// is configured. It sits next to the store file.
const defaultIndexFile = ".smart-tags-index.db"

// runtime is the set of components shared by serve and mcp.
type runtime struct {
	vault *storage.FS
	db    *index.DB
	svc   *tagservice.Service
}

func (r *runtime) Close() {
	if r.db != nil {
		_ = r.db.Close()
	}
}

func indexPath(cfg *Config) string {
	if cfg.Index.Enabled() {
		return cfg.Index.Path
	}
	return filepath.Join(filepath.Dir(cfg.Store.Path), defaultIndexFile)
}

// openRuntime prepares the vault, syncs the index and loads the tag store.
func openRuntime(cfg *Config, logger *slog.Logger, events tagservice.EventFunc) (*runtime, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	vault, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(indexPath(cfg))
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	rt := &runtime{vault: vault, db: db}

	if err := index.Sync(db, vault, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	opts := []tagservice.Option{
		tagservice.WithDocuments(vault),
		tagservice.WithIndex(db),
		tagservice.WithMatcher(cfg.Matcher.Matcher()),
		tagservice.WithLogger(logger),
	}
	if events != nil {
		opts = append(opts, tagservice.WithEvents(events))
	}
	rt.svc, err = tagservice.New(cfg.Store.Path, opts...)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("load tag store: %w", err)
	}
	return rt, nil
}

// Run starts the HTTP API, the SSE broker and the vault watcher, and blocks
// until ctx is cancelled or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
		slog.SetDefault(logger)
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("store_path", cfg.Store.Path),
		slog.String("index_path", indexPath(cfg)),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	rt, err := openRuntime(cfg, logger, func(e tagservice.Event) {
		broker.PublishChange(sse.Event{Type: e.Kind, Data: e})
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	apiRouter := api.NewRouter(rt.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the vault and the store file.
	g.Go(func() error {
		return index.Watch(gCtx, rt.db, rt.vault, cfg.Vault.Path, logger, func(kind, path string) {
			switch kind {
			case index.EventStoreChanged:
				if err := rt.svc.Reload(gCtx); err != nil {
					logger.Warn("store reload failed", slog.String("error", err.Error()))
				}
			case index.EventDeleted:
				broker.PublishChange(sse.Event{Type: sse.TypeDocumentRemoved, Data: map[string]string{"path": path}})
			default:
				broker.PublishChange(sse.Event{Type: sse.TypeDocumentIndexed, Data: map[string]string{"path": path}})
			}
		}, index.WithStoreFile(cfg.Store.Path))
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

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr since
// stdout carries the protocol.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: app.config.App.LogLevel}))
	}

	rt, err := openRuntime(app.config, logger, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	return mcpserver.New(rt.svc, app.version).ServeStdio()
}
