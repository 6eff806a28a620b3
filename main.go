package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"deposito-ledger/config"
	"deposito-ledger/handler"
	"deposito-ledger/logging"
	"deposito-ledger/settlement"
	"deposito-ledger/storage"
	"deposito-ledger/storage/gormstore"
	"deposito-ledger/storage/postgres"
	"deposito-ledger/storage/rediscache"
	"deposito-ledger/wal"
)

func main() {
	configPath := flag.String("config", os.Getenv("BANK_CONFIG"), "path to a YAML config file")
	flag.Parse()

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize storage", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("Storage ready", "backend", cfg.Store.Backend, "redis_cache", cfg.Redis.URL != "")

	if cfg.SeedDemoData {
		if err := storage.Seed(ctx, store); err != nil {
			logger.Error("Failed to seed demo data", "error", err)
			os.Exit(1)
		}
	}

	service := settlement.NewService(store, logger)

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: handler.NewRouter(store, service, logger),
	}

	go func() {
		logger.Info("Starting server", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ListenAndServe error", "error", err)
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
		return
	}
	logger.Info("Server gracefully stopped")
}

// openStore builds the configured backend, wrapped in the Redis cache when a
// Redis URL is set.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	var store storage.Store
	switch cfg.Store.Backend {
	case "postgres":
		pg, err := postgres.New(ctx, cfg.Store.DatabaseURL, cfg.Store.OperationTimeout, logger)
		if err != nil {
			return nil, err
		}
		store = pg
	case "gorm":
		g, err := gormstore.Open(gormstore.Config{
			Driver:   cfg.Store.GormDriver,
			DSN:      cfg.Store.DatabaseURL,
			Timeout:  cfg.Store.OperationTimeout,
			LogLevel: cfg.Log.Level,
		}, logger)
		if err != nil {
			return nil, err
		}
		store = g
	default:
		var journal *wal.WAL
		if cfg.Store.WALPath != "" {
			var err error
			if journal, err = wal.Open(cfg.Store.WALPath); err != nil {
				return nil, err
			}
		}
		// On a failed replay NewMemoryStore has already closed journal.
		mem, err := storage.NewMemoryStore(journal)
		if err != nil {
			return nil, err
		}
		store = mem
	}

	if cfg.Redis.URL == "" {
		return store, nil
	}
	cached, err := rediscache.NewFromURL(ctx, store, cfg.Redis.URL, cfg.Redis.TTL, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return cached, nil
}
