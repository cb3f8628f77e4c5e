package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"moneymover/internal/bankclient"
	"moneymover/internal/config"
	"moneymover/internal/handler"
	"moneymover/internal/ledger"
	"moneymover/internal/logging"
	"moneymover/internal/repository"
	"moneymover/internal/saga"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("moneymover", cfg.LogLevel, cfg.AppEnv)

	var (
		store       ledger.Store
		checkpoints saga.Checkpointer
	)
	switch cfg.StoreDriver {
	case "postgres":
		db, err := connectDB(cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store = repository.NewAccountStore(db)
		checkpoints = repository.NewTransferStateStore(db)
	case "memory":
		store = repository.NewMemoryStore()
		checkpoints = saga.NewMemoryCheckpointer()
	default:
		slog.Error("unknown store driver", "driver", cfg.StoreDriver)
		os.Exit(1)
	}

	registry := ledger.NewRegistry(store)

	var remote saga.RemoteLedger = ledger.NewLocalClient(registry)
	if cfg.LedgerURL != "" {
		remote = bankclient.New(cfg.LedgerURL)
		slog.Info("using remote ledger", "url", cfg.LedgerURL)
	}

	coordinator := saga.NewCoordinator(
		remote,
		checkpoints,
		cfg.ApprovalThreshold,
		saga.RetryPolicy{
			InitialInterval: cfg.RetryInitialInterval,
			Multiplier:      cfg.RetryMultiplier,
			MaxInterval:     cfg.RetryMaxInterval,
		},
	)

	// Pick up transfers that were in flight when the previous process died,
	// before the server starts admitting new work.
	if err := coordinator.ResumeAll(context.Background()); err != nil {
		slog.Error("failed to resume transfers", "error", err)
		os.Exit(1)
	}

	r := handler.NewRouter(registry, coordinator)

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	coordinator.Close()
	slog.Info("server stopped")
}

func connectDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connectDB: %w", err)
	}

	for i := range 30 {
		if err = db.Ping(); err == nil {
			return db, nil
		}
		slog.Info("waiting for database", "attempt", i+1)
		time.Sleep(time.Second)
	}

	db.Close()
	return nil, fmt.Errorf("connectDB: gave up after 30 attempts: %w", err)
}
