package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"trade-journal-go/internal/auth"
	"trade-journal-go/internal/config"
	"trade-journal-go/internal/database"
	"trade-journal-go/internal/journal"
	"trade-journal-go/internal/logger"
	"trade-journal-go/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	kv, err := newKV(&cfg, log)
	if err != nil {
		log.Fatal("Failed to open storage", zap.Error(err))
	}

	store := journal.NewStore(kv, log,
		journal.WithOwner(cfg.Journal.OwnerID),
		journal.WithKey(cfg.Storage.TradesKey),
	)
	if err := store.Load(); err != nil {
		// A broken payload must not keep the journal from starting. The store has
		// backed it up, or blocks writes when it could not.
		log.Error("Starting with an empty journal", zap.Error(err))
	}

	session := auth.NewSession(kv, log, cfg.Storage.AuthKey, cfg.Auth.Delay)
	if err := session.Load(); err != nil {
		log.Warn("Could not restore signed-in user", zap.Error(err))
	}

	apiHandler := NewAPIHandler(log, store, session)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      apiHandler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Setup context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("Starting web server", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Web server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutdown signal received, gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Web server shutdown failed", zap.Error(err))
	}
	if err := store.Flush(); err != nil {
		log.Error("Final persist failed", zap.Error(err))
	}

	log.Info("Journal has been shut down.")
}

// newKV opens the configured key-value storage.
func newKV(cfg *config.Config, log *zap.Logger) (storage.KV, error) {
	if cfg.Storage.Ephemeral {
		log.Warn("Using in-memory storage, nothing will be kept after exit")
		return storage.NewMemory(), nil
	}
	db, err := database.NewDatabase(cfg.Database.DSN, log)
	if err != nil {
		return nil, err
	}
	return storage.NewGorm(db, cfg.Storage.Scope), nil
}
