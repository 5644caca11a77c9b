package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eshaffer321/transfer-reconciler/internal/api"
	"github.com/eshaffer321/transfer-reconciler/internal/infrastructure/config"
	"github.com/eshaffer321/transfer-reconciler/internal/infrastructure/storage"
)

// RunServe runs the API server and the periodic pending-transfer matcher
// until SIGINT or SIGTERM.
func RunServe(cfg *config.Config, flags *ServeFlags) error {
	logger := NewLogger(cfg, flags.CommonFlags, "api")

	// Initialize storage
	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	// Create API config
	apiCfg := api.Config{
		Port:           cfg.API.Port,
		AllowedOrigins: cfg.API.AllowedOrigins,
	}
	if flags.Port > 0 {
		apiCfg.Port = flags.Port
	}

	services := api.NewServices(store, DetectionOptions(cfg), LedgerOptions(cfg), logger)
	server := api.NewServer(apiCfg, store, services, logger)

	if interval := cfg.Scheduler.PendingMatchInterval; interval > 0 {
		services.Ledger.StartPeriodicMatching(interval)
		defer services.Ledger.StopPeriodicMatching()
	}

	// Handle graceful shutdown
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	go func() {
		<-quit
		logger.Info("received shutdown signal")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", slog.Any("error", err))
		}
		close(done)
	}()

	// Start server (blocks until shutdown)
	if err := server.Start(); err != nil {
		return err
	}

	<-done
	logger.Info("server stopped")
	return nil
}
