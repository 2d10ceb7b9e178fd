package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xelth-com/eckposgo/internal/app"
	"github.com/xelth-com/eckposgo/internal/config"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	syncCfg, err := config.LoadSyncConfig()
	if err != nil {
		log.Fatalf("Failed to load sync configuration: %v", err)
	}
	logger := config.NewLogger(cfg.Log)

	// 2. Open the store and wire the components
	terminal, err := app.New(cfg, syncCfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize terminal: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Background work: hub, route monitor, sync scheduler, housekeeping
	if err := terminal.Start(ctx); err != nil {
		logger.Fatalf("Failed to start terminal: %v", err)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           terminal.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithFields(map[string]interface{}{
			"port":     cfg.Port,
			"terminal": cfg.TerminalID,
		}).Info("🚀 Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Warn("⚠️  Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("HTTP server error")
	}

	// 4. Stop the engine (waits for an in-flight cycle) and close the store
	terminal.Stop()
	logger.Info("🛑 Closing database connection...")
	if err := terminal.Close(); err != nil {
		logger.WithError(err).Error("Database close error")
	}
	logger.Info("✅ Shutdown complete")
}
