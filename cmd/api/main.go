package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mohammadpnp/bulk-import/internal/bootstrap"
	"github.com/mohammadpnp/bulk-import/internal/config"
	"github.com/mohammadpnp/bulk-import/internal/logging"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	isDebug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// .env is optional; values feed ${VAR} references in the config file.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format, *isDebug)
	slog.SetDefault(logger)

	app, err := newApp(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize import service", "error", err)
		os.Exit(1)
	}
	defer app.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app.manager.StartProcessing(ctx)

	server := bootstrap.NewHTTPServer(cfg.Server, app.serverDeps())
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		logger.Info("HTTP server listening", "addr", addr, "storage", app.storage)
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("Received signal, shutting down", "signal", sig)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
	if err := app.manager.StopProcessing(shutdownCtx); err != nil {
		logger.Error("Import queue did not stop in time", "error", err)
	}

	logger.Info("Import service stopped")
}
