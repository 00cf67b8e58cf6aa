package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mkarls/redisgw/internal/config"
	"github.com/mkarls/redisgw/internal/logging"
	"github.com/mkarls/redisgw/internal/server"
	"github.com/mkarls/redisgw/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/redisgw.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := logging.New(os.Stdout, "info")
	slog.SetDefault(logger)

	logger.Info("starting redisgw",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Rebuild the logger at the configured level
	logger = logging.New(os.Stdout, cfg.Log.Level)
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		"redis_addr", cfg.Redis.Addr(),
		"http_addr", cfg.HTTP.Addr(),
		"workers", cfg.Workers.Count,
		"pool_size", cfg.Workers.PoolSize,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	srv := server.New(cfg, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("redisgw stopped")
}
