// Package main is the entry point for the membership ledger server.
//
// The main package is kept minimal. Its job is to:
// 1. Read configuration (env vars, .env, config.yaml)
// 2. Create the logger
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/service, etc.).
package main

import (
	"log/slog"
	"os"

	"github.com/sakif/membership-ledger/internal/config"
	"github.com/sakif/membership-ledger/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// Config errors are reported before the configured logger exists.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// LOG_LEVEL picks the floor: debug, info, warn or error.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	// === 3. CREATE AND START THE SERVER ===
	srv, err := server.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
