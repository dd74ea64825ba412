package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"matrixci/internal/app"
	"matrixci/internal/config"
	"matrixci/internal/logging"
	"matrixci/internal/server"
)

// Entry point of the standalone server; same as `matrixci serve`.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	rec, err := app.NewRecording(cfg, logger)
	if err != nil {
		logger.Error("Cannot initialise recording.", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.New(rec.Runner, rec.Ledger, rec.Storage, logger).ListenAndServe(ctx, cfg.Addr); err != nil {
		logger.Error("Server stopped.", "error", err)
		os.Exit(1)
	}
}
