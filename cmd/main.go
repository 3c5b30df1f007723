package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"co2dash/internal/app"
	"co2dash/internal/config"
	"co2dash/internal/logging"
)

const appName = "co2dash"

// Default version is "dev" if not set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg, version, appName)

	logger.Info("starting",
		"version", version,
		"env", cfg.AppEnv,
		"log_level", cfg.LogLevel.String(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("run failed", "err", err)
		os.Exit(1)
	}

	logger.Info("shutting down")
}
