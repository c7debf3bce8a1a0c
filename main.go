// Package main is the entry point for the promille command line tool
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mrcode/promille/internal/app"
	"github.com/mrcode/promille/internal/models"
	"github.com/mrcode/promille/pkg/logging"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	logging.Setup()

	settings := models.DefaultSettings()
	if err := settings.Load(); err != nil {
		slog.Warn("Error loading settings, using defaults", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := app.New(settings, os.Stdout, os.Stderr, slog.Default())
	if err := application.Run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, app.ErrUsage) {
			stop()
			os.Exit(2)
		}
		slog.Error("Command failed", "error", err)
		stop()
		os.Exit(1)
	}
}
