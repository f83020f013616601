package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dharsanguruparan/billsync/internal/app"
	"github.com/dharsanguruparan/billsync/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Could not load config.", "error", err)
		os.Exit(1)
	}
	cfg.NewLogger(os.Stdout)

	if err := app.RunWorker(ctx, cfg); err != nil {
		slog.Error("Worker stopped.", "error", err)
		os.Exit(1)
	}
}
