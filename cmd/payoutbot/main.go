package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payoutbot/bot/app"
	"payoutbot/core/buildinfo"
	"payoutbot/core/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("payoutbot: %v", err)
	}
}

func run() error {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := app.LoadConfig(cfgPath)
	if err != nil {
		return err
	}
	if err := logger.Init(&cfg.Config); err != nil {
		return err
	}

	startedAt := time.Now()
	logger.L.With("component", "app").Info("starting",
		slog.String("event", "start"),
		slog.String("version", buildinfo.Version),
		slog.String("commit", buildinfo.Commit),
	)

	application, err := app.Bootstrap(cfg)
	if err != nil {
		return err
	}

	logger.L.With("component", "app").Info("app ready",
		slog.String("event", "ready"),
		slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return application.Run(ctx)
}
