// Command server runs the review HTTP API, its scheduled jobs and, unless
// notifications go through Kafka, the in-process notification sinks.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/utafrali/ReviewGo/internal/app"
	"github.com/utafrali/ReviewGo/internal/config"
	"github.com/utafrali/ReviewGo/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("review server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(app.ServerName, cfg.LogLevel)
	slog.SetDefault(log)

	log.Info("starting review server",
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
		slog.String("search_engine", cfg.SearchEngine),
		slog.Bool("notify_via_kafka", cfg.NotifyKafka),
	)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		return err
	}
	log.Info("review server stopped")
	return nil
}
