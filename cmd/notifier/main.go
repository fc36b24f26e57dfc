package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/utafrali/ReviewGo/internal/app"
	"github.com/utafrali/ReviewGo/internal/config"
	"github.com/utafrali/ReviewGo/pkg/logger"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New(app.NotifierName, cfg.LogLevel)
	log.Info("starting review notifier",
		slog.String("environment", cfg.Environment),
		slog.Any("kafka_brokers", cfg.KafkaBrokers),
		slog.String("consumer_group", cfg.KafkaConsumerGroup),
	)

	notifier, err := app.NewNotifier(cfg, log)
	if err != nil {
		log.Error("failed to initialize notifier", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := notifier.Run(ctx); err != nil {
		log.Error("notifier error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("review notifier stopped")
}
