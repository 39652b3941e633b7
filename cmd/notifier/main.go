package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/safetyverse/weather-alerts/internal/notification"
	"github.com/safetyverse/weather-alerts/internal/observability"
	"github.com/safetyverse/weather-alerts/internal/queue"
	"github.com/safetyverse/weather-alerts/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, "notifier")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting Alert Notifier...")

	if !cfg.Kafka.Enabled {
		logger.Fatal("KAFKA_ENABLED must be true for the notifier")
	}

	slack := notification.NewSlackNotifier(cfg.Slack.WebhookURL, logger)
	if !slack.Enabled() {
		logger.Warn("SLACK_WEBHOOK_URL not set, events will be consumed and dropped")
	}

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, cfg.Kafka.GroupID)
	defer consumer.Close()
	logger.Info("Kafka consumer initialized",
		zap.String("topic", cfg.Kafka.TopicAlerts),
		zap.String("group_id", cfg.Kafka.GroupID),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	relay := notification.NewRelay(consumer, slack, logger)
	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Relay stopped", zap.Error(err))
	}

	logger.Info("Shutting down gracefully...")
}
