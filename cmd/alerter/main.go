package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/safetyverse/weather-alerts/internal/alarming"
	"github.com/safetyverse/weather-alerts/internal/api"
	"github.com/safetyverse/weather-alerts/internal/conditions"
	"github.com/safetyverse/weather-alerts/internal/database"
	"github.com/safetyverse/weather-alerts/internal/hazard"
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

	logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, "alerter")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting Weather Alert Service...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := database.Connect(ctx, cfg.Database.ConnectionString(), logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Connected to database")

	if err := db.RunMigrations(ctx); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Optional cooldown cache
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("Failed to connect to Redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	clock := clockwork.NewRealClock()
	metrics := observability.NewMetrics()

	deps := alarming.EngineDeps{
		Store:      db,
		Provider:   conditions.NewOpenMeteoProvider(cfg.Weather, clock, logger),
		Evaluator:  hazard.NewEvaluator(thresholds(cfg.Alerts.Current), thresholds(cfg.Alerts.Forecast)),
		Cooldowns:  alarming.NewCooldownGate(db, redisClient, cfg.Alerts.CooldownWindow, clock, logger, metrics),
		Renderer:   notification.NewTemplateRenderer(),
		Dispatcher: notification.NewDispatcher(cfg.Email, logger),
		Clock:      clock,
		Logger:     logger,
		Metrics:    metrics,
	}

	// Optional alert event stream
	if cfg.Kafka.Enabled {
		producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts)
		defer producer.Close()
		deps.Publisher = producer
		logger.Info("Kafka producer initialized",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.TopicAlerts),
		)
	}

	engine := alarming.NewEngine(deps, alarming.EngineConfig{
		MaxConcurrentSites: cfg.Alerts.MaxConcurrentSites,
		FetchTimeout:       cfg.Alerts.FetchTimeout,
		DispatchTimeout:    cfg.Alerts.DispatchTimeout,
		StoreTimeout:       cfg.Alerts.StoreTimeout,
	})
	scheduler := alarming.NewScheduler(engine, cfg.Alerts.PollInterval, cfg.Alerts.StartupDelay, clock, logger, metrics)

	router := api.NewRouter(api.Deps{
		Store:          db,
		Provider:       deps.Provider,
		Evaluator:      deps.Evaluator,
		Trigger:        scheduler,
		Clock:          clock,
		Logger:         logger,
		ActiveWindow:   cfg.Alerts.ActiveWindow,
		CooldownWindow: cfg.Alerts.CooldownWindow,
		PollInterval:   cfg.Alerts.PollInterval,
		FetchTimeout:   cfg.Alerts.FetchTimeout,
	})
	server := api.NewServer(cfg.HTTP.Addr(), router, logger)
	server.Start()

	schedulerDone := make(chan struct{})
	go func() {
		scheduler.Start(ctx)
		close(schedulerDone)
	}()

	logger.Info("Weather Alert Service is running",
		zap.String("http_addr", cfg.HTTP.Addr()),
		zap.Duration("poll_interval", cfg.Alerts.PollInterval),
		zap.String("email_provider", cfg.Email.Provider),
	)

	<-ctx.Done()
	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	<-schedulerDone

	logger.Info("Shutdown complete")
}

func thresholds(t config.Thresholds) hazard.Thresholds {
	return hazard.Thresholds{
		HeatIndex: t.HeatIndex,
		ColdTemp:  t.ColdTemp,
		WindSpeed: t.WindSpeed,
		AQI:       t.AQI,
	}
}
