package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zazmarga/online-cinema/internal/notifications"
	"github.com/zazmarga/online-cinema/pkg/config"
	"github.com/zazmarga/online-cinema/pkg/db"
	"github.com/zazmarga/online-cinema/pkg/logger"
	"github.com/zazmarga/online-cinema/pkg/metrics"
	"github.com/zazmarga/online-cinema/pkg/migrate"
	"github.com/zazmarga/online-cinema/pkg/outbox"
	"github.com/zazmarga/online-cinema/pkg/outbox/idempotency"
	"github.com/zazmarga/online-cinema/pkg/redis"
)

const serviceName = "outbox-publisher"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	var (
		redisPinger pinger
		tracker     *idempotency.Manager
	)
	if cfg.Redis.URL != "" || cfg.Redis.Address != "" {
		redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		redisPinger = redisClient
		tracker, err = idempotency.NewManager(redisClient, cfg.Webhook.EventTTL)
		if err != nil {
			logg.Error(context.Background(), "failed to build idempotency manager", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "redis not configured, notifications are not de-duplicated")
	}

	notifier, err := buildNotifier(cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build notifier", err)
		os.Exit(1)
	}

	var dispatcher *notifications.Dispatcher
	if tracker != nil {
		dispatcher, err = notifications.NewDispatcher(notifier, tracker, cfg.App.BaseURL, logg)
	} else {
		dispatcher, err = notifications.NewDispatcher(notifier, nil, cfg.App.BaseURL, logg)
	}
	if err != nil {
		logg.Error(context.Background(), "failed to build notification dispatcher", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Redis:      redisPinger,
		Repository: outbox.NewRepository(dbClient.DB()),
		Registry:   outbox.DefaultRegistry(),
		Handler:    dispatcher,
		Metrics:    metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox publisher", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceName,
	})
	logg.Info(ctx, "starting outbox publisher")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "outbox publisher shutting down gracefully")
}

func buildNotifier(cfg *config.Config, logg *logger.Logger) (notifications.Notifier, error) {
	if !cfg.SMTP.Enabled() {
		logg.Warn(context.Background(), "smtp not configured, payment emails are logged only")
		return notifications.NewLogNotifier(logg), nil
	}
	return notifications.NewSMTPNotifier(cfg.SMTP)
}
