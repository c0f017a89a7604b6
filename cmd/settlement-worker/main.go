package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/raghavbatra/bazaario-backend/internal/affiliates"
	"github.com/raghavbatra/bazaario-backend/internal/commissions"
	"github.com/raghavbatra/bazaario-backend/internal/notifications"
	"github.com/raghavbatra/bazaario-backend/internal/orders"
	"github.com/raghavbatra/bazaario-backend/pkg/config"
	"github.com/raghavbatra/bazaario-backend/pkg/db"
	"github.com/raghavbatra/bazaario-backend/pkg/logger"
	"github.com/raghavbatra/bazaario-backend/pkg/metrics"
	"github.com/raghavbatra/bazaario-backend/pkg/migrate"
	"github.com/raghavbatra/bazaario-backend/pkg/ops"
	"github.com/raghavbatra/bazaario-backend/pkg/outbox/idempotency"
	"github.com/raghavbatra/bazaario-backend/pkg/pubsub"
	"github.com/raghavbatra/bazaario-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "settlement-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "settlement-worker"

	logg = logger.New(logger.Options{
		ServiceName: "settlement-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
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

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	idempotencyManager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency manager", err)
		os.Exit(1)
	}

	affiliateRepo := affiliates.NewRepository(dbClient.DB())
	commissionRepo := commissions.NewRepository(dbClient.DB())
	engine, err := commissions.NewEngine(commissionRepo, affiliateRepo, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create commission engine", err)
		os.Exit(1)
	}

	settlementMetrics := metrics.NewSettlementMetrics(prometheus.DefaultRegisterer)
	notificationRepo := notifications.NewRepository(dbClient.DB())
	announcer, err := notifications.NewAnnouncer(notificationRepo, commissionRepo, affiliateRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create commission announcer", err)
		os.Exit(1)
	}

	commissionConsumer, err := commissions.NewConsumer(
		engine,
		pubsubClient.SettlementSubscription(),
		idempotencyManager,
		settlementMetrics,
		announcer,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create commission consumer", err)
		os.Exit(1)
	}

	var notificationConsumer *notifications.Consumer
	if sub := pubsubClient.NotificationsSubscription(); sub != nil {
		notificationConsumer, err = notifications.NewConsumer(
			notificationRepo,
			affiliateRepo,
			orders.NewRepository(dbClient.DB()),
			sub,
			idempotencyManager,
			logg,
		)
		if err != nil {
			logg.Error(context.Background(), "failed to create notification consumer", err)
			os.Exit(1)
		}
	}

	opsServer := ops.New(cfg.Ops.Port, logg, dbClient, redisClient, pubsubClient)

	service, err := NewService(ServiceParams{
		Config:               cfg,
		Logger:               logg,
		DB:                   dbClient,
		Redis:                redisClient,
		PubSub:               pubsubClient,
		CommissionConsumer:   commissionConsumer,
		NotificationConsumer: notificationConsumer,
		Ops:                  opsServer,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting settlement worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "settlement worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "settlement worker shutting down gracefully")
}
