package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/raghavbatra/bazaario-backend/internal/affiliates"
	"github.com/raghavbatra/bazaario-backend/internal/commissions"
	"github.com/raghavbatra/bazaario-backend/internal/cron"
	"github.com/raghavbatra/bazaario-backend/internal/ledger"
	"github.com/raghavbatra/bazaario-backend/internal/notifications"
	"github.com/raghavbatra/bazaario-backend/internal/payouts"
	"github.com/raghavbatra/bazaario-backend/pkg/config"
	"github.com/raghavbatra/bazaario-backend/pkg/db"
	"github.com/raghavbatra/bazaario-backend/pkg/logger"
	"github.com/raghavbatra/bazaario-backend/pkg/metrics"
	"github.com/raghavbatra/bazaario-backend/pkg/migrate"
	"github.com/raghavbatra/bazaario-backend/pkg/ops"
	"github.com/raghavbatra/bazaario-backend/pkg/outbox"
	"github.com/raghavbatra/bazaario-backend/pkg/redis"
)

const lockKeyFormat = "bz:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outboxRepo, logg)
	payoutRepo := payouts.NewRepository(dbClient.DB())
	ledgerRepo := ledger.NewRepository(dbClient.DB())
	payoutService, err := payouts.NewService(dbClient, payoutRepo, ledgerRepo, outboxService, cfg.Payouts, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payout service", err)
		os.Exit(1)
	}

	affiliateJob, err := cron.NewAffiliatePayoutJob(cron.AffiliatePayoutJobParams{
		Logger:   logg,
		Payout:   payoutService,
		Hold:     cfg.Payouts.CommissionHold,
		Interval: cfg.Payouts.AffiliateInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create affiliate payout job", err)
		os.Exit(1)
	}
	sellerJob, err := cron.NewSellerPayoutJob(cron.SellerPayoutJobParams{
		Logger:   logg,
		Payout:   payoutService,
		Interval: cfg.Payouts.SellerInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create seller payout job", err)
		os.Exit(1)
	}
	outboxRetentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outboxRepo,
		MaxAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}
	notificationCleanupJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		Repository: notifications.NewRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification cleanup job", err)
		os.Exit(1)
	}
	commissionRepo := commissions.NewRepository(dbClient.DB())
	commissionEngine, err := commissions.NewEngine(commissionRepo, affiliates.NewRepository(dbClient.DB()), dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create commission engine", err)
		os.Exit(1)
	}
	reconcileJob, err := cron.NewSettlementReconcileJob(cron.SettlementReconcileJobParams{
		Logger:     logg,
		Repository: commissionRepo,
		Engine:     commissionEngine,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement reconcile job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(affiliateJob, sellerJob, reconcileJob, outboxRetentionJob, notificationCleanupJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	opsServer := ops.New(cfg.Ops.Port, logg, dbClient, redisClient)
	go func() {
		if err := opsServer.Start(ctx); err != nil {
			logg.Error(ctx, "ops server stopped unexpectedly", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "ops server shutdown failed", err)
		}
	}()

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
