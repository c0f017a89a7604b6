package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raghavbatra/bazaario-backend/internal/commissions"
	"github.com/raghavbatra/bazaario-backend/internal/notifications"
	"github.com/raghavbatra/bazaario-backend/pkg/config"
	"github.com/raghavbatra/bazaario-backend/pkg/db"
	"github.com/raghavbatra/bazaario-backend/pkg/logger"
	"github.com/raghavbatra/bazaario-backend/pkg/ops"
	"github.com/raghavbatra/bazaario-backend/pkg/pubsub"
	"github.com/raghavbatra/bazaario-backend/pkg/redis"
)

type ServiceParams struct {
	Config               *config.Config
	Logger               *logger.Logger
	DB                   *db.Client
	Redis                *redis.Client
	PubSub               *pubsub.Client
	CommissionConsumer   *commissions.Consumer
	NotificationConsumer *notifications.Consumer
	Ops                  *ops.Server
}

// Service runs the settlement consumers and keeps the ops endpoints alive.
type Service struct {
	cfg                  *config.Config
	logg                 *logger.Logger
	db                   *db.Client
	redis                *redis.Client
	pubsub               *pubsub.Client
	commissionConsumer   *commissions.Consumer
	notificationConsumer *notifications.Consumer
	ops                  *ops.Server
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.CommissionConsumer == nil {
		return nil, errors.New("commission consumer is required")
	}

	return &Service{
		cfg:                  params.Config,
		logg:                 params.Logger,
		db:                   params.DB,
		redis:                params.Redis,
		pubsub:               params.PubSub,
		commissionConsumer:   params.CommissionConsumer,
		notificationConsumer: params.NotificationConsumer,
		ops:                  params.Ops,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "pubsub", s.pubsub.Ping); err != nil {
		return err
	}
	s.logg.Info(ctx, "all settlement worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	errCh := make(chan error, 3)
	go func() {
		errCh <- s.commissionConsumer.Run(ctx)
	}()
	if s.notificationConsumer != nil {
		go func() {
			errCh <- s.notificationConsumer.Run(ctx)
		}()
	}
	if s.ops != nil {
		go func() {
			errCh <- s.ops.Start(ctx)
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.ops.Shutdown(shutdownCtx); err != nil {
				s.logg.Error(ctx, "ops server shutdown failed", err)
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "settlement worker context canceled")
			return ctx.Err()
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(ctx, "consumer stopped unexpectedly", err)
				return err
			}
			return err
		case <-ticker.C:
		}
	}
}
