package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/raghavbatra/bazaario-backend/pkg/logger"
)

const (
	defaultReconcileWindow = 72 * time.Hour
	defaultReconcileLimit  = 100
)

type unsettledLister interface {
	ListUnsettledOrders(ctx context.Context, since time.Time, limit int) ([]uuid.UUID, error)
}

type commissionEngine interface {
	Run(ctx context.Context, orderID uuid.UUID) (int, error)
}

// SettlementReconcileJobParams configure the commission backfill job.
type SettlementReconcileJobParams struct {
	Logger     *logger.Logger
	Repository unsettledLister
	Engine     commissionEngine
	// Window bounds how far back paid orders are re-examined.
	Window time.Duration
	// Limit caps orders re-settled per cycle.
	Limit int
}

// NewSettlementReconcileJob builds the job that re-runs the commission
// engine for paid orders that somehow missed settlement, for example when
// an event landed in the dead letter table. The engine's dedup insert makes
// the re-run safe.
func NewSettlementReconcileJob(params SettlementReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("commission repository required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("commission engine required")
	}
	window := params.Window
	if window <= 0 {
		window = defaultReconcileWindow
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultReconcileLimit
	}
	return &settlementReconcileJob{
		logg:   params.Logger,
		repo:   params.Repository,
		engine: params.Engine,
		window: window,
		limit:  limit,
		now:    time.Now,
	}, nil
}

type settlementReconcileJob struct {
	logg   *logger.Logger
	repo   unsettledLister
	engine commissionEngine
	window time.Duration
	limit  int
	now    func() time.Time
}

func (j *settlementReconcileJob) Name() string { return "settlement-reconcile" }

func (j *settlementReconcileJob) Run(ctx context.Context) error {
	since := j.now().Add(-j.window)
	orderIDs, err := j.repo.ListUnsettledOrders(ctx, since, j.limit)
	if err != nil {
		return fmt.Errorf("list unsettled orders: %w", err)
	}
	if len(orderIDs) == 0 {
		return nil
	}

	var errs []error
	var credited int
	for _, orderID := range orderIDs {
		n, err := j.engine.Run(ctx, orderID)
		if err != nil {
			errs = append(errs, fmt.Errorf("settle order %s: %w", orderID, err))
			continue
		}
		credited += n
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"orders_checked":      len(orderIDs),
		"commissions_created": credited,
	})
	j.logg.Info(logCtx, "settlement reconcile pass complete")
	return multierr.Combine(errs...)
}
