package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/raghavbatra/bazaario-backend/pkg/db/models"
	"github.com/raghavbatra/bazaario-backend/pkg/logger"
)

type payoutRunner interface {
	ApproveCommissions(ctx context.Context, olderThan time.Duration) (int64, error)
	RunAffiliatePayouts(ctx context.Context) ([]models.Payout, error)
	RunSellerPayouts(ctx context.Context) ([]models.Payout, error)
}

// intervalGate skips a job body until its own cadence is due. The cron
// service ticks faster than payouts batch, so jobs gate themselves.
type intervalGate struct {
	every   time.Duration
	lastRun time.Time
	now     func() time.Time
}

func (g *intervalGate) due() bool {
	if g.every <= 0 {
		return true
	}
	now := g.now()
	if !g.lastRun.IsZero() && now.Sub(g.lastRun) < g.every {
		return false
	}
	g.lastRun = now
	return true
}

// AffiliatePayoutJobParams configure the affiliate settlement job.
type AffiliatePayoutJobParams struct {
	Logger *logger.Logger
	Payout payoutRunner
	// Hold is how long a commission stays pending before approval.
	Hold time.Duration
	// Interval is the affiliate batching cadence.
	Interval time.Duration
}

// NewAffiliatePayoutJob builds the job that approves matured commissions
// every cycle and batches affiliate balances on the configured cadence.
func NewAffiliatePayoutJob(params AffiliatePayoutJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payout == nil {
		return nil, fmt.Errorf("payout service required")
	}
	return &affiliatePayoutJob{
		logg:   params.Logger,
		payout: params.Payout,
		hold:   params.Hold,
		gate:   &intervalGate{every: params.Interval, now: time.Now},
	}, nil
}

type affiliatePayoutJob struct {
	logg   *logger.Logger
	payout payoutRunner
	hold   time.Duration
	gate   *intervalGate
}

func (j *affiliatePayoutJob) Name() string { return "affiliate-payouts" }

func (j *affiliatePayoutJob) Run(ctx context.Context) error {
	var errs []error

	approved, err := j.payout.ApproveCommissions(ctx, j.hold)
	if err != nil {
		errs = append(errs, fmt.Errorf("approve commissions: %w", err))
	} else {
		logCtx := j.logg.WithField(ctx, "approved", approved)
		j.logg.Info(logCtx, "commission approval pass complete")
	}

	if j.gate.due() {
		payouts, err := j.payout.RunAffiliatePayouts(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("affiliate payouts: %w", err))
		} else {
			logCtx := j.logg.WithField(ctx, "payouts_created", len(payouts))
			j.logg.Info(logCtx, "affiliate payout batch complete")
		}
	}
	return multierr.Combine(errs...)
}

// SellerPayoutJobParams configure the seller settlement job.
type SellerPayoutJobParams struct {
	Logger   *logger.Logger
	Payout   payoutRunner
	Interval time.Duration
}

// NewSellerPayoutJob builds the job that batches delivered sub-order
// balances into seller payouts.
func NewSellerPayoutJob(params SellerPayoutJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payout == nil {
		return nil, fmt.Errorf("payout service required")
	}
	return &sellerPayoutJob{
		logg:   params.Logger,
		payout: params.Payout,
		gate:   &intervalGate{every: params.Interval, now: time.Now},
	}, nil
}

type sellerPayoutJob struct {
	logg   *logger.Logger
	payout payoutRunner
	gate   *intervalGate
}

func (j *sellerPayoutJob) Name() string { return "seller-payouts" }

func (j *sellerPayoutJob) Run(ctx context.Context) error {
	if !j.gate.due() {
		return nil
	}
	payouts, err := j.payout.RunSellerPayouts(ctx)
	if err != nil {
		return fmt.Errorf("seller payouts: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "payouts_created", len(payouts))
	j.logg.Info(logCtx, "seller payout batch complete")
	return nil
}
