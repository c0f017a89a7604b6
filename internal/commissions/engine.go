package commissions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/raghavbatra/bazaario-backend/internal/affiliates"
	"github.com/raghavbatra/bazaario-backend/pkg/db/models"
	"github.com/raghavbatra/bazaario-backend/pkg/enums"
	pkgerrors "github.com/raghavbatra/bazaario-backend/pkg/errors"
	"github.com/raghavbatra/bazaario-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Engine settles affiliate commissions for a paid order. All rows for one
// order are written in a single transaction, and the dedup index on
// (affiliate, order item, level) makes a rerun of the same order a no-op.
type Engine struct {
	repo       Repository
	affiliates affiliates.Repository
	tx         txRunner
	log        *logger.Logger
}

// NewEngine builds a commission engine.
func NewEngine(repo Repository, affiliateRepo affiliates.Repository, tx txRunner, log *logger.Logger) (*Engine, error) {
	if repo == nil {
		return nil, errors.New("commission repository required")
	}
	if affiliateRepo == nil {
		return nil, errors.New("affiliate repository required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if log == nil {
		return nil, errors.New("logger required")
	}
	return &Engine{
		repo:       repo,
		affiliates: affiliateRepo,
		tx:         tx,
		log:        log,
	}, nil
}

// Run computes and persists up to three levels of commission for every item
// on the order. It returns the number of commission rows newly created, which
// is zero when the order was already settled or the buyer has no referrer.
func (e *Engine) Run(ctx context.Context, orderID uuid.UUID) (int, error) {
	if orderID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	ctx = e.log.WithOrderID(ctx, orderID.String())

	var created int
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := e.repo.WithTx(tx)
		affiliateRepo := e.affiliates.WithTx(tx)

		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.PaymentStatus != enums.PaymentStatusPaid {
			e.log.Warn(ctx, "skipping commission run for unpaid order")
			return nil
		}

		recipients, err := e.referralChain(ctx, affiliateRepo, order.UserID)
		if err != nil {
			return err
		}
		if len(recipients) == 0 {
			return nil
		}

		items, err := repo.ListOrderItems(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
		}

		for _, item := range items {
			product, err := repo.FindProduct(ctx, item.ProductID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}
			rates := product.CommissionPlan.Rates()

			for _, recipient := range recipients {
				rate := rates[recipient.level-1]
				amount := item.LineTotal.
					Mul(rate).
					Div(decimal.NewFromInt(100)).
					Round(2)
				if amount.IsZero() {
					continue
				}

				inserted, err := repo.Insert(ctx, &models.AffiliateCommission{
					AffiliateID: recipient.affiliate.ID,
					OrderID:     orderID,
					OrderItemID: item.ID,
					Level:       recipient.level,
					Rate:        rate,
					Amount:      amount,
					Status:      enums.CommissionStatusPending,
				})
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert commission")
				}
				if !inserted {
					continue
				}
				if err := affiliateRepo.CreditEarnings(ctx, recipient.affiliate.ID, amount); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit earnings")
				}
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

type chainRecipient struct {
	affiliate models.Affiliate
	level     int
}

// referralChain resolves the affiliates entitled to a cut of the buyer's
// order: the buyer's referrer at level 1, then up to two more ancestors. An
// inactive ancestor forfeits their level but does not promote deeper
// ancestors to a richer rate.
func (e *Engine) referralChain(ctx context.Context, repo affiliates.Repository, buyerID uuid.UUID) ([]chainRecipient, error) {
	buyer, err := repo.FindByUserID(ctx, buyerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer affiliate")
	}

	recipients := make([]chainRecipient, 0, enums.MaxCommissionDepth)
	nextID := buyer.ParentID
	for level := 1; level <= enums.MaxCommissionDepth && nextID != nil; level++ {
		ancestor, err := repo.FindByID(ctx, *nextID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load referral ancestor")
		}
		if ancestor.IsActive {
			recipients = append(recipients, chainRecipient{affiliate: *ancestor, level: level})
		}
		nextID = ancestor.ParentID
	}
	return recipients, nil
}
