package payouts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/raghavbatra/bazaario-backend/internal/ledger"
	"github.com/raghavbatra/bazaario-backend/pkg/config"
	"github.com/raghavbatra/bazaario-backend/pkg/db/models"
	"github.com/raghavbatra/bazaario-backend/pkg/enums"
	pkgerrors "github.com/raghavbatra/bazaario-backend/pkg/errors"
	"github.com/raghavbatra/bazaario-backend/pkg/logger"
	"github.com/raghavbatra/bazaario-backend/pkg/outbox"
	"github.com/raghavbatra/bazaario-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service batches approved commissions and delivered sub-orders into payout
// records. Balances below the configured minimum carry over to the next run.
type Service interface {
	ApproveCommissions(ctx context.Context, olderThan time.Duration) (int64, error)
	RunAffiliatePayouts(ctx context.Context) ([]models.Payout, error)
	RunSellerPayouts(ctx context.Context) ([]models.Payout, error)
}

type service struct {
	tx         txRunner
	repo       Repository
	ledgerRepo ledger.Repository
	outbox     outboxPublisher
	minAmount  decimal.Decimal
	logg       *logger.Logger
	now        func() time.Time
}

// NewService builds the payout batcher.
func NewService(
	tx txRunner,
	repo Repository,
	ledgerRepo ledger.Repository,
	publisher outboxPublisher,
	cfg config.PayoutConfig,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("payouts repository required")
	}
	if ledgerRepo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	minAmount, err := decimal.NewFromString(cfg.MinAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid payout minimum %q: %w", cfg.MinAmount, err)
	}
	if minAmount.IsNegative() {
		return nil, fmt.Errorf("payout minimum must not be negative")
	}
	return &service{
		tx:         tx,
		repo:       repo,
		ledgerRepo: ledgerRepo,
		outbox:     publisher,
		minAmount:  minAmount,
		logg:       logg,
		now:        time.Now,
	}, nil
}

// ApproveCommissions promotes pending commissions older than the given age.
// The delay leaves room for refunds before money is committed to a batch.
func (s *service) ApproveCommissions(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan)
	approved, err := s.repo.ApproveCommissionsBefore(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve commissions")
	}
	return approved, nil
}

func (s *service) RunAffiliatePayouts(ctx context.Context) ([]models.Payout, error) {
	balances, err := s.repo.ListAffiliateBalances(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list affiliate balances")
	}

	var created []models.Payout
	for _, balance := range balances {
		if balance.Amount.LessThan(s.minAmount) {
			continue
		}
		payout, err := s.payAffiliate(ctx, balance.RecipientID)
		if err != nil {
			return created, err
		}
		if payout != nil {
			created = append(created, *payout)
		}
	}
	return created, nil
}

// payAffiliate claims one affiliate's approved commissions in a transaction.
// A nil payout means a concurrent run got there first.
func (s *service) payAffiliate(ctx context.Context, affiliateID uuid.UUID) (*models.Payout, error) {
	var created *models.Payout
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ledgerRepo := s.ledgerRepo.WithTx(tx)

		commissions, err := repo.ListClaimableCommissions(ctx, affiliateID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list claimable commissions")
		}
		amount := decimal.Zero
		ids := make([]uuid.UUID, 0, len(commissions))
		for _, commission := range commissions {
			amount = amount.Add(commission.Amount)
			ids = append(ids, commission.ID)
		}
		if amount.LessThan(s.minAmount) {
			return nil
		}

		payout, err := repo.CreatePayout(ctx, &models.Payout{
			RecipientID: affiliateID,
			Type:        enums.PayoutTypeAffiliate,
			Status:      enums.PayoutStatusPending,
			Amount:      amount,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout")
		}

		claimed, err := repo.ClaimCommissions(ctx, payout.ID, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim commissions")
		}
		if claimed != int64(len(ids)) {
			// A concurrent run claimed part of the batch; abort and let the
			// next run recompute the balance.
			return pkgerrors.New(pkgerrors.CodeConflict, "commission batch claimed concurrently")
		}

		if err := s.recordPayout(ctx, tx, ledgerRepo, payout); err != nil {
			return err
		}
		created = payout
		return nil
	})
	if err != nil {
		if appErr := pkgerrors.As(err); appErr != nil && appErr.Code() == pkgerrors.CodeConflict {
			s.logg.Warn(s.logg.WithField(ctx, "affiliate_id", affiliateID.String()), "affiliate payout batch lost claim race")
			return nil, nil
		}
		return nil, err
	}
	return created, nil
}

func (s *service) RunSellerPayouts(ctx context.Context) ([]models.Payout, error) {
	balances, err := s.repo.ListSellerBalances(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list seller balances")
	}

	var created []models.Payout
	for _, balance := range balances {
		if balance.Amount.LessThan(s.minAmount) {
			continue
		}
		payout, err := s.paySeller(ctx, balance.RecipientID)
		if err != nil {
			return created, err
		}
		if payout != nil {
			created = append(created, *payout)
		}
	}
	return created, nil
}

func (s *service) paySeller(ctx context.Context, sellerID uuid.UUID) (*models.Payout, error) {
	var created *models.Payout
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ledgerRepo := s.ledgerRepo.WithTx(tx)

		subOrders, err := repo.ListClaimableSubOrders(ctx, sellerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list claimable sub-orders")
		}
		amount := decimal.Zero
		ids := make([]uuid.UUID, 0, len(subOrders))
		for _, subOrder := range subOrders {
			amount = amount.Add(subOrder.TotalAmount)
			ids = append(ids, subOrder.ID)
		}
		if amount.LessThan(s.minAmount) {
			return nil
		}

		payout, err := repo.CreatePayout(ctx, &models.Payout{
			RecipientID: sellerID,
			Type:        enums.PayoutTypeSeller,
			Status:      enums.PayoutStatusPending,
			Amount:      amount,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout")
		}

		claimed, err := repo.ClaimSubOrders(ctx, payout.ID, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim sub-orders")
		}
		if claimed != int64(len(ids)) {
			return pkgerrors.New(pkgerrors.CodeConflict, "sub-order batch claimed concurrently")
		}

		if err := s.recordPayout(ctx, tx, ledgerRepo, payout); err != nil {
			return err
		}
		created = payout
		return nil
	})
	if err != nil {
		if appErr := pkgerrors.As(err); appErr != nil && appErr.Code() == pkgerrors.CodeConflict {
			s.logg.Warn(s.logg.WithField(ctx, "seller_id", sellerID.String()), "seller payout batch lost claim race")
			return nil, nil
		}
		return nil, err
	}
	return created, nil
}

func (s *service) recordPayout(ctx context.Context, tx *gorm.DB, ledgerRepo ledger.Repository, payout *models.Payout) error {
	entry := &models.Transaction{
		PayoutID: &payout.ID,
		Type:     enums.TransactionTypePayout,
		Status:   enums.TransactionStatusPending,
		Amount:   payout.Amount,
	}
	if _, err := ledgerRepo.Append(ctx, entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append payout ledger entry")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventPayoutRecorded,
		AggregateType: enums.AggregatePayout,
		AggregateID:   payout.ID,
		Data: payloads.PayoutRecordedEvent{
			PayoutID:    payout.ID,
			RecipientID: payout.RecipientID,
			Type:        payout.Type,
			Amount:      payout.Amount,
		},
		Version: 1,
	}
	return s.outbox.Emit(ctx, tx, event)
}
