package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/raghavbatra/bazaario-backend/pkg/db/models"
	"github.com/raghavbatra/bazaario-backend/pkg/enums"
)

// RecipientTotal is the unpaid balance aggregated per recipient.
type RecipientTotal struct {
	RecipientID uuid.UUID       `gorm:"column:recipient_id"`
	Amount      decimal.Decimal `gorm:"column:amount"`
}

// Repository reads claimable balances and records payout batches. Claims are
// guarded single-statement updates so two concurrent batch runs can never pay
// the same commission or sub-order twice.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreatePayout(ctx context.Context, payout *models.Payout) (*models.Payout, error)

	ApproveCommissionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ListAffiliateBalances(ctx context.Context) ([]RecipientTotal, error)
	ListClaimableCommissions(ctx context.Context, affiliateID uuid.UUID) ([]models.AffiliateCommission, error)
	ClaimCommissions(ctx context.Context, payoutID uuid.UUID, ids []uuid.UUID) (int64, error)

	ListSellerBalances(ctx context.Context) ([]RecipientTotal, error)
	ListClaimableSubOrders(ctx context.Context, sellerID uuid.UUID) ([]models.SellerSubOrder, error)
	ClaimSubOrders(ctx context.Context, payoutID uuid.UUID, ids []uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payouts repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreatePayout(ctx context.Context, payout *models.Payout) (*models.Payout, error) {
	if err := r.db.WithContext(ctx).Create(payout).Error; err != nil {
		return nil, err
	}
	return payout, nil
}

// ApproveCommissionsBefore promotes pending commissions older than the cutoff
// so the next affiliate batch run can claim them.
func (r *repository) ApproveCommissionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.AffiliateCommission{}).
		Where("status = ? AND created_at <= ?", enums.CommissionStatusPending, cutoff).
		Update("status", enums.CommissionStatusApproved)
	return result.RowsAffected, result.Error
}

func (r *repository) ListAffiliateBalances(ctx context.Context) ([]RecipientTotal, error) {
	var totals []RecipientTotal
	err := r.db.WithContext(ctx).
		Model(&models.AffiliateCommission{}).
		Select("affiliate_id AS recipient_id, SUM(amount) AS amount").
		Where("status = ? AND payout_id IS NULL", enums.CommissionStatusApproved).
		Group("affiliate_id").
		Order("affiliate_id ASC").
		Scan(&totals).Error
	return totals, err
}

func (r *repository) ListClaimableCommissions(ctx context.Context, affiliateID uuid.UUID) ([]models.AffiliateCommission, error) {
	var rows []models.AffiliateCommission
	err := r.db.WithContext(ctx).
		Where("affiliate_id = ? AND status = ? AND payout_id IS NULL", affiliateID, enums.CommissionStatusApproved).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// ClaimCommissions links approved commissions to a payout. The WHERE clause
// re-checks the claimable state so a row claimed by a concurrent run is
// skipped, and the returned count tells the caller how many it actually won.
func (r *repository) ClaimCommissions(ctx context.Context, payoutID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.AffiliateCommission{}).
		Where("id IN ? AND status = ? AND payout_id IS NULL", ids, enums.CommissionStatusApproved).
		Updates(map[string]any{
			"status":    enums.CommissionStatusPaid,
			"payout_id": payoutID,
		})
	return result.RowsAffected, result.Error
}

func (r *repository) ListSellerBalances(ctx context.Context) ([]RecipientTotal, error) {
	var totals []RecipientTotal
	err := r.db.WithContext(ctx).
		Model(&models.SellerSubOrder{}).
		Select("seller_id AS recipient_id, SUM(total_amount) AS amount").
		Where("status = ? AND payout_id IS NULL", enums.SubOrderStatusDelivered).
		Group("seller_id").
		Order("seller_id ASC").
		Scan(&totals).Error
	return totals, err
}

func (r *repository) ListClaimableSubOrders(ctx context.Context, sellerID uuid.UUID) ([]models.SellerSubOrder, error) {
	var rows []models.SellerSubOrder
	err := r.db.WithContext(ctx).
		Where("seller_id = ? AND status = ? AND payout_id IS NULL", sellerID, enums.SubOrderStatusDelivered).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ClaimSubOrders(ctx context.Context, payoutID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.SellerSubOrder{}).
		Where("id IN ? AND status = ? AND payout_id IS NULL", ids, enums.SubOrderStatusDelivered).
		Update("payout_id", payoutID)
	return result.RowsAffected, result.Error
}
