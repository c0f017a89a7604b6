package affiliates

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/raghavbatra/bazaario-backend/pkg/db/models"
)

// Repository exposes affiliate records and the atomic earnings credit.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, affiliate *models.Affiliate) (*models.Affiliate, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Affiliate, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Affiliate, error)
	FindByReferralCode(ctx context.Context, code string) (*models.Affiliate, error)
	CreditEarnings(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an affiliate repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, affiliate *models.Affiliate) (*models.Affiliate, error) {
	if err := r.db.WithContext(ctx).Create(affiliate).Error; err != nil {
		return nil, err
	}
	return affiliate, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Affiliate, error) {
	var affiliate models.Affiliate
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&affiliate).Error
	if err != nil {
		return nil, err
	}
	return &affiliate, nil
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Affiliate, error) {
	var affiliate models.Affiliate
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&affiliate).Error
	if err != nil {
		return nil, err
	}
	return &affiliate, nil
}

func (r *repository) FindByReferralCode(ctx context.Context, code string) (*models.Affiliate, error) {
	var affiliate models.Affiliate
	err := r.db.WithContext(ctx).
		Where("referral_code = ?", code).
		First(&affiliate).Error
	if err != nil {
		return nil, err
	}
	return &affiliate, nil
}

// CreditEarnings adds to the running earnings counter in a single statement
// so concurrent settlements never lose an update.
func (r *repository) CreditEarnings(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Affiliate{}).
		Where("id = ?", id).
		Update("earnings", gorm.Expr("earnings + ?", amount)).Error
}
