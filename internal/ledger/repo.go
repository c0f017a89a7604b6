package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/raghavbatra/bazaario-backend/pkg/db/models"
	"github.com/raghavbatra/bazaario-backend/pkg/enums"
	pkgerrors "github.com/raghavbatra/bazaario-backend/pkg/errors"
)

// Repository appends entries to the money ledger. There is deliberately no
// update or delete surface; corrections are new entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, entry *models.Transaction) (*models.Transaction, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Transaction, error)
	ListByPayout(ctx context.Context, payoutID uuid.UUID) ([]models.Transaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a ledger repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Append(ctx context.Context, entry *models.Transaction) (*models.Transaction, error) {
	if entry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ledger entry required")
	}
	if !entry.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ledger entry type required")
	}
	if !entry.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ledger amount must be positive")
	}
	if entry.Status == "" {
		entry.Status = enums.TransactionStatusPending
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Transaction, error) {
	var entries []models.Transaction
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

func (r *repository) ListByPayout(ctx context.Context, payoutID uuid.UUID) ([]models.Transaction, error) {
	var entries []models.Transaction
	err := r.db.WithContext(ctx).
		Where("payout_id = ?", payoutID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}
