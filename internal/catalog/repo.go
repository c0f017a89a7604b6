package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/raghavbatra/bazaario-backend/pkg/db/models"
	pkgerrors "github.com/raghavbatra/bazaario-backend/pkg/errors"
)

// Repository exposes catalog reads and the atomic stock mutations used by
// checkout and cancellation.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindVariationByID(ctx context.Context, id uuid.UUID) (*models.ProductVariation, error)
	DecrementProductStock(ctx context.Context, id uuid.UUID, qty int) error
	DecrementVariationStock(ctx context.Context, id uuid.UUID, qty int) error
	RestoreProductStock(ctx context.Context, id uuid.UUID, qty int) error
	RestoreVariationStock(ctx context.Context, id uuid.UUID, qty int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindVariationByID(ctx context.Context, id uuid.UUID) (*models.ProductVariation, error) {
	var variation models.ProductVariation
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&variation).Error
	if err != nil {
		return nil, err
	}
	return &variation, nil
}

// DecrementProductStock decrements atomically; the stock >= qty guard makes
// concurrent checkouts safe without an explicit row lock.
func (r *repository) DecrementProductStock(ctx context.Context, id uuid.UUID, qty int) error {
	return r.decrementStock(ctx, "products", id, qty)
}

func (r *repository) DecrementVariationStock(ctx context.Context, id uuid.UUID, qty int) error {
	return r.decrementStock(ctx, "product_variations", id, qty)
}

func (r *repository) decrementStock(ctx context.Context, table string, id uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	res := r.db.WithContext(ctx).Exec(`
		UPDATE `+table+`
		SET stock = stock - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND stock >= ?
	`, qty, id, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock")
	}
	return nil
}

func (r *repository) RestoreProductStock(ctx context.Context, id uuid.UUID, qty int) error {
	return r.restoreStock(ctx, "products", id, qty)
}

func (r *repository) RestoreVariationStock(ctx context.Context, id uuid.UUID, qty int) error {
	return r.restoreStock(ctx, "product_variations", id, qty)
}

func (r *repository) restoreStock(ctx context.Context, table string, id uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Exec(`
		UPDATE `+table+`
		SET stock = stock + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, id)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restore stock")
	}
	return nil
}
