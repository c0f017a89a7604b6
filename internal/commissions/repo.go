package commissions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/raghavbatra/bazaario-backend/pkg/db"
	"github.com/raghavbatra/bazaario-backend/pkg/db/models"
	"github.com/raghavbatra/bazaario-backend/pkg/enums"
)

// Repository exposes the order data the settlement engine reads and the
// dedup-aware commission insert it writes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	Insert(ctx context.Context, commission *models.AffiliateCommission) (bool, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.AffiliateCommission, error)
	ListUnsettledOrders(ctx context.Context, since time.Time, limit int) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a commission repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("id = ?", productID).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// Insert writes a commission row and reports whether it was newly created.
// A unique violation on the (affiliate, order item, level) index means a
// previous delivery already settled this level, which is not an error.
func (r *repository) Insert(ctx context.Context, commission *models.AffiliateCommission) (bool, error) {
	err := r.db.WithContext(ctx).Create(commission).Error
	if err == nil {
		return true, nil
	}
	if dbpkg.IsUniqueViolation(err, "ux_affiliate_commissions_dedup") {
		return false, nil
	}
	return false, err
}

// ListUnsettledOrders returns recently paid orders with no commission rows.
// Orders whose buyer has no affiliate show up on every call inside the
// window; the engine skips them cheaply.
func (r *repository) ListUnsettledOrders(ctx context.Context, since time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("payment_status = ?", enums.PaymentStatusPaid).
		Where("paid_at >= ?", since).
		Where("NOT EXISTS (SELECT 1 FROM affiliate_commissions WHERE affiliate_commissions.order_id = orders.id)").
		Order("paid_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.AffiliateCommission, error) {
	var rows []models.AffiliateCommission
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("level ASC").
		Find(&rows).Error
	return rows, err
}
