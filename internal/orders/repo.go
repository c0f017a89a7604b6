package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/raghavbatra/bazaario-backend/pkg/db/models"
	"github.com/raghavbatra/bazaario-backend/pkg/enums"
)

// Repository persists orders, their per-seller sub-orders, and line items.
// State transitions are guarded single-statement updates so concurrent
// confirmations and cancellations cannot both win.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateSubOrder(ctx context.Context, subOrder *models.SellerSubOrder) (*models.SellerSubOrder, error)
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	ListItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	ListSubOrders(ctx context.Context, orderID uuid.UUID) ([]models.SellerSubOrder, error)
	SetGatewayOrderID(ctx context.Context, id uuid.UUID, gatewayOrderID string) error
	MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) (bool, error)
	MarkPaymentFailed(ctx context.Context, id uuid.UUID) (bool, error)
	CancelPending(ctx context.Context, id uuid.UUID, cancelledAt time.Time) (bool, error)
	SetSubOrderTransfer(ctx context.Context, subOrderID uuid.UUID, transferID string) error
	CancelSubOrders(ctx context.Context, orderID uuid.UUID, cancelledAt time.Time) error
	MarkSubOrderDelivered(ctx context.Context, subOrderID uuid.UUID, deliveredAt time.Time) (bool, error)
	CreateRefund(ctx context.Context, refund *models.Refund) (*models.Refund, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Omit("SubOrders").Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) CreateSubOrder(ctx context.Context, subOrder *models.SellerSubOrder) (*models.SellerSubOrder, error) {
	if err := r.db.WithContext(ctx).Omit("Items").Create(subOrder).Error; err != nil {
		return nil, err
	}
	return subOrder, nil
}

func (r *repository) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("SubOrders").
		Preload("SubOrders.Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("gateway_order_id = ?", gatewayOrderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) ListSubOrders(ctx context.Context, orderID uuid.UUID) ([]models.SellerSubOrder, error) {
	var subOrders []models.SellerSubOrder
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&subOrders).Error
	return subOrders, err
}

func (r *repository) SetGatewayOrderID(ctx context.Context, id uuid.UUID, gatewayOrderID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("gateway_order_id", gatewayOrderID).Error
}

// MarkPaid flips the payment status from pending to paid exactly once. The
// bool reports whether this caller won the transition.
func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status = ? AND status = ?", id, enums.PaymentStatusPending, enums.OrderStatusPending).
		Updates(map[string]any{
			"payment_status": enums.PaymentStatusPaid,
			"status":         enums.OrderStatusConfirmed,
			"paid_at":        paidAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) CreateRefund(ctx context.Context, refund *models.Refund) (*models.Refund, error) {
	if err := r.db.WithContext(ctx).Create(refund).Error; err != nil {
		return nil, err
	}
	return refund, nil
}

func (r *repository) MarkPaymentFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status = ? AND status = ?", id, enums.PaymentStatusPending, enums.OrderStatusPending).
		Update("payment_status", enums.PaymentStatusFailed)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CancelPending cancels an order only while payment is still pending.
func (r *repository) CancelPending(ctx context.Context, id uuid.UUID, cancelledAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status = ? AND status = ?", id, enums.PaymentStatusPending, enums.OrderStatusPending).
		Updates(map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": cancelledAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) SetSubOrderTransfer(ctx context.Context, subOrderID uuid.UUID, transferID string) error {
	return r.db.WithContext(ctx).
		Model(&models.SellerSubOrder{}).
		Where("id = ?", subOrderID).
		Update("gateway_transfer_id", transferID).Error
}

func (r *repository) CancelSubOrders(ctx context.Context, orderID uuid.UUID, cancelledAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.SellerSubOrder{}).
		Where("order_id = ? AND status = ?", orderID, enums.SubOrderStatusPending).
		Updates(map[string]any{
			"status":       enums.SubOrderStatusCancelled,
			"cancelled_at": cancelledAt,
		}).Error
}

func (r *repository) MarkSubOrderDelivered(ctx context.Context, subOrderID uuid.UUID, deliveredAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.SellerSubOrder{}).
		Where("id = ? AND status NOT IN ?", subOrderID, []enums.SubOrderStatus{enums.SubOrderStatusDelivered, enums.SubOrderStatusCancelled}).
		Updates(map[string]any{
			"status":       enums.SubOrderStatusDelivered,
			"delivered_at": deliveredAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
