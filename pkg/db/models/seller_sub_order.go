package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/raghavbatra/bazaario-backend/pkg/enums"
)

// SellerSubOrder is the per-seller slice split off a parent order.
type SellerSubOrder struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	SellerID          uuid.UUID            `gorm:"column:seller_id;type:uuid;not null;index"`
	Status            enums.SubOrderStatus `gorm:"column:status;type:sub_order_status;not null;default:'pending'"`
	Subtotal          decimal.Decimal      `gorm:"column:subtotal;type:numeric(10,2);not null"`
	DiscountAmount    decimal.Decimal      `gorm:"column:discount_amount;type:numeric(10,2);not null;default:0"`
	TotalAmount       decimal.Decimal      `gorm:"column:total_amount;type:numeric(10,2);not null"`
	GatewayTransferID *string              `gorm:"column:gateway_transfer_id;type:text"`
	PayoutID          *uuid.UUID           `gorm:"column:payout_id;type:uuid;index"`
	DeliveredAt       *time.Time           `gorm:"column:delivered_at"`
	CancelledAt       *time.Time           `gorm:"column:cancelled_at"`
	Items             []OrderItem          `gorm:"foreignKey:SubOrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
