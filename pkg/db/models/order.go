package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/raghavbatra/bazaario-backend/pkg/enums"
)

// Order is the buyer-facing parent order covering every seller in the cart.
type Order struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID         uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	OrderNumber    string              `gorm:"column:order_number;type:text;not null;uniqueIndex"`
	Status         enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending'"`
	PaymentStatus  enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	Subtotal       decimal.Decimal     `gorm:"column:subtotal;type:numeric(10,2);not null"`
	DiscountAmount decimal.Decimal     `gorm:"column:discount_amount;type:numeric(10,2);not null;default:0"`
	TotalAmount    decimal.Decimal     `gorm:"column:total_amount;type:numeric(10,2);not null"`
	CouponID       *uuid.UUID          `gorm:"column:coupon_id;type:uuid"`
	GatewayOrderID *string             `gorm:"column:gateway_order_id;type:text"`
	ShippingName   string              `gorm:"column:shipping_name;type:text;not null"`
	ShippingPhone  string              `gorm:"column:shipping_phone;type:text;not null"`
	ShippingLine1  string              `gorm:"column:shipping_line1;type:text;not null"`
	ShippingLine2  *string             `gorm:"column:shipping_line2;type:text"`
	ShippingCity   string              `gorm:"column:shipping_city;type:text;not null"`
	ShippingState  string              `gorm:"column:shipping_state;type:text;not null"`
	ShippingPIN    string              `gorm:"column:shipping_pin;type:text;not null"`
	PaidAt         *time.Time          `gorm:"column:paid_at"`
	CancelledAt    *time.Time          `gorm:"column:cancelled_at"`
	SubOrders      []SellerSubOrder    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
