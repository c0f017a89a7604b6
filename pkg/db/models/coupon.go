package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/raghavbatra/bazaario-backend/pkg/enums"
)

// Coupon is a storewide discount code redeemable at checkout.
type Coupon struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Code        string           `gorm:"column:code;type:text;not null;uniqueIndex"`
	Type        enums.CouponType `gorm:"column:type;type:text;not null"`
	Value       decimal.Decimal  `gorm:"column:value;type:numeric(10,2);not null"`
	MinPurchase *decimal.Decimal `gorm:"column:min_purchase;type:numeric(10,2)"`
	MaxDiscount *decimal.Decimal `gorm:"column:max_discount;type:numeric(10,2)"`
	UsageLimit  *int             `gorm:"column:usage_limit"`
	UsedCount   int              `gorm:"column:used_count;not null;default:0"`
	ValidFrom   *time.Time       `gorm:"column:valid_from"`
	ValidTo     *time.Time       `gorm:"column:valid_to"`
	IsActive    bool             `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
