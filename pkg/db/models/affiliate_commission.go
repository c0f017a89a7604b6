package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/raghavbatra/bazaario-backend/pkg/enums"
)

// AffiliateCommission is one level of the referral split earned on a single
// order item. The composite unique index makes the settlement engine
// idempotent under redelivery.
type AffiliateCommission struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	AffiliateID uuid.UUID              `gorm:"column:affiliate_id;type:uuid;not null;uniqueIndex:ux_affiliate_commissions_dedup"`
	OrderID     uuid.UUID              `gorm:"column:order_id;type:uuid;not null;index"`
	OrderItemID uuid.UUID              `gorm:"column:order_item_id;type:uuid;not null;uniqueIndex:ux_affiliate_commissions_dedup"`
	Level       int                    `gorm:"column:level;not null;uniqueIndex:ux_affiliate_commissions_dedup"`
	Rate        decimal.Decimal        `gorm:"column:rate;type:numeric(10,2);not null"`
	Amount      decimal.Decimal        `gorm:"column:amount;type:numeric(10,2);not null"`
	Status      enums.CommissionStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	PayoutID    *uuid.UUID             `gorm:"column:payout_id;type:uuid;index"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
