package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Affiliate is a user enrolled in the referral program. ParentID points at
// the affiliate who referred them; the chain is capped at three levels when
// commissions are computed.
type Affiliate struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	UserID       uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	ParentID     *uuid.UUID      `gorm:"column:parent_id;type:uuid;index"`
	ReferralCode string          `gorm:"column:referral_code;type:text;not null;uniqueIndex"`
	Earnings     decimal.Decimal `gorm:"column:earnings;type:numeric(10,2);not null;default:0"`
	IsActive     bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
