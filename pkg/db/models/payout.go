package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/raghavbatra/bazaario-backend/pkg/enums"
)

// Payout is a batched disbursement to a seller or an affiliate.
type Payout struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	RecipientID uuid.UUID          `gorm:"column:recipient_id;type:uuid;not null;index"`
	Type        enums.PayoutType   `gorm:"column:type;type:text;not null"`
	Status      enums.PayoutStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Amount      decimal.Decimal    `gorm:"column:amount;type:numeric(10,2);not null"`
	Reference   *string            `gorm:"column:reference;type:text"`
	PaidAt      *time.Time         `gorm:"column:paid_at"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
