package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/raghavbatra/bazaario-backend/pkg/enums"
)

// Transaction is an append-only ledger entry. Rows are never updated or
// deleted; corrections land as new entries.
type Transaction struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     *uuid.UUID              `gorm:"column:order_id;type:uuid;index"`
	PayoutID    *uuid.UUID              `gorm:"column:payout_id;type:uuid;index"`
	Type        enums.TransactionType   `gorm:"column:type;type:text;not null"`
	Status      enums.TransactionStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Amount      decimal.Decimal         `gorm:"column:amount;type:numeric(10,2);not null"`
	GatewayRef  *string                 `gorm:"column:gateway_ref;type:text"`
	Description *string                 `gorm:"column:description;type:text"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
}
