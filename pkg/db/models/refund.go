package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/raghavbatra/bazaario-backend/pkg/enums"
)

// Refund tracks a reversal against a paid sub-order.
type Refund struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	SubOrderID *uuid.UUID         `gorm:"column:sub_order_id;type:uuid;index"`
	Status     enums.RefundStatus `gorm:"column:status;type:text;not null;default:'requested'"`
	Amount     decimal.Decimal    `gorm:"column:amount;type:numeric(10,2);not null"`
	Reason     *string            `gorm:"column:reason;type:text"`
	GatewayRef *string            `gorm:"column:gateway_ref;type:text"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
