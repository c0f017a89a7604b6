package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/raghavbatra/bazaario-backend/pkg/enums"
)

// Product represents the canonical seller listing.
type Product struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	SellerID       uuid.UUID            `gorm:"column:seller_id;type:uuid;not null;index"`
	SKU            string               `gorm:"column:sku;type:text;not null"`
	Title          string               `gorm:"column:title;type:text;not null"`
	Description    *string              `gorm:"column:description;type:text"`
	Price          decimal.Decimal      `gorm:"column:price;type:numeric(10,2);not null"`
	Stock          int                  `gorm:"column:stock;not null;default:0"`
	CommissionPlan enums.CommissionPlan `gorm:"column:commission_plan;type:text;not null;default:'6-4-2'"`
	IsActive       bool                 `gorm:"column:is_active;not null;default:true"`
	Variations     []ProductVariation   `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
