package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is a buyer's staged line prior to checkout. Prices are resolved
// from the catalog at checkout time, never stored here.
type CartItem struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	ProductID   uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	VariationID *uuid.UUID `gorm:"column:variation_id;type:uuid"`
	Quantity    int        `gorm:"column:quantity;not null"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
