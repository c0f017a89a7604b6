package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Primary keys are assigned client-side so the models work on any dialect;
// the Postgres schema additionally defaults id columns to gen_random_uuid()
// for rows inserted outside the application.

func (m *Affiliate) BeforeCreate(tx *gorm.DB) error           { assignID(&m.ID); return nil }
func (m *AffiliateCommission) BeforeCreate(tx *gorm.DB) error { assignID(&m.ID); return nil }
func (m *CartItem) BeforeCreate(tx *gorm.DB) error            { assignID(&m.ID); return nil }
func (m *Coupon) BeforeCreate(tx *gorm.DB) error              { assignID(&m.ID); return nil }
func (m *Notification) BeforeCreate(tx *gorm.DB) error        { assignID(&m.ID); return nil }
func (m *Order) BeforeCreate(tx *gorm.DB) error               { assignID(&m.ID); return nil }
func (m *OrderItem) BeforeCreate(tx *gorm.DB) error           { assignID(&m.ID); return nil }
func (m *OutboxDLQ) BeforeCreate(tx *gorm.DB) error           { assignID(&m.ID); return nil }
func (m *OutboxEvent) BeforeCreate(tx *gorm.DB) error         { assignID(&m.ID); return nil }
func (m *Payout) BeforeCreate(tx *gorm.DB) error              { assignID(&m.ID); return nil }
func (m *Product) BeforeCreate(tx *gorm.DB) error             { assignID(&m.ID); return nil }
func (m *ProductVariation) BeforeCreate(tx *gorm.DB) error    { assignID(&m.ID); return nil }
func (m *Refund) BeforeCreate(tx *gorm.DB) error              { assignID(&m.ID); return nil }
func (m *SellerSubOrder) BeforeCreate(tx *gorm.DB) error      { assignID(&m.ID); return nil }
func (m *Transaction) BeforeCreate(tx *gorm.DB) error         { assignID(&m.ID); return nil }

func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
