package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/raghavbatra/bazaario-backend/pkg/enums"
)

// OrderCreatedEvent signals a new checkout split across sellers.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	UserID      uuid.UUID       `json:"user_id"`
	SubOrderIDs []uuid.UUID     `json:"sub_order_ids"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// OrderPaidEvent is emitted exactly once when a payment is confirmed. It is
// the trigger for the async commission settlement.
type OrderPaidEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	UserID      uuid.UUID       `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	PaidAt      time.Time       `json:"paid_at"`
}

// PaymentFailedEvent reports a declined or failed gateway attempt.
type PaymentFailedEvent struct {
	OrderID uuid.UUID `json:"order_id"`
	UserID  uuid.UUID `json:"user_id"`
	Reason  string    `json:"reason,omitempty"`
}

// OrderCancelledEvent is emitted when a still-pending order is cancelled and
// its reserved stock restored.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	UserID      uuid.UUID `json:"user_id"`
	CancelledAt time.Time `json:"cancelled_at"`
	Reason      string    `json:"reason,omitempty"`
}

// RefundProcessedEvent reports a completed gateway refund.
type RefundProcessedEvent struct {
	RefundID   uuid.UUID       `json:"refund_id"`
	OrderID    uuid.UUID       `json:"order_id"`
	UserID     uuid.UUID       `json:"user_id"`
	Amount     decimal.Decimal `json:"amount"`
	GatewayRef string          `json:"gateway_ref,omitempty"`
}

// PayoutRecordedEvent is emitted when a payout batch is created.
type PayoutRecordedEvent struct {
	PayoutID    uuid.UUID        `json:"payout_id"`
	RecipientID uuid.UUID        `json:"recipient_id"`
	Type        enums.PayoutType `json:"type"`
	Amount      decimal.Decimal  `json:"amount"`
}

// NotificationRequestedEvent tells downstream systems to alert a user.
type NotificationRequestedEvent struct {
	UserID  uuid.UUID              `json:"user_id"`
	Type    enums.NotificationType `json:"type"`
	Title   string                 `json:"title"`
	Message string                 `json:"message"`
	Link    string                 `json:"link,omitempty"`
}
