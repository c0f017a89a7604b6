package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/raghavbatra/bazaario-backend/pkg/db/models"
	"github.com/raghavbatra/bazaario-backend/pkg/enums"
	"github.com/raghavbatra/bazaario-backend/pkg/logger"
	"github.com/raghavbatra/bazaario-backend/pkg/outbox"
	"github.com/raghavbatra/bazaario-backend/pkg/outbox/idempotency"
	"github.com/raghavbatra/bazaario-backend/pkg/outbox/payloads"
)

const notificationConsumer = "notifications"

type repositoryWriter interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// affiliateResolver maps an affiliate id to the owning user for payout alerts.
type affiliateResolver interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Affiliate, error)
}

// subOrderLister resolves the sellers behind an order so payment
// confirmations reach both sides of the sale.
type subOrderLister interface {
	ListSubOrders(ctx context.Context, orderID uuid.UUID) ([]models.SellerSubOrder, error)
}

// Consumer watches settlement events and turns them into in-app notifications.
type Consumer struct {
	repo         repositoryWriter
	affiliates   affiliateResolver
	subOrders    subOrderLister
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds the notification fan-out consumer.
func NewConsumer(repo repositoryWriter, affiliates affiliateResolver, subOrders subOrderLister, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if affiliates == nil {
		return nil, fmt.Errorf("affiliate resolver required")
	}
	if subOrders == nil {
		return nil, fmt.Errorf("sub-order lister required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("notifications subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		affiliates:   affiliates,
		subOrders:    subOrders,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, notificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		return processResult{ack: true}
	}

	if err := c.handle(ctx, enums.OutboxEventType(eventType), envelope.Data); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, notificationConsumer, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) handle(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage) error {
	switch eventType {
	case enums.EventOrderCreated:
		var payload payloads.OrderCreatedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.notify(ctx, payload.UserID, enums.NotificationTypeOrderPlaced,
			"Order placed",
			fmt.Sprintf("Your order for ₹%s has been placed across %d sellers.", payload.TotalAmount.StringFixed(2), len(payload.SubOrderIDs)),
			orderLink(payload.OrderID))
	case enums.EventOrderPaid:
		var payload payloads.OrderPaidEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.notifyOrderPaid(ctx, payload)
	case enums.EventPaymentFailed:
		var payload payloads.PaymentFailedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		message := "Your payment could not be processed. Please try again."
		if payload.Reason != "" {
			message = fmt.Sprintf("Your payment could not be processed: %s.", payload.Reason)
		}
		return c.notify(ctx, payload.UserID, enums.NotificationTypePaymentFailed,
			"Payment failed", message, orderLink(payload.OrderID))
	case enums.EventOrderCancelled:
		var payload payloads.OrderCancelledEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.notify(ctx, payload.UserID, enums.NotificationTypeOrderCancelled,
			"Order cancelled",
			"Your order was cancelled and reserved items were released.",
			orderLink(payload.OrderID))
	case enums.EventRefundProcessed:
		var payload payloads.RefundProcessedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.notify(ctx, payload.UserID, enums.NotificationTypeRefundProcessed,
			"Refund processed",
			fmt.Sprintf("A refund of ₹%s is on its way back to you.", payload.Amount.StringFixed(2)),
			orderLink(payload.OrderID))
	case enums.EventPayoutRecorded:
		var payload payloads.PayoutRecordedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.notifyPayout(ctx, payload)
	default:
		return nil
	}
}

// notifyOrderPaid tells the buyer their payment landed, then fans out to
// every seller with a share of the order.
func (c *Consumer) notifyOrderPaid(ctx context.Context, payload payloads.OrderPaidEvent) error {
	if err := c.notify(ctx, payload.UserID, enums.NotificationTypePaymentConfirmed,
		"Payment confirmed",
		fmt.Sprintf("We received your payment of ₹%s.", payload.TotalAmount.StringFixed(2)),
		orderLink(payload.OrderID)); err != nil {
		return err
	}
	subOrders, err := c.subOrders.ListSubOrders(ctx, payload.OrderID)
	if err != nil {
		return err
	}
	for _, subOrder := range subOrders {
		if err := c.notify(ctx, subOrder.SellerID, enums.NotificationTypePaymentConfirmed,
			"New paid order",
			fmt.Sprintf("A buyer paid ₹%s for your items. Time to ship.", subOrder.TotalAmount.StringFixed(2)),
			orderLink(payload.OrderID)); err != nil {
			return err
		}
	}
	return nil
}

// notifyPayout resolves the recipient: seller payouts go straight to the
// seller's user, affiliate payouts resolve through the affiliate record.
func (c *Consumer) notifyPayout(ctx context.Context, payload payloads.PayoutRecordedEvent) error {
	userID := payload.RecipientID
	if payload.Type == enums.PayoutTypeAffiliate {
		affiliate, err := c.affiliates.FindByID(ctx, payload.RecipientID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		userID = affiliate.UserID
	}
	return c.notify(ctx, userID, enums.NotificationTypePayoutCreated,
		"Payout on its way",
		fmt.Sprintf("A payout of ₹%s has been recorded for you.", payload.Amount.StringFixed(2)),
		fmt.Sprintf("/payouts/%s", payload.PayoutID))
}

func (c *Consumer) notify(ctx context.Context, userID uuid.UUID, notificationType enums.NotificationType, title, message, link string) error {
	if userID == uuid.Nil {
		return nil
	}
	notification := &models.Notification{
		UserID:  userID,
		Type:    notificationType,
		Title:   title,
		Message: message,
	}
	if link != "" {
		notification.Link = &link
	}
	return c.repo.Create(ctx, notification)
}

func orderLink(orderID uuid.UUID) string {
	return fmt.Sprintf("/orders/%s", orderID)
}
