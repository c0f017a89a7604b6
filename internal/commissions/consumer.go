package commissions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/raghavbatra/bazaario-backend/pkg/enums"
	pkgerrors "github.com/raghavbatra/bazaario-backend/pkg/errors"
	"github.com/raghavbatra/bazaario-backend/pkg/logger"
	"github.com/raghavbatra/bazaario-backend/pkg/metrics"
	"github.com/raghavbatra/bazaario-backend/pkg/outbox"
	"github.com/raghavbatra/bazaario-backend/pkg/outbox/idempotency"
	"github.com/raghavbatra/bazaario-backend/pkg/outbox/payloads"
)

const (
	settlementConsumer  = "settlement-worker"
	engineRetryAttempts = 3
	engineRetryBackoff  = 200 * time.Millisecond
)

type engineRunner interface {
	Run(ctx context.Context, orderID uuid.UUID) (int, error)
}

// settlementNotifier announces freshly credited commissions. Implementations
// must not fail the settlement path.
type settlementNotifier interface {
	CommissionsSettled(ctx context.Context, orderID uuid.UUID)
}

// Consumer watches settlement events and runs the commission engine when an
// order is paid.
type Consumer struct {
	engine       engineRunner
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	metrics      *metrics.SettlementMetrics
	notifier     settlementNotifier
	logg         *logger.Logger
}

// NewConsumer builds a commission settlement consumer. The notifier is
// optional.
func NewConsumer(engine engineRunner, subscription *pubsub.Subscriber, manager *idempotency.Manager, settlementMetrics *metrics.SettlementMetrics, notifier settlementNotifier, logg *logger.Logger) (*Consumer, error) {
	if engine == nil {
		return nil, fmt.Errorf("commission engine required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("settlement subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		engine:       engine,
		subscription: subscription,
		idempotency:  manager,
		metrics:      settlementMetrics,
		notifier:     notifier,
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

	if eventType != string(enums.EventOrderPaid) {
		return processResult{ack: true}
	}
	start := time.Now()

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		c.metrics.IncProcessed(eventType, "malformed")
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		c.metrics.IncProcessed(eventType, "malformed")
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, settlementConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		c.metrics.IncProcessed(eventType, "duplicate")
		return processResult{ack: true}
	}

	var payload payloads.OrderPaidEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, settlementConsumer, eventID)
		c.metrics.IncProcessed(eventType, "malformed")
		return processResult{nack: true}
	}

	logCtx = c.logg.WithOrderID(logCtx, payload.OrderID.String())

	created, err := c.settle(ctx, payload.OrderID)
	if err != nil {
		c.logg.Error(logCtx, "commission settlement failed", err)
		_ = c.idempotency.Delete(ctx, settlementConsumer, eventID)
		c.metrics.IncProcessed(eventType, "error")
		return processResult{nack: true}
	}
	if created > 0 && c.notifier != nil {
		c.notifier.CommissionsSettled(ctx, payload.OrderID)
	}

	c.metrics.IncProcessed(eventType, "ok")
	c.metrics.ObserveHandleDuration(eventType, time.Since(start))
	return processResult{ack: true}
}

// settle runs the engine with a short in-process retry so transient database
// hiccups do not burn a Pub/Sub redelivery.
func (c *Consumer) settle(ctx context.Context, orderID uuid.UUID) (int, error) {
	var created int
	backoff := retry.WithMaxRetries(engineRetryAttempts, retry.NewExponential(engineRetryBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		n, err := c.engine.Run(ctx, orderID)
		if err == nil {
			created = n
			return nil
		}
		if pkgerrors.IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	return created, err
}
