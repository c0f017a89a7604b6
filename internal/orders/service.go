package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/raghavbatra/bazaario-backend/internal/catalog"
	"github.com/raghavbatra/bazaario-backend/internal/ledger"
	"github.com/raghavbatra/bazaario-backend/pkg/db/models"
	"github.com/raghavbatra/bazaario-backend/pkg/enums"
	pkgerrors "github.com/raghavbatra/bazaario-backend/pkg/errors"
	"github.com/raghavbatra/bazaario-backend/pkg/logger"
	"github.com/raghavbatra/bazaario-backend/pkg/outbox"
	"github.com/raghavbatra/bazaario-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// signatureVerifier checks the callback HMAC from the payment gateway.
type signatureVerifier interface {
	VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool
}

// settlementGateway moves money at the provider after confirmation: split
// transfers to the sellers' linked accounts and refunds back to buyers.
type settlementGateway interface {
	Transfer(ctx context.Context, gatewayPaymentID string, sellerAccount string, amount decimal.Decimal) (string, error)
	Refund(ctx context.Context, gatewayPaymentID string, amount decimal.Decimal) (string, error)
}

// ConfirmPaymentInput carries the gateway callback data for an order. Webhook
// callbacks identify the order by GatewayOrderID; OrderID may be left zero.
type ConfirmPaymentInput struct {
	OrderID          uuid.UUID
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// RefundInput requests a reversal against a paid order. SubOrderID narrows
// the refund to one seller's shipment when set.
type RefundInput struct {
	OrderID    uuid.UUID
	SubOrderID *uuid.UUID
	Amount     decimal.Decimal
	Reason     string
}

// Service drives the order payment state machine. An order's payment status
// moves pending to paid exactly once; every later confirmation of the same
// order is a no-op success.
type Service interface {
	ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*models.Order, error)
	FailPayment(ctx context.Context, orderID uuid.UUID, reason string) error
	Cancel(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
	MarkDelivered(ctx context.Context, subOrderID uuid.UUID) error
	Refund(ctx context.Context, input RefundInput) (*models.Refund, error)
}

type service struct {
	tx          txRunner
	repo        Repository
	ledgerRepo  ledger.Repository
	catalogRepo catalog.Repository
	outbox      outboxPublisher
	verifier    signatureVerifier
	gateway     settlementGateway
	logg        *logger.Logger
	now         func() time.Time
}

// NewService builds the order settlement service. The verifier and gateway
// are optional; without them, callbacks are trusted and no money moves at
// the provider (development only).
func NewService(
	tx txRunner,
	repo Repository,
	ledgerRepo ledger.Repository,
	catalogRepo catalog.Repository,
	publisher outboxPublisher,
	verifier signatureVerifier,
	gateway settlementGateway,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if ledgerRepo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:          tx,
		repo:        repo,
		ledgerRepo:  ledgerRepo,
		catalogRepo: catalogRepo,
		outbox:      publisher,
		verifier:    verifier,
		gateway:     gateway,
		logg:        logg,
		now:         time.Now,
	}, nil
}

func (s *service) ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil && input.GatewayOrderID != "" {
		order, err := s.repo.FindByGatewayOrderID(ctx, input.GatewayOrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no order for gateway reference")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve gateway order")
		}
		input.OrderID = order.ID
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ledgerRepo := s.ledgerRepo.WithTx(tx)

		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if s.verifier != nil {
			if order.GatewayOrderID == nil {
				return pkgerrors.New(pkgerrors.CodePaymentVerification, "order has no gateway registration")
			}
			if !s.verifier.VerifySignature(*order.GatewayOrderID, input.GatewayPaymentID, input.Signature) {
				return pkgerrors.New(pkgerrors.CodePaymentVerification, "payment signature mismatch")
			}
		}

		paidAt := s.now()
		won, err := repo.MarkPaid(ctx, order.ID, paidAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark paid")
		}
		if !won {
			switch order.PaymentStatus {
			case enums.PaymentStatusPaid:
				// Duplicate callback; the first confirmation already settled.
				result = order
				return nil
			default:
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment").
					WithDetails(map[string]any{"payment_status": order.PaymentStatus.String()})
			}
		}

		entry := &models.Transaction{
			OrderID: &order.ID,
			Type:    enums.TransactionTypePayment,
			Status:  enums.TransactionStatusCompleted,
			Amount:  order.TotalAmount,
		}
		if input.GatewayPaymentID != "" {
			entry.GatewayRef = &input.GatewayPaymentID
		}
		if _, err := ledgerRepo.Append(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append payment ledger entry")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderPaidEvent{
				OrderID:     order.ID,
				UserID:      order.UserID,
				TotalAmount: order.TotalAmount,
				PaidAt:      paidAt,
			},
			Version: 1,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		result, err = repo.FindByID(ctx, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.gateway != nil && input.GatewayPaymentID != "" {
		s.splitTransfers(ctx, result.ID, input.GatewayPaymentID)
	}
	return result, nil
}

// splitTransfers routes each seller's share of the captured payment to their
// linked account. Best effort: a failed transfer is logged and retried by
// reconciliation, never unwinding the confirmation.
func (s *service) splitTransfers(ctx context.Context, orderID uuid.UUID, gatewayPaymentID string) {
	subOrders, err := s.repo.ListSubOrders(ctx, orderID)
	if err != nil {
		s.logg.Error(ctx, "failed to load sub-orders for split transfers", err)
		return
	}
	for _, subOrder := range subOrders {
		if subOrder.Status == enums.SubOrderStatusCancelled || subOrder.GatewayTransferID != nil {
			continue
		}
		logCtx := s.logg.WithField(ctx, "sub_order_id", subOrder.ID.String())

		ref, err := s.gateway.Transfer(ctx, gatewayPaymentID, subOrder.SellerID.String(), subOrder.TotalAmount)
		if err != nil {
			s.logg.Error(logCtx, "seller transfer failed", err)
			continue
		}
		if err := s.repo.SetSubOrderTransfer(ctx, subOrder.ID, ref); err != nil {
			s.logg.Error(logCtx, "failed to record transfer reference", err)
			continue
		}

		description := fmt.Sprintf("transfer to seller %s", subOrder.SellerID)
		entry := &models.Transaction{
			OrderID:     &orderID,
			Type:        enums.TransactionTypePayout,
			Status:      enums.TransactionStatusCompleted,
			Amount:      subOrder.TotalAmount,
			GatewayRef:  &ref,
			Description: &description,
		}
		if _, err := s.ledgerRepo.Append(ctx, entry); err != nil {
			s.logg.Error(logCtx, "failed to append transfer ledger entry", err)
		}
	}
}

// FailPayment records a failed gateway callback. Stock stays reserved; the
// buyer can retry payment or cancel.
func (s *service) FailPayment(ctx context.Context, orderID uuid.UUID, reason string) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	ctx = s.logg.WithOrderID(ctx, orderID.String())

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		won, err := repo.MarkPaymentFailed(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment failed")
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment").
				WithDetails(map[string]any{"payment_status": order.PaymentStatus.String()})
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: payloads.PaymentFailedEvent{
				OrderID: orderID,
				UserID:  order.UserID,
				Reason:  reason,
			},
			Version: 1,
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

// Cancel voids a pending order and puts its reserved stock back. Paid orders
// cannot be cancelled here; they go through the refund flow.
func (s *service) Cancel(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	ctx = s.logg.WithOrderID(ctx, orderID.String())

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		catalogRepo := s.catalogRepo.WithTx(tx)

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if userID != uuid.Nil && order.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}

		cancelledAt := s.now()
		won, err := repo.CancelPending(ctx, orderID, cancelledAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").
				WithDetails(map[string]any{
					"status":         order.Status.String(),
					"payment_status": order.PaymentStatus.String(),
				})
		}

		if err := repo.CancelSubOrders(ctx, orderID, cancelledAt); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel sub-orders")
		}

		items, err := repo.ListItems(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
		}
		for _, item := range items {
			if item.VariationID != nil {
				err = catalogRepo.RestoreVariationStock(ctx, *item.VariationID, item.Quantity)
			} else {
				err = catalogRepo.RestoreProductStock(ctx, item.ProductID, item.Quantity)
			}
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data: payloads.OrderCancelledEvent{
				OrderID:     orderID,
				UserID:      order.UserID,
				CancelledAt: cancelledAt,
			},
			Version: 1,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		result, err = repo.FindByID(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) MarkDelivered(ctx context.Context, subOrderID uuid.UUID) error {
	if subOrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "sub-order id required")
	}
	won, err := s.repo.MarkSubOrderDelivered(ctx, subOrderID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark delivered")
	}
	if !won {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "sub-order cannot be delivered")
	}
	return nil
}

// Refund reverses part or all of a paid order. The gateway call happens
// before the local transaction; if recording fails afterwards the money has
// moved and the error carries the gateway reference for reconciliation.
func (s *service) Refund(ctx context.Context, input RefundInput) (*models.Refund, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())

	order, err := s.repo.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.PaymentStatus != enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only paid orders can be refunded").
			WithDetails(map[string]any{"payment_status": order.PaymentStatus.String()})
	}

	entries, err := s.ledgerRepo.ListByOrder(ctx, input.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ledger entries")
	}
	var paymentRef string
	refunded := decimal.Zero
	for _, entry := range entries {
		switch entry.Type {
		case enums.TransactionTypePayment:
			if entry.GatewayRef != nil {
				paymentRef = *entry.GatewayRef
			}
		case enums.TransactionTypeRefund:
			refunded = refunded.Add(entry.Amount)
		}
	}
	if refunded.Add(input.Amount).GreaterThan(order.TotalAmount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund exceeds refundable amount").
			WithDetails(map[string]any{
				"already_refunded": refunded.String(),
				"total":            order.TotalAmount.String(),
			})
	}

	var gatewayRef *string
	if s.gateway != nil {
		if paymentRef == "" {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no recorded gateway payment")
		}
		ref, err := s.gateway.Refund(ctx, paymentRef, input.Amount)
		if err != nil {
			return nil, err
		}
		gatewayRef = &ref
	}

	var result *models.Refund
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ledgerRepo := s.ledgerRepo.WithTx(tx)

		refund := &models.Refund{
			OrderID:    order.ID,
			SubOrderID: input.SubOrderID,
			Status:     enums.RefundStatusProcessed,
			Amount:     input.Amount,
			GatewayRef: gatewayRef,
		}
		if input.Reason != "" {
			refund.Reason = &input.Reason
		}
		if _, err := repo.CreateRefund(ctx, refund); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund")
		}

		entry := &models.Transaction{
			OrderID:    &order.ID,
			Type:       enums.TransactionTypeRefund,
			Status:     enums.TransactionStatusCompleted,
			Amount:     input.Amount,
			GatewayRef: gatewayRef,
		}
		if _, err := ledgerRepo.Append(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append refund ledger entry")
		}

		payload := payloads.RefundProcessedEvent{
			RefundID: refund.ID,
			OrderID:  order.ID,
			UserID:   order.UserID,
			Amount:   input.Amount,
		}
		if gatewayRef != nil {
			payload.GatewayRef = *gatewayRef
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventRefundProcessed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data:          payload,
			Version:       1,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		result = refund
		return nil
	})
	if err != nil {
		if gatewayRef != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refund recorded at gateway but not locally").
				WithDetails(map[string]any{"gateway_ref": *gatewayRef})
		}
		return nil, err
	}
	return result, nil
}
