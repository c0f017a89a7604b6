package orders

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/raghavbatra/bazaario-backend/internal/catalog"
	"github.com/raghavbatra/bazaario-backend/internal/ledger"
	"github.com/raghavbatra/bazaario-backend/pkg/db/models"
	"github.com/raghavbatra/bazaario-backend/pkg/enums"
	pkgerrors "github.com/raghavbatra/bazaario-backend/pkg/errors"
	"github.com/raghavbatra/bazaario-backend/pkg/logger"
	"github.com/raghavbatra/bazaario-backend/pkg/outbox"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []outbox.DomainEvent
}

func (p *recordingPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) byType(eventType enums.OutboxEventType) []outbox.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var matched []outbox.DomainEvent
	for _, event := range p.events {
		if event.EventType == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

type stubVerifier struct {
	valid bool
}

func (v stubVerifier) VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	return v.valid
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Product{},
		&models.ProductVariation{},
		&models.Order{},
		&models.SellerSubOrder{},
		&models.OrderItem{},
		&models.Transaction{},
		&models.Refund{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB, publisher *recordingPublisher, verifier signatureVerifier) Service {
	t.Helper()
	return newTestServiceWithGateway(t, db, publisher, verifier, nil)
}

func newTestServiceWithGateway(t *testing.T, db *gorm.DB, publisher *recordingPublisher, verifier signatureVerifier, gateway settlementGateway) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})
	svc, err := NewService(
		gormTxRunner{db: db},
		NewRepository(db),
		ledger.NewRepository(db),
		catalog.NewRepository(db),
		publisher,
		verifier,
		gateway,
		logg,
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func seedPendingOrder(t *testing.T, db *gorm.DB, total string) *models.Order {
	t.Helper()
	gatewayOrderID := "order_rzp_" + uuid.NewString()[:8]
	order := &models.Order{
		UserID:         uuid.New(),
		OrderNumber:    "ORD-" + uuid.NewString()[:8],
		Status:         enums.OrderStatusPending,
		PaymentStatus:  enums.PaymentStatusPending,
		Subtotal:       decimal.RequireFromString(total),
		TotalAmount:    decimal.RequireFromString(total),
		GatewayOrderID: &gatewayOrderID,
		ShippingName:   "Asha",
		ShippingPhone:  "9999999999",
		ShippingLine1:  "12 MG Road",
		ShippingCity:   "Pune",
		ShippingState:  "MH",
		ShippingPIN:    "411001",
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func TestConfirmPaymentTransitionsOnce(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	publisher := &recordingPublisher{}
	svc := newTestService(t, db, publisher, stubVerifier{valid: true})
	ctx := context.Background()
	order := seedPendingOrder(t, db, "750")

	confirmed, err := svc.ConfirmPayment(ctx, ConfirmPaymentInput{
		OrderID:          order.ID,
		GatewayPaymentID: "pay_123",
		Signature:        "sig",
	})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("payment status = %s", confirmed.PaymentStatus)
	}
	if confirmed.Status != enums.OrderStatusConfirmed {
		t.Fatalf("order status = %s", confirmed.Status)
	}
	if confirmed.PaidAt == nil {
		t.Fatalf("paid_at not set")
	}

	entries, err := ledger.NewRepository(db).ListByOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if len(entries) != 1 || entries[0].Type != enums.TransactionTypePayment {
		t.Fatalf("unexpected ledger entries %+v", entries)
	}
	if entries[0].GatewayRef == nil || *entries[0].GatewayRef != "pay_123" {
		t.Fatalf("gateway ref not recorded")
	}

	if paid := publisher.byType(enums.EventOrderPaid); len(paid) != 1 {
		t.Fatalf("expected one order_paid event, got %d", len(paid))
	}
}

func TestConfirmPaymentDuplicateCallbackIsNoOp(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	publisher := &recordingPublisher{}
	svc := newTestService(t, db, publisher, stubVerifier{valid: true})
	ctx := context.Background()
	order := seedPendingOrder(t, db, "300")

	input := ConfirmPaymentInput{OrderID: order.ID, GatewayPaymentID: "pay_dup", Signature: "sig"}
	if _, err := svc.ConfirmPayment(ctx, input); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	second, err := svc.ConfirmPayment(ctx, input)
	if err != nil {
		t.Fatalf("duplicate confirm: %v", err)
	}
	if second.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("duplicate result status = %s", second.PaymentStatus)
	}

	if paid := publisher.byType(enums.EventOrderPaid); len(paid) != 1 {
		t.Fatalf("duplicate callback emitted %d order_paid events", len(paid))
	}
	entries, err := ledger.NewRepository(db).ListByOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("duplicate callback appended %d ledger entries", len(entries))
	}
}

func TestConfirmPaymentBadSignature(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	publisher := &recordingPublisher{}
	svc := newTestService(t, db, publisher, stubVerifier{valid: false})
	order := seedPendingOrder(t, db, "100")

	_, err := svc.ConfirmPayment(context.Background(), ConfirmPaymentInput{
		OrderID:          order.ID,
		GatewayPaymentID: "pay_bad",
		Signature:        "forged",
	})
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodePaymentVerification {
		t.Fatalf("expected payment verification error, got %v", err)
	}

	var reloaded models.Order
	if err := db.First(&reloaded, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("order settled despite forged signature")
	}
	if len(publisher.events) != 0 {
		t.Fatalf("events emitted despite forged signature")
	}
}

func TestConfirmPaymentOnCancelledOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	publisher := &recordingPublisher{}
	svc := newTestService(t, db, publisher, stubVerifier{valid: true})
	ctx := context.Background()
	order := seedPendingOrder(t, db, "100")

	if _, err := svc.Cancel(ctx, order.ID, order.UserID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err := svc.ConfirmPayment(ctx, ConfirmPaymentInput{OrderID: order.ID, GatewayPaymentID: "pay_late", Signature: "sig"})
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestFailPayment(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	publisher := &recordingPublisher{}
	svc := newTestService(t, db, publisher, nil)
	ctx := context.Background()
	order := seedPendingOrder(t, db, "100")

	if err := svc.FailPayment(ctx, order.ID, "card declined"); err != nil {
		t.Fatalf("fail payment: %v", err)
	}

	var reloaded models.Order
	if err := db.First(&reloaded, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.PaymentStatus != enums.PaymentStatusFailed {
		t.Fatalf("payment status = %s", reloaded.PaymentStatus)
	}
	if failed := publisher.byType(enums.EventPaymentFailed); len(failed) != 1 {
		t.Fatalf("expected one payment_failed event")
	}

	err := svc.FailPayment(ctx, order.ID, "again")
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict on second failure, got %v", err)
	}
}

func TestCancelRestoresStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	publisher := &recordingPublisher{}
	svc := newTestService(t, db, publisher, nil)
	ctx := context.Background()

	product := &models.Product{
		SellerID:       uuid.New(),
		SKU:            "SKU-1",
		Title:          "Desk lamp",
		Price:          decimal.NewFromInt(90),
		Stock:          3,
		CommissionPlan: enums.CommissionPlanStandard,
		IsActive:       true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}

	order := seedPendingOrder(t, db, "180")
	subOrder := &models.SellerSubOrder{
		OrderID:     order.ID,
		SellerID:    product.SellerID,
		Status:      enums.SubOrderStatusPending,
		Subtotal:    decimal.NewFromInt(180),
		TotalAmount: decimal.NewFromInt(180),
	}
	if err := db.Create(subOrder).Error; err != nil {
		t.Fatalf("seed sub-order: %v", err)
	}
	item := &models.OrderItem{
		SubOrderID:   subOrder.ID,
		OrderID:      order.ID,
		ProductID:    product.ID,
		ProductTitle: product.Title,
		Quantity:     2,
		UnitPrice:    decimal.NewFromInt(90),
		LineTotal:    decimal.NewFromInt(180),
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}

	cancelled, err := svc.Cancel(ctx, order.ID, order.UserID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("order not cancelled: %+v", cancelled)
	}

	var reloadedProduct models.Product
	if err := db.First(&reloadedProduct, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if reloadedProduct.Stock != 5 {
		t.Fatalf("stock = %d, want 5 after restore", reloadedProduct.Stock)
	}

	var reloadedSubOrder models.SellerSubOrder
	if err := db.First(&reloadedSubOrder, "id = ?", subOrder.ID).Error; err != nil {
		t.Fatalf("reload sub-order: %v", err)
	}
	if reloadedSubOrder.Status != enums.SubOrderStatusCancelled {
		t.Fatalf("sub-order status = %s", reloadedSubOrder.Status)
	}

	if events := publisher.byType(enums.EventOrderCancelled); len(events) != 1 {
		t.Fatalf("expected one order_cancelled event")
	}
}

func TestCancelPaidOrderRejected(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	publisher := &recordingPublisher{}
	svc := newTestService(t, db, publisher, nil)
	ctx := context.Background()
	order := seedPendingOrder(t, db, "100")

	if _, err := svc.ConfirmPayment(ctx, ConfirmPaymentInput{OrderID: order.ID}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	_, err := svc.Cancel(ctx, order.ID, order.UserID)
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCancelOtherUsersOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, &recordingPublisher{}, nil)
	order := seedPendingOrder(t, db, "100")

	_, err := svc.Cancel(context.Background(), order.ID, uuid.New())
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for other user, got %v", err)
	}
}

func TestMarkDelivered(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, &recordingPublisher{}, nil)
	ctx := context.Background()
	order := seedPendingOrder(t, db, "100")

	subOrder := &models.SellerSubOrder{
		OrderID:     order.ID,
		SellerID:    uuid.New(),
		Status:      enums.SubOrderStatusShipped,
		Subtotal:    decimal.NewFromInt(100),
		TotalAmount: decimal.NewFromInt(100),
	}
	if err := db.Create(subOrder).Error; err != nil {
		t.Fatalf("seed sub-order: %v", err)
	}

	if err := svc.MarkDelivered(ctx, subOrder.ID); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}

	var reloaded models.SellerSubOrder
	if err := db.First(&reloaded, "id = ?", subOrder.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != enums.SubOrderStatusDelivered || reloaded.DeliveredAt == nil {
		t.Fatalf("sub-order not delivered: %+v", reloaded)
	}

	err := svc.MarkDelivered(ctx, subOrder.ID)
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict on double delivery, got %v", err)
	}
}

type transferCall struct {
	paymentID string
	account   string
	amount    decimal.Decimal
}

type stubGateway struct {
	mu          sync.Mutex
	transfers   []transferCall
	transferErr error
	refunds     int
	lastRef     string
	lastAmount  decimal.Decimal
}

func (g *stubGateway) Transfer(ctx context.Context, gatewayPaymentID string, sellerAccount string, amount decimal.Decimal) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.transferErr != nil {
		return "", g.transferErr
	}
	g.transfers = append(g.transfers, transferCall{paymentID: gatewayPaymentID, account: sellerAccount, amount: amount})
	return "trf_" + uuid.NewString()[:8], nil
}

func (g *stubGateway) Refund(ctx context.Context, gatewayPaymentID string, amount decimal.Decimal) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds++
	g.lastRef = gatewayPaymentID
	g.lastAmount = amount
	return "rfnd_" + uuid.NewString()[:8], nil
}

func TestRefundPaidOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	publisher := &recordingPublisher{}
	gateway := &stubGateway{}
	svc := newTestServiceWithGateway(t, db, publisher, nil, gateway)
	ctx := context.Background()
	order := seedPendingOrder(t, db, "500")

	if _, err := svc.ConfirmPayment(ctx, ConfirmPaymentInput{OrderID: order.ID, GatewayPaymentID: "pay_refundable"}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	refund, err := svc.Refund(ctx, RefundInput{
		OrderID: order.ID,
		Amount:  decimal.NewFromInt(200),
		Reason:  "damaged item",
	})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refund.Status != enums.RefundStatusProcessed {
		t.Fatalf("refund status = %s", refund.Status)
	}
	if refund.GatewayRef == nil {
		t.Fatalf("gateway ref not recorded")
	}
	if gateway.lastRef != "pay_refundable" {
		t.Fatalf("refunded against payment %q", gateway.lastRef)
	}
	if !gateway.lastAmount.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("gateway refund amount = %s", gateway.lastAmount)
	}

	entries, err := ledger.NewRepository(db).ListByOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	var refundEntries int
	for _, entry := range entries {
		if entry.Type == enums.TransactionTypeRefund {
			refundEntries++
		}
	}
	if refundEntries != 1 {
		t.Fatalf("expected one refund ledger entry, got %d", refundEntries)
	}

	events := publisher.byType(enums.EventRefundProcessed)
	if len(events) != 1 {
		t.Fatalf("expected one refund_processed event, got %d", len(events))
	}
}

func TestRefundCapsAtOrderTotal(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	publisher := &recordingPublisher{}
	svc := newTestServiceWithGateway(t, db, publisher, nil, &stubGateway{})
	ctx := context.Background()
	order := seedPendingOrder(t, db, "300")

	if _, err := svc.ConfirmPayment(ctx, ConfirmPaymentInput{OrderID: order.ID, GatewayPaymentID: "pay_cap"}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if _, err := svc.Refund(ctx, RefundInput{OrderID: order.ID, Amount: decimal.NewFromInt(250)}); err != nil {
		t.Fatalf("first refund: %v", err)
	}

	_, err := svc.Refund(ctx, RefundInput{OrderID: order.ID, Amount: decimal.NewFromInt(100)})
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error past the total, got %v", err)
	}

	if _, err := svc.Refund(ctx, RefundInput{OrderID: order.ID, Amount: decimal.NewFromInt(50)}); err != nil {
		t.Fatalf("refund of remaining balance: %v", err)
	}
}

func TestRefundRejectsUnpaidOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestServiceWithGateway(t, db, &recordingPublisher{}, nil, &stubGateway{})
	order := seedPendingOrder(t, db, "100")

	_, err := svc.Refund(context.Background(), RefundInput{OrderID: order.ID, Amount: decimal.NewFromInt(50)})
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict for unpaid order, got %v", err)
	}
}

func seedSubOrder(t *testing.T, db *gorm.DB, orderID uuid.UUID, total int64) *models.SellerSubOrder {
	t.Helper()
	subOrder := &models.SellerSubOrder{
		OrderID:     orderID,
		SellerID:    uuid.New(),
		Status:      enums.SubOrderStatusPending,
		Subtotal:    decimal.NewFromInt(total),
		TotalAmount: decimal.NewFromInt(total),
	}
	if err := db.Create(subOrder).Error; err != nil {
		t.Fatalf("seed sub-order: %v", err)
	}
	return subOrder
}

func TestConfirmPaymentRoutesSellerTransfers(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	publisher := &recordingPublisher{}
	gateway := &stubGateway{}
	svc := newTestServiceWithGateway(t, db, publisher, nil, gateway)
	ctx := context.Background()

	order := seedPendingOrder(t, db, "1000")
	first := seedSubOrder(t, db, order.ID, 600)
	second := seedSubOrder(t, db, order.ID, 400)

	if _, err := svc.ConfirmPayment(ctx, ConfirmPaymentInput{OrderID: order.ID, GatewayPaymentID: "pay_split"}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if len(gateway.transfers) != 2 {
		t.Fatalf("made %d transfers, want 2", len(gateway.transfers))
	}
	byAccount := map[string]decimal.Decimal{}
	for _, call := range gateway.transfers {
		if call.paymentID != "pay_split" {
			t.Fatalf("transfer against payment %q", call.paymentID)
		}
		byAccount[call.account] = call.amount
	}
	if amount, ok := byAccount[first.SellerID.String()]; !ok || !amount.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("first seller transfer = %v", byAccount)
	}
	if amount, ok := byAccount[second.SellerID.String()]; !ok || !amount.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("second seller transfer = %v", byAccount)
	}

	for _, id := range []uuid.UUID{first.ID, second.ID} {
		var reloaded models.SellerSubOrder
		if err := db.First(&reloaded, "id = ?", id).Error; err != nil {
			t.Fatalf("reload sub-order: %v", err)
		}
		if reloaded.GatewayTransferID == nil {
			t.Fatalf("sub-order %s has no transfer reference", id)
		}
	}

	entries, err := ledger.NewRepository(db).ListByOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	var payoutEntries int
	for _, entry := range entries {
		if entry.Type == enums.TransactionTypePayout {
			payoutEntries++
		}
	}
	if payoutEntries != 2 {
		t.Fatalf("expected 2 transfer ledger entries, got %d", payoutEntries)
	}
}

func TestConfirmPaymentSurvivesTransferFailure(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	publisher := &recordingPublisher{}
	gateway := &stubGateway{transferErr: context.DeadlineExceeded}
	svc := newTestServiceWithGateway(t, db, publisher, nil, gateway)
	ctx := context.Background()

	order := seedPendingOrder(t, db, "500")
	subOrder := seedSubOrder(t, db, order.ID, 500)

	confirmed, err := svc.ConfirmPayment(ctx, ConfirmPaymentInput{OrderID: order.ID, GatewayPaymentID: "pay_flaky"})
	if err != nil {
		t.Fatalf("confirm should survive a failed transfer: %v", err)
	}
	if confirmed.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("payment status = %s", confirmed.PaymentStatus)
	}

	var reloaded models.SellerSubOrder
	if err := db.First(&reloaded, "id = ?", subOrder.ID).Error; err != nil {
		t.Fatalf("reload sub-order: %v", err)
	}
	if reloaded.GatewayTransferID != nil {
		t.Fatalf("failed transfer recorded a reference")
	}
}

func TestConfirmPaymentResolvesGatewayReference(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	publisher := &recordingPublisher{}
	svc := newTestService(t, db, publisher, nil)
	ctx := context.Background()

	order := seedPendingOrder(t, db, "250")

	confirmed, err := svc.ConfirmPayment(ctx, ConfirmPaymentInput{
		GatewayOrderID:   *order.GatewayOrderID,
		GatewayPaymentID: "pay_webhook",
	})
	if err != nil {
		t.Fatalf("confirm by gateway reference: %v", err)
	}
	if confirmed.ID != order.ID {
		t.Fatalf("resolved order %s, want %s", confirmed.ID, order.ID)
	}
	if confirmed.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("payment status = %s", confirmed.PaymentStatus)
	}

	if _, err := svc.ConfirmPayment(ctx, ConfirmPaymentInput{GatewayOrderID: "order_rzp_unknown"}); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unknown gateway reference should be not-found, got %v", err)
	}
}

func TestConfirmPaymentSkipsCancelledSubOrderTransfers(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	gateway := &stubGateway{}
	svc := newTestServiceWithGateway(t, db, &recordingPublisher{}, nil, gateway)
	ctx := context.Background()

	order := seedPendingOrder(t, db, "300")
	live := seedSubOrder(t, db, order.ID, 200)
	cancelled := seedSubOrder(t, db, order.ID, 100)
	now := time.Now()
	if err := db.Model(&models.SellerSubOrder{}).Where("id = ?", cancelled.ID).
		Updates(map[string]any{"status": enums.SubOrderStatusCancelled, "cancelled_at": now}).Error; err != nil {
		t.Fatalf("cancel sub-order: %v", err)
	}

	if _, err := svc.ConfirmPayment(ctx, ConfirmPaymentInput{OrderID: order.ID, GatewayPaymentID: "pay_partial"}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if len(gateway.transfers) != 1 || gateway.transfers[0].account != live.SellerID.String() {
		t.Fatalf("transfers = %+v, want only the live seller", gateway.transfers)
	}
}
