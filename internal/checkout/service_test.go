package checkout

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/raghavbatra/bazaario-backend/internal/cart"
	"github.com/raghavbatra/bazaario-backend/internal/catalog"
	"github.com/raghavbatra/bazaario-backend/internal/coupons"
	"github.com/raghavbatra/bazaario-backend/internal/orders"
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
	events []outbox.DomainEvent
}

func (p *recordingPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	p.events = append(p.events, event)
	return nil
}

type stubGateway struct {
	orderID string
	err     error
	calls   int
}

func (g *stubGateway) CreateOrder(ctx context.Context, receipt string, amount decimal.Decimal) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.orderID, nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Product{},
		&models.ProductVariation{},
		&models.CartItem{},
		&models.Coupon{},
		&models.Order{},
		&models.SellerSubOrder{},
		&models.OrderItem{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB, publisher *recordingPublisher, gateway gatewayOrderCreator) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "checkout-test", Output: io.Discard})
	svc, err := NewService(
		gormTxRunner{db: db},
		cart.NewRepository(db),
		orders.NewRepository(db),
		catalog.NewRepository(db),
		coupons.NewRepository(db),
		publisher,
		gateway,
		logg,
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func seedProduct(t *testing.T, db *gorm.DB, sellerID uuid.UUID, price string, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		SellerID:       sellerID,
		SKU:            "SKU-" + uuid.NewString()[:8],
		Title:          "Clay planter",
		Price:          decimal.RequireFromString(price),
		Stock:          stock,
		CommissionPlan: enums.CommissionPlanStandard,
		IsActive:       true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func addToCart(t *testing.T, db *gorm.DB, userID uuid.UUID, productID uuid.UUID, variationID *uuid.UUID, qty int) {
	t.Helper()
	item := &models.CartItem{
		UserID:      userID,
		ProductID:   productID,
		VariationID: variationID,
		Quantity:    qty,
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("seed cart item: %v", err)
	}
}

func shipping() ShippingAddress {
	return ShippingAddress{
		Name:  "Asha Rao",
		Phone: "9876543210",
		Line1: "12 MG Road",
		City:  "Pune",
		State: "MH",
		PIN:   "411001",
	}
}

func TestExecuteSplitsOrderPerSeller(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	publisher := &recordingPublisher{}
	svc := newTestService(t, db, publisher, nil)
	ctx := context.Background()

	userID := uuid.New()
	sellerA := uuid.New()
	sellerB := uuid.New()
	productA := seedProduct(t, db, sellerA, "100", 5)
	productB := seedProduct(t, db, sellerB, "40", 5)
	addToCart(t, db, userID, productA.ID, nil, 2)
	addToCart(t, db, userID, productB.ID, nil, 1)

	order, err := svc.Execute(ctx, userID, CheckoutInput{Shipping: shipping()})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if len(order.SubOrders) != 2 {
		t.Fatalf("expected 2 sub-orders, got %d", len(order.SubOrders))
	}
	if !order.Subtotal.Equal(decimal.NewFromInt(240)) {
		t.Fatalf("subtotal = %s, want 240", order.Subtotal)
	}
	if !order.TotalAmount.Equal(decimal.NewFromInt(240)) {
		t.Fatalf("total = %s, want 240", order.TotalAmount)
	}
	if order.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("payment status = %s", order.PaymentStatus)
	}

	bySeller := map[uuid.UUID]models.SellerSubOrder{}
	for _, subOrder := range order.SubOrders {
		bySeller[subOrder.SellerID] = subOrder
	}
	if !bySeller[sellerA].Subtotal.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("seller A subtotal = %s", bySeller[sellerA].Subtotal)
	}
	if !bySeller[sellerB].Subtotal.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("seller B subtotal = %s", bySeller[sellerB].Subtotal)
	}
	if len(bySeller[sellerA].Items) != 1 || bySeller[sellerA].Items[0].Quantity != 2 {
		t.Fatalf("seller A items %+v", bySeller[sellerA].Items)
	}
	if bySeller[sellerA].Items[0].ProductTitle != productA.Title {
		t.Fatalf("title not snapshotted")
	}

	var product models.Product
	if err := db.First(&product, "id = ?", productA.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if product.Stock != 3 {
		t.Fatalf("product A stock = %d, want 3", product.Stock)
	}

	var cartCount int64
	if err := db.Model(&models.CartItem{}).Where("user_id = ?", userID).Count(&cartCount).Error; err != nil {
		t.Fatalf("count cart: %v", err)
	}
	if cartCount != 0 {
		t.Fatalf("cart not cleared, %d items remain", cartCount)
	}

	if len(publisher.events) != 1 || publisher.events[0].EventType != enums.EventOrderCreated {
		t.Fatalf("expected one order_created event, got %+v", publisher.events)
	}
}

func TestExecuteInsufficientStockRollsBack(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	publisher := &recordingPublisher{}
	svc := newTestService(t, db, publisher, nil)
	ctx := context.Background()

	userID := uuid.New()
	sellerID := uuid.New()
	okProduct := seedProduct(t, db, sellerID, "50", 10)
	scarce := seedProduct(t, db, sellerID, "80", 1)
	addToCart(t, db, userID, okProduct.ID, nil, 2)
	addToCart(t, db, userID, scarce.ID, nil, 3)

	_, err := svc.Execute(ctx, userID, CheckoutInput{Shipping: shipping()})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	details, ok := appErr.Details().(map[string]any)
	if !ok {
		t.Fatalf("error details = %v, want offending line", appErr.Details())
	}
	if details["product_id"] != scarce.ID.String() {
		t.Fatalf("details name product %v, want %s", details["product_id"], scarce.ID)
	}

	var reloaded models.Product
	if err := db.First(&reloaded, "id = ?", okProduct.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if reloaded.Stock != 10 {
		t.Fatalf("stock decrement not rolled back, stock = %d", reloaded.Stock)
	}

	var orderCount int64
	if err := db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 0 {
		t.Fatalf("order created despite failed reservation")
	}
	if len(publisher.events) != 0 {
		t.Fatalf("event emitted despite rollback")
	}
}

func TestExecuteAppliesCoupon(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	publisher := &recordingPublisher{}
	svc := newTestService(t, db, publisher, nil)
	ctx := context.Background()

	userID := uuid.New()
	product := seedProduct(t, db, uuid.New(), "500", 5)
	addToCart(t, db, userID, product.ID, nil, 1)

	coupon := &models.Coupon{
		Code:     "WELCOME10",
		Type:     enums.CouponTypePercentage,
		Value:    decimal.NewFromInt(10),
		IsActive: true,
	}
	if err := db.Create(coupon).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}

	order, err := svc.Execute(ctx, userID, CheckoutInput{CouponCode: "welcome10", Shipping: shipping()})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !order.DiscountAmount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("discount = %s, want 50", order.DiscountAmount)
	}
	if !order.TotalAmount.Equal(decimal.NewFromInt(450)) {
		t.Fatalf("total = %s, want 450", order.TotalAmount)
	}
	if order.CouponID == nil || *order.CouponID != coupon.ID {
		t.Fatalf("coupon not linked to order")
	}

	var reloaded models.Coupon
	if err := db.First(&reloaded, "id = ?", coupon.ID).Error; err != nil {
		t.Fatalf("reload coupon: %v", err)
	}
	if reloaded.UsedCount != 1 {
		t.Fatalf("used count = %d, want 1", reloaded.UsedCount)
	}
}

func TestExecuteVariationPriceWins(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	publisher := &recordingPublisher{}
	svc := newTestService(t, db, publisher, nil)
	ctx := context.Background()

	userID := uuid.New()
	product := seedProduct(t, db, uuid.New(), "100", 5)
	variation := &models.ProductVariation{
		ProductID: product.ID,
		Name:      "Large",
		Price:     decimal.NewFromInt(120),
		Stock:     3,
	}
	if err := db.Create(variation).Error; err != nil {
		t.Fatalf("seed variation: %v", err)
	}
	addToCart(t, db, userID, product.ID, &variation.ID, 2)

	order, err := svc.Execute(ctx, userID, CheckoutInput{Shipping: shipping()})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !order.Subtotal.Equal(decimal.NewFromInt(240)) {
		t.Fatalf("subtotal = %s, want 240 from variation price", order.Subtotal)
	}

	var reloadedVariation models.ProductVariation
	if err := db.First(&reloadedVariation, "id = ?", variation.ID).Error; err != nil {
		t.Fatalf("reload variation: %v", err)
	}
	if reloadedVariation.Stock != 1 {
		t.Fatalf("variation stock = %d, want 1", reloadedVariation.Stock)
	}
	var reloadedProduct models.Product
	if err := db.First(&reloadedProduct, "id = ?", product.ID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if reloadedProduct.Stock != 5 {
		t.Fatalf("product stock touched for variation line")
	}
}

func TestExecuteEmptyCart(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, &recordingPublisher{}, nil)

	_, err := svc.Execute(context.Background(), uuid.New(), CheckoutInput{Shipping: shipping()})
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExecuteRejectsMissingShipping(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, &recordingPublisher{}, nil)

	_, err := svc.Execute(context.Background(), uuid.New(), CheckoutInput{})
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExecuteRegistersGatewayOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	gateway := &stubGateway{orderID: "order_rzp_123"}
	svc := newTestService(t, db, &recordingPublisher{}, gateway)
	ctx := context.Background()

	userID := uuid.New()
	product := seedProduct(t, db, uuid.New(), "75", 5)
	addToCart(t, db, userID, product.ID, nil, 1)

	order, err := svc.Execute(ctx, userID, CheckoutInput{Shipping: shipping()})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if gateway.calls != 1 {
		t.Fatalf("gateway called %d times", gateway.calls)
	}
	if order.GatewayOrderID == nil || *order.GatewayOrderID != "order_rzp_123" {
		t.Fatalf("gateway order id not persisted on result")
	}

	var reloaded models.Order
	if err := db.First(&reloaded, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.GatewayOrderID == nil || *reloaded.GatewayOrderID != "order_rzp_123" {
		t.Fatalf("gateway order id not stored")
	}
}
