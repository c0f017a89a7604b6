package commissions

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/raghavbatra/bazaario-backend/internal/affiliates"
	"github.com/raghavbatra/bazaario-backend/pkg/db/models"
	"github.com/raghavbatra/bazaario-backend/pkg/enums"
	pkgerrors "github.com/raghavbatra/bazaario-backend/pkg/errors"
	"github.com/raghavbatra/bazaario-backend/pkg/logger"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:commissions_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Affiliate{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.AffiliateCommission{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestEngine(t *testing.T, db *gorm.DB) *Engine {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "commissions-test", Output: io.Discard})
	engine, err := NewEngine(NewRepository(db), affiliates.NewRepository(db), gormTxRunner{db: db}, logg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

func seedAffiliate(t *testing.T, db *gorm.DB, parentID *uuid.UUID, active bool) *models.Affiliate {
	t.Helper()
	affiliate := &models.Affiliate{
		UserID:       uuid.New(),
		ParentID:     parentID,
		ReferralCode: uuid.NewString()[:8],
		IsActive:     active,
	}
	if err := db.Create(affiliate).Error; err != nil {
		t.Fatalf("seed affiliate: %v", err)
	}
	return affiliate
}

func seedPaidOrder(t *testing.T, db *gorm.DB, buyerID uuid.UUID, plan enums.CommissionPlan, lineTotal decimal.Decimal) (*models.Order, *models.OrderItem) {
	t.Helper()
	product := &models.Product{
		SellerID:       uuid.New(),
		SKU:            "SKU-" + uuid.NewString()[:8],
		Title:          "Steel water bottle",
		Price:          lineTotal,
		Stock:          10,
		CommissionPlan: plan,
		IsActive:       true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	now := time.Now()
	order := &models.Order{
		UserID:        buyerID,
		OrderNumber:   "ORD-" + uuid.NewString()[:8],
		Status:        enums.OrderStatusConfirmed,
		PaymentStatus: enums.PaymentStatusPaid,
		Subtotal:      lineTotal,
		TotalAmount:   lineTotal,
		ShippingName:  "Asha",
		ShippingPhone: "9999999999",
		ShippingLine1: "12 MG Road",
		ShippingCity:  "Pune",
		ShippingState: "MH",
		ShippingPIN:   "411001",
		PaidAt:        &now,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	item := &models.OrderItem{
		SubOrderID:   uuid.New(),
		OrderID:      order.ID,
		ProductID:    product.ID,
		ProductTitle: product.Title,
		Quantity:     1,
		UnitPrice:    lineTotal,
		LineTotal:    lineTotal,
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("seed order item: %v", err)
	}
	return order, item
}

func TestRunStandardPlanThreeLevels(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	engine := newTestEngine(t, db)
	ctx := context.Background()

	level3 := seedAffiliate(t, db, nil, true)
	level2 := seedAffiliate(t, db, &level3.ID, true)
	level1 := seedAffiliate(t, db, &level2.ID, true)
	buyer := seedAffiliate(t, db, &level1.ID, true)

	order, item := seedPaidOrder(t, db, buyer.UserID, enums.CommissionPlanStandard, decimal.NewFromInt(1000))

	created, err := engine.Run(ctx, order.ID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if created != 3 {
		t.Fatalf("expected 3 commissions, got %d", created)
	}

	rows, err := NewRepository(db).ListByOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := map[uuid.UUID]string{
		level1.ID: "60",
		level2.ID: "40",
		level3.ID: "20",
	}
	for _, row := range rows {
		expected, ok := want[row.AffiliateID]
		if !ok {
			t.Fatalf("unexpected recipient %s", row.AffiliateID)
		}
		if !row.Amount.Equal(decimal.RequireFromString(expected)) {
			t.Fatalf("level %d amount = %s, want %s", row.Level, row.Amount, expected)
		}
		if row.OrderItemID != item.ID {
			t.Fatalf("commission not linked to order item")
		}
		if row.Status != enums.CommissionStatusPending {
			t.Fatalf("status = %s, want pending", row.Status)
		}
	}

	var credited models.Affiliate
	if err := db.First(&credited, "id = ?", level1.ID).Error; err != nil {
		t.Fatalf("reload affiliate: %v", err)
	}
	if !credited.Earnings.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("earnings = %s, want 60", credited.Earnings)
	}
}

func TestRunIsIdempotentAcrossRedelivery(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	engine := newTestEngine(t, db)
	ctx := context.Background()

	referrer := seedAffiliate(t, db, nil, true)
	buyer := seedAffiliate(t, db, &referrer.ID, true)
	order, _ := seedPaidOrder(t, db, buyer.UserID, enums.CommissionPlanStandard, decimal.NewFromInt(500))

	if _, err := engine.Run(ctx, order.ID); err != nil {
		t.Fatalf("first run: %v", err)
	}
	created, err := engine.Run(ctx, order.ID)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if created != 0 {
		t.Fatalf("redelivery created %d new commissions", created)
	}

	var reloaded models.Affiliate
	if err := db.First(&reloaded, "id = ?", referrer.ID).Error; err != nil {
		t.Fatalf("reload affiliate: %v", err)
	}
	if !reloaded.Earnings.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("earnings = %s, want 30 after redelivery", reloaded.Earnings)
	}
}

func TestRunDepthCappedAtThree(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	engine := newTestEngine(t, db)
	ctx := context.Background()

	level4 := seedAffiliate(t, db, nil, true)
	level3 := seedAffiliate(t, db, &level4.ID, true)
	level2 := seedAffiliate(t, db, &level3.ID, true)
	level1 := seedAffiliate(t, db, &level2.ID, true)
	buyer := seedAffiliate(t, db, &level1.ID, true)

	order, _ := seedPaidOrder(t, db, buyer.UserID, enums.CommissionPlanPremium, decimal.NewFromInt(100))

	created, err := engine.Run(ctx, order.ID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if created != 3 {
		t.Fatalf("expected 3 commissions, got %d", created)
	}

	var count int64
	if err := db.Model(&models.AffiliateCommission{}).Where("affiliate_id = ?", level4.ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("level 4 ancestor earned a commission")
	}
}

func TestRunChainShorterThanDepth(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	engine := newTestEngine(t, db)
	ctx := context.Background()

	referrer := seedAffiliate(t, db, nil, true)
	buyer := seedAffiliate(t, db, &referrer.ID, true)
	order, _ := seedPaidOrder(t, db, buyer.UserID, enums.CommissionPlanBoosted, decimal.NewFromInt(200))

	created, err := engine.Run(ctx, order.ID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected 1 commission, got %d", created)
	}

	rows, err := NewRepository(db).ListByOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || !rows[0].Amount.Equal(decimal.NewFromInt(18)) {
		t.Fatalf("unexpected commissions %+v", rows)
	}
}

func TestRunInactiveAncestorForfeitsLevel(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	engine := newTestEngine(t, db)
	ctx := context.Background()

	level2 := seedAffiliate(t, db, nil, true)
	level1 := seedAffiliate(t, db, &level2.ID, false)
	buyer := seedAffiliate(t, db, &level1.ID, true)
	order, _ := seedPaidOrder(t, db, buyer.UserID, enums.CommissionPlanStandard, decimal.NewFromInt(1000))

	created, err := engine.Run(ctx, order.ID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected 1 commission, got %d", created)
	}

	rows, err := NewRepository(db).ListByOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if rows[0].AffiliateID != level2.ID || rows[0].Level != 2 {
		t.Fatalf("expected level 2 payout to active ancestor, got %+v", rows[0])
	}
	if !rows[0].Amount.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("amount = %s, want 40", rows[0].Amount)
	}
}

func TestRunBuyerWithoutReferrer(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	engine := newTestEngine(t, db)
	ctx := context.Background()

	buyer := seedAffiliate(t, db, nil, true)
	order, _ := seedPaidOrder(t, db, buyer.UserID, enums.CommissionPlanStandard, decimal.NewFromInt(300))

	created, err := engine.Run(ctx, order.ID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if created != 0 {
		t.Fatalf("expected no commissions, got %d", created)
	}
}

func TestRunSkipsUnpaidOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	engine := newTestEngine(t, db)
	ctx := context.Background()

	referrer := seedAffiliate(t, db, nil, true)
	buyer := seedAffiliate(t, db, &referrer.ID, true)
	order, _ := seedPaidOrder(t, db, buyer.UserID, enums.CommissionPlanStandard, decimal.NewFromInt(400))
	if err := db.Model(&models.Order{}).Where("id = ?", order.ID).Update("payment_status", enums.PaymentStatusPending).Error; err != nil {
		t.Fatalf("reset payment status: %v", err)
	}

	created, err := engine.Run(ctx, order.ID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if created != 0 {
		t.Fatalf("unpaid order produced %d commissions", created)
	}
}

func TestRunUnknownOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	engine := newTestEngine(t, db)

	_, err := engine.Run(context.Background(), uuid.New())
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListUnsettledOrders(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	engine := newTestEngine(t, db)
	ctx := context.Background()
	repo := NewRepository(db)

	referrer := seedAffiliate(t, db, nil, true)
	buyer := seedAffiliate(t, db, &referrer.ID, true)

	settled, _ := seedPaidOrder(t, db, buyer.UserID, enums.CommissionPlanStandard, decimal.NewFromInt(300))
	if _, err := engine.Run(ctx, settled.ID); err != nil {
		t.Fatalf("settle: %v", err)
	}

	missed, _ := seedPaidOrder(t, db, buyer.UserID, enums.CommissionPlanStandard, decimal.NewFromInt(500))

	stale, _ := seedPaidOrder(t, db, buyer.UserID, enums.CommissionPlanStandard, decimal.NewFromInt(700))
	old := time.Now().Add(-30 * 24 * time.Hour)
	if err := db.Model(&models.Order{}).Where("id = ?", stale.ID).Update("paid_at", old).Error; err != nil {
		t.Fatalf("age order: %v", err)
	}

	unpaid, _ := seedPaidOrder(t, db, buyer.UserID, enums.CommissionPlanStandard, decimal.NewFromInt(900))
	if err := db.Model(&models.Order{}).Where("id = ?", unpaid.ID).Update("payment_status", enums.PaymentStatusPending).Error; err != nil {
		t.Fatalf("reset payment status: %v", err)
	}

	ids, err := repo.ListUnsettledOrders(ctx, time.Now().Add(-24*time.Hour), 10)
	if err != nil {
		t.Fatalf("list unsettled: %v", err)
	}
	if len(ids) != 1 || ids[0] != missed.ID {
		t.Fatalf("unsettled ids = %v, want only %s", ids, missed.ID)
	}
}
