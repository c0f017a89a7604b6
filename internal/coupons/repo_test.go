package coupons

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/raghavbatra/bazaario-backend/pkg/db/models"
	pkgerrors "github.com/raghavbatra/bazaario-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:coupons_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Coupon{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestIncrementUsageGuard(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	limit := 2
	coupon := models.Coupon{
		ID:         uuid.New(),
		Code:       "LAST2",
		Value:      decimal.NewFromInt(50),
		UsageLimit: &limit,
		IsActive:   true,
	}
	if err := db.Create(&coupon).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}

	if err := repo.IncrementUsage(ctx, coupon.ID); err != nil {
		t.Fatalf("first increment: %v", err)
	}
	if err := repo.IncrementUsage(ctx, coupon.ID); err != nil {
		t.Fatalf("second increment: %v", err)
	}

	err := repo.IncrementUsage(ctx, coupon.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeCouponLimitReached {
		t.Fatalf("expected limit reached, got %v", err)
	}

	var got models.Coupon
	if err := db.First(&got, "id = ?", coupon.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.UsedCount != 2 {
		t.Fatalf("expected used_count 2, got %d", got.UsedCount)
	}
}

func TestFindByCodeNormalizesInput(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)

	coupon := models.Coupon{
		ID:       uuid.New(),
		Code:     "WELCOME",
		Value:    decimal.NewFromInt(10),
		IsActive: true,
	}
	if err := db.Create(&coupon).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}

	got, err := repo.FindByCode(context.Background(), "  welcome ")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != coupon.ID {
		t.Fatalf("unexpected coupon %v", got.ID)
	}
}
