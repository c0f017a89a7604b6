package coupons

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/raghavbatra/bazaario-backend/pkg/db/models"
	"github.com/raghavbatra/bazaario-backend/pkg/enums"
	pkgerrors "github.com/raghavbatra/bazaario-backend/pkg/errors"
)

type fakeRepo struct {
	coupon *models.Coupon
	err    error
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepo) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.coupon, nil
}

func (f *fakeRepo) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	return nil
}

func newService(t *testing.T, coupon *models.Coupon, at time.Time) *service {
	t.Helper()
	svc, err := NewService(&fakeRepo{coupon: coupon})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	s := svc.(*service)
	s.now = func() time.Time { return at }
	return s
}

func ptr[T any](v T) *T {
	return &v
}

func TestValidateNotFound(t *testing.T) {
	svc, err := NewService(&fakeRepo{err: gorm.ErrRecordNotFound})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	_, _, err = svc.Validate(context.Background(), "NOPE", decimal.NewFromInt(500))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeCouponInvalid {
		t.Fatalf("expected coupon invalid, got %v", err)
	}
}

func TestValidateInactive(t *testing.T) {
	now := time.Now()
	svc := newService(t, &models.Coupon{Code: "SALE", IsActive: false}, now)
	_, _, err := svc.Validate(context.Background(), "SALE", decimal.NewFromInt(500))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeCouponInvalid {
		t.Fatalf("expected coupon invalid, got %v", err)
	}
}

func TestValidateWindow(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	early := &models.Coupon{Code: "SOON", IsActive: true, ValidFrom: ptr(now.Add(time.Hour))}
	svc := newService(t, early, now)
	_, _, err := svc.Validate(context.Background(), "SOON", decimal.NewFromInt(500))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeCouponExpired {
		t.Fatalf("expected coupon expired for not-yet-active, got %v", err)
	}

	late := &models.Coupon{Code: "OLD", IsActive: true, ValidTo: ptr(now.Add(-time.Hour))}
	svc = newService(t, late, now)
	_, _, err = svc.Validate(context.Background(), "OLD", decimal.NewFromInt(500))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeCouponExpired {
		t.Fatalf("expected coupon expired for past window, got %v", err)
	}
}

func TestValidateUsageLimit(t *testing.T) {
	now := time.Now()
	coupon := &models.Coupon{Code: "MAXED", IsActive: true, UsageLimit: ptr(10), UsedCount: 10}
	svc := newService(t, coupon, now)
	_, _, err := svc.Validate(context.Background(), "MAXED", decimal.NewFromInt(500))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeCouponLimitReached {
		t.Fatalf("expected limit reached, got %v", err)
	}
}

func TestValidateMinPurchase(t *testing.T) {
	now := time.Now()
	coupon := &models.Coupon{
		Code:        "BIG",
		IsActive:    true,
		MinPurchase: ptr(decimal.NewFromInt(1000)),
	}
	svc := newService(t, coupon, now)
	_, _, err := svc.Validate(context.Background(), "BIG", decimal.NewFromInt(999))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeCouponMinimumNotMet {
		t.Fatalf("expected minimum not met, got %v", err)
	}
}

func TestValidatePercentageDiscount(t *testing.T) {
	now := time.Now()
	coupon := &models.Coupon{
		Code:     "TEN",
		IsActive: true,
		Type:     enums.CouponTypePercentage,
		Value:    decimal.NewFromInt(10),
	}
	svc := newService(t, coupon, now)
	_, discount, err := svc.Validate(context.Background(), "TEN", decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !discount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected discount 50, got %s", discount)
	}
}

func TestValidatePercentageDiscountCapped(t *testing.T) {
	now := time.Now()
	coupon := &models.Coupon{
		Code:        "TWENTY",
		IsActive:    true,
		Type:        enums.CouponTypePercentage,
		Value:       decimal.NewFromInt(20),
		MaxDiscount: ptr(decimal.NewFromInt(75)),
	}
	svc := newService(t, coupon, now)
	_, discount, err := svc.Validate(context.Background(), "TWENTY", decimal.NewFromInt(1000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !discount.Equal(decimal.NewFromInt(75)) {
		t.Fatalf("expected capped discount 75, got %s", discount)
	}
}

func TestDiscountFixedNeverExceedsSubtotal(t *testing.T) {
	coupon := &models.Coupon{
		Type:  enums.CouponTypeFixed,
		Value: decimal.NewFromInt(200),
	}
	discount := Discount(coupon, decimal.NewFromInt(150))
	if !discount.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected discount clamped to 150, got %s", discount)
	}
}
