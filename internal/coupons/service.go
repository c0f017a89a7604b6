package coupons

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/raghavbatra/bazaario-backend/pkg/db/models"
	"github.com/raghavbatra/bazaario-backend/pkg/enums"
	pkgerrors "github.com/raghavbatra/bazaario-backend/pkg/errors"
)

// Service validates coupon codes and computes the resulting discount.
type Service interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*models.Coupon, decimal.Decimal, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds a coupon service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, errors.New("coupon repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

// Validate runs the checks in a fixed order so callers always see the most
// specific failure: existence/active, window start, window end, usage limit,
// then minimum purchase.
func (s *service) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*models.Coupon, decimal.Decimal, error) {
	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeCouponInvalid, "invalid coupon code")
		}
		return nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	if !coupon.IsActive {
		return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeCouponInvalid, "invalid coupon code")
	}

	now := s.now()
	if coupon.ValidFrom != nil && now.Before(*coupon.ValidFrom) {
		return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeCouponExpired, "coupon is not yet active")
	}
	if coupon.ValidTo != nil && now.After(*coupon.ValidTo) {
		return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeCouponExpired, "coupon has expired")
	}
	if coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit {
		return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeCouponLimitReached, "coupon usage limit reached")
	}
	if coupon.MinPurchase != nil && subtotal.LessThan(*coupon.MinPurchase) {
		return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeCouponMinimumNotMet, "minimum purchase not met").
			WithDetails(map[string]any{"min_purchase": coupon.MinPurchase.String()})
	}

	return coupon, Discount(coupon, subtotal), nil
}

// Discount computes the coupon's discount against the given subtotal, capped
// at max_discount and never exceeding the subtotal itself.
func Discount(coupon *models.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch coupon.Type {
	case enums.CouponTypePercentage:
		discount = subtotal.Mul(coupon.Value).Div(decimal.NewFromInt(100))
	case enums.CouponTypeFixed:
		discount = coupon.Value
	default:
		return decimal.Zero
	}
	if coupon.MaxDiscount != nil && discount.GreaterThan(*coupon.MaxDiscount) {
		discount = *coupon.MaxDiscount
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return discount.Round(2)
}
