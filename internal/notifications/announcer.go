package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/raghavbatra/bazaario-backend/pkg/db/models"
	"github.com/raghavbatra/bazaario-backend/pkg/enums"
	"github.com/raghavbatra/bazaario-backend/pkg/logger"
)

type commissionLister interface {
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.AffiliateCommission, error)
}

// Announcer tells affiliates about commissions credited for an order. It is
// fire-and-forget: a lost notification never fails the settlement that
// triggered it.
type Announcer struct {
	repo        repositoryWriter
	commissions commissionLister
	affiliates  affiliateResolver
	logg        *logger.Logger
}

// NewAnnouncer builds a commission notification announcer.
func NewAnnouncer(repo repositoryWriter, commissions commissionLister, affiliates affiliateResolver, logg *logger.Logger) (*Announcer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if commissions == nil {
		return nil, fmt.Errorf("commission lister required")
	}
	if affiliates == nil {
		return nil, fmt.Errorf("affiliate resolver required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Announcer{
		repo:        repo,
		commissions: commissions,
		affiliates:  affiliates,
		logg:        logg,
	}, nil
}

// CommissionsSettled notifies every affiliate credited for the order.
func (a *Announcer) CommissionsSettled(ctx context.Context, orderID uuid.UUID) {
	ctx = a.logg.WithOrderID(ctx, orderID.String())

	commissions, err := a.commissions.ListByOrder(ctx, orderID)
	if err != nil {
		a.logg.Error(ctx, "failed to load commissions for announcement", err)
		return
	}

	for _, commission := range commissions {
		affiliate, err := a.affiliates.FindByID(ctx, commission.AffiliateID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			a.logg.Error(ctx, "failed to resolve affiliate for announcement", err)
			continue
		}

		link := orderLink(commission.OrderID)
		notification := &models.Notification{
			UserID:  affiliate.UserID,
			Type:    enums.NotificationTypeCommissionEarned,
			Title:   "Commission earned",
			Message: fmt.Sprintf("You earned ₹%s from a level %d referral sale.", commission.Amount.StringFixed(2), commission.Level),
			Link:    &link,
		}
		if err := a.repo.Create(ctx, notification); err != nil {
			a.logg.Error(ctx, "failed to write commission notification", err)
		}
	}
}
