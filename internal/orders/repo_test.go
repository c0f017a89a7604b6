package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raghavbatra/bazaario-backend/pkg/db/models"
	"github.com/raghavbatra/bazaario-backend/pkg/enums"
)

func TestMarkPaidWinsExactlyOnce(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	order := seedPendingOrder(t, db, "500")

	won, err := repo.MarkPaid(ctx, order.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, won)

	again, err := repo.MarkPaid(ctx, order.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, again, "second transition must lose")

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, stored.PaymentStatus)
	assert.Equal(t, enums.OrderStatusConfirmed, stored.Status)
	require.NotNil(t, stored.PaidAt)
}

func TestMarkPaidLosesAgainstCancellation(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	order := seedPendingOrder(t, db, "500")

	cancelled, err := repo.CancelPending(ctx, order.ID, time.Now())
	require.NoError(t, err)
	require.True(t, cancelled)

	won, err := repo.MarkPaid(ctx, order.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, won, "cancelled order must not become paid")

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, stored.Status)
	assert.Equal(t, enums.PaymentStatusPending, stored.PaymentStatus)
}

func TestCancelPendingRejectsPaidOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	order := seedPendingOrder(t, db, "250")

	won, err := repo.MarkPaid(ctx, order.ID, time.Now())
	require.NoError(t, err)
	require.True(t, won)

	cancelled, err := repo.CancelPending(ctx, order.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, cancelled)
}

func TestMarkSubOrderDeliveredGuardsTerminalStates(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	order := seedPendingOrder(t, db, "250")

	subOrder := &models.SellerSubOrder{
		OrderID:     order.ID,
		SellerID:    uuid.New(),
		Status:      enums.SubOrderStatusShipped,
		Subtotal:    order.Subtotal,
		TotalAmount: order.TotalAmount,
	}
	require.NoError(t, db.Create(subOrder).Error)

	delivered, err := repo.MarkSubOrderDelivered(ctx, subOrder.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, delivered)

	again, err := repo.MarkSubOrderDelivered(ctx, subOrder.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, again, "delivery is terminal")
}

func TestCancelSubOrdersOnlyTouchesPending(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	order := seedPendingOrder(t, db, "400")

	pending := &models.SellerSubOrder{
		OrderID:     order.ID,
		SellerID:    uuid.New(),
		Status:      enums.SubOrderStatusPending,
		Subtotal:    order.Subtotal,
		TotalAmount: order.TotalAmount,
	}
	shipped := &models.SellerSubOrder{
		OrderID:     order.ID,
		SellerID:    uuid.New(),
		Status:      enums.SubOrderStatusShipped,
		Subtotal:    order.Subtotal,
		TotalAmount: order.TotalAmount,
	}
	require.NoError(t, db.Create(pending).Error)
	require.NoError(t, db.Create(shipped).Error)

	require.NoError(t, repo.CancelSubOrders(ctx, order.ID, time.Now()))

	subOrders, err := repo.ListSubOrders(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, subOrders, 2)
	statuses := map[uuid.UUID]enums.SubOrderStatus{}
	for _, so := range subOrders {
		statuses[so.ID] = so.Status
	}
	assert.Equal(t, enums.SubOrderStatusCancelled, statuses[pending.ID])
	assert.Equal(t, enums.SubOrderStatusShipped, statuses[shipped.ID])
}
