package checkout

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/raghavbatra/bazaario-backend/internal/cart"
	"github.com/raghavbatra/bazaario-backend/internal/catalog"
	"github.com/raghavbatra/bazaario-backend/internal/checkout/helpers"
	"github.com/raghavbatra/bazaario-backend/internal/coupons"
	"github.com/raghavbatra/bazaario-backend/internal/orders"
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

// gatewayOrderCreator registers the order with the payment gateway after the
// local transaction commits.
type gatewayOrderCreator interface {
	CreateOrder(ctx context.Context, receipt string, amount decimal.Decimal) (string, error)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// ShippingAddress is the destination captured on the parent order.
type ShippingAddress struct {
	Name  string  `json:"name" validate:"required"`
	Phone string  `json:"phone" validate:"required,min=10,max=15"`
	Line1 string  `json:"line1" validate:"required"`
	Line2 *string `json:"line2,omitempty"`
	City  string  `json:"city" validate:"required"`
	State string  `json:"state" validate:"required"`
	PIN   string  `json:"pin" validate:"required,len=6,numeric"`
}

// CheckoutInput captures the buyer's checkout request.
type CheckoutInput struct {
	CouponCode string          `json:"couponCode,omitempty"`
	Shipping   ShippingAddress `json:"shipping" validate:"required"`
}

// Service executes checkout orchestration: price resolution, stock
// reservation, per-seller splitting, and the order-created event, all inside
// one transaction.
type Service interface {
	Execute(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*models.Order, error)
}

type service struct {
	tx          txRunner
	cartRepo    cart.Repository
	ordersRepo  orders.Repository
	catalogRepo catalog.Repository
	couponRepo  coupons.Repository
	outbox      outboxPublisher
	gateway     gatewayOrderCreator
	logg        *logger.Logger
}

// NewService builds the checkout service. The gateway is optional; without it
// orders are created locally and registered with the gateway later.
func NewService(
	tx txRunner,
	cartRepo cart.Repository,
	ordersRepo orders.Repository,
	catalogRepo catalog.Repository,
	couponRepo coupons.Repository,
	publisher outboxPublisher,
	gateway gatewayOrderCreator,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if couponRepo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:          tx,
		cartRepo:    cartRepo,
		ordersRepo:  ordersRepo,
		catalogRepo: catalogRepo,
		couponRepo:  couponRepo,
		outbox:      publisher,
		gateway:     gateway,
		logg:        logg,
	}, nil
}

func (s *service) Execute(ctx context.Context, userID uuid.UUID, input CheckoutInput) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if err := validate.Struct(input); err != nil {
		return nil, formatValidationErrors(err)
	}

	ctx = s.logg.WithUserID(ctx, userID.String())

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)
		catalogRepo := s.catalogRepo.WithTx(tx)
		couponRepo := s.couponRepo.WithTx(tx)

		items, err := cartRepo.ListByUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
		}

		lines, err := s.resolveLines(ctx, catalogRepo, items)
		if err != nil {
			return err
		}

		totalsBySeller := helpers.ComputeTotalsBySeller(lines)
		grouped := helpers.GroupLinesBySeller(lines)

		subtotal := decimal.Zero
		for _, totals := range totalsBySeller {
			subtotal = subtotal.Add(totals.Subtotal)
		}

		discount := decimal.Zero
		var couponID *uuid.UUID
		if code := strings.TrimSpace(input.CouponCode); code != "" {
			couponSvc, err := coupons.NewService(couponRepo)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build coupon service")
			}
			coupon, computed, err := couponSvc.Validate(ctx, code, subtotal)
			if err != nil {
				return err
			}
			if err := couponRepo.IncrementUsage(ctx, coupon.ID); err != nil {
				return err
			}
			discount = computed
			couponID = &coupon.ID
		}

		order := &models.Order{
			UserID:         userID,
			OrderNumber:    generateOrderNumber(),
			Status:         enums.OrderStatusPending,
			PaymentStatus:  enums.PaymentStatusPending,
			Subtotal:       subtotal,
			DiscountAmount: discount,
			TotalAmount:    subtotal.Sub(discount),
			CouponID:       couponID,
			ShippingName:   input.Shipping.Name,
			ShippingPhone:  input.Shipping.Phone,
			ShippingLine1:  input.Shipping.Line1,
			ShippingLine2:  input.Shipping.Line2,
			ShippingCity:   input.Shipping.City,
			ShippingState:  input.Shipping.State,
			ShippingPIN:    input.Shipping.PIN,
		}
		createdOrder, err := ordersRepo.CreateOrder(ctx, order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		discountShares := helpers.AllocateDiscount(totalsBySeller, discount)
		sellerIDs := make([]uuid.UUID, 0, len(grouped))
		for sellerID := range grouped {
			sellerIDs = append(sellerIDs, sellerID)
		}
		sort.Slice(sellerIDs, func(i, j int) bool {
			return sellerIDs[i].String() < sellerIDs[j].String()
		})

		subOrderIDs := make([]uuid.UUID, 0, len(sellerIDs))
		for _, sellerID := range sellerIDs {
			totals := totalsBySeller[sellerID]
			share := discountShares[sellerID]
			subOrder := &models.SellerSubOrder{
				OrderID:        createdOrder.ID,
				SellerID:       sellerID,
				Status:         enums.SubOrderStatusPending,
				Subtotal:       totals.Subtotal,
				DiscountAmount: share,
				TotalAmount:    totals.Subtotal.Sub(share),
			}
			createdSubOrder, err := ordersRepo.CreateSubOrder(ctx, subOrder)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create sub-order")
			}

			sellerLines := grouped[sellerID]
			orderItems := make([]models.OrderItem, 0, len(sellerLines))
			for _, line := range sellerLines {
				orderItems = append(orderItems, models.OrderItem{
					SubOrderID:   createdSubOrder.ID,
					OrderID:      createdOrder.ID,
					ProductID:    line.ProductID,
					VariationID:  line.VariationID,
					ProductTitle: line.Title,
					Quantity:     line.Quantity,
					UnitPrice:    line.UnitPrice,
					LineTotal:    line.LineTotal,
				})
			}
			if err := ordersRepo.CreateOrderItems(ctx, orderItems); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
			}
			subOrderIDs = append(subOrderIDs, createdSubOrder.ID)
		}

		if err := cartRepo.Clear(ctx, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}

		if err := s.emitOrderCreatedEvent(ctx, tx, createdOrder, subOrderIDs); err != nil {
			return err
		}

		result, err = ordersRepo.FindByID(ctx, createdOrder.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.registerWithGateway(ctx, result)
	return result, nil
}

// resolveLines snapshots prices and decrements stock for every cart line.
// When the line names a variation, the variation's price and stock win.
func (s *service) resolveLines(ctx context.Context, catalogRepo catalog.Repository, items []models.CartItem) ([]helpers.Line, error) {
	productCache := map[uuid.UUID]*models.Product{}
	lines := make([]helpers.Line, 0, len(items))
	for _, item := range items {
		product, ok := productCache[item.ProductID]
		if !ok {
			loaded, err := catalogRepo.FindProductByID(ctx, item.ProductID)
			if err != nil {
				return nil, err
			}
			productCache[item.ProductID] = loaded
			product = loaded
		}
		if !product.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product no longer available").
				WithDetails(map[string]any{"product_id": item.ProductID.String()})
		}

		unitPrice := product.Price
		if item.VariationID != nil {
			variation, err := catalogRepo.FindVariationByID(ctx, *item.VariationID)
			if err != nil {
				return nil, err
			}
			if variation.ProductID != item.ProductID {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "variation does not belong to product")
			}
			unitPrice = variation.Price
			if err := catalogRepo.DecrementVariationStock(ctx, variation.ID, item.Quantity); err != nil {
				return nil, stockError(err, item.ProductID, item.VariationID)
			}
		} else {
			if err := catalogRepo.DecrementProductStock(ctx, product.ID, item.Quantity); err != nil {
				return nil, stockError(err, item.ProductID, nil)
			}
		}

		lines = append(lines, helpers.Line{
			CartItemID:  item.ID,
			ProductID:   item.ProductID,
			VariationID: item.VariationID,
			SellerID:    product.SellerID,
			Title:       product.Title,
			Quantity:    item.Quantity,
			UnitPrice:   unitPrice,
			LineTotal:   unitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2),
		})
	}
	return lines, nil
}

// stockError pins the offending cart line onto an insufficient-stock error so
// the buyer knows which item to fix.
func stockError(err error, productID uuid.UUID, variationID *uuid.UUID) error {
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeInsufficientStock {
		return err
	}
	details := map[string]any{"product_id": productID.String()}
	if variationID != nil {
		details["variation_id"] = variationID.String()
	}
	return appErr.WithDetails(details)
}

func (s *service) emitOrderCreatedEvent(ctx context.Context, tx *gorm.DB, order *models.Order, subOrderIDs []uuid.UUID) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: order.UserID, Role: "buyer"},
		Data: payloads.OrderCreatedEvent{
			OrderID:     order.ID,
			UserID:      order.UserID,
			SubOrderIDs: append([]uuid.UUID{}, subOrderIDs...),
			TotalAmount: order.TotalAmount,
		},
		Version: 1,
	}
	return s.outbox.Emit(ctx, tx, event)
}

// registerWithGateway is best effort: the order is already committed, and a
// missing gateway id only delays payment, it never loses the order.
func (s *service) registerWithGateway(ctx context.Context, order *models.Order) {
	if s.gateway == nil || order == nil {
		return
	}
	gatewayOrderID, err := s.gateway.CreateOrder(ctx, order.OrderNumber, order.TotalAmount)
	if err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "gateway order registration failed", err)
		return
	}
	if err := s.ordersRepo.SetGatewayOrderID(ctx, order.ID, gatewayOrderID); err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "failed to persist gateway order id", err)
		return
	}
	order.GatewayOrderID = &gatewayOrderID
}

func formatValidationErrors(err error) *pkgerrors.Error {
	if errs, ok := err.(validator.ValidationErrors); ok {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = fmt.Sprintf("failed %s validation", fieldErr.Tag())
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

const orderNumberSuffixAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generateOrderNumber() string {
	var suffix strings.Builder
	for i := 0; i < 6; i++ {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(orderNumberSuffixAlphabet))))
		if err != nil {
			idx = big.NewInt(int64(i))
		}
		suffix.WriteByte(orderNumberSuffixAlphabet[idx.Int64()])
	}
	return fmt.Sprintf("ORD-%s-%s", time.Now().UTC().Format("20060102"), suffix.String())
}
