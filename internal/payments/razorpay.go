package payments

import (
	"context"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
	razorpayutils "github.com/razorpay/razorpay-go/utils"
	"github.com/shopspring/decimal"

	"github.com/raghavbatra/bazaario-backend/pkg/config"
	pkgerrors "github.com/raghavbatra/bazaario-backend/pkg/errors"
)

// RazorpayGateway adapts the Razorpay SDK to the Gateway interface.
type RazorpayGateway struct {
	client *razorpay.Client
	secret string
}

// NewRazorpayGateway builds a gateway from the configured key pair.
func NewRazorpayGateway(cfg config.RazorpayConfig) (*RazorpayGateway, error) {
	if cfg.Key == "" || cfg.Secret == "" {
		return nil, fmt.Errorf("razorpay key and secret are required")
	}
	return &RazorpayGateway{
		client: razorpay.NewClient(cfg.Key, cfg.Secret),
		secret: cfg.Secret,
	}, nil
}

// CreateOrder registers an order with Razorpay and returns the gateway order id.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, receipt string, amount decimal.Decimal) (string, error) {
	data := map[string]interface{}{
		"amount":   toPaise(amount),
		"currency": "INR",
		"receipt":  receipt,
	}
	body, err := g.client.Order.Create(data, nil)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "razorpay order create")
	}
	id, ok := body["id"].(string)
	if !ok || id == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "razorpay order response missing id")
	}
	return id, nil
}

// VerifySignature checks the HMAC the gateway sends back after a payment.
func (g *RazorpayGateway) VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	params := map[string]interface{}{
		"razorpay_order_id":   gatewayOrderID,
		"razorpay_payment_id": gatewayPaymentID,
	}
	return razorpayutils.VerifyPaymentSignature(params, signature, g.secret)
}

// Transfer routes part of a captured payment to a seller's linked account.
func (g *RazorpayGateway) Transfer(ctx context.Context, gatewayPaymentID string, sellerAccount string, amount decimal.Decimal) (string, error) {
	data := map[string]interface{}{
		"transfers": []map[string]interface{}{
			{
				"account":  sellerAccount,
				"amount":   toPaise(amount),
				"currency": "INR",
			},
		},
	}
	body, err := g.client.Payment.Transfer(gatewayPaymentID, data, nil)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "razorpay transfer")
	}
	items, ok := body["items"].([]interface{})
	if !ok || len(items) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "razorpay transfer response missing items")
	}
	first, ok := items[0].(map[string]interface{})
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "razorpay transfer response malformed")
	}
	id, _ := first["id"].(string)
	if id == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "razorpay transfer response missing id")
	}
	return id, nil
}

// Refund reverses part or all of a captured payment.
func (g *RazorpayGateway) Refund(ctx context.Context, gatewayPaymentID string, amount decimal.Decimal) (string, error) {
	body, err := g.client.Payment.Refund(gatewayPaymentID, toPaise(amount), nil, nil)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "razorpay refund")
	}
	id, ok := body["id"].(string)
	if !ok || id == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "razorpay refund response missing id")
	}
	return id, nil
}

// toPaise converts a rupee amount to Razorpay's integer minor unit.
func toPaise(amount decimal.Decimal) int {
	return int(amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart())
}
