package payments

import (
	"context"

	"github.com/shopspring/decimal"
)

// Gateway abstracts the payment provider. Amounts are rupees; adapters own
// the conversion to the provider's minor unit.
type Gateway interface {
	CreateOrder(ctx context.Context, receipt string, amount decimal.Decimal) (string, error)
	VerifySignature(gatewayOrderID, gatewayPaymentID, signature string) bool
	Transfer(ctx context.Context, gatewayPaymentID string, sellerAccount string, amount decimal.Decimal) (string, error)
	Refund(ctx context.Context, gatewayPaymentID string, amount decimal.Decimal) (string, error)
}
