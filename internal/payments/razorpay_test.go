package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/raghavbatra/bazaario-backend/pkg/config"
)

func TestToPaiseRoundsToMinorUnit(t *testing.T) {
	t.Parallel()

	cases := []struct {
		rupees string
		want   int
	}{
		{"0", 0},
		{"1", 100},
		{"499.50", 49950},
		{"0.005", 1},
		{"1234.999", 123500},
	}
	for _, tc := range cases {
		amount, err := decimal.NewFromString(tc.rupees)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.rupees, err)
		}
		if got := toPaise(amount); got != tc.want {
			t.Fatalf("toPaise(%s) = %d, want %d", tc.rupees, got, tc.want)
		}
	}
}

func TestNewRazorpayGatewayRequiresCredentials(t *testing.T) {
	t.Parallel()

	if _, err := NewRazorpayGateway(config.RazorpayConfig{Key: "rzp_test_key"}); err == nil {
		t.Fatal("expected error for missing secret")
	}
	if _, err := NewRazorpayGateway(config.RazorpayConfig{Secret: "s3cret"}); err == nil {
		t.Fatal("expected error for missing key")
	}
	g, err := NewRazorpayGateway(config.RazorpayConfig{Key: "rzp_test_key", Secret: "s3cret"})
	if err != nil {
		t.Fatalf("NewRazorpayGateway: %v", err)
	}
	if g == nil {
		t.Fatal("expected gateway")
	}
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	const (
		secret    = "s3cret"
		orderID   = "order_Ab12Cd34Ef56Gh"
		paymentID = "pay_Zz98Yy87Xx76Wv"
	)
	g, err := NewRazorpayGateway(config.RazorpayConfig{Key: "rzp_test_key", Secret: secret})
	if err != nil {
		t.Fatalf("NewRazorpayGateway: %v", err)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	signature := hex.EncodeToString(mac.Sum(nil))

	if !g.VerifySignature(orderID, paymentID, signature) {
		t.Fatal("expected valid signature to verify")
	}
	if g.VerifySignature(orderID, paymentID, "deadbeef") {
		t.Fatal("expected tampered signature to fail")
	}
	if g.VerifySignature(orderID, "pay_other", signature) {
		t.Fatal("expected signature for different payment to fail")
	}
}
