package enums

import "fmt"

// PayoutType distinguishes who a batched payout is destined for.
type PayoutType string

const (
	PayoutTypeSeller    PayoutType = "seller"
	PayoutTypeAffiliate PayoutType = "affiliate"
)

var validPayoutTypes = []PayoutType{
	PayoutTypeSeller,
	PayoutTypeAffiliate,
}

// String implements fmt.Stringer.
func (t PayoutType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known PayoutType.
func (t PayoutType) IsValid() bool {
	for _, candidate := range validPayoutTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParsePayoutType converts raw input into a PayoutType.
func ParsePayoutType(value string) (PayoutType, error) {
	for _, candidate := range validPayoutTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout type %q", value)
}

// PayoutStatus is the lifecycle of a payout batch.
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusPaid       PayoutStatus = "paid"
	PayoutStatusFailed     PayoutStatus = "failed"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusPending,
	PayoutStatusProcessing,
	PayoutStatusPaid,
	PayoutStatusFailed,
}

// String implements fmt.Stringer.
func (s PayoutStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PayoutStatus.
func (s PayoutStatus) IsValid() bool {
	for _, candidate := range validPayoutStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePayoutStatus converts raw input into a PayoutStatus.
func ParsePayoutStatus(value string) (PayoutStatus, error) {
	for _, candidate := range validPayoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout status %q", value)
}
