package enums

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CommissionStatus is the lifecycle of a single affiliate commission row.
type CommissionStatus string

const (
	CommissionStatusPending  CommissionStatus = "pending"
	CommissionStatusApproved CommissionStatus = "approved"
	CommissionStatusPaid     CommissionStatus = "paid"
)

var validCommissionStatuses = []CommissionStatus{
	CommissionStatusPending,
	CommissionStatusApproved,
	CommissionStatusPaid,
}

// String implements fmt.Stringer.
func (s CommissionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CommissionStatus.
func (s CommissionStatus) IsValid() bool {
	for _, candidate := range validCommissionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCommissionStatus converts raw input into a CommissionStatus.
func ParseCommissionStatus(value string) (CommissionStatus, error) {
	for _, candidate := range validCommissionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid commission status %q", value)
}

// CommissionPlan names a product's three-level rate split. Each plan maps to
// percentage rates for levels 1 through 3 of the referral chain.
type CommissionPlan string

const (
	CommissionPlanStandard CommissionPlan = "6-4-2"
	CommissionPlanBoosted  CommissionPlan = "9-6-3"
	CommissionPlanPremium  CommissionPlan = "12-8-4"
)

var validCommissionPlans = []CommissionPlan{
	CommissionPlanStandard,
	CommissionPlanBoosted,
	CommissionPlanPremium,
}

// MaxCommissionDepth caps how far up the referral chain commissions flow.
const MaxCommissionDepth = 3

var commissionPlanRates = map[CommissionPlan][MaxCommissionDepth]int64{
	CommissionPlanStandard: {6, 4, 2},
	CommissionPlanBoosted:  {9, 6, 3},
	CommissionPlanPremium:  {12, 8, 4},
}

// String implements fmt.Stringer.
func (p CommissionPlan) String() string {
	return string(p)
}

// IsValid reports whether the value is a known CommissionPlan.
func (p CommissionPlan) IsValid() bool {
	for _, candidate := range validCommissionPlans {
		if candidate == p {
			return true
		}
	}
	return false
}

// Rates returns the percentage rate for each referral level, level 1 first.
// Unknown plans fall back to the standard 6-4-2 split.
func (p CommissionPlan) Rates() [MaxCommissionDepth]decimal.Decimal {
	raw, ok := commissionPlanRates[p]
	if !ok {
		raw = commissionPlanRates[CommissionPlanStandard]
	}
	var rates [MaxCommissionDepth]decimal.Decimal
	for i, pct := range raw {
		rates[i] = decimal.NewFromInt(pct)
	}
	return rates
}

// ParseCommissionPlan converts raw input into a CommissionPlan.
func ParseCommissionPlan(value string) (CommissionPlan, error) {
	for _, candidate := range validCommissionPlans {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid commission plan %q", value)
}
