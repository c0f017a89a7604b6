package helpers

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Line is a cart item resolved against the catalog: unit price snapshotted,
// seller attributed, stock already reserved.
type Line struct {
	CartItemID  uuid.UUID
	ProductID   uuid.UUID
	VariationID *uuid.UUID
	SellerID    uuid.UUID
	Title       string
	Quantity    int
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// GroupLinesBySeller groups resolved lines by the product's seller.
func GroupLinesBySeller(lines []Line) map[uuid.UUID][]Line {
	grouped := make(map[uuid.UUID][]Line, len(lines))
	for _, line := range lines {
		grouped[line.SellerID] = append(grouped[line.SellerID], line)
	}
	return grouped
}

// SellerTotals captures pre-calculated totals for one seller's slice of the cart.
type SellerTotals struct {
	SellerID  uuid.UUID
	Subtotal  decimal.Decimal
	ItemCount int
}

// ComputeTotalsBySeller returns pre-computed totals keyed by seller.
func ComputeTotalsBySeller(lines []Line) map[uuid.UUID]SellerTotals {
	results := make(map[uuid.UUID]SellerTotals)
	for _, line := range lines {
		totals := results[line.SellerID]
		if totals.ItemCount == 0 {
			totals.SellerID = line.SellerID
			totals.Subtotal = decimal.Zero
		}
		totals.Subtotal = totals.Subtotal.Add(line.LineTotal)
		totals.ItemCount++
		results[line.SellerID] = totals
	}
	return results
}

// AllocateDiscount splits an order-level discount across sellers in
// proportion to their subtotals. Rounding remainders land on the last seller
// in ID order so the per-seller parts always sum to the order discount.
func AllocateDiscount(totals map[uuid.UUID]SellerTotals, discount decimal.Decimal) map[uuid.UUID]decimal.Decimal {
	shares := make(map[uuid.UUID]decimal.Decimal, len(totals))
	if len(totals) == 0 || !discount.IsPositive() {
		for sellerID := range totals {
			shares[sellerID] = decimal.Zero
		}
		return shares
	}

	orderSubtotal := decimal.Zero
	sellerIDs := make([]uuid.UUID, 0, len(totals))
	for sellerID, sellerTotals := range totals {
		orderSubtotal = orderSubtotal.Add(sellerTotals.Subtotal)
		sellerIDs = append(sellerIDs, sellerID)
	}
	sort.Slice(sellerIDs, func(i, j int) bool {
		return sellerIDs[i].String() < sellerIDs[j].String()
	})

	if !orderSubtotal.IsPositive() {
		for _, sellerID := range sellerIDs {
			shares[sellerID] = decimal.Zero
		}
		return shares
	}

	allocated := decimal.Zero
	for i, sellerID := range sellerIDs {
		if i == len(sellerIDs)-1 {
			shares[sellerID] = discount.Sub(allocated)
			break
		}
		share := discount.
			Mul(totals[sellerID].Subtotal).
			Div(orderSubtotal).
			Round(2)
		shares[sellerID] = share
		allocated = allocated.Add(share)
	}
	return shares
}
