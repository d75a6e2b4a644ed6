package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SplitItemInput is one item slice requested for a vendor in a split.
type SplitItemInput struct {
	ItemID   int64 `json:"item_id" binding:"required"`
	Quantity int   `json:"quantity" binding:"required,min=1"`
}

// SplitInput is one vendor's share of a split request.
type SplitInput struct {
	VendorID int64            `json:"vendor_id" binding:"required"`
	Items    []SplitItemInput `json:"items" binding:"required,min=1,dive"`
	Notes    string           `json:"notes"`
}

var oneHundred = decimal.NewFromInt(100)

// Commission computes rate% of amount.
func Commission(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(oneHundred)
}

// SplitAmount sums quantity × unit price over a split's listed items.
// Items not present in the order have already been rejected by CheckAllocation.
func SplitAmount(items map[int64]OrderItem, in SplitInput) decimal.Decimal {
	total := decimal.Zero
	for _, alloc := range in.Items {
		item, ok := items[alloc.ItemID]
		if !ok {
			continue
		}
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(alloc.Quantity))))
	}
	return total
}

// CheckAllocation validates a whole split request against the order's items.
// reserved holds quantities already held by assignments that survive the
// re-split (completed ones); cancelled assignments release their quantities.
// The check covers the sum across all splits in the request, so the whole
// batch fails before anything is committed.
func CheckAllocation(items map[int64]OrderItem, reserved map[int64]int, splits []SplitInput) error {
	requested := make(map[int64]int)
	for _, split := range splits {
		for _, alloc := range split.Items {
			item, ok := items[alloc.ItemID]
			if !ok {
				return fmt.Errorf("item %d: %w", alloc.ItemID, ErrItemNotInOrder)
			}
			requested[alloc.ItemID] += alloc.Quantity
			if requested[alloc.ItemID]+reserved[alloc.ItemID] > item.Quantity {
				return fmt.Errorf("item %d: requested %d of %d available: %w",
					alloc.ItemID, requested[alloc.ItemID]+reserved[alloc.ItemID], item.Quantity, ErrOverAllocation)
			}
		}
	}
	return nil
}
