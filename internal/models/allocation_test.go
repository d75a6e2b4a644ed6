package models

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCommission(t *testing.T) {
	amount := decimal.NewFromInt(500)
	rate := decimal.NewFromInt(10)

	got := Commission(amount, rate)

	assert.True(t, decimal.NewFromInt(50).Equal(got), "expected 50, got %s", got)
}

func TestSplitAmount(t *testing.T) {
	items := map[int64]OrderItem{
		1: {ID: 1, Quantity: 3, UnitPrice: decimal.NewFromInt(10)},
		2: {ID: 2, Quantity: 5, UnitPrice: decimal.NewFromInt(20)},
	}
	in := SplitInput{
		VendorID: 7,
		Items: []SplitItemInput{
			{ItemID: 1, Quantity: 2},
			{ItemID: 2, Quantity: 3},
		},
	}

	got := SplitAmount(items, in)

	// 2*10 + 3*20
	assert.True(t, decimal.NewFromInt(80).Equal(got), "expected 80, got %s", got)

	commission := Commission(got, decimal.NewFromInt(5))
	assert.True(t, decimal.NewFromInt(4).Equal(commission), "expected 4, got %s", commission)
}

func TestCheckAllocation(t *testing.T) {
	items := map[int64]OrderItem{
		1: {ID: 1, Quantity: 3},
		2: {ID: 2, Quantity: 5},
	}

	t.Run("valid", func(t *testing.T) {
		splits := []SplitInput{
			{VendorID: 1, Items: []SplitItemInput{{ItemID: 1, Quantity: 2}}},
			{VendorID: 2, Items: []SplitItemInput{{ItemID: 1, Quantity: 1}, {ItemID: 2, Quantity: 5}}},
		}
		assert.NoError(t, CheckAllocation(items, nil, splits))
	})

	t.Run("over allocation across splits", func(t *testing.T) {
		splits := []SplitInput{
			{VendorID: 1, Items: []SplitItemInput{{ItemID: 1, Quantity: 2}}},
			{VendorID: 2, Items: []SplitItemInput{{ItemID: 1, Quantity: 2}}},
		}
		err := CheckAllocation(items, nil, splits)
		assert.True(t, errors.Is(err, ErrOverAllocation))
	})

	t.Run("reserved quantities count against the budget", func(t *testing.T) {
		splits := []SplitInput{
			{VendorID: 1, Items: []SplitItemInput{{ItemID: 2, Quantity: 3}}},
		}
		reserved := map[int64]int{2: 3}
		err := CheckAllocation(items, reserved, splits)
		assert.True(t, errors.Is(err, ErrOverAllocation))

		assert.NoError(t, CheckAllocation(items, map[int64]int{2: 2}, splits))
	})

	t.Run("unknown item", func(t *testing.T) {
		splits := []SplitInput{
			{VendorID: 1, Items: []SplitItemInput{{ItemID: 99, Quantity: 1}}},
		}
		err := CheckAllocation(items, nil, splits)
		assert.True(t, errors.Is(err, ErrItemNotInOrder))
	})
}
