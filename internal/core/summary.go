package core

import "math"

// SumAmounts returns the net amount of the given views. Buys (expenses)
// subtract and sells (income) add, so a negative total means net spend.
// It fails with ErrAmountOverflow instead of wrapping.
func SumAmounts(views []TransactionView) (Money, error) {
	var cents int64
	for _, v := range views {
		amount, err := MulCents(v.UnitPriceCents, v.Quantity)
		if err != nil {
			return Money{}, err
		}
		if v.IsBuy {
			amount = -amount
		}
		if cents, err = AddCents(cents, amount); err != nil {
			return Money{}, err
		}
	}
	return Money{Cents: cents}, nil
}

// Total is SumAmounts for display: an out of range sum is clamped to the
// int64 bound on the side it overflowed.
func Total(views []TransactionView) Money {
	var cents int64
	for _, v := range views {
		amount, err := MulCents(v.UnitPriceCents, v.Quantity)
		if err != nil {
			amount = math.MaxInt64
			if v.UnitPriceCents < 0 {
				amount = -amount
			}
		}
		if v.IsBuy {
			amount = -amount
		}
		sum, err := AddCents(cents, amount)
		if err != nil {
			if amount > 0 {
				return Money{Cents: math.MaxInt64}
			}
			return Money{Cents: math.MinInt64}
		}
		cents = sum
	}
	return Money{Cents: cents}
}

// TypeCount is the number of views per transaction type.
type TypeCount struct {
	Expenses int
	Incomes  int
}

// CountByType splits the views into expense and income counts.
func CountByType(views []TransactionView) TypeCount {
	var c TypeCount
	for _, v := range views {
		if v.IsBuy {
			c.Expenses++
		} else {
			c.Incomes++
		}
	}
	return c
}
