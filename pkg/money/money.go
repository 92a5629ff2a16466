package money

import "github.com/shopspring/decimal"

// Whole rounds to whole dollars, half away from zero.
func Whole(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(0)
}

// NonNegative clamps amount at zero.
func NonNegative(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// Min returns the smallest of the given amounts.
func Min(first decimal.Decimal, rest ...decimal.Decimal) decimal.Decimal {
	return decimal.Min(first, rest...)
}

func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	return decimal.Sum(decimal.Zero, amounts...)
}
