package fiscalmath

import (
	"github.com/shopspring/decimal"
)

// Zero is decimal zero
var Zero = decimal.Zero

var hundred = decimal.NewFromInt(100)

// MustFromString parses a decimal from a string, panics on error
func MustFromString(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FormatAmount renders a monetary amount with exactly 2 decimal digits
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatUnitPrice renders a unit price with exactly 10 decimal digits
func FormatUnitPrice(d decimal.Decimal) string {
	return d.StringFixed(10)
}

// FormatQuantity renders a quantity with exactly 4 decimal digits
func FormatQuantity(d decimal.Decimal) string {
	return d.StringFixed(4)
}

// FormatRate renders a tax rate with exactly 4 decimal digits
func FormatRate(d decimal.Decimal) string {
	return d.StringFixed(4)
}

// ApplyRate computes base * (ratePercent/100), rounded to cents
func ApplyRate(base, ratePercent decimal.Decimal) decimal.Decimal {
	return base.Mul(ratePercent).Div(hundred).Round(2)
}

// ReduceBase computes base * (1 - reductionPercent/100), rounded to cents
func ReduceBase(base, reductionPercent decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(reductionPercent.Div(hundred))
	return base.Mul(factor).Round(2)
}

// Sum sums a slice of decimals
func Sum(values []decimal.Decimal) decimal.Decimal {
	result := Zero
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}
