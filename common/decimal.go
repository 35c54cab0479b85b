package common

import "github.com/shopspring/decimal"

// AmountsEqual compares two money/quantity amounts within an absolute
// tolerance, used when comparing a sum of line items against a document
// total where rounding on the upstream side can differ by a hair.
func AmountsEqual(a, b decimal.Decimal, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

// SumDecimals adds a slice of decimals without accumulating float error.
func SumDecimals(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// DefaultAmountTolerance is the standard 0.5-unit tolerance spec.md uses
// when comparing an OCR-extracted sum of line items against a document
// total (rounding differences of up to half a currency unit are expected
// and not treated as a data-quality warning).
var DefaultAmountTolerance = decimal.NewFromFloat(0.5)
