package types

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in the platform settlement currency, in whole units.
// The platform settles in a single currency so Money carries no currency code.
// All arithmetic is integer-only; fractional results go through Decimal.
type Money int64

// Symbol is the display symbol for the settlement currency.
const Symbol = "₦"

// Add returns m + other.
func (m Money) Add(other Money) Money { return m + other }

// Sub returns m - other.
func (m Money) Sub(other Money) Money { return m - other }

// Mul returns m multiplied by a unit count.
func (m Money) Mul(qty int64) Money { return m * Money(qty) }

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m == 0 }

// IsPositive reports whether the amount is greater than zero.
func (m Money) IsPositive() bool { return m > 0 }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m < 0 }

// Int64 returns the raw amount.
func (m Money) Int64() int64 { return int64(m) }

// Decimal returns the amount as an exact decimal.
func (m Money) Decimal() decimal.Decimal { return decimal.NewFromInt(int64(m)) }

// FromDecimal converts d to Money, rounding half away from zero.
func FromDecimal(d decimal.Decimal) Money {
	return Money(d.Round(0).IntPart())
}

// String formats the amount with the currency symbol and thousands separators,
// e.g. "₦250,000".
func (m Money) String() string {
	return Symbol + groupThousands(int64(m))
}

// Sum adds any number of amounts.
func Sum(values ...Money) Money {
	var total Money
	for _, v := range values {
		total += v
	}
	return total
}

func groupThousands(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}

	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}

	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
