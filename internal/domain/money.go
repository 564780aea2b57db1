package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor currency units (cents).
type Money int64

func Cents(n int64) Money {
	return Money(n)
}

// Times multiplies a unit price by a quantity.
func (m Money) Times(qty int) Money {
	return m * Money(qty)
}

// ApplyRate returns m × rate rounded half-up to the cent.
// Negative results are clamped to zero.
func (m Money) ApplyRate(rate decimal.Decimal) Money {
	v := decimal.NewFromInt(int64(m)).Mul(rate).Round(0)
	return Money(v.IntPart()).NonNegative()
}

func (m Money) NonNegative() Money {
	if m < 0 {
		return 0
	}
	return m
}

func Min(a, b Money) Money {
	if a < b {
		return a
	}
	return b
}

func (m Money) Int64() int64 {
	return int64(m)
}

// String formats the amount as dollars, e.g. "$12.34".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s$%d.%02d", sign, v/100, v%100)
}
