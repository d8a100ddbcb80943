package types

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMoneyArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Money
		expected Money
	}{
		{"Add", func() Money { return Money(100).Add(200) }, 300},
		{"Sub", func() Money { return Money(500).Sub(200) }, 300},
		{"Mul", func() Money { return Money(50000).Mul(5) }, 250000},
		{"Sum", func() Money { return Sum(100, 200, 300) }, 600},
		{"Sum empty", func() Money { return Sum() }, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op(); got != tt.expected {
				t.Errorf("Got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMoneyString(t *testing.T) {
	tests := []struct {
		money Money
		want  string
	}{
		{0, "₦0"},
		{999, "₦999"},
		{1000, "₦1,000"},
		{250000, "₦250,000"},
		{1234567, "₦1,234,567"},
		{-50000, "₦-50,000"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.money.String(); got != tt.want {
				t.Errorf("Got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want Money
	}{
		{"800000", 800000},
		{"10.4", 10},
		{"10.5", 11},
		{"-10.5", -11},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := FromDecimal(decimal.RequireFromString(tt.in)); got != tt.want {
				t.Errorf("Got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMoneyPredicates(t *testing.T) {
	if !Money(0).IsZero() || Money(1).IsZero() {
		t.Error("IsZero mismatch")
	}
	if !Money(1).IsPositive() || Money(-1).IsPositive() {
		t.Error("IsPositive mismatch")
	}
	if !Money(-1).IsNegative() || Money(0).IsNegative() {
		t.Error("IsNegative mismatch")
	}
	if !Money(42).Decimal().Equal(decimal.NewFromInt(42)) {
		t.Error("Decimal mismatch")
	}
}
