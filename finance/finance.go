// Package finance holds the revenue split and projection math used for
// distribution reporting. Every function is pure: identical inputs always
// produce identical outputs.
package finance

import "github.com/shopspring/decimal"

// Split rates applied to gross rental income.
var (
	MemberPoolRate  = decimal.RequireFromString("0.80")
	FacilityFeeRate = decimal.RequireFromString("0.15")
	PlatformFeeRate = decimal.RequireFromString("0.05")
)

// Projection multipliers applied to the invested amount.
var (
	ConservativeValueRate = decimal.RequireFromString("1.12")
	ConservativeRentRate  = decimal.RequireFromString("0.10")
	MarketValueRate       = decimal.RequireFromString("1.16")
	MarketRentRate        = decimal.RequireFromString("0.15")
)

// Split is gross rental income divided between members, facility
// management and the platform.
type Split struct {
	MemberPool  decimal.Decimal `json:"member_pool"`
	FacilityFee decimal.Decimal `json:"facility_fee"`
	PlatformFee decimal.Decimal `json:"platform_fee"`
}

// Total returns the sum of the three shares.
func (s Split) Total() decimal.Decimal {
	return s.MemberPool.Add(s.FacilityFee).Add(s.PlatformFee)
}

// RentalSplit divides gross income 80/15/5.
func RentalSplit(gross decimal.Decimal) Split {
	return Split{
		MemberPool:  gross.Mul(MemberPoolRate),
		FacilityFee: gross.Mul(FacilityFeeRate),
		PlatformFee: gross.Mul(PlatformFeeRate),
	}
}

// Scenario is one projected outcome of an investment.
type Scenario struct {
	Value decimal.Decimal `json:"value"`
	Rent  decimal.Decimal `json:"rent"`
	Total decimal.Decimal `json:"total"`
}

// Projection pairs the conservative and market outlooks.
type Projection struct {
	Investment   decimal.Decimal `json:"investment"`
	Conservative Scenario        `json:"conservative"`
	Market       Scenario        `json:"market"`
}

// Projections computes both outlooks for units bought at pricePerUnit.
func Projections(units int64, pricePerUnit decimal.Decimal) Projection {
	investment := pricePerUnit.Mul(decimal.NewFromInt(units))
	return Projection{
		Investment:   investment,
		Conservative: scenario(investment, ConservativeValueRate, ConservativeRentRate),
		Market:       scenario(investment, MarketValueRate, MarketRentRate),
	}
}

func scenario(investment, valueRate, rentRate decimal.Decimal) Scenario {
	value := investment.Mul(valueRate)
	rent := investment.Mul(rentRate)
	return Scenario{Value: value, Rent: rent, Total: value.Add(rent)}
}

// ProRata returns pool × units / totalUnits, truncated to two decimal
// places so that payouts never sum above the pool. totalUnits <= 0 yields zero.
func ProRata(pool decimal.Decimal, units, totalUnits int64) decimal.Decimal {
	if totalUnits <= 0 || units <= 0 {
		return decimal.Zero
	}
	return pool.Mul(decimal.NewFromInt(units)).
		Div(decimal.NewFromInt(totalUnits)).
		Truncate(2)
}
