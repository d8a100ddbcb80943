package finance

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRentalSplit(t *testing.T) {
	tests := []struct {
		name                       string
		gross                      string
		member, facility, platform string
	}{
		{"one million", "1000000", "800000", "150000", "50000"},
		{"zero", "0", "0", "0", "0"},
		{"fractional", "1234.50", "987.6", "185.175", "61.725"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RentalSplit(dec(tt.gross))
			if !got.MemberPool.Equal(dec(tt.member)) {
				t.Errorf("MemberPool: got %s, want %s", got.MemberPool, tt.member)
			}
			if !got.FacilityFee.Equal(dec(tt.facility)) {
				t.Errorf("FacilityFee: got %s, want %s", got.FacilityFee, tt.facility)
			}
			if !got.PlatformFee.Equal(dec(tt.platform)) {
				t.Errorf("PlatformFee: got %s, want %s", got.PlatformFee, tt.platform)
			}
			if !got.Total().Equal(dec(tt.gross)) {
				t.Errorf("Total: got %s, want %s", got.Total(), tt.gross)
			}
		})
	}
}

func TestRentalSplitDeterministic(t *testing.T) {
	a := RentalSplit(dec("777777.77"))
	b := RentalSplit(dec("777777.77"))
	if !a.MemberPool.Equal(b.MemberPool) || !a.FacilityFee.Equal(b.FacilityFee) || !a.PlatformFee.Equal(b.PlatformFee) {
		t.Errorf("RentalSplit not deterministic: %+v vs %+v", a, b)
	}
}

func TestProjections(t *testing.T) {
	p := Projections(5, dec("50000"))

	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"investment", p.Investment, "250000"},
		{"conservative value", p.Conservative.Value, "280000"},
		{"conservative rent", p.Conservative.Rent, "25000"},
		{"conservative total", p.Conservative.Total, "305000"},
		{"market value", p.Market.Value, "290000"},
		{"market rent", p.Market.Rent, "37500"},
		{"market total", p.Market.Total, "327500"},
	}

	for _, c := range checks {
		t.Run(c.name, func(t *testing.T) {
			if !c.got.Equal(dec(c.want)) {
				t.Errorf("got %s, want %s", c.got, c.want)
			}
		})
	}
}

func TestProRata(t *testing.T) {
	tests := []struct {
		name         string
		pool         string
		units, total int64
		want         string
	}{
		{"half", "800000", 5, 10, "400000"},
		{"thirds truncate", "100", 1, 3, "33.33"},
		{"zero total", "100", 1, 0, "0"},
		{"zero units", "100", 0, 10, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProRata(dec(tt.pool), tt.units, tt.total)
			if !got.Equal(dec(tt.want)) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}
