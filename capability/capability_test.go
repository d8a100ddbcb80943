package capability

import (
	"reflect"
	"testing"
)

func TestMissing(t *testing.T) {
	cat := DefaultCatalog()

	tests := []struct {
		name    string
		granted []string
		want    []string
	}{
		{
			name:    "none granted",
			granted: nil,
			want:    []string{ExecuteInvestment, RequestExit, TransferUnits, WithdrawDistributions},
		},
		{
			name:    "defaults only",
			granted: []string{BrowseMarketplace, ViewPortfolio},
			want:    []string{ExecuteInvestment, RequestExit, TransferUnits, WithdrawDistributions},
		},
		{
			name:    "legacy invest counts",
			granted: []string{"invest", RequestExit},
			want:    []string{TransferUnits, WithdrawDistributions},
		},
		{
			name:    "all granted",
			granted: cat.Verified,
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grants := make([]*Grant, 0, len(tt.granted))
			for _, n := range tt.granted {
				grants = append(grants, &Grant{UserID: "u1", Name: n})
			}
			got := cat.Missing(grants)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Missing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanonical(t *testing.T) {
	tests := map[string]string{
		"market_view":     BrowseMarketplace,
		"invest":          ExecuteInvestment,
		ExecuteInvestment: ExecuteInvestment,
		"custom":          "custom",
	}
	for in, want := range tests {
		if got := Canonical(in); got != want {
			t.Errorf("Canonical(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsVerified(t *testing.T) {
	cat := DefaultCatalog()
	if !cat.IsVerified("invest") {
		t.Error("legacy invest should be verified")
	}
	if cat.IsVerified(BrowseMarketplace) {
		t.Error("browse_marketplace is a default capability")
	}
}
