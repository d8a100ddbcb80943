package settlement_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	settlement "github.com/NIMOLA/hermeos-backend-sub002"
)

func TestDistributionPreview(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	p := registerProperty(t, e, 300, 1000)

	if _, err := e.Settle(ctx, request("ref-1", p.ID, "u1", 100, 1000)); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Settle(ctx, request("ref-2", p.ID, "u2", 50, 1000)); err != nil {
		t.Fatal(err)
	}
	gone, err := e.Settle(ctx, request("ref-3", p.ID, "u3", 25, 1000))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.ApproveExit(ctx, gone.OwnershipID); err != nil {
		t.Fatal(err)
	}

	d, err := e.DistributionPreview(ctx, p.ID, 1_000_000)
	if err != nil {
		t.Fatal(err)
	}

	if !d.Split.MemberPool.Equal(decimal.NewFromInt(800_000)) {
		t.Errorf("member pool = %s", d.Split.MemberPool)
	}
	if !d.Split.Total().Equal(d.Gross) {
		t.Errorf("split total %s != gross %s", d.Split.Total(), d.Gross)
	}
	if len(d.Payouts) != 2 {
		t.Fatalf("payouts = %d, want 2 (exited holding excluded)", len(d.Payouts))
	}

	want := map[string]string{"u1": "266666.66", "u2": "133333.33"}
	for _, po := range d.Payouts {
		if po.Amount.String() != want[po.UserID] {
			t.Errorf("payout %s = %s, want %s", po.UserID, po.Amount, want[po.UserID])
		}
	}
	if got := d.Distributed.Add(d.Unallocated); !got.Equal(d.Split.MemberPool) {
		t.Errorf("distributed + unallocated = %s, want %s", got, d.Split.MemberPool)
	}
}

func TestDistributionPreviewRejectsNegativeGross(t *testing.T) {
	e := newEngine(t, nil)
	p := registerProperty(t, e, 10, 100)

	if _, err := e.DistributionPreview(context.Background(), p.ID, -1); !errors.Is(err, settlement.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestProjectInvestment(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	p := registerProperty(t, e, 100, 250_000)

	proj, err := e.ProjectInvestment(ctx, p.ID, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !proj.Investment.Equal(decimal.NewFromInt(1_000_000)) {
		t.Errorf("investment = %s", proj.Investment)
	}
	if !proj.Conservative.Total.Equal(decimal.NewFromInt(1_220_000)) {
		t.Errorf("conservative total = %s", proj.Conservative.Total)
	}
	if !proj.Market.Total.Equal(decimal.NewFromInt(1_310_000)) {
		t.Errorf("market total = %s", proj.Market.Total)
	}

	if _, err := e.ProjectInvestment(ctx, p.ID, 0); !errors.Is(err, settlement.ErrInvalidInput) {
		t.Errorf("zero units error = %v, want ErrInvalidInput", err)
	}
}
