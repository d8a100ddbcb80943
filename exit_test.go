package settlement_test

import (
	"context"
	"errors"
	"testing"

	settlement "github.com/NIMOLA/hermeos-backend-sub002"
	"github.com/NIMOLA/hermeos-backend-sub002/id"
	"github.com/NIMOLA/hermeos-backend-sub002/ownership"
	"github.com/NIMOLA/hermeos-backend-sub002/store/memory"
	"github.com/NIMOLA/hermeos-backend-sub002/tier"
)

func TestApproveExitReleasesUnits(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	rec := &recorder{}
	e := newEngine(t, s, settlement.WithPlugin(rec))
	p := registerProperty(t, e, 1000, 50)

	res, err := e.Settle(ctx, request("ref-1", p.ID, "u1", 600, 50))
	if err != nil {
		t.Fatal(err)
	}
	if avail, _ := e.GetAvailableUnits(ctx, p.ID); avail != 400 {
		t.Fatalf("available = %d, want 400", avail)
	}

	exited, err := e.ApproveExit(ctx, res.OwnershipID)
	if err != nil {
		t.Fatal(err)
	}
	if exited.Status != ownership.StatusExited {
		t.Errorf("status = %q, want exited", exited.Status)
	}
	if avail, _ := e.GetAvailableUnits(ctx, p.ID); avail != 1000 {
		t.Errorf("available after exit = %d, want 1000", avail)
	}
	assertBalanced(t, s, p.ID)

	if got, _ := e.GetTier(ctx, "u1"); got != tier.Standard {
		t.Errorf("tier after exit = %q, want Standard", got)
	}
	if rec.count("exited") != 1 || rec.count("tier:Standard") != 1 {
		t.Errorf("events = %v", rec.events)
	}

	// A second approval finds nothing active to exit and changes nothing.
	if _, err := e.ApproveExit(ctx, res.OwnershipID); !errors.Is(err, settlement.ErrStateConflict) {
		t.Errorf("second exit error = %v, want ErrStateConflict", err)
	}
	if avail, _ := e.GetAvailableUnits(ctx, p.ID); avail != 1000 {
		t.Errorf("available after double exit = %d, want 1000", avail)
	}
}

func TestApproveExitUnknownOwnership(t *testing.T) {
	e := newEngine(t, nil)
	_, err := e.ApproveExit(context.Background(), id.NewOwnershipID())
	if !errors.Is(err, settlement.ErrOwnershipNotFound) {
		t.Errorf("error = %v, want ErrOwnershipNotFound", err)
	}
}

func TestExitOnHaltedPropertyRollsBack(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	e := newEngine(t, s)
	p := registerProperty(t, e, 10, 50)

	res, err := e.Settle(ctx, request("ref-1", p.ID, "u1", 4, 50))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetHalted(ctx, p.ID, true, "audit"); err != nil {
		t.Fatal(err)
	}

	if _, err := e.ApproveExit(ctx, res.OwnershipID); !errors.Is(err, settlement.ErrPropertyHalted) {
		t.Fatalf("error = %v, want ErrPropertyHalted", err)
	}
	o, err := s.GetOwnership(ctx, res.OwnershipID)
	if err != nil {
		t.Fatal(err)
	}
	if o.Status != ownership.StatusActive {
		t.Errorf("status after rolled back exit = %q, want active", o.Status)
	}
	assertBalanced(t, s, p.ID)
}

func TestLockedHoldingsStillCount(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	e := newEngine(t, s)
	p := registerProperty(t, e, 1000, 50)

	res, err := e.Settle(ctx, request("ref-1", p.ID, "u1", 500, 50))
	if err != nil {
		t.Fatal(err)
	}

	locked, err := e.LockOwnership(ctx, res.OwnershipID)
	if err != nil {
		t.Fatal(err)
	}
	if locked.Status != ownership.StatusLocked {
		t.Fatalf("status = %q, want locked", locked.Status)
	}
	if _, err := e.LockOwnership(ctx, res.OwnershipID); !errors.Is(err, settlement.ErrStateConflict) {
		t.Errorf("relock error = %v, want ErrStateConflict", err)
	}
	if got, _ := e.RecomputeTier(ctx, "u1"); got != tier.Tier2 {
		t.Errorf("tier with locked holding = %q, want Tier 2", got)
	}
	assertBalanced(t, s, p.ID)

	if _, err := e.UnlockOwnership(ctx, res.OwnershipID); err != nil {
		t.Fatal(err)
	}

	// Locked holdings can exit too.
	if _, err := e.LockOwnership(ctx, res.OwnershipID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.ApproveExit(ctx, res.OwnershipID); err != nil {
		t.Fatal(err)
	}
	assertBalanced(t, s, p.ID)
}

func TestGrantDeveloperReserve(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	e := newEngine(t, s)
	p := registerProperty(t, e, 100, 50)

	tests := []struct {
		name    string
		user    string
		units   int64
		wantErr error
	}{
		{name: "missing user", user: "", units: 10, wantErr: settlement.ErrInvalidInput},
		{name: "zero units", user: "dev", units: 0, wantErr: settlement.ErrInvalidInput},
		{name: "reserve", user: "dev", units: 30},
		{name: "merges", user: "dev", units: 20},
		{name: "exceeds available", user: "dev", units: 51, wantErr: settlement.ErrInsufficientInventory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.GrantDeveloperReserve(ctx, p.ID, tt.user, tt.units)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
		})
	}

	holdings, err := e.ListOwnerships(ctx, ownership.ListOpts{UserID: "dev"})
	if err != nil {
		t.Fatal(err)
	}
	if len(holdings) != 1 {
		t.Fatalf("holdings = %d, want 1 merged record", len(holdings))
	}
	if holdings[0].Units != 50 || holdings[0].Status != ownership.StatusDeveloperReserve {
		t.Errorf("holding = %d units %q, want 50 developer_reserve", holdings[0].Units, holdings[0].Status)
	}
	if avail, _ := e.GetAvailableUnits(ctx, p.ID); avail != 50 {
		t.Errorf("available = %d, want 50", avail)
	}
	assertBalanced(t, s, p.ID)
}
