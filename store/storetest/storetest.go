// Package storetest is the behavioural suite every store.Store backend must
// pass. Backends call Run from their own tests with a constructor that
// returns an empty, migrated store.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	settlement "github.com/NIMOLA/hermeos-backend-sub002"
	"github.com/NIMOLA/hermeos-backend-sub002/capability"
	"github.com/NIMOLA/hermeos-backend-sub002/id"
	"github.com/NIMOLA/hermeos-backend-sub002/ownership"
	"github.com/NIMOLA/hermeos-backend-sub002/payment"
	"github.com/NIMOLA/hermeos-backend-sub002/property"
	"github.com/NIMOLA/hermeos-backend-sub002/store"
	"github.com/NIMOLA/hermeos-backend-sub002/tier"
	"github.com/NIMOLA/hermeos-backend-sub002/types"
)

// Factory returns a fresh, migrated store. It should register cleanup with t.
type Factory func(t *testing.T) store.Store

// Run executes the full suite against newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Inventory", func(t *testing.T) { testInventory(t, newStore) })
	t.Run("ConcurrentReserve", func(t *testing.T) { testConcurrentReserve(t, newStore) })
	t.Run("ConcurrentExitAndPurchase", func(t *testing.T) { testConcurrentExitAndPurchase(t, newStore) })
	t.Run("ConcurrentGrant", func(t *testing.T) { testConcurrentGrant(t, newStore) })
	t.Run("Ledger", func(t *testing.T) { testLedger(t, newStore) })
	t.Run("Ownership", func(t *testing.T) { testOwnership(t, newStore) })
	t.Run("Tier", func(t *testing.T) { testTier(t, newStore) })
	t.Run("Capabilities", func(t *testing.T) { testCapabilities(t, newStore) })
	t.Run("Transactions", func(t *testing.T) { testTransactions(t, newStore) })
}

// NewProperty builds an unsaved property with all units available.
func NewProperty(total int64, price types.Money) *property.Property {
	return &property.Property{
		Entity:         types.NewEntity(),
		ID:             id.NewPropertyID(),
		Name:           fmt.Sprintf("Test Property %d", total),
		TotalUnits:     total,
		AvailableUnits: total,
		PricePerUnit:   price,
	}
}

func mustCreate(t *testing.T, s store.Store, p *property.Property) {
	t.Helper()
	if err := s.CreateProperty(context.Background(), p); err != nil {
		t.Fatalf("CreateProperty: %v", err)
	}
}

func available(t *testing.T, s store.Store, pid id.PropertyID) int64 {
	t.Helper()
	p, err := s.GetProperty(context.Background(), pid)
	if err != nil {
		t.Fatalf("GetProperty: %v", err)
	}
	return p.AvailableUnits
}

func testInventory(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)
	p := NewProperty(10, 50000)
	mustCreate(t, s, p)

	if err := s.CreateProperty(ctx, p); !errors.Is(err, settlement.ErrAlreadyExists) {
		t.Errorf("duplicate CreateProperty error = %v, want ErrAlreadyExists", err)
	}

	tests := []struct {
		name      string
		op        func() error
		wantErr   error
		wantAvail int64
	}{
		{"reserve 6", func() error { return s.Reserve(ctx, p.ID, 6) }, nil, 4},
		{"reserve beyond available", func() error { return s.Reserve(ctx, p.ID, 5) }, settlement.ErrInsufficientInventory, 4},
		{"reserve exact remainder", func() error { return s.Reserve(ctx, p.ID, 4) }, nil, 0},
		{"reserve when sold out", func() error { return s.Reserve(ctx, p.ID, 1) }, settlement.ErrInsufficientInventory, 0},
		{"release 3", func() error { return s.Release(ctx, p.ID, 3) }, nil, 3},
		{"release past total", func() error { return s.Release(ctx, p.ID, 8) }, settlement.ErrInvariantViolation, 3},
		{"reserve unknown property", func() error { return s.Reserve(ctx, id.NewPropertyID(), 1) }, settlement.ErrPropertyNotFound, 3},
		{"lock unknown property", func() error {
			_, err := s.LockProperty(ctx, id.NewPropertyID())
			return err
		}, settlement.ErrPropertyNotFound, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op()
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if got := available(t, s, p.ID); got != tt.wantAvail {
				t.Errorf("available = %d, want %d", got, tt.wantAvail)
			}
		})
	}

	t.Run("halted", func(t *testing.T) {
		if err := s.SetHalted(ctx, p.ID, true, "drift"); err != nil {
			t.Fatal(err)
		}
		if err := s.Reserve(ctx, p.ID, 1); !errors.Is(err, settlement.ErrPropertyHalted) {
			t.Errorf("reserve on halted error = %v, want ErrPropertyHalted", err)
		}
		got, err := s.GetProperty(ctx, p.ID)
		if err != nil {
			t.Fatal(err)
		}
		if !got.Halted || got.HaltReason != "drift" {
			t.Errorf("halt not stored: %+v", got)
		}

		if err := s.SetHalted(ctx, p.ID, false, ""); err != nil {
			t.Fatal(err)
		}
		if err := s.Reserve(ctx, p.ID, 1); err != nil {
			t.Errorf("reserve after resume: %v", err)
		}
	})

	t.Run("list", func(t *testing.T) {
		other := NewProperty(5, 1000)
		mustCreate(t, s, other)
		_ = s.SetHalted(ctx, other.ID, true, "audit")

		all, err := s.ListProperties(ctx, property.ListOpts{})
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 2 {
			t.Errorf("ListProperties = %d, want 2", len(all))
		}
		halted, err := s.ListProperties(ctx, property.ListOpts{HaltedOnly: true})
		if err != nil {
			t.Fatal(err)
		}
		if len(halted) != 1 || halted[0].ID.String() != other.ID.String() {
			t.Errorf("HaltedOnly returned %d properties", len(halted))
		}
	})
}

func testConcurrentReserve(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)
	p := NewProperty(10, 100)
	mustCreate(t, s, p)

	const workers = 25
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Reserve(ctx, p.ID, 1)
			if err != nil && !errors.Is(err, settlement.ErrInsufficientInventory) {
				t.Errorf("unexpected reserve error: %v", err)
				return
			}
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 {
		t.Errorf("succeeded = %d, want 10", succeeded)
	}
	if got := available(t, s, p.ID); got != 0 {
		t.Errorf("available = %d, want 0", got)
	}
}

// testConcurrentExitAndPurchase races an exit against a new purchase of the
// same holding. Both touch the property and the ownership row, so a backend
// that locks them in different orders deadlocks here.
func testConcurrentExitAndPurchase(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)
	e := settlement.New(s, settlement.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	const rounds = 5
	for i := range rounds {
		p := NewProperty(20, 100)
		mustCreate(t, s, p)
		user := fmt.Sprintf("holder-%d", i)

		first, err := e.Settle(ctx, settlement.Request{
			Reference:  fmt.Sprintf("buy-%d", i),
			PropertyID: p.ID,
			UserID:     user,
			Units:      4,
			Amount:     p.PricePerUnit.Mul(4),
		})
		if err != nil {
			t.Fatalf("round %d: initial settle: %v", i, err)
		}

		var (
			wg                 sync.WaitGroup
			exitErr, settleErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, exitErr = e.ApproveExit(ctx, first.OwnershipID)
		}()
		go func() {
			defer wg.Done()
			_, settleErr = e.Settle(ctx, settlement.Request{
				Reference:  fmt.Sprintf("rebuy-%d", i),
				PropertyID: p.ID,
				UserID:     user,
				Units:      3,
				Amount:     p.PricePerUnit.Mul(3),
			})
		}()
		wg.Wait()

		if exitErr != nil {
			t.Errorf("round %d: ApproveExit: %v", i, exitErr)
		}
		if settleErr != nil {
			t.Errorf("round %d: Settle: %v", i, settleErr)
		}
		held, err := s.SumUnitsByProperty(ctx, p.ID)
		if err != nil {
			t.Fatal(err)
		}
		// Exit first leaves the repurchase held; purchase first merges it
		// into the exited holding.
		if held != 0 && held != 3 {
			t.Errorf("round %d: held = %d, want 0 or 3", i, held)
		}
		if avail := available(t, s, p.ID); held+avail != p.TotalUnits {
			t.Errorf("round %d: held %d + available %d != total %d", i, held, avail, p.TotalUnits)
		}
	}
}

// testConcurrentGrant merges concurrent grants into one holding. A backend
// may abort the losing transactions with ErrTransactionFailed; re-running
// them must land every unit exactly once.
func testConcurrentGrant(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)
	p := NewProperty(100, 10)
	mustCreate(t, s, p)

	const (
		workers     = 8
		maxAttempts = 20
	)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for attempt := 1; ; attempt++ {
				err := s.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
					_, err := tx.Grant(ctx, ownership.GrantParams{
						UserID:           "buyer",
						PropertyID:       p.ID,
						Units:            1,
						AcquisitionPrice: 10,
					})
					return err
				})
				if err == nil {
					return
				}
				if !errors.Is(err, settlement.ErrTransactionFailed) || attempt == maxAttempts {
					t.Errorf("grant: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	held, err := s.SumUnitsByProperty(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if held != workers {
		t.Errorf("held = %d, want %d", held, workers)
	}
	list, err := s.ListOwnerships(ctx, ownership.ListOpts{UserID: "buyer"})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("holdings = %d, want 1", len(list))
	}
	if list[0].AcquisitionPrice != types.Money(10*workers) {
		t.Errorf("cost basis = %s, want %s", list[0].AcquisitionPrice, types.Money(10*workers))
	}
}

func testLedger(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)
	pid := id.NewPropertyID()

	e := payment.NewEntry("ref-1", pid, "user-1", 5, 250000)
	stored, created, err := s.RecordAttempt(ctx, e)
	if err != nil {
		t.Fatal(err)
	}
	if !created || stored.State != payment.StatePending {
		t.Fatalf("first RecordAttempt created=%v state=%s", created, stored.State)
	}

	again, created, err := s.RecordAttempt(ctx, payment.NewEntry("ref-1", pid, "user-1", 5, 250000))
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("second RecordAttempt reported created")
	}
	if again.ID.String() != e.ID.String() {
		t.Errorf("second RecordAttempt returned a different entry")
	}

	if err := s.MarkSettling(ctx, "ref-1"); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkSettling(ctx, "ref-1"); !errors.Is(err, settlement.ErrStateConflict) {
		t.Errorf("second MarkSettling error = %v, want ErrStateConflict", err)
	}

	own := id.NewOwnershipID()
	if err := s.MarkSettled(ctx, "ref-1", own); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkRejected(ctx, "ref-1", payment.ReasonStorageFailure); !errors.Is(err, settlement.ErrStateConflict) {
		t.Errorf("reject after settle error = %v, want ErrStateConflict", err)
	}

	got, err := s.GetEntry(ctx, "ref-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.State != payment.StateSettled || got.OwnershipID.String() != own.String() || got.SettledAt == nil {
		t.Errorf("settled entry = %+v", got)
	}

	if _, err := s.GetEntry(ctx, "nope"); !errors.Is(err, settlement.ErrEntryNotFound) {
		t.Errorf("GetEntry(missing) error = %v, want ErrEntryNotFound", err)
	}
	if err := s.MarkSettling(ctx, "nope"); !errors.Is(err, settlement.ErrEntryNotFound) {
		t.Errorf("MarkSettling(missing) error = %v, want ErrEntryNotFound", err)
	}

	t.Run("reject from pending", func(t *testing.T) {
		if _, _, err := s.RecordAttempt(ctx, payment.NewEntry("ref-2", pid, "user-1", 1, 50000)); err != nil {
			t.Fatal(err)
		}
		if err := s.MarkRejected(ctx, "ref-2", payment.ReasonInventoryExhausted); err != nil {
			t.Fatal(err)
		}
		got, err := s.GetEntry(ctx, "ref-2")
		if err != nil {
			t.Fatal(err)
		}
		if got.State != payment.StateRejected || got.Reason != payment.ReasonInventoryExhausted {
			t.Errorf("rejected entry = %+v", got)
		}
	})

	t.Run("claim stale", func(t *testing.T) {
		if _, _, err := s.RecordAttempt(ctx, payment.NewEntry("ref-3", pid, "user-2", 1, 50000)); err != nil {
			t.Fatal(err)
		}
		cutoff := time.Now().UTC().Add(time.Second)

		list, err := s.ListEntries(ctx, payment.ListOpts{
			States:        []payment.State{payment.StatePending, payment.StateSettling},
			UpdatedBefore: cutoff,
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != 1 || list[0].Reference != "ref-3" {
			t.Fatalf("ListEntries returned %d entries", len(list))
		}

		claimed, err := s.ClaimStale(ctx, "ref-3", cutoff)
		if err != nil {
			t.Fatal(err)
		}
		if !claimed {
			t.Fatal("first claim failed")
		}
		// The claim bumped UpdatedAt, so an older cutoff no longer matches.
		claimed, err = s.ClaimStale(ctx, "ref-3", time.Now().UTC().Add(-time.Hour))
		if err != nil {
			t.Fatal(err)
		}
		if claimed {
			t.Error("claim with an old cutoff succeeded")
		}
		got, _ := s.GetEntry(ctx, "ref-3")
		if got.Attempts != 1 {
			t.Errorf("Attempts = %d, want 1", got.Attempts)
		}
		claimed, _ = s.ClaimStale(ctx, "ref-1", cutoff)
		if claimed {
			t.Error("claimed a settled entry")
		}
	})
}

func testOwnership(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)
	p := NewProperty(100, 50000)
	mustCreate(t, s, p)
	pid := p.ID

	first, err := s.Grant(ctx, ownership.GrantParams{UserID: "u1", PropertyID: pid, Units: 5, AcquisitionPrice: 250000})
	if err != nil {
		t.Fatal(err)
	}
	if first.Status != ownership.StatusActive || first.Units != 5 {
		t.Fatalf("first grant = %+v", first)
	}

	second, err := s.Grant(ctx, ownership.GrantParams{UserID: "u1", PropertyID: pid, Units: 3, AcquisitionPrice: 150000})
	if err != nil {
		t.Fatal(err)
	}
	if second.ID.String() != first.ID.String() {
		t.Error("repeat purchase created a second record")
	}
	if second.Units != 8 || second.CurrentValue != 400000 || second.AcquisitionPrice != 400000 {
		t.Errorf("merged grant = %+v", second)
	}

	if _, err := s.Grant(ctx, ownership.GrantParams{UserID: "u2", PropertyID: pid, Units: 2, Status: ownership.StatusDeveloperReserve}); err != nil {
		t.Fatal(err)
	}

	sum, err := s.SumUnitsByProperty(ctx, pid)
	if err != nil {
		t.Fatal(err)
	}
	if sum != 10 {
		t.Errorf("SumUnitsByProperty = %d, want 10", sum)
	}

	locked, err := s.TransitionOwnership(ctx, first.ID, []ownership.Status{ownership.StatusActive}, ownership.StatusLocked)
	if err != nil {
		t.Fatal(err)
	}
	if locked.Status != ownership.StatusLocked {
		t.Errorf("status = %s, want locked", locked.Status)
	}
	if _, err := s.TransitionOwnership(ctx, first.ID, []ownership.Status{ownership.StatusActive}, ownership.StatusLocked); !errors.Is(err, settlement.ErrStateConflict) {
		t.Errorf("lock twice error = %v, want ErrStateConflict", err)
	}

	if _, err := s.TransitionOwnership(ctx, first.ID, ownership.ActiveLike, ownership.StatusExited); err != nil {
		t.Fatal(err)
	}
	if sum, _ := s.SumUnitsByUser(ctx, "u1"); sum != 0 {
		t.Errorf("SumUnitsByUser after exit = %d, want 0", sum)
	}
	if sum, _ := s.SumUnitsByProperty(ctx, pid); sum != 2 {
		t.Errorf("SumUnitsByProperty after exit = %d, want 2", sum)
	}

	reopened, err := s.Grant(ctx, ownership.GrantParams{UserID: "u1", PropertyID: pid, Units: 1, AcquisitionPrice: 50000})
	if err != nil {
		t.Fatal(err)
	}
	if reopened.ID.String() != first.ID.String() || reopened.Units != 1 || reopened.Status != ownership.StatusActive {
		t.Errorf("reopened grant = %+v", reopened)
	}

	list, err := s.ListOwnerships(ctx, ownership.ListOpts{PropertyID: pid, Statuses: []ownership.Status{ownership.StatusDeveloperReserve}})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].UserID != "u2" {
		t.Errorf("ListOwnerships by status returned %d records", len(list))
	}

	if _, err := s.GetOwnership(ctx, id.NewOwnershipID()); !errors.Is(err, settlement.ErrOwnershipNotFound) {
		t.Errorf("GetOwnership(missing) error = %v, want ErrOwnershipNotFound", err)
	}
}

func testTier(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)

	if _, err := s.GetTier(ctx, "u1"); !errors.Is(err, settlement.ErrTierNotFound) {
		t.Fatalf("GetTier(missing) error = %v, want ErrTierNotFound", err)
	}

	rec := &tier.Record{Entity: types.NewEntity(), UserID: "u1", Tier: tier.Tier1, Units: 5}
	if err := s.SaveTier(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.Tier, rec.Units = tier.Tier3, 1000
	if err := s.SaveTier(ctx, rec); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetTier(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Tier != tier.Tier3 || got.Units != 1000 {
		t.Errorf("GetTier = %+v", got)
	}
}

func testCapabilities(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)

	status, err := s.GetKYCStatus(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if status != capability.KYCPending {
		t.Errorf("default KYC status = %s, want PENDING", status)
	}

	for _, u := range []string{"u3", "u1", "u2", "u4"} {
		st := capability.KYCApproved
		if u == "u2" {
			st = capability.KYCRejected
		}
		if err := s.SetKYCStatus(ctx, u, st); err != nil {
			t.Fatal(err)
		}
	}

	page1, err := s.ListApprovedUsers(ctx, "", 2)
	if err != nil {
		t.Fatal(err)
	}
	page2, err := s.ListApprovedUsers(ctx, page1[len(page1)-1], 2)
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(page1) != "[u1 u3]" || fmt.Sprint(page2) != "[u4]" {
		t.Errorf("ListApprovedUsers pages = %v %v", page1, page2)
	}

	names := []string{capability.ExecuteInvestment, capability.RequestExit}
	inserted, err := s.GrantCapabilities(ctx, "u1", names, capability.SourceReconcile)
	if err != nil {
		t.Fatal(err)
	}
	if len(inserted) != 2 {
		t.Errorf("inserted = %v, want 2 names", inserted)
	}
	inserted, err = s.GrantCapabilities(ctx, "u1", names, capability.SourceReconcile)
	if err != nil {
		t.Fatalf("repeat grant must not fail: %v", err)
	}
	if len(inserted) != 0 {
		t.Errorf("repeat grant inserted %v", inserted)
	}

	grants, err := s.ListGrants(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(grants) != 2 || grants[0].Source != capability.SourceReconcile {
		t.Errorf("ListGrants = %d grants", len(grants))
	}

	removed, err := s.RevokeCapabilities(ctx, "u1", []string{capability.RequestExit, capability.TransferUnits})
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 1 || removed[0] != capability.RequestExit {
		t.Errorf("removed = %v", removed)
	}
}

func testTransactions(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)
	p := NewProperty(10, 100)
	mustCreate(t, s, p)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.Reserve(ctx, p.ID, 4); err != nil {
			return err
		}
		if _, err := tx.Grant(ctx, ownership.GrantParams{UserID: "u1", PropertyID: p.ID, Units: 4}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx error = %v, want boom", err)
	}
	if got := available(t, s, p.ID); got != 10 {
		t.Errorf("available after rollback = %d, want 10", got)
	}
	if sum, _ := s.SumUnitsByProperty(ctx, p.ID); sum != 0 {
		t.Errorf("held after rollback = %d, want 0", sum)
	}

	err = s.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.Reserve(ctx, p.ID, 4); err != nil {
			return err
		}
		_, err := tx.Grant(ctx, ownership.GrantParams{UserID: "u1", PropertyID: p.ID, Units: 4})
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := available(t, s, p.ID); got != 6 {
		t.Errorf("available after commit = %d, want 6", got)
	}
	if sum, _ := s.SumUnitsByProperty(ctx, p.ID); sum != 4 {
		t.Errorf("held after commit = %d, want 4", sum)
	}
}
