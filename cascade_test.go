package settlement_test

import (
	"context"
	"sort"
	"testing"

	settlement "github.com/NIMOLA/hermeos-backend-sub002"
	"github.com/NIMOLA/hermeos-backend-sub002/capability"
	"github.com/NIMOLA/hermeos-backend-sub002/store/memory"
)

func grantNames(t *testing.T, e *settlement.Engine, userID string) []string {
	t.Helper()
	grants, err := e.Capabilities(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(grants))
	for _, g := range grants {
		names = append(names, g.Name)
	}
	sort.Strings(names)
	return names
}

func TestReconcileGrantsMissingThenNoops(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	e := newEngine(t, s)

	// The KYC mirror flips to approved without going through the engine.
	if err := s.SetKYCStatus(ctx, "u1", capability.KYCSubmitted); err != nil {
		t.Fatal(err)
	}
	if err := s.SetKYCStatus(ctx, "u1", capability.KYCApproved); err != nil {
		t.Fatal(err)
	}
	if got := grantNames(t, e, "u1"); len(got) != 0 {
		t.Fatalf("grants before reconcile = %v", got)
	}

	report, err := e.ReconcileCapabilities(ctx)
	if err != nil {
		t.Fatal(err)
	}
	verified := capability.DefaultCatalog().Verified
	if report.UsersScanned != 1 || report.UsersUpdated != 1 || report.GrantsInserted != len(verified) {
		t.Errorf("first report = %+v", report)
	}

	want := append([]string(nil), verified...)
	sort.Strings(want)
	if got := grantNames(t, e, "u1"); len(got) != len(want) {
		t.Errorf("grants = %v, want %v", got, want)
	}

	report, err = e.ReconcileCapabilities(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.UsersUpdated != 0 || report.GrantsInserted != 0 {
		t.Errorf("second report = %+v, want no-op", report)
	}
}

func TestReconcileSkipsUnapprovedUsers(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	e := newEngine(t, s, settlement.WithReconcileConcurrency(2))

	statuses := map[string]capability.KYCStatus{
		"a": capability.KYCApproved,
		"b": capability.KYCPending,
		"c": capability.KYCRejected,
		"d": capability.KYCApproved,
		"e": capability.KYCApproved,
	}
	for u, st := range statuses {
		if err := s.SetKYCStatus(ctx, u, st); err != nil {
			t.Fatal(err)
		}
	}
	// "c" kept a grant from before rejection; reconcile must not revoke it.
	if _, err := s.GrantCapabilities(ctx, "c", []string{capability.ExecuteInvestment}, capability.SourceKYC); err != nil {
		t.Fatal(err)
	}

	report, err := e.ReconcileCapabilities(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.UsersScanned != 3 {
		t.Errorf("UsersScanned = %d, want 3", report.UsersScanned)
	}
	if got := grantNames(t, e, "b"); len(got) != 0 {
		t.Errorf("pending user received grants: %v", got)
	}
	if got := grantNames(t, e, "c"); len(got) != 1 {
		t.Errorf("rejected user's grants changed: %v", got)
	}
}

func TestReconcileHonoursLegacyNames(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	e := newEngine(t, s)

	_ = s.SetKYCStatus(ctx, "u1", capability.KYCApproved)
	if _, err := s.GrantCapabilities(ctx, "u1", []string{"invest"}, capability.SourceKYC); err != nil {
		t.Fatal(err)
	}

	report, err := e.ReconcileCapabilities(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.GrantsInserted != len(capability.DefaultCatalog().Verified)-1 {
		t.Errorf("GrantsInserted = %d; legacy invest should cover execute_investment", report.GrantsInserted)
	}
	for _, name := range grantNames(t, e, "u1") {
		if name == capability.ExecuteInvestment {
			t.Error("execute_investment granted alongside legacy invest")
		}
	}
}

func TestSettlementCascadesForApprovedUser(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	rec := &recorder{}
	e := newEngine(t, s, settlement.WithPlugin(rec))
	p := registerProperty(t, e, 10, 100)

	_ = s.SetKYCStatus(ctx, "approved", capability.KYCApproved)

	if _, err := e.Settle(ctx, request("ref-1", p.ID, "approved", 1, 100)); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Settle(ctx, request("ref-2", p.ID, "pending", 1, 100)); err != nil {
		t.Fatal(err)
	}

	if got := grantNames(t, e, "approved"); len(got) != len(capability.DefaultCatalog().Verified) {
		t.Errorf("approved user grants = %v", got)
	}
	if got := grantNames(t, e, "pending"); len(got) != 0 {
		t.Errorf("pending user grants = %v", got)
	}
	if rec.count("granted") != 1 {
		t.Errorf("grant events = %d, want 1", rec.count("granted"))
	}
}

func TestSetKYCStatusAndRevoke(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)

	if err := e.SetKYCStatus(ctx, "u1", "VERIFIED"); err == nil {
		t.Error("unknown status accepted")
	}
	if err := e.SetKYCStatus(ctx, "u1", capability.KYCApproved); err != nil {
		t.Fatal(err)
	}
	if got := grantNames(t, e, "u1"); len(got) != len(capability.DefaultCatalog().Verified) {
		t.Fatalf("grants after approval = %v", got)
	}

	// Downgrading the status alone revokes nothing.
	if err := e.SetKYCStatus(ctx, "u1", capability.KYCRejected); err != nil {
		t.Fatal(err)
	}
	if got := grantNames(t, e, "u1"); len(got) == 0 {
		t.Fatal("status change revoked grants")
	}

	removed, err := e.RevokeVerifiedCapabilities(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != len(capability.DefaultCatalog().Verified) {
		t.Errorf("removed = %v", removed)
	}
	if got := grantNames(t, e, "u1"); len(got) != 0 {
		t.Errorf("grants after revoke = %v", got)
	}
}
