package settlement_test

import (
	"context"
	"testing"
	"time"

	settlement "github.com/NIMOLA/hermeos-backend-sub002"
	"github.com/NIMOLA/hermeos-backend-sub002/payment"
	"github.com/NIMOLA/hermeos-backend-sub002/store/memory"
)

func TestRecoverStaleResolvesAbandonedEntries(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	rec := &recorder{}
	e := newEngine(t, s,
		settlement.WithPlugin(rec),
		settlement.WithRecovery(0, 20*time.Millisecond),
	)
	p := registerProperty(t, e, 10, 100)

	// A process died after recording the reference.
	if _, _, err := s.RecordAttempt(ctx, payment.NewEntry("abandoned-pending", p.ID, "u1", 3, 300)); err != nil {
		t.Fatal(err)
	}
	// And another died mid-settlement with a request that can never fit.
	if _, _, err := s.RecordAttempt(ctx, payment.NewEntry("abandoned-settling", p.ID, "u2", 50, 5000)); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkSettling(ctx, "abandoned-settling"); err != nil {
		t.Fatal(err)
	}

	time.Sleep(40 * time.Millisecond)

	if _, _, err := s.RecordAttempt(ctx, payment.NewEntry("fresh", p.ID, "u3", 1, 100)); err != nil {
		t.Fatal(err)
	}

	report, err := e.RecoverStale(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Scanned != 2 || report.Settled != 1 || report.Rejected != 1 || report.Resolved != 2 {
		t.Errorf("report = %+v", report)
	}

	tests := []struct {
		reference string
		state     payment.State
		reason    string
	}{
		{reference: "abandoned-pending", state: payment.StateSettled},
		{reference: "abandoned-settling", state: payment.StateRejected, reason: payment.ReasonInventoryExhausted},
		{reference: "fresh", state: payment.StatePending},
	}
	for _, tt := range tests {
		t.Run(tt.reference, func(t *testing.T) {
			entry, err := s.GetEntry(ctx, tt.reference)
			if err != nil {
				t.Fatal(err)
			}
			if entry.State != tt.state || entry.Reason != tt.reason {
				t.Errorf("entry = %s/%q, want %s/%q", entry.State, entry.Reason, tt.state, tt.reason)
			}
		})
	}

	if avail, _ := e.GetAvailableUnits(ctx, p.ID); avail != 7 {
		t.Errorf("available = %d, want 7", avail)
	}
	assertBalanced(t, s, p.ID)
	if rec.count("recovery") != 1 {
		t.Errorf("recovery events = %d, want 1", rec.count("recovery"))
	}

	// A recovered reference replays like any other.
	res, err := e.Settle(ctx, request("abandoned-pending", p.ID, "u1", 3, 100))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Replayed || !res.Settled() {
		t.Errorf("result = %+v, want settled replay", res)
	}
}

func TestRecoverStaleNothingToDo(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	e := newEngine(t, nil, settlement.WithPlugin(rec))
	p := registerProperty(t, e, 10, 100)

	if _, err := e.Settle(ctx, request("ref-1", p.ID, "u1", 1, 100)); err != nil {
		t.Fatal(err)
	}

	report, err := e.RecoverStale(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Scanned != 0 {
		t.Errorf("report = %+v, want nothing scanned", report)
	}
	if rec.count("recovery") != 0 {
		t.Error("empty pass emitted a recovery event")
	}
}

func TestStartRunsRecoveryPass(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	e := newEngine(t, s, settlement.WithRecovery(0, time.Millisecond))
	p := registerProperty(t, e, 10, 100)

	if _, _, err := s.RecordAttempt(ctx, payment.NewEntry("left-over", p.ID, "u1", 2, 200)); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)

	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer e.Stop()

	entry, err := s.GetEntry(ctx, "left-over")
	if err != nil {
		t.Fatal(err)
	}
	if entry.State != payment.StateSettled {
		t.Errorf("state after start = %s, want settled", entry.State)
	}
}
