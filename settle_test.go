package settlement_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	settlement "github.com/NIMOLA/hermeos-backend-sub002"
	"github.com/NIMOLA/hermeos-backend-sub002/id"
	"github.com/NIMOLA/hermeos-backend-sub002/payment"
	"github.com/NIMOLA/hermeos-backend-sub002/store/memory"
)

func TestSettleReplaysSettledReference(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	rec := &recorder{}
	e := newEngine(t, s, settlement.WithPlugin(rec))
	p := registerProperty(t, e, 100, 50000)

	req := settlement.Request{Reference: "X", PropertyID: p.ID, UserID: "user-1", Units: 5, Amount: 250000}

	first, err := e.Settle(ctx, req)
	if err != nil {
		t.Fatalf("first settle: %v", err)
	}
	if first.Status != payment.StateSettled || first.Units != 5 || first.Replayed {
		t.Fatalf("first result = %+v", first)
	}
	if first.Stage != settlement.StageDone {
		t.Errorf("first stage = %s, want DONE", first.Stage)
	}

	second, err := e.Settle(ctx, req)
	if err != nil {
		t.Fatalf("second settle: %v", err)
	}
	if !second.Replayed || second.Status != payment.StateSettled || second.Units != 5 {
		t.Errorf("second result = %+v", second)
	}
	if second.OwnershipID.String() != first.OwnershipID.String() {
		t.Errorf("replay ownership = %s, want %s", second.OwnershipID, first.OwnershipID)
	}
	if second.Stage != settlement.StageShortCircuited {
		t.Errorf("replay stage = %s, want SHORT_CIRCUITED", second.Stage)
	}

	avail, err := e.GetAvailableUnits(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if avail != 95 {
		t.Errorf("available = %d, want 95", avail)
	}
	if rec.count("settled") != 1 || rec.count("replayed") != 1 {
		t.Errorf("events = %v", rec.events)
	}
	assertBalanced(t, s, p.ID)
}

func TestSettleConcurrentLastUnits(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	e := newEngine(t, s)
	p := registerProperty(t, e, 10, 1000)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = e.Settle(ctx, request(fmt.Sprintf("ref-%d", i), p.ID, fmt.Sprintf("user-%d", i), 6, 1000))
		}()
	}
	wg.Wait()

	var ok, exhausted int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, settlement.ErrInsufficientInventory):
			exhausted++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || exhausted != 1 {
		t.Errorf("ok=%d exhausted=%d, want 1 and 1", ok, exhausted)
	}

	avail, _ := e.GetAvailableUnits(ctx, p.ID)
	if avail != 4 {
		t.Errorf("available = %d, want 4", avail)
	}
	assertBalanced(t, s, p.ID)
}

func TestSettleNeverOversells(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	e := newEngine(t, s)
	p := registerProperty(t, e, 100, 10)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int64
	)
	for i := range 60 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			units := int64(i%5 + 1)
			res, err := e.Settle(ctx, request(fmt.Sprintf("ref-%d", i), p.ID, fmt.Sprintf("user-%d", i%7), units, 10))
			if err != nil && !errors.Is(err, settlement.ErrInsufficientInventory) {
				t.Errorf("settle %d: %v", i, err)
				return
			}
			if err == nil {
				mu.Lock()
				granted += res.Units
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	avail, _ := e.GetAvailableUnits(ctx, p.ID)
	if granted+avail != 100 {
		t.Errorf("granted %d + available %d != 100", granted, avail)
	}
	assertBalanced(t, s, p.ID)
}

func TestSettleSameReferenceConcurrently(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	e := newEngine(t, s)
	p := registerProperty(t, e, 50, 100)
	req := request("dup", p.ID, "user-1", 3, 100)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fresh int
		owner = map[string]bool{}
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.Settle(ctx, req)
			if errors.Is(err, settlement.ErrSettlementInProgress) {
				return
			}
			if err != nil {
				t.Errorf("settle: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if !res.Replayed {
				fresh++
			}
			owner[res.OwnershipID.String()] = true
		}()
	}
	wg.Wait()

	if fresh != 1 {
		t.Errorf("fresh settlements = %d, want 1", fresh)
	}
	if len(owner) != 1 {
		t.Errorf("distinct ownership ids = %d, want 1", len(owner))
	}
	avail, _ := e.GetAvailableUnits(ctx, p.ID)
	if avail != 47 {
		t.Errorf("available = %d, want 47", avail)
	}
}

func TestSettleRejectsAndReplaysExhaustedInventory(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	rec := &recorder{}
	e := newEngine(t, s, settlement.WithPlugin(rec))
	p := registerProperty(t, e, 3, 100)

	req := request("too-big", p.ID, "user-1", 4, 100)
	res, err := e.Settle(ctx, req)
	if !errors.Is(err, settlement.ErrInsufficientInventory) {
		t.Fatalf("error = %v, want ErrInsufficientInventory", err)
	}
	if res == nil || res.Status != payment.StateRejected || res.Reason != payment.ReasonInventoryExhausted {
		t.Fatalf("result = %+v", res)
	}
	if res.Stage != settlement.StageRejected {
		t.Errorf("stage = %s, want REJECTED", res.Stage)
	}
	if !settlement.IsRejection(err) || settlement.IsRetryable(err) {
		t.Errorf("classification wrong for %v", err)
	}

	again, err := e.Settle(ctx, req)
	if !errors.Is(err, settlement.ErrInsufficientInventory) {
		t.Fatalf("replay error = %v", err)
	}
	if !again.Replayed || again.Reason != payment.ReasonInventoryExhausted {
		t.Errorf("replay = %+v", again)
	}
	if !errors.Is(again.Err(), settlement.ErrInsufficientInventory) {
		t.Errorf("Result.Err() = %v", again.Err())
	}

	owns, _ := s.SumUnitsByUser(ctx, "user-1")
	if owns != 0 {
		t.Errorf("rejected settlement granted %d units", owns)
	}
	if rec.count("rejected:inventory_exhausted") != 1 {
		t.Errorf("events = %v", rec.events)
	}
	assertBalanced(t, s, p.ID)
}

func TestSettleStorageFailureCompensates(t *testing.T) {
	ctx := context.Background()
	fs := &faultyStore{Store: memory.New(), failGrant: errors.New("disk full")}
	e := newEngine(t, fs)
	p := registerProperty(t, e, 10, 100)

	res, err := e.Settle(ctx, request("ref-1", p.ID, "user-1", 4, 100))
	if !errors.Is(err, settlement.ErrStorageFailure) || !settlement.IsRetryable(err) {
		t.Fatalf("error = %v, want retryable ErrStorageFailure", err)
	}
	if res.Reason != payment.ReasonStorageFailure {
		t.Errorf("reason = %q", res.Reason)
	}

	avail, _ := e.GetAvailableUnits(ctx, p.ID)
	if avail != 10 {
		t.Errorf("available after failed grant = %d, want 10", avail)
	}
	entry, err := fs.GetEntry(ctx, "ref-1")
	if err != nil {
		t.Fatal(err)
	}
	if entry.State != payment.StateRejected {
		t.Errorf("entry state = %s, want rejected", entry.State)
	}
	assertBalanced(t, fs, p.ID)
}

func TestSettleRetriesAbortedTransaction(t *testing.T) {
	ctx := context.Background()
	fs := &faultyStore{Store: memory.New(), conflicts: new(atomic.Int32)}
	fs.conflicts.Store(1)
	e := newEngine(t, fs)
	p := registerProperty(t, e, 10, 100)

	res, err := e.Settle(ctx, request("ref-1", p.ID, "user-1", 4, 100))
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if !res.Settled() {
		t.Fatalf("status = %s, want settled", res.Status)
	}
	if avail, _ := e.GetAvailableUnits(ctx, p.ID); avail != 6 {
		t.Errorf("available = %d, want 6", avail)
	}
	assertBalanced(t, fs, p.ID)
}

func TestSettleAbortedTransactionLeftForRecovery(t *testing.T) {
	ctx := context.Background()
	fs := &faultyStore{Store: memory.New(), conflicts: new(atomic.Int32)}
	fs.conflicts.Store(100)
	e := newEngine(t, fs, settlement.WithRecovery(0, time.Millisecond))
	p := registerProperty(t, e, 10, 100)

	res, err := e.Settle(ctx, request("ref-1", p.ID, "user-1", 4, 100))
	if res != nil {
		t.Fatalf("result = %+v, want none", res)
	}
	if !errors.Is(err, settlement.ErrTransactionFailed) || !settlement.IsRetryable(err) {
		t.Fatalf("error = %v, want retryable ErrTransactionFailed", err)
	}
	entry, err := fs.GetEntry(ctx, "ref-1")
	if err != nil {
		t.Fatal(err)
	}
	if entry.State != payment.StateSettling {
		t.Fatalf("entry state = %s, want settling", entry.State)
	}
	if avail, _ := e.GetAvailableUnits(ctx, p.ID); avail != 10 {
		t.Errorf("available = %d, want 10", avail)
	}

	fs.conflicts.Store(0)
	time.Sleep(5 * time.Millisecond)
	report, err := e.RecoverStale(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Settled != 1 {
		t.Errorf("report = %+v, want one settled", report)
	}
	entry, err = fs.GetEntry(ctx, "ref-1")
	if err != nil {
		t.Fatal(err)
	}
	if entry.State != payment.StateSettled {
		t.Errorf("entry state = %s, want settled", entry.State)
	}
	assertBalanced(t, fs, p.ID)
}

func TestSettleInvariantViolationHaltsProperty(t *testing.T) {
	ctx := context.Background()
	fs := &faultyStore{Store: memory.New(), skewHeld: 1}
	rec := &recorder{}
	e := newEngine(t, fs, settlement.WithPlugin(rec))
	p := registerProperty(t, e, 10, 100)

	res, err := e.Settle(ctx, request("ref-1", p.ID, "user-1", 2, 100))
	if !errors.Is(err, settlement.ErrInvariantViolation) || !settlement.IsFatal(err) {
		t.Fatalf("error = %v, want ErrInvariantViolation", err)
	}
	if res.Reason != payment.ReasonInvariantViolation {
		t.Errorf("reason = %q", res.Reason)
	}
	if rec.count("violation") != 1 {
		t.Errorf("violation alerts = %d, want 1", rec.count("violation"))
	}

	halted, err := e.GetProperty(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !halted.Halted || halted.AvailableUnits != 10 {
		t.Errorf("property after violation = %+v", halted)
	}

	_, err = e.Settle(ctx, request("ref-2", p.ID, "user-2", 1, 100))
	if !errors.Is(err, settlement.ErrPropertyHalted) {
		t.Errorf("settle on halted property error = %v, want ErrPropertyHalted", err)
	}

	if err := e.ResumeProperty(ctx, p.ID); !errors.Is(err, settlement.ErrInvariantViolation) {
		t.Errorf("resume while unbalanced error = %v", err)
	}
	fs.skewHeld = 0
	if err := e.ResumeProperty(ctx, p.ID); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if _, err := e.Settle(ctx, request("ref-3", p.ID, "user-2", 1, 100)); err != nil {
		t.Errorf("settle after resume: %v", err)
	}
}

func TestSettleSurvivesCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fs := &faultyStore{Store: memory.New()}
	e := newEngine(t, fs)
	p := registerProperty(t, e, 10, 100)

	// The caller gives up right after the reference is recorded.
	fs.onRecord = cancel

	res, err := e.Settle(ctx, request("ref-1", p.ID, "user-1", 2, 100))
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if res.Status != payment.StateSettled {
		t.Errorf("status = %s, want settled", res.Status)
	}
	assertBalanced(t, fs, p.ID)
}

func TestSettleReferenceMismatch(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	p := registerProperty(t, e, 10, 100)

	if _, err := e.Settle(ctx, request("ref-1", p.ID, "user-1", 2, 100)); err != nil {
		t.Fatal(err)
	}
	_, err := e.Settle(ctx, request("ref-1", p.ID, "user-1", 3, 100))
	if !errors.Is(err, settlement.ErrReferenceMismatch) {
		t.Errorf("error = %v, want ErrReferenceMismatch", err)
	}
	avail, _ := e.GetAvailableUnits(ctx, p.ID)
	if avail != 8 {
		t.Errorf("available = %d, want 8", avail)
	}
}

func TestSettleAmountVerification(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil, settlement.WithAmountVerification(true))
	p := registerProperty(t, e, 10, 50000)

	req := request("ref-1", p.ID, "user-1", 5, 50000)
	req.Amount = 200000

	res, err := e.Settle(ctx, req)
	if !errors.Is(err, settlement.ErrAmountMismatch) {
		t.Fatalf("error = %v, want ErrAmountMismatch", err)
	}
	if res.Reason != payment.ReasonAmountMismatch {
		t.Errorf("reason = %q", res.Reason)
	}

	if _, err := e.Settle(ctx, request("ref-2", p.ID, "user-1", 5, 50000)); err != nil {
		t.Errorf("correct amount rejected: %v", err)
	}
}

func TestSettleUnknownProperty(t *testing.T) {
	e := newEngine(t, nil)
	res, err := e.Settle(context.Background(), request("ref-1", id.NewPropertyID(), "user-1", 1, 100))
	if !errors.Is(err, settlement.ErrPropertyNotFound) {
		t.Fatalf("error = %v, want ErrPropertyNotFound", err)
	}
	if res.Reason != payment.ReasonPropertyNotFound {
		t.Errorf("reason = %q", res.Reason)
	}
}

func TestSettleValidation(t *testing.T) {
	e := newEngine(t, nil)
	pid := id.NewPropertyID()

	tests := []struct {
		name  string
		req   settlement.Request
		field string
	}{
		{"missing reference", settlement.Request{PropertyID: pid, UserID: "u", Units: 1}, "reference"},
		{"missing property", settlement.Request{Reference: "r", UserID: "u", Units: 1}, "property_id"},
		{"missing user", settlement.Request{Reference: "r", PropertyID: pid, Units: 1}, "user_id"},
		{"zero units", settlement.Request{Reference: "r", PropertyID: pid, UserID: "u"}, "units"},
		{"zero amount", settlement.Request{Reference: "r", PropertyID: pid, UserID: "u", Units: 1}, "amount"},
		{"negative amount", settlement.Request{Reference: "r", PropertyID: pid, UserID: "u", Units: 1, Amount: -1}, "amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Settle(context.Background(), tt.req)
			var verr settlement.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
			if !errors.Is(err, settlement.ErrInvalidInput) {
				t.Error("ValidationError does not match ErrInvalidInput")
			}
		})
	}
}
