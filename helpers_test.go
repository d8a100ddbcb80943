package settlement_test

import (
	"context"
	"io"
	"log/slog"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	settlement "github.com/NIMOLA/hermeos-backend-sub002"
	"github.com/NIMOLA/hermeos-backend-sub002/capability"
	"github.com/NIMOLA/hermeos-backend-sub002/id"
	"github.com/NIMOLA/hermeos-backend-sub002/internal/retry"
	"github.com/NIMOLA/hermeos-backend-sub002/ownership"
	"github.com/NIMOLA/hermeos-backend-sub002/payment"
	"github.com/NIMOLA/hermeos-backend-sub002/property"
	"github.com/NIMOLA/hermeos-backend-sub002/store"
	"github.com/NIMOLA/hermeos-backend-sub002/store/memory"
	"github.com/NIMOLA/hermeos-backend-sub002/tier"
	"github.com/NIMOLA/hermeos-backend-sub002/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(t *testing.T, s store.Store, opts ...settlement.Option) *settlement.Engine {
	t.Helper()
	if s == nil {
		s = memory.New()
	}
	base := []settlement.Option{
		settlement.WithLogger(quietLogger()),
		settlement.WithRetry(&retry.Config{MaxAttempts: 2, InitialBackoff: time.Millisecond, BackoffMultiplier: 1}),
	}
	return settlement.New(s, append(base, opts...)...)
}

func registerProperty(t *testing.T, e *settlement.Engine, total int64, price types.Money) *property.Property {
	t.Helper()
	p := &property.Property{Name: "Lekki Gardens Block C", TotalUnits: total, PricePerUnit: price}
	if err := e.RegisterProperty(context.Background(), p); err != nil {
		t.Fatalf("RegisterProperty: %v", err)
	}
	return p
}

func request(ref string, propertyID id.PropertyID, userID string, units int64, price types.Money) settlement.Request {
	return settlement.Request{
		Reference:  ref,
		PropertyID: propertyID,
		UserID:     userID,
		Units:      units,
		Amount:     price.Mul(units),
	}
}

// assertBalanced checks sold + available == total and available >= 0.
func assertBalanced(t *testing.T, s store.Store, propertyID id.PropertyID) {
	t.Helper()
	ctx := context.Background()
	p, err := s.GetProperty(ctx, propertyID)
	if err != nil {
		t.Fatal(err)
	}
	held, err := s.SumUnitsByProperty(ctx, propertyID)
	if err != nil {
		t.Fatal(err)
	}
	if p.AvailableUnits < 0 {
		t.Errorf("available units went negative: %d", p.AvailableUnits)
	}
	if held+p.AvailableUnits != p.TotalUnits {
		t.Errorf("inventory out of balance: held=%d available=%d total=%d", held, p.AvailableUnits, p.TotalUnits)
	}
}

// faultyStore injects failures into a backing store, including inside
// transactions.
type faultyStore struct {
	store.Store

	failGrant error
	skewHeld  int64
	onRecord  func()
	// conflicts is the number of Grant calls aborted as if another
	// transaction had won.
	conflicts *atomic.Int32
}

func (f *faultyStore) bind(tx store.Store) *faultyStore {
	c := *f
	c.Store = tx
	return &c
}

func (f *faultyStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	return f.Store.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		return fn(ctx, f.bind(tx))
	})
}

func (f *faultyStore) RecordAttempt(ctx context.Context, e *payment.Entry) (*payment.Entry, bool, error) {
	stored, created, err := f.Store.RecordAttempt(ctx, e)
	if f.onRecord != nil {
		f.onRecord()
	}
	return stored, created, err
}

func (f *faultyStore) Reserve(ctx context.Context, propertyID id.PropertyID, units int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.Store.Reserve(ctx, propertyID, units)
}

func (f *faultyStore) Grant(ctx context.Context, p ownership.GrantParams) (*ownership.Ownership, error) {
	if f.failGrant != nil {
		return nil, f.failGrant
	}
	if f.conflicts != nil && f.conflicts.Add(-1) >= 0 {
		return nil, fmt.Errorf("%w: deadlock detected", settlement.ErrTransactionFailed)
	}
	return f.Store.Grant(ctx, p)
}

func (f *faultyStore) SumUnitsByProperty(ctx context.Context, propertyID id.PropertyID) (int64, error) {
	n, err := f.Store.SumUnitsByProperty(ctx, propertyID)
	return n + f.skewHeld, err
}

// recorder is a plugin that records every event it sees.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) add(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(ev string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == ev {
			n++
		}
	}
	return n
}

func (r *recorder) OnInit(context.Context, any) error {
	r.add("init")
	return nil
}

func (r *recorder) OnShutdown(context.Context) error {
	r.add("shutdown")
	return nil
}

func (r *recorder) OnSettlementSettled(_ context.Context, e *payment.Entry) error {
	r.add("settled")
	return nil
}

func (r *recorder) OnSettlementRejected(_ context.Context, _ *payment.Entry, reason string) error {
	r.add("rejected:" + reason)
	return nil
}

func (r *recorder) OnSettlementReplayed(context.Context, *payment.Entry) error {
	r.add("replayed")
	return nil
}

func (r *recorder) OnTierChanged(_ context.Context, _ string, _, to tier.Tier) error {
	r.add("tier:" + string(to))
	return nil
}

func (r *recorder) OnOwnershipExited(context.Context, *ownership.Ownership) error {
	r.add("exited")
	return nil
}

func (r *recorder) OnCapabilitiesGranted(context.Context, string, []string) error {
	r.add("granted")
	return nil
}

func (r *recorder) OnInvariantViolation(context.Context, string, error) error {
	r.add("violation")
	return nil
}

func (r *recorder) OnRecoveryCompleted(context.Context, int, int, time.Duration) error {
	r.add("recovery")
	return nil
}

func (r *recorder) OnReconcileCompleted(context.Context, capability.ReconcileReport) error {
	r.add("reconcile")
	return nil
}
