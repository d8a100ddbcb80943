package settlement_test

import (
	"context"
	"sync"
	"testing"

	settlement "github.com/NIMOLA/hermeos-backend-sub002"
	"github.com/NIMOLA/hermeos-backend-sub002/cache"
	memcache "github.com/NIMOLA/hermeos-backend-sub002/cache/memory"
	"github.com/NIMOLA/hermeos-backend-sub002/id"
	"github.com/NIMOLA/hermeos-backend-sub002/ownership"
	"github.com/NIMOLA/hermeos-backend-sub002/property"
	"github.com/NIMOLA/hermeos-backend-sub002/store"
	"github.com/NIMOLA/hermeos-backend-sub002/store/memory"
	"github.com/NIMOLA/hermeos-backend-sub002/tier"
)

func TestTierAcrossProperties(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	e := newEngine(t, nil, settlement.WithPlugin(rec))
	a := registerProperty(t, e, 800, 1000)
	b := registerProperty(t, e, 800, 1000)

	if _, err := e.Settle(ctx, request("ref-a", a.ID, "investor", 600, 1000)); err != nil {
		t.Fatal(err)
	}
	got, err := e.GetTier(ctx, "investor")
	if err != nil {
		t.Fatal(err)
	}
	if got != tier.Tier2 {
		t.Errorf("tier after 600 units = %q, want %q", got, tier.Tier2)
	}

	if _, err := e.Settle(ctx, request("ref-b", b.ID, "investor", 400, 1000)); err != nil {
		t.Fatal(err)
	}
	got, err = e.GetTier(ctx, "investor")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Tier 3" {
		t.Errorf("tier after 1000 units = %q, want %q", got, "Tier 3")
	}
	if got.Label() != "Guardian Partner" {
		t.Errorf("label = %q", got.Label())
	}

	if rec.count("tier:Tier 2") != 1 || rec.count("tier:Tier 3") != 1 {
		t.Errorf("tier events = %v", rec.events)
	}
}

func TestTierFallsOnExit(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)
	p := registerProperty(t, e, 2000, 10)

	big, err := e.Settle(ctx, request("ref-1", p.ID, "u1", 1000, 10))
	if err != nil {
		t.Fatal(err)
	}

	prev := tier.Tier3
	if got, _ := e.GetTier(ctx, "u1"); got != prev {
		t.Fatalf("tier = %q, want %q", got, prev)
	}

	if _, err := e.ApproveExit(ctx, big.OwnershipID); err != nil {
		t.Fatal(err)
	}
	got, err := e.GetTier(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Rank() > prev.Rank() {
		t.Errorf("exit increased tier from %q to %q", prev, got)
	}
	if got != tier.Standard {
		t.Errorf("tier after full exit = %q, want Standard", got)
	}
}

func TestGetTierUsesCache(t *testing.T) {
	ctx := context.Background()
	c := memcache.New()
	s := memory.New()
	e := newEngine(t, s, settlement.WithCache(c))
	p := registerProperty(t, e, 100, 10)

	if got, _ := e.GetTier(ctx, "u1"); got != tier.Standard {
		t.Fatalf("unknown user tier = %q, want Standard", got)
	}
	if c.Len() == 0 {
		t.Fatal("GetTier did not populate the cache")
	}

	// Settlement invalidates the cached value.
	if _, err := e.Settle(ctx, request("ref-1", p.ID, "u1", 1, 10)); err != nil {
		t.Fatal(err)
	}
	if got, _ := e.GetTier(ctx, "u1"); got != tier.Tier1 {
		t.Errorf("tier after settlement = %q, want Tier 1", got)
	}

	// A direct store write bypasses invalidation; the cached value wins
	// until RecomputeTier refreshes it.
	if _, err := s.Grant(ctx, ownership.GrantParams{UserID: "u1", PropertyID: p.ID, Units: 600}); err != nil {
		t.Fatal(err)
	}
	if got, _ := e.GetTier(ctx, "u1"); got != tier.Tier1 {
		t.Errorf("cached tier = %q, want Tier 1", got)
	}
	if got, err := e.RecomputeTier(ctx, "u1"); err != nil || got != tier.Tier2 {
		t.Errorf("RecomputeTier = %q, %v; want Tier 2", got, err)
	}
	if got, _ := e.GetTier(ctx, "u1"); got != tier.Tier2 {
		t.Errorf("tier after recompute = %q, want Tier 2", got)
	}
}

// interleavedStore runs after once, right behind the next property or tier
// read, to land a write between a reader's load and its cache fill.
type interleavedStore struct {
	store.Store

	mu    sync.Mutex
	after func()
}

func (s *interleavedStore) arm(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.after = f
}

func (s *interleavedStore) fire() {
	s.mu.Lock()
	f := s.after
	s.after = nil
	s.mu.Unlock()
	if f != nil {
		f()
	}
}

func (s *interleavedStore) GetProperty(ctx context.Context, propertyID id.PropertyID) (*property.Property, error) {
	p, err := s.Store.GetProperty(ctx, propertyID)
	s.fire()
	return p, err
}

func (s *interleavedStore) GetTier(ctx context.Context, userID string) (*tier.Record, error) {
	rec, err := s.Store.GetTier(ctx, userID)
	s.fire()
	return rec, err
}

func TestReadThroughSkipsFillAfterInvalidation(t *testing.T) {
	ctx := context.Background()
	c := memcache.New()
	s := &interleavedStore{Store: memory.New()}
	e := newEngine(t, s, settlement.WithCache(c))
	p := registerProperty(t, e, 1000, 10)

	if _, err := e.Settle(ctx, request("ref-0", p.ID, "u1", 1, 10)); err != nil {
		t.Fatal(err)
	}

	settleDuringRead := func(ref string, units int64) func() {
		return func() {
			if _, err := e.Settle(ctx, request(ref, p.ID, "u1", units, 10)); err != nil {
				t.Errorf("Settle %s: %v", ref, err)
			}
		}
	}

	t.Run("availability", func(t *testing.T) {
		s.arm(settleDuringRead("ref-1", 4))
		if got, _ := e.GetAvailableUnits(ctx, p.ID); got != 999 {
			t.Fatalf("racing read = %d, want 999", got)
		}
		if got, _ := e.GetAvailableUnits(ctx, p.ID); got != 995 {
			t.Errorf("read after settlement = %d, want 995", got)
		}
	})

	t.Run("tier", func(t *testing.T) {
		s.arm(settleDuringRead("ref-2", 600))
		if got, _ := e.GetTier(ctx, "u1"); got != tier.Tier1 {
			t.Fatalf("racing read = %q, want Tier 1", got)
		}
		if got, _ := e.GetTier(ctx, "u1"); got != tier.Tier2 {
			t.Errorf("read after settlement = %q, want Tier 2", got)
		}
	})

	if v, err := c.Get(ctx, cache.TierKey("u1")); err != nil || v != string(tier.Tier2) {
		t.Errorf("cached tier = %q, %v; want Tier 2", v, err)
	}
}

func TestRecomputeTierIsIdempotent(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	e := newEngine(t, nil, settlement.WithPlugin(rec))
	p := registerProperty(t, e, 1000, 10)

	if _, err := e.Settle(ctx, request("ref-1", p.ID, "u1", 500, 10)); err != nil {
		t.Fatal(err)
	}
	for range 3 {
		got, err := e.RecomputeTier(ctx, "u1")
		if err != nil {
			t.Fatal(err)
		}
		if got != tier.Tier2 {
			t.Errorf("RecomputeTier = %q, want Tier 2", got)
		}
	}
	if n := rec.count("tier:Tier 2"); n != 1 {
		t.Errorf("tier change events = %d, want 1", n)
	}
}
