package memory

import (
	"context"
	"testing"

	"github.com/NIMOLA/hermeos-backend-sub002/store"
	"github.com/NIMOLA/hermeos-backend-sub002/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return New()
	})
}

func TestNestedTxJoinsOuter(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := storetest.NewProperty(5, 100)
	if err := s.CreateProperty(ctx, p); err != nil {
		t.Fatal(err)
	}

	err := s.WithTx(ctx, func(ctx context.Context, tx store.Store) error {
		return tx.WithTx(ctx, func(ctx context.Context, inner store.Store) error {
			return inner.Reserve(ctx, p.ID, 2)
		})
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.GetProperty(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.AvailableUnits != 3 {
		t.Errorf("available = %d, want 3", got.AvailableUnits)
	}
}

func TestReturnedValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := storetest.NewProperty(5, 100)
	if err := s.CreateProperty(ctx, p); err != nil {
		t.Fatal(err)
	}
	p.AvailableUnits = 0

	got, _ := s.GetProperty(ctx, p.ID)
	got.AvailableUnits = -1

	again, _ := s.GetProperty(ctx, p.ID)
	if again.AvailableUnits != 5 {
		t.Errorf("stored property mutated through a returned pointer: %d", again.AvailableUnits)
	}
}
