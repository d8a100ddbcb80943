package settlement_test

import (
	"context"
	"errors"
	"testing"
	"time"

	settlement "github.com/NIMOLA/hermeos-backend-sub002"
	"github.com/NIMOLA/hermeos-backend-sub002/capability"
	"github.com/NIMOLA/hermeos-backend-sub002/property"
	"github.com/NIMOLA/hermeos-backend-sub002/store/memory"
)

func TestEngineLifecycle(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	e := newEngine(t, nil,
		settlement.WithPlugin(rec),
		settlement.WithRecovery(5*time.Millisecond, time.Minute),
		settlement.WithReconcileInterval(5*time.Millisecond),
	)

	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if e.Plugins().Count() != 1 {
		t.Errorf("plugins = %d, want 1", e.Plugins().Count())
	}
	if err := e.Store().Ping(ctx); err != nil {
		t.Fatal(err)
	}

	// Let the reconcile worker tick at least once.
	deadline := time.Now().Add(time.Second)
	for rec.count("reconcile") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if err := e.Stop(); err != nil {
		t.Fatal(err)
	}
	// Stop is idempotent with respect to the workers.
	if err := e.Stop(); err != nil {
		t.Fatal(err)
	}

	if rec.count("init") != 1 {
		t.Errorf("init events = %d, want 1", rec.count("init"))
	}
	if rec.count("shutdown") < 1 {
		t.Error("no shutdown event")
	}
	if rec.count("reconcile") == 0 {
		t.Error("reconcile worker never ran")
	}
}

func TestReconcileWorkerHealsMirror(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	e := newEngine(t, s, settlement.WithReconcileInterval(5*time.Millisecond))

	if err := s.SetKYCStatus(ctx, "u1", capability.KYCApproved); err != nil {
		t.Fatal(err)
	}
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer e.Stop()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(grantNames(t, e, "u1")) == len(capability.DefaultCatalog().Verified) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Errorf("grants after reconcile = %v", grantNames(t, e, "u1"))
}

func TestRegisterPropertyValidation(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil)

	tests := []struct {
		name  string
		prop  property.Property
		valid bool
	}{
		{name: "valid", prop: property.Property{Name: "Ikoyi Heights", TotalUnits: 100, PricePerUnit: 250_000}, valid: true},
		{name: "missing name", prop: property.Property{TotalUnits: 100, PricePerUnit: 1}},
		{name: "zero units", prop: property.Property{Name: "x", PricePerUnit: 1}},
		{name: "zero price", prop: property.Property{Name: "x", TotalUnits: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.prop
			err := e.RegisterProperty(ctx, &p)
			if tt.valid {
				if err != nil {
					t.Fatal(err)
				}
				if p.AvailableUnits != p.TotalUnits || p.ID.IsNil() {
					t.Errorf("registered property = %+v", p)
				}
				return
			}
			if !errors.Is(err, settlement.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}
