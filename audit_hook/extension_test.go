package audithook_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	settlement "github.com/NIMOLA/hermeos-backend-sub002"
	audithook "github.com/NIMOLA/hermeos-backend-sub002/audit_hook"
	"github.com/NIMOLA/hermeos-backend-sub002/property"
	"github.com/NIMOLA/hermeos-backend-sub002/store/memory"
)

type captured struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (c *captured) Record(_ context.Context, e *audithook.AuditEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *captured) find(action string) *audithook.AuditEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.events {
		if e.Action == action {
			return e
		}
	}
	return nil
}

func settleOnce(t *testing.T, ext *audithook.Extension, units int64) {
	t.Helper()
	ctx := context.Background()
	e := settlement.New(memory.New(),
		settlement.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		settlement.WithPlugin(ext),
	)
	p := &property.Property{Name: "Ikoyi Heights", TotalUnits: 10, PricePerUnit: 50000}
	if err := e.RegisterProperty(ctx, p); err != nil {
		t.Fatal(err)
	}
	req := settlement.Request{Reference: "pay-1", PropertyID: p.ID, UserID: "u1", Units: units, Amount: p.PricePerUnit.Mul(units)}
	_, _ = e.Settle(ctx, req)
	_, _ = e.Settle(ctx, req)
}

func TestExtensionRecordsSettlementLifecycle(t *testing.T) {
	rec := &captured{}
	settleOnce(t, audithook.New(rec), 4)

	settled := rec.find(audithook.ActionSettlementSettled)
	if settled == nil {
		t.Fatal("no settlement.settled event")
	}
	if settled.ResourceID != "pay-1" || settled.Outcome != audithook.OutcomeSuccess {
		t.Errorf("settled event = %+v", settled)
	}
	if settled.Metadata["units"] != int64(4) {
		t.Errorf("units metadata = %v", settled.Metadata["units"])
	}

	if rec.find(audithook.ActionSettlementReplayed) == nil {
		t.Error("no settlement.replayed event for the second call")
	}
	if tc := rec.find(audithook.ActionTierChanged); tc == nil || tc.ResourceID != "u1" {
		t.Errorf("tier event = %+v", tc)
	}
}

func TestExtensionRecordsRejection(t *testing.T) {
	rec := &captured{}
	settleOnce(t, audithook.New(rec), 11)

	rejected := rec.find(audithook.ActionSettlementRejected)
	if rejected == nil {
		t.Fatal("no settlement.rejected event")
	}
	if rejected.Outcome != audithook.OutcomeFailure || rejected.Metadata["reason_code"] != "inventory_exhausted" {
		t.Errorf("rejected event = %+v", rejected)
	}
}

func TestActionFilters(t *testing.T) {
	tests := []struct {
		name   string
		opt    audithook.Option
		action string
		want   bool
	}{
		{"enabled only settled", audithook.WithEnabledActions(audithook.ActionSettlementSettled), audithook.ActionSettlementSettled, true},
		{"enabled skips tier", audithook.WithEnabledActions(audithook.ActionSettlementSettled), audithook.ActionTierChanged, false},
		{"disabled tier", audithook.WithDisabledActions(audithook.ActionTierChanged), audithook.ActionTierChanged, false},
		{"disabled keeps settled", audithook.WithDisabledActions(audithook.ActionTierChanged), audithook.ActionSettlementSettled, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &captured{}
			settleOnce(t, audithook.New(rec, tt.opt), 2)
			if got := rec.find(tt.action) != nil; got != tt.want {
				t.Errorf("recorded %s = %v, want %v", tt.action, got, tt.want)
			}
		})
	}
}

func TestRecorderFailureIsSwallowed(t *testing.T) {
	var logs bytes.Buffer
	failing := audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("audit store down")
	})
	ext := audithook.New(failing, audithook.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	if err := ext.OnShutdown(context.Background()); err != nil {
		t.Fatalf("OnShutdown = %v, want nil", err)
	}
	if !strings.Contains(logs.String(), "audit store down") {
		t.Errorf("failure not logged: %q", logs.String())
	}
}

func TestSlogRecorder(t *testing.T) {
	var buf bytes.Buffer
	rec := audithook.NewSlogRecorder(slog.New(slog.NewJSONHandler(&buf, nil)))
	ext := audithook.New(rec)

	if err := ext.OnInvariantViolation(context.Background(), "prop_1", errors.New("sold 6 + available 5 != total 10")); err != nil {
		t.Fatal(err)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if line["level"] != "ERROR" || line["action"] != audithook.ActionInvariantViolated || line["resource_id"] != "prop_1" {
		t.Errorf("audit line = %v", line)
	}
	if !strings.Contains(line["reason"].(string), "sold 6") {
		t.Errorf("reason = %v", line["reason"])
	}
}
