package observability_test

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	settlement "github.com/NIMOLA/hermeos-backend-sub002"
	"github.com/NIMOLA/hermeos-backend-sub002/observability"
	"github.com/NIMOLA/hermeos-backend-sub002/property"
	"github.com/NIMOLA/hermeos-backend-sub002/store/memory"
)

// counterValue reads a gathered counter by its full name.
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not registered", name)
	return 0
}

func TestMetricsExtensionCountsSettlements(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	ext := observability.NewMetricsExtension(observability.NewPrometheusFactory("hermeos", reg))

	e := settlement.New(memory.New(),
		settlement.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		settlement.WithPlugin(ext),
	)
	p := &property.Property{Name: "Victoria Island Court", TotalUnits: 10, PricePerUnit: 250000}
	if err := e.RegisterProperty(ctx, p); err != nil {
		t.Fatal(err)
	}

	requests := []settlement.Request{
		{Reference: "a", PropertyID: p.ID, UserID: "u1", Units: 6, Amount: 1500000},
		{Reference: "a", PropertyID: p.ID, UserID: "u1", Units: 6, Amount: 1500000},
		{Reference: "b", PropertyID: p.ID, UserID: "u2", Units: 5, Amount: 1250000},
	}
	for _, req := range requests {
		_, _ = e.Settle(ctx, req)
	}

	tests := []struct {
		metric string
		want   float64
	}{
		{"hermeos_settlement_settled_total", 1},
		{"hermeos_settlement_replayed_total", 1},
		{"hermeos_settlement_rejected_total", 1},
		{"hermeos_settlement_rejected_inventory_exhausted_total", 1},
		{"hermeos_settlement_units_total", 6},
		{"hermeos_settlement_amount_total", 1500000},
	}
	for _, tt := range tests {
		t.Run(tt.metric, func(t *testing.T) {
			if got := counterValue(t, reg, tt.metric); got != tt.want {
				t.Errorf("%s = %v, want %v", tt.metric, got, tt.want)
			}
		})
	}
}

func TestPrometheusFactoryReusesCollectors(t *testing.T) {
	f := observability.NewPrometheusFactory("hermeos", nil)
	a := f.Counter("tier.changed")
	b := f.Counter("tier.changed")
	a.Inc()
	b.Add(2)

	rec := httptest.NewRecorder()
	f.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "hermeos_tier_changed_total 3") {
		t.Errorf("exposition missing counter:\n%s", rec.Body.String())
	}
}
