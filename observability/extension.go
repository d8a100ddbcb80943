// Package observability provides a metrics extension for the settlement
// engine that records lifecycle event counts through a MetricFactory, plus
// Prometheus and OpenTelemetry wiring for binaries.
package observability

import (
	"context"
	"time"

	"github.com/NIMOLA/hermeos-backend-sub002/capability"
	"github.com/NIMOLA/hermeos-backend-sub002/ownership"
	"github.com/NIMOLA/hermeos-backend-sub002/payment"
	"github.com/NIMOLA/hermeos-backend-sub002/plugin"
	"github.com/NIMOLA/hermeos-backend-sub002/tier"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnInit                = (*MetricsExtension)(nil)
	_ plugin.OnSettlementSettled   = (*MetricsExtension)(nil)
	_ plugin.OnSettlementRejected  = (*MetricsExtension)(nil)
	_ plugin.OnSettlementReplayed  = (*MetricsExtension)(nil)
	_ plugin.OnTierChanged         = (*MetricsExtension)(nil)
	_ plugin.OnOwnershipExited     = (*MetricsExtension)(nil)
	_ plugin.OnCapabilitiesGranted = (*MetricsExtension)(nil)
	_ plugin.OnCapabilitiesRevoked = (*MetricsExtension)(nil)
	_ plugin.OnInvariantViolation  = (*MetricsExtension)(nil)
	_ plugin.OnRecoveryCompleted   = (*MetricsExtension)(nil)
	_ plugin.OnReconcileCompleted  = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records settlement lifecycle metrics.
// Register it as an engine plugin to track them automatically.
type MetricsExtension struct {
	factory MetricFactory

	// Settlement metrics
	SettlementSettled  Counter
	SettlementRejected Counter
	SettlementReplayed Counter
	UnitsSettled       Counter
	AmountSettled      Counter
	SettlementUnits    Histogram

	// Rejections by reason code
	RejectedInventoryExhausted Counter
	RejectedStorageFailure     Counter
	RejectedInvariant          Counter
	RejectedOther              Counter

	// Holdings metrics
	TierChanged     Counter
	OwnershipExited Counter
	UnitsReleased   Counter

	// Capability metrics
	CapabilitiesGranted Counter
	CapabilitiesRevoked Counter

	// Integrity and worker metrics
	InvariantViolations Counter
	RecoveryResolved    Counter
	RecoveryFailed      Counter
	RecoveryLatency     Histogram
	ReconcileUsers      Counter
	ReconcileFailed     Counter
	ReconcileLatency    Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		SettlementSettled:  factory.Counter("settlement.settled"),
		SettlementRejected: factory.Counter("settlement.rejected"),
		SettlementReplayed: factory.Counter("settlement.replayed"),
		UnitsSettled:       factory.Counter("settlement.units"),
		AmountSettled:      factory.Counter("settlement.amount"),
		SettlementUnits:    factory.Histogram("settlement.units.per_settlement"),

		RejectedInventoryExhausted: factory.Counter("settlement.rejected.inventory_exhausted"),
		RejectedStorageFailure:     factory.Counter("settlement.rejected.storage_failure"),
		RejectedInvariant:          factory.Counter("settlement.rejected.invariant_violation"),
		RejectedOther:              factory.Counter("settlement.rejected.other"),

		TierChanged:     factory.Counter("tier.changed"),
		OwnershipExited: factory.Counter("ownership.exited"),
		UnitsReleased:   factory.Counter("ownership.units.released"),

		CapabilitiesGranted: factory.Counter("capability.granted"),
		CapabilitiesRevoked: factory.Counter("capability.revoked"),

		InvariantViolations: factory.Counter("inventory.invariant_violations"),
		RecoveryResolved:    factory.Counter("recovery.resolved"),
		RecoveryFailed:      factory.Counter("recovery.failed"),
		RecoveryLatency:     factory.Histogram("recovery.latency_ms"),
		ReconcileUsers:      factory.Counter("reconcile.users.scanned"),
		ReconcileFailed:     factory.Counter("reconcile.users.failed"),
		ReconcileLatency:    factory.Histogram("reconcile.latency_ms"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnSettlementSettled implements plugin.OnSettlementSettled.
func (m *MetricsExtension) OnSettlementSettled(_ context.Context, entry *payment.Entry) error {
	m.SettlementSettled.Inc()
	m.UnitsSettled.Add(float64(entry.Units))
	m.AmountSettled.Add(float64(entry.Amount.Int64()))
	m.SettlementUnits.Observe(float64(entry.Units))
	return nil
}

// OnSettlementRejected implements plugin.OnSettlementRejected.
func (m *MetricsExtension) OnSettlementRejected(_ context.Context, _ *payment.Entry, reason string) error {
	m.SettlementRejected.Inc()
	switch reason {
	case payment.ReasonInventoryExhausted:
		m.RejectedInventoryExhausted.Inc()
	case payment.ReasonStorageFailure:
		m.RejectedStorageFailure.Inc()
	case payment.ReasonInvariantViolation:
		m.RejectedInvariant.Inc()
	default:
		m.RejectedOther.Inc()
	}
	return nil
}

// OnSettlementReplayed implements plugin.OnSettlementReplayed.
func (m *MetricsExtension) OnSettlementReplayed(_ context.Context, _ *payment.Entry) error {
	m.SettlementReplayed.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Holdings hooks
// ──────────────────────────────────────────────────

// OnTierChanged implements plugin.OnTierChanged.
func (m *MetricsExtension) OnTierChanged(_ context.Context, _ string, _, _ tier.Tier) error {
	m.TierChanged.Inc()
	return nil
}

// OnOwnershipExited implements plugin.OnOwnershipExited.
func (m *MetricsExtension) OnOwnershipExited(_ context.Context, o *ownership.Ownership) error {
	m.OwnershipExited.Inc()
	m.UnitsReleased.Add(float64(o.Units))
	return nil
}

// ──────────────────────────────────────────────────
// Capability hooks
// ──────────────────────────────────────────────────

// OnCapabilitiesGranted implements plugin.OnCapabilitiesGranted.
func (m *MetricsExtension) OnCapabilitiesGranted(_ context.Context, _ string, names []string) error {
	m.CapabilitiesGranted.Add(float64(len(names)))
	return nil
}

// OnCapabilitiesRevoked implements plugin.OnCapabilitiesRevoked.
func (m *MetricsExtension) OnCapabilitiesRevoked(_ context.Context, _ string, names []string) error {
	m.CapabilitiesRevoked.Add(float64(len(names)))
	return nil
}

// ──────────────────────────────────────────────────
// Integrity and worker hooks
// ──────────────────────────────────────────────────

// OnInvariantViolation implements plugin.OnInvariantViolation.
func (m *MetricsExtension) OnInvariantViolation(_ context.Context, _ string, _ error) error {
	m.InvariantViolations.Inc()
	return nil
}

// OnRecoveryCompleted implements plugin.OnRecoveryCompleted.
func (m *MetricsExtension) OnRecoveryCompleted(_ context.Context, resolved, failed int, elapsed time.Duration) error {
	m.RecoveryResolved.Add(float64(resolved))
	m.RecoveryFailed.Add(float64(failed))
	m.RecoveryLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// OnReconcileCompleted implements plugin.OnReconcileCompleted.
func (m *MetricsExtension) OnReconcileCompleted(_ context.Context, report capability.ReconcileReport) error {
	m.ReconcileUsers.Add(float64(report.UsersScanned))
	m.ReconcileFailed.Add(float64(report.Failed))
	m.ReconcileLatency.Observe(float64(report.Elapsed.Milliseconds()))
	return nil
}
