// Package plugin provides an extensible plugin system for the settlement
// engine. Plugins hook into lifecycle events after state has been committed;
// they never run inside a storage transaction.
package plugin

import (
	"context"
	"time"

	"github.com/NIMOLA/hermeos-backend-sub002/capability"
	"github.com/NIMOLA/hermeos-backend-sub002/ownership"
	"github.com/NIMOLA/hermeos-backend-sub002/payment"
	"github.com/NIMOLA/hermeos-backend-sub002/tier"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts. engine is the *settlement.Engine.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnSettlementSettled is called after a settlement commits.
type OnSettlementSettled interface {
	Plugin
	OnSettlementSettled(ctx context.Context, entry *payment.Entry) error
}

// OnSettlementRejected is called after a reference is marked rejected.
type OnSettlementRejected interface {
	Plugin
	OnSettlementRejected(ctx context.Context, entry *payment.Entry, reason string) error
}

// OnSettlementReplayed is called when a terminal reference is seen again.
type OnSettlementReplayed interface {
	Plugin
	OnSettlementReplayed(ctx context.Context, entry *payment.Entry) error
}

// ──────────────────────────────────────────────────
// Holdings hooks
// ──────────────────────────────────────────────────

// OnTierChanged is called when a recompute writes a different tier.
type OnTierChanged interface {
	Plugin
	OnTierChanged(ctx context.Context, userID string, from, to tier.Tier) error
}

// OnOwnershipExited is called after an exit releases units.
type OnOwnershipExited interface {
	Plugin
	OnOwnershipExited(ctx context.Context, o *ownership.Ownership) error
}

// ──────────────────────────────────────────────────
// Capability hooks
// ──────────────────────────────────────────────────

// OnCapabilitiesGranted is called with the names actually inserted.
type OnCapabilitiesGranted interface {
	Plugin
	OnCapabilitiesGranted(ctx context.Context, userID string, names []string) error
}

// OnCapabilitiesRevoked is called with the names actually removed.
type OnCapabilitiesRevoked interface {
	Plugin
	OnCapabilitiesRevoked(ctx context.Context, userID string, names []string) error
}

// ──────────────────────────────────────────────────
// Integrity and worker hooks
// ──────────────────────────────────────────────────

// OnInvariantViolation is called when inventory for a property no longer
// balances and writes to it have been halted.
type OnInvariantViolation interface {
	Plugin
	OnInvariantViolation(ctx context.Context, propertyID string, err error) error
}

// OnRecoveryCompleted is called after each recovery pass that found work.
type OnRecoveryCompleted interface {
	Plugin
	OnRecoveryCompleted(ctx context.Context, resolved, failed int, elapsed time.Duration) error
}

// OnReconcileCompleted is called after each capability reconcile pass.
type OnReconcileCompleted interface {
	Plugin
	OnReconcileCompleted(ctx context.Context, report capability.ReconcileReport) error
}
