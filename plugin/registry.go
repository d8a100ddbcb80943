package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/NIMOLA/hermeos-backend-sub002/capability"
	"github.com/NIMOLA/hermeos-backend-sub002/ownership"
	"github.com/NIMOLA/hermeos-backend-sub002/payment"
	"github.com/NIMOLA/hermeos-backend-sub002/tier"
)

// DefaultHookTimeout bounds a single plugin call.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and dispatches events to them.
// Hook implementations are discovered once at registration time.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit                []OnInit
	onShutdown            []OnShutdown
	onSettlementSettled   []OnSettlementSettled
	onSettlementRejected  []OnSettlementRejected
	onSettlementReplayed  []OnSettlementReplayed
	onTierChanged         []OnTierChanged
	onOwnershipExited     []OnOwnershipExited
	onCapabilitiesGranted []OnCapabilitiesGranted
	onCapabilitiesRevoked []OnCapabilitiesRevoked
	onInvariantViolation  []OnInvariantViolation
	onRecoveryCompleted   []OnRecoveryCompleted
	onReconcileCompleted  []OnReconcileCompleted
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-call plugin timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its hooks.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnSettlementSettled); ok {
		r.onSettlementSettled = append(r.onSettlementSettled, v)
	}
	if v, ok := p.(OnSettlementRejected); ok {
		r.onSettlementRejected = append(r.onSettlementRejected, v)
	}
	if v, ok := p.(OnSettlementReplayed); ok {
		r.onSettlementReplayed = append(r.onSettlementReplayed, v)
	}
	if v, ok := p.(OnTierChanged); ok {
		r.onTierChanged = append(r.onTierChanged, v)
	}
	if v, ok := p.(OnOwnershipExited); ok {
		r.onOwnershipExited = append(r.onOwnershipExited, v)
	}
	if v, ok := p.(OnCapabilitiesGranted); ok {
		r.onCapabilitiesGranted = append(r.onCapabilitiesGranted, v)
	}
	if v, ok := p.(OnCapabilitiesRevoked); ok {
		r.onCapabilitiesRevoked = append(r.onCapabilitiesRevoked, v)
	}
	if v, ok := p.(OnInvariantViolation); ok {
		r.onInvariantViolation = append(r.onInvariantViolation, v)
	}
	if v, ok := p.(OnRecoveryCompleted); ok {
		r.onRecoveryCompleted = append(r.onRecoveryCompleted, v)
	}
	if v, ok := p.(OnReconcileCompleted); ok {
		r.onReconcileCompleted = append(r.onReconcileCompleted, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"hooks", implementedHooks(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeOf((*OnInit)(nil)).Elem()},
	{"OnShutdown", reflect.TypeOf((*OnShutdown)(nil)).Elem()},
	{"OnSettlementSettled", reflect.TypeOf((*OnSettlementSettled)(nil)).Elem()},
	{"OnSettlementRejected", reflect.TypeOf((*OnSettlementRejected)(nil)).Elem()},
	{"OnSettlementReplayed", reflect.TypeOf((*OnSettlementReplayed)(nil)).Elem()},
	{"OnTierChanged", reflect.TypeOf((*OnTierChanged)(nil)).Elem()},
	{"OnOwnershipExited", reflect.TypeOf((*OnOwnershipExited)(nil)).Elem()},
	{"OnCapabilitiesGranted", reflect.TypeOf((*OnCapabilitiesGranted)(nil)).Elem()},
	{"OnCapabilitiesRevoked", reflect.TypeOf((*OnCapabilitiesRevoked)(nil)).Elem()},
	{"OnInvariantViolation", reflect.TypeOf((*OnInvariantViolation)(nil)).Elem()},
	{"OnRecoveryCompleted", reflect.TypeOf((*OnRecoveryCompleted)(nil)).Elem()},
	{"OnReconcileCompleted", reflect.TypeOf((*OnReconcileCompleted)(nil)).Elem()},
}

// implementedHooks lists the hook interfaces p satisfies.
func implementedHooks(p Plugin) []string {
	var hooks []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			hooks = append(hooks, h.name)
		}
	}
	return hooks
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	emit(ctx, r, "OnInit", snapshot(r, &r.onInit), func(p OnInit) error {
		return p.OnInit(ctx, engine)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, "OnShutdown", snapshot(r, &r.onShutdown), func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitSettlementSettled emits a settlement committed event.
func (r *Registry) EmitSettlementSettled(ctx context.Context, entry *payment.Entry) {
	emit(ctx, r, "OnSettlementSettled", snapshot(r, &r.onSettlementSettled), func(p OnSettlementSettled) error {
		return p.OnSettlementSettled(ctx, entry)
	})
}

// EmitSettlementRejected emits a settlement rejected event.
func (r *Registry) EmitSettlementRejected(ctx context.Context, entry *payment.Entry, reason string) {
	emit(ctx, r, "OnSettlementRejected", snapshot(r, &r.onSettlementRejected), func(p OnSettlementRejected) error {
		return p.OnSettlementRejected(ctx, entry, reason)
	})
}

// EmitSettlementReplayed emits an idempotent replay event.
func (r *Registry) EmitSettlementReplayed(ctx context.Context, entry *payment.Entry) {
	emit(ctx, r, "OnSettlementReplayed", snapshot(r, &r.onSettlementReplayed), func(p OnSettlementReplayed) error {
		return p.OnSettlementReplayed(ctx, entry)
	})
}

// EmitTierChanged emits a tier change event.
func (r *Registry) EmitTierChanged(ctx context.Context, userID string, from, to tier.Tier) {
	emit(ctx, r, "OnTierChanged", snapshot(r, &r.onTierChanged), func(p OnTierChanged) error {
		return p.OnTierChanged(ctx, userID, from, to)
	})
}

// EmitOwnershipExited emits an ownership exited event.
func (r *Registry) EmitOwnershipExited(ctx context.Context, o *ownership.Ownership) {
	emit(ctx, r, "OnOwnershipExited", snapshot(r, &r.onOwnershipExited), func(p OnOwnershipExited) error {
		return p.OnOwnershipExited(ctx, o)
	})
}

// EmitCapabilitiesGranted emits a capability grant event.
func (r *Registry) EmitCapabilitiesGranted(ctx context.Context, userID string, names []string) {
	emit(ctx, r, "OnCapabilitiesGranted", snapshot(r, &r.onCapabilitiesGranted), func(p OnCapabilitiesGranted) error {
		return p.OnCapabilitiesGranted(ctx, userID, names)
	})
}

// EmitCapabilitiesRevoked emits a capability revocation event.
func (r *Registry) EmitCapabilitiesRevoked(ctx context.Context, userID string, names []string) {
	emit(ctx, r, "OnCapabilitiesRevoked", snapshot(r, &r.onCapabilitiesRevoked), func(p OnCapabilitiesRevoked) error {
		return p.OnCapabilitiesRevoked(ctx, userID, names)
	})
}

// EmitInvariantViolation emits an inventory invariant alert.
func (r *Registry) EmitInvariantViolation(ctx context.Context, propertyID string, cause error) {
	emit(ctx, r, "OnInvariantViolation", snapshot(r, &r.onInvariantViolation), func(p OnInvariantViolation) error {
		return p.OnInvariantViolation(ctx, propertyID, cause)
	})
}

// EmitRecoveryCompleted emits a recovery pass summary.
func (r *Registry) EmitRecoveryCompleted(ctx context.Context, resolved, failed int, elapsed time.Duration) {
	emit(ctx, r, "OnRecoveryCompleted", snapshot(r, &r.onRecoveryCompleted), func(p OnRecoveryCompleted) error {
		return p.OnRecoveryCompleted(ctx, resolved, failed, elapsed)
	})
}

// EmitReconcileCompleted emits a reconcile pass summary.
func (r *Registry) EmitReconcileCompleted(ctx context.Context, report capability.ReconcileReport) {
	emit(ctx, r, "OnReconcileCompleted", snapshot(r, &r.onReconcileCompleted), func(p OnReconcileCompleted) error {
		return p.OnReconcileCompleted(ctx, report)
	})
}

func snapshot[T any](r *Registry, hooks *[]T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *hooks
}

func emit[T Plugin](ctx context.Context, r *Registry, hook string, plugins []T, call func(T) error) {
	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return call(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins must never block settlement.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
