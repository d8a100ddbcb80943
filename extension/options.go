package extension

import (
	"time"

	"github.com/xraph/grove"

	settlement "github.com/NIMOLA/hermeos-backend-sub002"
	"github.com/NIMOLA/hermeos-backend-sub002/plugin"
	"github.com/NIMOLA/hermeos-backend-sub002/store"
)

// Option configures the settlement Forge extension.
type Option func(*Extension)

// WithStore sets the store for the settlement engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGroveDB builds the store on an open grove database. The backend is
// picked from the grove driver (pg, sqlite or mongo). WithStore wins when
// both are given.
func WithGroveDB(db *grove.DB) Option {
	return func(e *Extension) {
		e.groveDB = db
	}
}

// WithEngineOption passes a settlement.Option through to the underlying engine.
func WithEngineOption(opt settlement.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a settlement plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, settlement.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableStart prevents migration and background workers on start.
func WithDisableStart() Option {
	return func(e *Extension) { e.config.DisableStart = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithRecovery sets the recovery interval and staleness threshold.
func WithRecovery(interval, staleAfter time.Duration) Option {
	return func(e *Extension) {
		e.config.RecoveryInterval = interval
		e.config.StaleAfter = staleAfter
	}
}

// WithReconcileInterval schedules the capability reconcile pass.
func WithReconcileInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.ReconcileInterval = d }
}

// WithVerifyAmounts enables amount verification.
func WithVerifyAmounts() Option {
	return func(e *Extension) { e.config.VerifyAmounts = true }
}
