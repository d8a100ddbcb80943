package extension

import (
	"time"

	settlement "github.com/NIMOLA/hermeos-backend-sub002"
)

// Config holds the settlement extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.settlement" or "settlement" keys).
type Config struct {
	// DisableStart prevents migration and background workers on start.
	DisableStart bool `json:"disable_start" mapstructure:"disable_start" yaml:"disable_start"`

	// RecoveryInterval is how often stale settlements are re-driven
	// (default: 1m). Start always runs one pass.
	RecoveryInterval time.Duration `json:"recovery_interval" mapstructure:"recovery_interval" yaml:"recovery_interval"`

	// StaleAfter is how long a pending or settling entry may sit untouched
	// before recovery picks it up (default: 2m).
	StaleAfter time.Duration `json:"stale_after" mapstructure:"stale_after" yaml:"stale_after"`

	// ReconcileInterval schedules the capability reconcile pass. Zero
	// disables it.
	ReconcileInterval time.Duration `json:"reconcile_interval" mapstructure:"reconcile_interval" yaml:"reconcile_interval"`

	// ReconcileConcurrency bounds parallel per-user reconciles (default: 8).
	ReconcileConcurrency int `json:"reconcile_concurrency" mapstructure:"reconcile_concurrency" yaml:"reconcile_concurrency"`

	// CoreTimeout bounds one settlement's transactional core (default: 30s).
	CoreTimeout time.Duration `json:"core_timeout" mapstructure:"core_timeout" yaml:"core_timeout"`

	// CacheTTL controls how long cached tiers and availability live when a
	// cache is configured (default: 30s).
	CacheTTL time.Duration `json:"cache_ttl" mapstructure:"cache_ttl" yaml:"cache_ttl"`

	// VerifyAmounts rejects settlements whose amount is not units × price.
	VerifyAmounts bool `json:"verify_amounts" mapstructure:"verify_amounts" yaml:"verify_amounts"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RecoveryInterval:     settlement.DefaultRecoveryInterval,
		StaleAfter:           settlement.DefaultStaleAfter,
		ReconcileConcurrency: settlement.DefaultReconcileConcurrency,
		CoreTimeout:          settlement.DefaultCoreTimeout,
		CacheTTL:             settlement.DefaultCacheTTL,
	}
}
