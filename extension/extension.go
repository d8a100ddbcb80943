// Package extension provides the Forge extension adapter for the
// settlement engine.
//
// It implements the forge.Extension interface to integrate the engine into
// a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions or
// via YAML configuration files under "extensions.settlement" or
// "settlement" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	settlement "github.com/NIMOLA/hermeos-backend-sub002"
	"github.com/NIMOLA/hermeos-backend-sub002/store"
	"github.com/NIMOLA/hermeos-backend-sub002/store/memory"
	"github.com/NIMOLA/hermeos-backend-sub002/store/mongo"
	"github.com/NIMOLA/hermeos-backend-sub002/store/postgres"
	"github.com/NIMOLA/hermeos-backend-sub002/store/sqlite"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "settlement"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Fractional real estate settlement engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the settlement engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *settlement.Engine
	store      store.Store
	groveDB    *grove.DB
	engineOpts []settlement.Option
}

// New creates a new settlement Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *settlement.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil && e.groveDB != nil {
		s, err := storeFor(e.groveDB)
		if err != nil {
			return err
		}
		e.store = s
	}
	if e.store == nil {
		e.store = memory.New()
	}

	e.engine = settlement.New(e.store, e.buildEngineOpts()...)

	return vessel.Provide(fapp.Container(), func() (*settlement.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("settlement: extension not initialized")
	}

	if !e.config.DisableStart {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	defer e.MarkStopped()
	if e.engine != nil {
		return e.engine.Stop()
	}
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("settlement: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs engine options from the resolved config.
// Pass-through options come last so they win.
func (e *Extension) buildEngineOpts() []settlement.Option {
	opts := []settlement.Option{
		settlement.WithRecovery(e.config.RecoveryInterval, e.config.StaleAfter),
		settlement.WithReconcileInterval(e.config.ReconcileInterval),
		settlement.WithReconcileConcurrency(e.config.ReconcileConcurrency),
		settlement.WithCoreTimeout(e.config.CoreTimeout),
		settlement.WithCacheTTL(e.config.CacheTTL),
		settlement.WithAmountVerification(e.config.VerifyAmounts),
	}
	return append(opts, e.engineOpts...)
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("settlement: configuration is required but not found in config files; " +
				"ensure 'extensions.settlement' or 'settlement' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("settlement: configuration loaded",
		forge.F("disable_start", e.config.DisableStart),
		forge.F("recovery_interval", e.config.RecoveryInterval),
		forge.F("stale_after", e.config.StaleAfter),
		forge.F("reconcile_interval", e.config.ReconcileInterval),
		forge.F("verify_amounts", e.config.VerifyAmounts),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.settlement", "settlement"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("settlement: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("settlement: loaded config from file", forge.F("key", key))
		return cfg, true
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.RecoveryInterval == 0 {
		cfg.RecoveryInterval = defaults.RecoveryInterval
	}
	if cfg.StaleAfter == 0 {
		cfg.StaleAfter = defaults.StaleAfter
	}
	if cfg.ReconcileConcurrency == 0 {
		cfg.ReconcileConcurrency = defaults.ReconcileConcurrency
	}
	if cfg.CoreTimeout == 0 {
		cfg.CoreTimeout = defaults.CoreTimeout
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = defaults.CacheTTL
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableStart {
		yamlConfig.DisableStart = true
	}
	if programmaticConfig.VerifyAmounts {
		yamlConfig.VerifyAmounts = true
	}

	if yamlConfig.RecoveryInterval == 0 {
		yamlConfig.RecoveryInterval = programmaticConfig.RecoveryInterval
	}
	if yamlConfig.StaleAfter == 0 {
		yamlConfig.StaleAfter = programmaticConfig.StaleAfter
	}
	if yamlConfig.ReconcileInterval == 0 {
		yamlConfig.ReconcileInterval = programmaticConfig.ReconcileInterval
	}
	if yamlConfig.ReconcileConcurrency == 0 {
		yamlConfig.ReconcileConcurrency = programmaticConfig.ReconcileConcurrency
	}
	if yamlConfig.CoreTimeout == 0 {
		yamlConfig.CoreTimeout = programmaticConfig.CoreTimeout
	}
	if yamlConfig.CacheTTL == 0 {
		yamlConfig.CacheTTL = programmaticConfig.CacheTTL
	}

	return mergeWithDefaults(yamlConfig)
}

// storeFor picks the store backend matching the grove driver behind db.
func storeFor(db *grove.DB) (store.Store, error) {
	switch name := db.Driver().Name(); name {
	case "pg":
		return postgres.New(db), nil
	case "sqlite":
		return sqlite.New(db), nil
	case "mongo":
		return mongo.New(db), nil
	default:
		return nil, fmt.Errorf("settlement: no store for grove driver %q", name)
	}
}
