// Package config loads settlementctl configuration from defaults, an
// optional .env file, an optional YAML file and HERMEOS_* environment
// variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	settlement "github.com/NIMOLA/hermeos-backend-sub002"
	"github.com/NIMOLA/hermeos-backend-sub002/observability"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// Config aggregates application configuration values.
type Config struct {
	Log     LogConfig                   `yaml:"log"`
	Store   StoreConfig                 `yaml:"store"`
	Redis   RedisConfig                 `yaml:"redis"`
	Tracing observability.TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig               `yaml:"metrics"`
	Engine  EngineConfig                `yaml:"engine"`
}

// LogConfig controls structured logging settings.
type LogConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"` // text|json
	IncludeCaller bool   `yaml:"include_caller"`
}

// StoreConfig selects and addresses the persistence backend. DSN is a
// connection string for postgres, a file path for sqlite and a URI for
// mongo.
type StoreConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Database string `yaml:"database"`
}

// RedisConfig enables the shared read cache when URL is set.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// MetricsConfig governs the worker's HTTP endpoint.
type MetricsConfig struct {
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
}

// EngineConfig mirrors the engine's tunables.
type EngineConfig struct {
	RecoveryInterval     time.Duration `yaml:"recovery_interval"`
	StaleAfter           time.Duration `yaml:"stale_after"`
	ReconcileInterval    time.Duration `yaml:"reconcile_interval"`
	ReconcileConcurrency int           `yaml:"reconcile_concurrency"`
	CoreTimeout          time.Duration `yaml:"core_timeout"`
	CacheTTL             time.Duration `yaml:"cache_ttl"`
	VerifyAmounts        bool          `yaml:"verify_amounts"`
}

// Options converts the tunables to engine options.
func (c EngineConfig) Options() []settlement.Option {
	return []settlement.Option{
		settlement.WithRecovery(c.RecoveryInterval, c.StaleAfter),
		settlement.WithReconcileInterval(c.ReconcileInterval),
		settlement.WithReconcileConcurrency(c.ReconcileConcurrency),
		settlement.WithCoreTimeout(c.CoreTimeout),
		settlement.WithCacheTTL(c.CacheTTL),
		settlement.WithAmountVerification(c.VerifyAmounts),
	}
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Log:   LogConfig{Level: "info", Format: "text"},
		Store: StoreConfig{Driver: DriverMemory, Database: "hermeos"},
		Tracing: observability.TracingConfig{
			ServiceName: "hermeos-settlement",
			Environment: "development",
		},
		Metrics: MetricsConfig{Addr: ":9090", Namespace: "hermeos"},
		Engine: EngineConfig{
			RecoveryInterval:     settlement.DefaultRecoveryInterval,
			StaleAfter:           settlement.DefaultStaleAfter,
			ReconcileConcurrency: settlement.DefaultReconcileConcurrency,
			CoreTimeout:          settlement.DefaultCoreTimeout,
			CacheTTL:             settlement.DefaultCacheTTL,
		},
	}
}

// Load builds the configuration. path names an optional YAML file; envFile
// names an optional dotenv file whose values never replace variables that
// are already set.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite, DriverMongo:
		if c.Store.DSN == "" {
			return fmt.Errorf("config: store.dsn is required for driver %q", c.Store.Driver)
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Engine.StaleAfter <= 0 {
		return errors.New("config: engine.stale_after must be positive")
	}
	if c.Engine.ReconcileConcurrency < 0 {
		return errors.New("config: engine.reconcile_concurrency must not be negative")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Log.Level, "HERMEOS_LOG_LEVEL")
	setString(&cfg.Log.Format, "HERMEOS_LOG_FORMAT")
	setString(&cfg.Store.Driver, "HERMEOS_STORE_DRIVER")
	setString(&cfg.Store.DSN, "HERMEOS_STORE_DSN")
	setString(&cfg.Store.Database, "HERMEOS_STORE_DATABASE")
	setString(&cfg.Redis.URL, "HERMEOS_REDIS_URL")
	setString(&cfg.Tracing.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.Tracing.Endpoint, "HERMEOS_OTLP_ENDPOINT")
	setString(&cfg.Tracing.Environment, "HERMEOS_ENVIRONMENT")
	setString(&cfg.Metrics.Addr, "HERMEOS_METRICS_ADDR")

	durations := []struct {
		dst *time.Duration
		key string
	}{
		{&cfg.Engine.RecoveryInterval, "HERMEOS_RECOVERY_INTERVAL"},
		{&cfg.Engine.StaleAfter, "HERMEOS_STALE_AFTER"},
		{&cfg.Engine.ReconcileInterval, "HERMEOS_RECONCILE_INTERVAL"},
		{&cfg.Engine.CoreTimeout, "HERMEOS_CORE_TIMEOUT"},
		{&cfg.Engine.CacheTTL, "HERMEOS_CACHE_TTL"},
	}
	for _, d := range durations {
		if v := os.Getenv(d.key); v != "" {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("config: invalid %s: %w", d.key, err)
			}
			*d.dst = parsed
		}
	}

	if v := os.Getenv("HERMEOS_RECONCILE_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid HERMEOS_RECONCILE_CONCURRENCY: %w", err)
		}
		cfg.Engine.ReconcileConcurrency = n
	}
	if v := os.Getenv("HERMEOS_VERIFY_AMOUNTS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid HERMEOS_VERIFY_AMOUNTS: %w", err)
		}
		cfg.Engine.VerifyAmounts = b
	}
	if v := os.Getenv("HERMEOS_OTLP_INSECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid HERMEOS_OTLP_INSECURE: %w", err)
		}
		cfg.Tracing.Insecure = b
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}
