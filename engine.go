package settlement

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/NIMOLA/hermeos-backend-sub002/cache"
	"github.com/NIMOLA/hermeos-backend-sub002/capability"
	"github.com/NIMOLA/hermeos-backend-sub002/id"
	"github.com/NIMOLA/hermeos-backend-sub002/internal/retry"
	"github.com/NIMOLA/hermeos-backend-sub002/plugin"
	"github.com/NIMOLA/hermeos-backend-sub002/store"
)

// TracerName is the instrumentation name used for engine spans.
const TracerName = "github.com/NIMOLA/hermeos-backend-sub002"

// Defaults for engine configuration.
const (
	DefaultCoreTimeout          = 30 * time.Second
	DefaultRecoveryInterval     = time.Minute
	DefaultStaleAfter           = 2 * time.Minute
	DefaultRecoveryBatch        = 100
	DefaultReconcileConcurrency = 8
	DefaultReconcileBatch       = 500
	DefaultCacheTTL             = 30 * time.Second
)

// Engine is the settlement engine. It owns the transactional core that turns
// a confirmed payment into an ownership grant, and the background workers
// that recover stalled settlements and reconcile capabilities.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	tracer  trace.Tracer
	cache   cache.Cache
	catalog capability.Catalog
	retry   *retry.Config

	// Background workers
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Configuration
	coreTimeout          time.Duration
	cacheTTL             time.Duration
	verifyAmount         bool
	recoveryInterval     time.Duration
	staleAfter           time.Duration
	recoveryBatch        int
	reconcileInterval    time.Duration
	reconcileConcurrency int
	reconcileBatch       int
}

// New creates a new Engine over s.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:                s,
		plugins:              plugin.NewRegistry(),
		logger:               slog.Default(),
		tracer:               otel.Tracer(TracerName),
		catalog:              capability.DefaultCatalog(),
		retry:                retry.DefaultConfig(),
		stopChan:             make(chan struct{}),
		coreTimeout:          DefaultCoreTimeout,
		cacheTTL:             DefaultCacheTTL,
		recoveryInterval:     DefaultRecoveryInterval,
		staleAfter:           DefaultStaleAfter,
		recoveryBatch:        DefaultRecoveryBatch,
		reconcileConcurrency: DefaultReconcileConcurrency,
		reconcileBatch:       DefaultReconcileBatch,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithCache enables read-through caching of tiers and available units.
func WithCache(c cache.Cache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithCacheTTL sets how long cached reads live.
func WithCacheTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.cacheTTL = ttl
	}
}

// WithTracer replaces the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithRecovery configures the stale-settlement recovery worker. Entries in
// pending or settling untouched for staleAfter are re-driven every interval.
// An interval of zero disables the periodic worker; Start still runs one pass.
func WithRecovery(interval, staleAfter time.Duration) Option {
	return func(e *Engine) {
		e.recoveryInterval = interval
		if staleAfter > 0 {
			e.staleAfter = staleAfter
		}
	}
}

// WithReconcileInterval schedules ReconcileCapabilities. Zero disables it.
func WithReconcileInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.reconcileInterval = d
	}
}

// WithReconcileConcurrency bounds how many users reconcile in parallel.
func WithReconcileConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.reconcileConcurrency = n
		}
	}
}

// WithCoreTimeout bounds the transactional core of one settlement. The
// bound applies independently of the caller's context.
func WithCoreTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.coreTimeout = d
		}
	}
}

// WithCapabilityCatalog replaces the default capability catalog.
func WithCapabilityCatalog(c capability.Catalog) Option {
	return func(e *Engine) {
		e.catalog = c
	}
}

// WithAmountVerification rejects settlements whose amount differs from
// units × the property's price per unit.
func WithAmountVerification(enabled bool) Option {
	return func(e *Engine) {
		e.verifyAmount = enabled
	}
}

// WithRetry sets the backoff used for the post-commit capability cascade.
func WithRetry(cfg *retry.Config) Option {
	return func(e *Engine) {
		if cfg != nil {
			e.retry = cfg
		}
	}
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Start migrates the store, resolves stale settlements left by a previous
// process and begins background workers.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	e.plugins.EmitInit(ctx, e)

	if report, err := e.RecoverStale(ctx); err != nil {
		e.logger.Error("startup recovery pass failed",
			"error", err,
			"resolved", report.Resolved,
		)
	}

	workerCtx := context.WithoutCancel(ctx)
	if e.recoveryInterval > 0 {
		e.wg.Add(1)
		go e.recoveryWorker(workerCtx)
	}
	if e.reconcileInterval > 0 {
		e.wg.Add(1)
		go e.reconcileWorker(workerCtx)
	}

	e.logger.Info("settlement engine started",
		"recovery_interval", e.recoveryInterval,
		"stale_after", e.staleAfter,
		"reconcile_interval", e.reconcileInterval,
		"core_timeout", e.coreTimeout,
	)

	return nil
}

// Stop shuts down the workers and closes the store.
func (e *Engine) Stop() error {
	e.stopOnce.Do(func() { close(e.stopChan) })
	e.wg.Wait()

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

func (e *Engine) recoveryWorker(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.recoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			if _, err := e.RecoverStale(ctx); err != nil {
				e.logger.Error("recovery pass failed", "error", err)
			}
		}
	}
}

func (e *Engine) reconcileWorker(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			if _, err := e.ReconcileCapabilities(ctx); err != nil {
				e.logger.Error("capability reconcile failed", "error", err)
			}
		}
	}
}

// invalidate drops cached reads. Failures only cost staleness up to the TTL.
// leaseTTL bounds how long an abandoned fill lease keeps a key uncached.
const leaseTTL = 5 * time.Second

// cached returns the cached value for key. Leases count as misses.
func (e *Engine) cached(ctx context.Context, key string) (string, bool) {
	if e.cache == nil {
		return "", false
	}
	v, err := e.cache.Get(ctx, key)
	if err != nil || cache.IsLease(v) {
		return "", false
	}
	return v, true
}

// lease claims key before a read-through loads it from the store. An
// invalidation in between deletes the lease and the later fill is dropped,
// so a value read before a commit is never cached after it. An empty lease
// means no cache or another reader already holds the key.
func (e *Engine) lease(ctx context.Context, key string) string {
	if e.cache == nil {
		return ""
	}
	token := cache.LeasePrefix + id.NewSettlementID().String()
	ok, err := e.cache.Add(ctx, key, token, leaseTTL)
	if err != nil {
		e.logger.Debug("cache lease failed", "key", key, "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return token
}

// fill caches value under key if lease is still in place.
func (e *Engine) fill(ctx context.Context, key, lease, value string) {
	if lease == "" {
		return
	}
	if _, err := e.cache.Swap(ctx, key, lease, value, e.cacheTTL); err != nil {
		e.logger.Debug("cache fill failed", "key", key, "error", err)
	}
}

func (e *Engine) invalidate(ctx context.Context, keys ...string) {
	if e.cache == nil || len(keys) == 0 {
		return
	}
	if err := e.cache.Delete(ctx, keys...); err != nil {
		e.logger.Warn("cache invalidation failed", "keys", keys, "error", err)
	}
}
