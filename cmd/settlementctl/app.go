package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	settlement "github.com/NIMOLA/hermeos-backend-sub002"
	audithook "github.com/NIMOLA/hermeos-backend-sub002/audit_hook"
	"github.com/NIMOLA/hermeos-backend-sub002/cache/redis"
	"github.com/NIMOLA/hermeos-backend-sub002/config"
	"github.com/NIMOLA/hermeos-backend-sub002/observability"
	"github.com/NIMOLA/hermeos-backend-sub002/store"
	"github.com/NIMOLA/hermeos-backend-sub002/store/memory"
	"github.com/NIMOLA/hermeos-backend-sub002/store/mongo"
	"github.com/NIMOLA/hermeos-backend-sub002/store/postgres"
	"github.com/NIMOLA/hermeos-backend-sub002/store/sqlite"
)

// app bundles everything a command needs. close releases it in reverse
// order of acquisition.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	store   store.Store
	engine  *settlement.Engine
	metrics *observability.PrometheusFactory
	closers []func() error

	// storeCloser indexes the store's entry in closers.
	storeCloser int
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")
	return config.Load(path, envFile)
}

// newApp loads configuration, opens the store and builds the engine.
func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		log:     config.NewLogger(cfg.Log, os.Stderr),
		metrics: observability.NewPrometheusFactory(cfg.Metrics.Namespace, nil),
	}

	s, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	a.store = s
	a.storeCloser = len(a.closers)
	a.closers = append(a.closers, s.Close)

	opts := append(cfg.Engine.Options(),
		settlement.WithLogger(a.log),
		settlement.WithPlugin(audithook.New(
			audithook.NewSlogRecorder(a.log.With("component", "audit")),
			audithook.WithLogger(a.log),
		)),
		settlement.WithPlugin(observability.NewMetricsExtension(a.metrics)),
	)

	if cfg.Redis.URL != "" {
		c, err := redis.New(ctx, cfg.Redis.URL)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, c.Close)
		opts = append(opts, settlement.WithCache(c))
	}

	a.engine = settlement.New(s, opts...)
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

// dropStoreCloser is called once Engine.Stop has closed the store itself.
func (a *app) dropStoreCloser() {
	if a.storeCloser < len(a.closers) {
		a.closers[a.storeCloser] = func() error { return nil }
	}
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.DSN)
	case config.DriverSQLite:
		return sqlite.Open(ctx, cfg.DSN)
	case config.DriverMongo:
		return mongo.Open(ctx, cfg.DSN, cfg.Database)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// withApp runs fn against a fresh app and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitCode maps rejections to a distinct status so scripts can tell a
// business outcome from an operational failure.
type exitCode struct {
	code int
	err  error
}

func (e *exitCode) Error() string { return e.err.Error() }
func (e *exitCode) Unwrap() error { return e.err }

func rejected(err error) error {
	if settlement.IsRejection(err) {
		return &exitCode{code: 2, err: err}
	}
	return err
}

func codeOf(err error) int {
	var ec *exitCode
	if errors.As(err, &ec) {
		return ec.code
	}
	return 1
}
