package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/NIMOLA/hermeos-backend-sub002/observability"
)

func workerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the recovery and reconcile workers",
		Long: `Worker starts the background recovery and capability reconcile
loops and serves /metrics and /healthz until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, runWorker)
		},
	}
	return cmd
}

// runWorker blocks until a signal arrives. Start migrates the store first.
func runWorker(ctx context.Context, a *app) error {
	shutdownTracing, err := observability.InitTracing(ctx, a.log, a.cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			a.log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	if err := a.engine.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := a.engine.Stop(); err != nil {
			a.log.Warn("engine stop failed", "error", err)
		}
		a.dropStoreCloser()
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := a.store.Ping(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	serveErr := make(chan error, 1)
	go func() {
		a.log.Info("worker listening", "addr", server.Addr, "driver", a.cfg.Store.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-sigChan:
		a.log.Info("shutdown signal received")
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
