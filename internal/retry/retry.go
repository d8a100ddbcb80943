// Package retry runs an operation with exponential backoff.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Config holds retry strategy configuration.
type Config struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64

	// ShouldRetry decides whether err is worth another attempt. Nil retries
	// every error.
	ShouldRetry func(err error) bool
}

// DefaultConfig returns the defaults used by the engine.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Retryable is a function that can be retried.
type Retryable[T any] func(ctx context.Context) (T, error)

// Do executes fn until it succeeds, returns a non-retryable error, runs out
// of attempts or ctx is done.
func Do[T any](ctx context.Context, cfg *Config, log *slog.Logger, op string, fn Retryable[T]) (T, error) {
	var zero T
	var lastErr error

	if cfg == nil {
		cfg = DefaultConfig()
	}
	attempts := max(cfg.MaxAttempts, 1)

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if cfg.ShouldRetry != nil && !cfg.ShouldRetry(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		backoff := Backoff(attempt-1, cfg)
		if log != nil {
			log.Warn("operation failed, retrying",
				slog.String("operation", op),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", attempts),
				slog.Duration("backoff", backoff),
				slog.String("error", err.Error()),
			)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, fmt.Errorf("operation '%s' failed after %d attempts: %w", op, attempts, lastErr)
}

// Backoff returns the delay before retry number attemptNum (0-based).
func Backoff(attemptNum int, cfg *Config) time.Duration {
	mult := cfg.BackoffMultiplier
	if mult < 1 {
		mult = 1
	}
	backoff := time.Duration(float64(cfg.InitialBackoff) * math.Pow(mult, float64(attemptNum)))
	if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
		backoff = cfg.MaxBackoff
	}
	return backoff
}
