package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig() *Config {
	return &Config{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastConfig(), nil, "flaky", func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 7, nil
	})
	if err != nil {
		t.Fatalf("Do error = %v", err)
	}
	if got != 7 || calls != 3 {
		t.Errorf("got %d after %d calls, want 7 after 3", got, calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	sentinel := errors.New("down")
	calls := 0
	_, err := Do(context.Background(), fastConfig(), nil, "down", func(context.Context) (struct{}, error) {
		calls++
		return struct{}{}, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("error = %v, want wrapped sentinel", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("permanent")
	cfg := fastConfig()
	cfg.ShouldRetry = func(err error) bool { return !errors.Is(err, permanent) }

	calls := 0
	_, err := Do(context.Background(), cfg, nil, "op", func(context.Context) (int, error) {
		calls++
		return 0, permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Errorf("err = %v after %d calls, want permanent after 1", err, calls)
	}
}

func TestDoHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, fastConfig(), nil, "op", func(context.Context) (int, error) {
		t.Fatal("fn called after cancel")
		return 0, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestBackoff(t *testing.T) {
	cfg := &Config{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, BackoffMultiplier: 2}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, time.Second},
	}
	for _, tt := range tests {
		if got := Backoff(tt.attempt, cfg); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
