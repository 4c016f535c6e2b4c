package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	return New(rdb, cfg), mr, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func TestLoginLimiterAllowsWithinBudget(t *testing.T) {
	l, _, done := newTestLimiter(t, Config{
		MaxLoginAttempts:      3,
		LoginCooldownDuration: time.Minute,
	})
	defer done()

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckLogin(ctx, "alice@example.com", ""); err != nil {
			t.Fatalf("attempt %d: unexpected check error %v", i, err)
		}
		if err := l.IncrementLogin(ctx, "alice@example.com", ""); err != nil {
			t.Fatalf("attempt %d: unexpected increment error %v", i, err)
		}
	}

	// Budget exhausted: one more increment trips the limit.
	if err := l.IncrementLogin(ctx, "alice@example.com", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckLogin(ctx, "alice@example.com", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on check, got %v", err)
	}
}

func TestLoginLimiterResetClearsCounter(t *testing.T) {
	l, _, done := newTestLimiter(t, Config{
		MaxLoginAttempts:      2,
		LoginCooldownDuration: time.Minute,
	})
	defer done()

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = l.IncrementLogin(ctx, "alice@example.com", "")
	}
	if err := l.CheckLogin(ctx, "alice@example.com", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	if err := l.ResetLogin(ctx, "alice@example.com", ""); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if err := l.CheckLogin(ctx, "alice@example.com", ""); err != nil {
		t.Fatalf("expected clean slate after reset, got %v", err)
	}

	n, err := l.GetLoginAttempts(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetLoginAttempts failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 attempts after reset, got %d", n)
	}
}

func TestLoginLimiterWindowExpires(t *testing.T) {
	l, mr, done := newTestLimiter(t, Config{
		MaxLoginAttempts:      1,
		LoginCooldownDuration: time.Minute,
	})
	defer done()

	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "alice@example.com", "")
	if err := l.IncrementLogin(ctx, "alice@example.com", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if err := l.CheckLogin(ctx, "alice@example.com", ""); err != nil {
		t.Fatalf("expected window to expire, got %v", err)
	}
}

func TestIPThrottleCountsPerAddress(t *testing.T) {
	l, _, done := newTestLimiter(t, Config{
		EnableIPThrottle:      true,
		MaxLoginAttempts:      2,
		LoginCooldownDuration: time.Minute,
	})
	defer done()

	ctx := context.Background()

	// Different emails, same address: the IP counter still accumulates.
	for i := 0; i < 3; i++ {
		_ = l.IncrementLogin(ctx, "victim-a@example.com", "203.0.113.9")
	}
	if err := l.CheckLogin(ctx, "victim-b@example.com", "203.0.113.9"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP throttle to trip, got %v", err)
	}

	// A different address is unaffected.
	if err := l.CheckLogin(ctx, "victim-b@example.com", "198.51.100.7"); err != nil {
		t.Fatalf("expected clean address to pass, got %v", err)
	}
}

func TestRefreshThrottleDisabledIsNoOp(t *testing.T) {
	l, _, done := newTestLimiter(t, Config{})
	defer done()

	for i := 0; i < 50; i++ {
		if err := l.CheckRefresh(context.Background(), "tok"); err != nil {
			t.Fatalf("expected no-op when disabled, got %v", err)
		}
	}
}

func TestRefreshThrottleLimitsPerToken(t *testing.T) {
	l, _, done := newTestLimiter(t, Config{
		EnableRefreshThrottle:   true,
		MaxRefreshAttempts:      2,
		RefreshCooldownDuration: time.Minute,
	})
	defer done()

	ctx := context.Background()

	if err := l.CheckRefresh(ctx, "tok-a"); err != nil {
		t.Fatalf("first attempt failed: %v", err)
	}
	if err := l.CheckRefresh(ctx, "tok-a"); err != nil {
		t.Fatalf("second attempt failed: %v", err)
	}
	if err := l.CheckRefresh(ctx, "tok-a"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	// Other tokens have independent budgets.
	if err := l.CheckRefresh(ctx, "tok-b"); err != nil {
		t.Fatalf("independent token failed: %v", err)
	}
}

func TestLimiterRedisOutageSurfacesUnavailable(t *testing.T) {
	l, mr, done := newTestLimiter(t, Config{
		MaxLoginAttempts:      2,
		LoginCooldownDuration: time.Minute,
	})
	defer done()

	mr.Close()

	if err := l.IncrementLogin(context.Background(), "alice@example.com", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
