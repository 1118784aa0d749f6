package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"igsync/pkg/config"
	errs "igsync/pkg/errors"
)

func TestTokenBucket(t *testing.T) {
	tb := NewTokenBucket(5, 200*time.Millisecond)

	for i := 0; i < 5; i++ {
		if !tb.Allow() {
			t.Errorf("Expected token %d to be available", i+1)
		}
	}

	if tb.Allow() {
		t.Error("Expected no more tokens to be available")
	}

	start := time.Now()
	if err := tb.Wait(context.Background()); err != nil {
		t.Errorf("Expected Wait to succeed after refill, got %v", err)
	}
	if waited := time.Since(start); waited > 150*time.Millisecond {
		t.Errorf("Expected a single token to refill in about 40ms, waited %v", waited)
	}

	tb.Reset()
	if got := tb.Available(); got != 5 {
		t.Errorf("Expected 5 tokens after reset, got %d", got)
	}
}

func TestTokenBucketWaitHonorsContext(t *testing.T) {
	tb := NewTokenBucket(1, time.Hour)
	tb.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := tb.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestSlidingWindow(t *testing.T) {
	sw := NewSlidingWindow(3, 200*time.Millisecond)

	for i := 0; i < 3; i++ {
		if !sw.Allow() {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
	}
	if sw.Allow() {
		t.Error("Expected 4th request to be denied")
	}

	start := time.Now()
	if err := sw.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if time.Since(start) < 100*time.Millisecond {
		t.Error("Expected Wait to block until the window slid")
	}

	sw.Reset()
	if !sw.Allow() {
		t.Error("Expected request to be allowed after reset")
	}
}

func TestRandomDelayRange(t *testing.T) {
	rd := NewRandomDelay(2*time.Second, 7*time.Second, time.Second)
	for i := 0; i < 100; i++ {
		d := rd.Next()
		if d < 2*time.Second || d >= 8*time.Second {
			t.Fatalf("delay %v outside [2s, 8s)", d)
		}
	}
}

func TestRandomDelayUsesSleep(t *testing.T) {
	var slept []time.Duration
	rd := NewRandomDelay(time.Second, time.Second, 0)
	rd.Sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	for i := 0; i < 3; i++ {
		if err := rd.Pace(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if len(slept) != 3 || slept[0] != time.Second {
		t.Errorf("unexpected sleeps: %v", slept)
	}
}

func TestAdaptiveBacksOffOnRateLimit(t *testing.T) {
	var slept []time.Duration
	base := NewRandomDelay(time.Second, time.Second, 0)
	base.Sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	a := NewAdaptive(base, 4)

	a.Observe(&errs.Error{Type: errs.ErrorTypeRateLimit})
	a.Observe(&errs.Error{Type: errs.ErrorTypeRateLimit})
	a.Observe(&errs.Error{Type: errs.ErrorTypeRateLimit})
	if f := a.Factor(); f != 4 {
		t.Errorf("Expected factor capped at 4, got %v", f)
	}

	_ = a.Pace(context.Background())
	if slept[0] != 4*time.Second {
		t.Errorf("Expected 4s pace, got %v", slept[0])
	}

	a.Observe(nil)
	if f := a.Factor(); f != 2 {
		t.Errorf("Expected factor to decay to 2, got %v", f)
	}

	a.Observe(errs.NotFound("x"))
	if f := a.Factor(); f != 2 {
		t.Errorf("Non rate-limit failures must not change the factor, got %v", f)
	}
}

func TestNewSelectsPolicy(t *testing.T) {
	base := config.DefaultConfig().Pacing

	disabled := base
	disabled.Enabled = false
	if _, ok := New(disabled).(Disabled); !ok {
		t.Error("Expected Disabled when pacing is switched off")
	}

	if _, ok := New(base).(*RandomDelay); !ok {
		t.Error("Expected RandomDelay for the default policy")
	}

	adaptive := base
	adaptive.Policy = config.PacingAdaptive
	if _, ok := New(adaptive).(*Adaptive); !ok {
		t.Error("Expected Adaptive pacer")
	}

	tb := base
	tb.Policy = config.PacingTokenBucket
	if _, ok := New(tb).(*limiterPacer); !ok {
		t.Error("Expected limiter-backed pacer for token_bucket")
	}
}
