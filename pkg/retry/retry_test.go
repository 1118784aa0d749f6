package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"igsync/pkg/config"
	errs "igsync/pkg/errors"
	"igsync/pkg/logger"
)

// recordingSleep returns a Sleep func that records delays without blocking.
func recordingSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt     int
		expected    time.Duration
		description string
	}{
		{1, 100 * time.Millisecond, "First attempt"},
		{2, 200 * time.Millisecond, "Second attempt"},
		{3, 400 * time.Millisecond, "Third attempt"},
		{4, 800 * time.Millisecond, "Fourth attempt"},
		{5, 1 * time.Second, "Fifth attempt (capped at max)"},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			delay := backoff.NextDelay(test.attempt)
			if delay != test.expected {
				t.Errorf("Expected delay %v, got %v", test.expected, delay)
			}
		})
	}
}

func TestDefaultBackoffSchedule(t *testing.T) {
	backoff := DefaultExponentialBackoff()

	for i := 0; i < 20; i++ {
		first := backoff.NextDelay(1)
		second := backoff.NextDelay(2)

		if first < 6*time.Second || first >= 8*time.Second {
			t.Errorf("first delay %v outside [6s, 8s)", first)
		}
		if second < 11*time.Second || second >= 13*time.Second {
			t.Errorf("second delay %v outside [11s, 13s)", second)
		}
		if second < first {
			t.Errorf("delays must not decrease: %v then %v", first, second)
		}
	}
}

func TestRetryWithSuccess(t *testing.T) {
	attempts := 0
	op := func() error {
		attempts++
		if attempts < 3 {
			return errs.Network(errors.New("connection reset"), "fetch profile")
		}
		return nil
	}

	var delays []time.Duration
	cfg := &Config{
		MaxAttempts: 3,
		Backoff:     DefaultExponentialBackoff(),
		Sleep:       recordingSleep(&delays),
		Context:     context.Background(),
	}

	if err := Do(op, cfg); err != nil {
		t.Fatalf("Expected success, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if len(delays) != 2 {
		t.Fatalf("Expected 2 waits, got %d", len(delays))
	}
	if delays[1] < delays[0] {
		t.Errorf("Expected non-decreasing delays, got %v", delays)
	}
}

func TestRetryReturnsLastErrorUnchanged(t *testing.T) {
	attempts := 0
	last := errs.Network(errors.New("timeout"), "attempt 3")
	op := func() error {
		attempts++
		if attempts == 3 {
			return last
		}
		return errs.Network(errors.New("timeout"), "earlier attempt")
	}

	var delays []time.Duration
	cfg := &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: 10 * time.Millisecond},
		Sleep:       recordingSleep(&delays),
	}

	err := Do(op, cfg)
	if err != last {
		t.Fatalf("Expected the final error unchanged, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected exactly 3 attempts, got %d", attempts)
	}
	if len(delays) != 2 {
		t.Errorf("Expected 2 waits, got %d", len(delays))
	}
}

func TestRetryWithNonRetryableError(t *testing.T) {
	attempts := 0
	op := func() error {
		attempts++
		return errs.NotFound("user does not exist")
	}

	var delays []time.Duration
	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: 10 * time.Millisecond},
		Sleep:       recordingSleep(&delays),
	}

	err := Do(op, cfg)
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("Expected not found error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for non-retryable error, got %d", attempts)
	}
	if len(delays) != 0 {
		t.Errorf("Expected no waits, got %v", delays)
	}
}

func TestRetryAllIgnoresClassification(t *testing.T) {
	attempts := 0
	err := Do(func() error {
		attempts++
		return errs.NotFound("gone")
	}, &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{},
		RetryIf:     RetryAll,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	})

	if err == nil || attempts != 3 {
		t.Errorf("Expected 3 attempts and an error, got %d attempts, err=%v", attempts, err)
	}
}

func TestRetryWithContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	op := func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("temporary error")
	}

	cfg := &Config{
		MaxAttempts: 10,
		Backoff:     &ConstantBackoff{Delay: 50 * time.Millisecond},
		Context:     ctx,
	}

	err := Do(op, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}

func TestErrorTypeBackoff(t *testing.T) {
	etb := NewErrorTypeBackoff(&ExponentialBackoff{BaseDelay: time.Second, Multiplier: 2}, 30*time.Second)

	if d := etb.NextDelayFor(1, errs.Network(nil, "x")); d != time.Second {
		t.Errorf("Expected network delay 1s, got %v", d)
	}
	if d := etb.NextDelayFor(1, &errs.Error{Type: errs.ErrorTypeRateLimit}); d != 30*time.Second {
		t.Errorf("Expected rate limit delay 30s, got %v", d)
	}
	if d := etb.NextDelayFor(2, &errs.Error{Type: errs.ErrorTypeRateLimit}); d != 60*time.Second {
		t.Errorf("Expected second rate limit delay 60s, got %v", d)
	}
}

func TestRetryLogsEachWait(t *testing.T) {
	log := logger.NewTestLogger()
	attempts := 0

	err := Do(func() error {
		attempts++
		if attempts < 3 {
			return errors.New("flaky")
		}
		return nil
	}, &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Second},
		Sleep:       func(context.Context, time.Duration) error { return nil },
		Logger:      log,
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	warnings := log.GetMessagesByLevel("WARN")
	if len(warnings) != 2 {
		t.Fatalf("Expected 2 retry warnings, got %d", len(warnings))
	}
	if warnings[0].Fields["attempt"] != 1 || warnings[1].Fields["delay_ms"] != int64(1000) {
		t.Errorf("unexpected retry fields: %+v", warnings)
	}
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	op := func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("temporary error")
		}
		return "success", nil
	}

	cfg := &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: 10 * time.Millisecond},
		Context:     context.Background(),
	}

	result, err := DoWithResult(op, cfg)
	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}
	if result != "success" {
		t.Errorf("Expected result 'success', got '%s'", result)
	}
}

func TestFromSettings(t *testing.T) {
	rc := config.RetryConfig{MaxRetries: 5, BaseDelay: time.Second, RateLimitBaseDelay: 10 * time.Second, JitterMin: time.Second, JitterMax: 3 * time.Second}
	cfg := FromSettings(rc, logger.NewNopLogger())

	if cfg.MaxAttempts != 5 {
		t.Errorf("Expected 5 attempts, got %d", cfg.MaxAttempts)
	}
	etb, ok := cfg.Backoff.(*ErrorTypeBackoff)
	if !ok {
		t.Fatalf("Expected *ErrorTypeBackoff, got %T", cfg.Backoff)
	}

	if d := etb.NextDelayFor(1, errs.New(errs.ErrorTypeNetwork, "reset")); d < 2*time.Second || d >= 4*time.Second {
		t.Errorf("network delay %v outside [2s, 4s)", d)
	}
	if d := etb.NextDelayFor(1, errs.New(errs.ErrorTypeRateLimit, "429")); d < 11*time.Second {
		t.Errorf("rate limit delay %v below 11s", d)
	}
}
