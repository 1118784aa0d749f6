package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	errs "igsync/pkg/errors"
)

// BackoffStrategy defines the interface for different backoff strategies
type BackoffStrategy interface {
	// NextDelay returns the delay to wait after the given failed attempt (1-based)
	NextDelay(attempt int) time.Duration
}

// ErrorAwareBackoff is implemented by strategies that pick a delay based on
// the failure that triggered the retry.
type ErrorAwareBackoff interface {
	BackoffStrategy
	NextDelayFor(attempt int, err error) time.Duration
}

// ExponentialBackoff waits BaseDelay * Multiplier^(attempt-1) plus an additive
// jitter drawn uniformly from [JitterMin, JitterMax).
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	JitterMin  time.Duration
	JitterMax  time.Duration
}

// DefaultExponentialBackoff returns the pipeline's default schedule: 5s base,
// doubling, with 1-3s of jitter.
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:  5 * time.Second,
		MaxDelay:   5 * time.Minute,
		Multiplier: 2.0,
		JitterMin:  1 * time.Second,
		JitterMax:  3 * time.Second,
	}
}

// NextDelay calculates the next delay with exponential backoff and jitter
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	multiplier := eb.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	delay := float64(eb.BaseDelay) * math.Pow(multiplier, float64(attempt-1))
	if eb.MaxDelay > 0 && delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	return time.Duration(delay) + jitter(eb.JitterMin, eb.JitterMax)
}

// ConstantBackoff implements constant delay backoff
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// ErrorTypeBackoff provides different backoff strategies based on error types
type ErrorTypeBackoff struct {
	// RateLimitBackoff for rate limit errors (typically longer delays)
	RateLimitBackoff BackoffStrategy
	// DefaultBackoff for other retryable errors
	DefaultBackoff BackoffStrategy
}

// NewErrorTypeBackoff builds a classified backoff whose rate-limit schedule
// starts at rateLimitBase instead of the default base.
func NewErrorTypeBackoff(def *ExponentialBackoff, rateLimitBase time.Duration) *ErrorTypeBackoff {
	if def == nil {
		def = DefaultExponentialBackoff()
	}
	rl := *def
	if rateLimitBase > 0 {
		rl.BaseDelay = rateLimitBase
	}
	return &ErrorTypeBackoff{
		RateLimitBackoff: &rl,
		DefaultBackoff:   def,
	}
}

// NextDelay uses the default strategy.
func (etb *ErrorTypeBackoff) NextDelay(attempt int) time.Duration {
	return etb.DefaultBackoff.NextDelay(attempt)
}

// NextDelayFor returns the delay for the strategy matching err's type.
func (etb *ErrorTypeBackoff) NextDelayFor(attempt int, err error) time.Duration {
	return etb.GetBackoffForError(errs.TypeOf(err)).NextDelay(attempt)
}

// GetBackoffForError returns the appropriate backoff strategy for the error type
func (etb *ErrorTypeBackoff) GetBackoffForError(errorType errs.ErrorType) BackoffStrategy {
	if errorType == errs.ErrorTypeRateLimit && etb.RateLimitBackoff != nil {
		return etb.RateLimitBackoff
	}
	return etb.DefaultBackoff
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func jitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)))
}
