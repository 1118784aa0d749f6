package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a hard request budget.
type Limiter interface {
	// Allow admits a request now or reports false without blocking.
	Allow() bool
	// Wait blocks until a request is admitted or ctx ends.
	Wait(ctx context.Context) error
	// Reset restores the full budget.
	Reset()
}

// budget is the shared core of the limiters: reserve admits a request at now
// and returns zero, or returns how long until one could be admitted.
type budget interface {
	reserve(now time.Time) time.Duration
}

// minWait bounds busy looping when a budget reports a tiny remaining wait.
const minWait = 10 * time.Millisecond

func waitFor(ctx context.Context, b budget) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		d := b.reserve(time.Now())
		if d == 0 {
			return nil
		}
		if d < minWait {
			d = minWait
		}
		if err := sleepCtx(ctx, d); err != nil {
			return err
		}
	}
}

// TokenBucket refills continuously so that capacity tokens accrue per
// refillPeriod. Bursts up to capacity are admitted immediately.
type TokenBucket struct {
	mu       sync.Mutex
	capacity float64
	perToken time.Duration
	tokens   float64
	last     time.Time
}

// NewTokenBucket creates a full bucket.
func NewTokenBucket(capacity int, refillPeriod time.Duration) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	return &TokenBucket{
		capacity: float64(capacity),
		perToken: refillPeriod / time.Duration(capacity),
		tokens:   float64(capacity),
		last:     time.Now(),
	}
}

func (tb *TokenBucket) reserve(now time.Time) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if tb.perToken > 0 {
		tb.tokens += float64(now.Sub(tb.last)) / float64(tb.perToken)
	} else {
		tb.tokens = tb.capacity
	}
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.last = now

	if tb.tokens >= 1 {
		tb.tokens--
		return 0
	}
	return time.Duration((1 - tb.tokens) * float64(tb.perToken))
}

// Available reports the whole tokens currently in the bucket.
func (tb *TokenBucket) Available() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return int(tb.tokens)
}

func (tb *TokenBucket) Allow() bool { return tb.reserve(time.Now()) == 0 }

func (tb *TokenBucket) Wait(ctx context.Context) error { return waitFor(ctx, tb) }

func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.tokens = tb.capacity
	tb.last = time.Now()
}

// SlidingWindow admits at most max requests in any window-long interval.
// Admission times live in a ring; the oldest slot decides the next admission.
type SlidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	ring   []time.Time
	next   int
}

// NewSlidingWindow creates an empty window.
func NewSlidingWindow(max int, window time.Duration) *SlidingWindow {
	if max < 1 {
		max = 1
	}
	return &SlidingWindow{window: window, ring: make([]time.Time, max)}
}

func (sw *SlidingWindow) reserve(now time.Time) time.Duration {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	oldest := sw.ring[sw.next]
	if !oldest.IsZero() {
		if free := oldest.Add(sw.window); now.Before(free) {
			return free.Sub(now)
		}
	}
	sw.ring[sw.next] = now
	sw.next = (sw.next + 1) % len(sw.ring)
	return 0
}

func (sw *SlidingWindow) Allow() bool { return sw.reserve(time.Now()) == 0 }

func (sw *SlidingWindow) Wait(ctx context.Context) error { return waitFor(ctx, sw) }

func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	for i := range sw.ring {
		sw.ring[i] = time.Time{}
	}
	sw.next = 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
