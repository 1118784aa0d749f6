package ratelimit

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"igsync/pkg/config"
	errs "igsync/pkg/errors"
)

// Pacer blocks before a remote call so traffic looks less automated.
type Pacer interface {
	Pace(ctx context.Context) error
}

// Observer is implemented by pacers that adapt to call outcomes.
type Observer interface {
	Observe(err error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Disabled never waits.
type Disabled struct{}

func (Disabled) Pace(ctx context.Context) error { return ctx.Err() }

// RandomDelay waits a uniform duration in [Min, Max) plus up to Jitter extra.
type RandomDelay struct {
	Min    time.Duration
	Max    time.Duration
	Jitter time.Duration
	Sleep  SleepFunc

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomDelay creates a fixed-range pacer.
func NewRandomDelay(min, max, jitter time.Duration) *RandomDelay {
	return &RandomDelay{
		Min:    min,
		Max:    max,
		Jitter: jitter,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next draws the next delay.
func (r *RandomDelay) Next() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rnd == nil {
		r.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	d := r.Min
	if r.Max > r.Min {
		d += time.Duration(r.rnd.Int63n(int64(r.Max - r.Min)))
	}
	if r.Jitter > 0 {
		d += time.Duration(r.rnd.Int63n(int64(r.Jitter)))
	}
	return d
}

func (r *RandomDelay) Pace(ctx context.Context) error {
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	return sleep(ctx, r.Next())
}

// Adaptive scales a RandomDelay up after rate-limit responses and decays
// back toward the base range after successes.
type Adaptive struct {
	Base *RandomDelay
	// MaxFactor caps the multiplier
	MaxFactor float64

	mu     sync.Mutex
	factor float64
}

// NewAdaptive wraps base with a multiplier that starts at 1.
func NewAdaptive(base *RandomDelay, maxFactor float64) *Adaptive {
	if maxFactor < 1 {
		maxFactor = 1
	}
	return &Adaptive{Base: base, MaxFactor: maxFactor, factor: 1}
}

// Factor returns the current multiplier.
func (a *Adaptive) Factor() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.factor
}

func (a *Adaptive) Observe(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case errs.TypeOf(err) == errs.ErrorTypeRateLimit:
		a.factor *= 2
		if a.factor > a.MaxFactor {
			a.factor = a.MaxFactor
		}
	case err == nil && a.factor > 1:
		a.factor /= 2
		if a.factor < 1 {
			a.factor = 1
		}
	}
}

func (a *Adaptive) Pace(ctx context.Context) error {
	sleep := a.Base.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	d := time.Duration(float64(a.Base.Next()) * a.Factor())
	return sleep(ctx, d)
}

// limiterPacer adapts a Limiter to the Pacer interface.
type limiterPacer struct {
	limiter Limiter
}

// FromLimiter paces calls by waiting on l.
func FromLimiter(l Limiter) Pacer {
	return &limiterPacer{limiter: l}
}

func (p *limiterPacer) Pace(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// New builds the pacer selected by cfg.
func New(cfg config.PacingConfig) Pacer {
	if !cfg.Enabled {
		return Disabled{}
	}

	switch strings.ToLower(cfg.Policy) {
	case config.PacingDisabled:
		return Disabled{}
	case config.PacingTokenBucket:
		burst := cfg.BurstSize
		if burst <= 0 {
			burst = 1
		}
		// refill `burst` tokens at a rate that yields RequestsPerMinute overall
		period := time.Duration(float64(time.Minute) * float64(burst) / float64(cfg.RequestsPerMinute))
		return FromLimiter(NewTokenBucket(burst, period))
	case config.PacingSlidingWindow:
		return FromLimiter(NewSlidingWindow(cfg.RequestsPerMinute, time.Minute))
	case config.PacingAdaptive:
		return NewAdaptive(NewRandomDelay(cfg.MinDelay, cfg.MaxDelay, cfg.Jitter), 8)
	default:
		return NewRandomDelay(cfg.MinDelay, cfg.MaxDelay, cfg.Jitter)
	}
}
