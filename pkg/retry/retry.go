package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"igsync/pkg/config"
	errs "igsync/pkg/errors"
	"igsync/pkg/logger"
)

// Operation is retried by Do until it succeeds or gives up.
type Operation func() error

// OperationWithResult is the value-returning form used by DoWithResult.
type OperationWithResult[T any] func() (T, error)

// Config controls one retried operation. Zero fields take defaults from Do.
type Config struct {
	MaxAttempts int // 0 retries forever
	Backoff     BackoffStrategy
	RetryIf     func(error) bool
	OnRetry     func(attempt int, err error, delay time.Duration)
	Sleep       func(ctx context.Context, delay time.Duration) error
	Context     context.Context
	Logger      logger.Logger
}

// DefaultConfig returns a retry configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     NewErrorTypeBackoff(DefaultExponentialBackoff(), 30*time.Second),
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
		Logger:      logger.GetLogger(),
	}
}

// FromSettings builds a retry configuration from the user's retry settings.
func FromSettings(rc config.RetryConfig, log logger.Logger) *Config {
	cfg := DefaultConfig()
	if rc.MaxRetries > 0 {
		cfg.MaxAttempts = rc.MaxRetries
	}

	def := DefaultExponentialBackoff()
	if rc.BaseDelay > 0 {
		def.BaseDelay = rc.BaseDelay
	}
	if rc.JitterMax > 0 || rc.JitterMin > 0 {
		def.JitterMin = rc.JitterMin
		def.JitterMax = rc.JitterMax
	}
	rateLimitBase := rc.RateLimitBaseDelay
	if rateLimitBase <= 0 {
		rateLimitBase = 30 * time.Second
	}
	cfg.Backoff = NewErrorTypeBackoff(def, rateLimitBase)

	if log != nil {
		cfg.Logger = log
	}
	return cfg
}

// WithContext returns a copy of the config bound to ctx.
func (c *Config) WithContext(ctx context.Context) *Config {
	if c == nil {
		c = DefaultConfig()
	}
	cp := *c
	cp.Context = ctx
	return &cp
}

// DefaultRetryIf retries classified errors according to errs.IsRetryable and
// treats unclassified errors as transient.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}

	return true
}

// RetryAll retries every failure, classified or not.
func RetryAll(err error) bool {
	return err != nil
}

// Do runs op until it succeeds, fails with a non-retryable error, or uses
// up MaxAttempts. The last operation error is returned unchanged; a
// cancelled wait returns the cancellation joined with that error.
func Do(op Operation, cfg *Config) error {
	a := newAttempter(cfg)
	for n := 1; ; n++ {
		err := op()
		if err == nil {
			a.debug("operation succeeded after retry", n > 1, map[string]interface{}{"attempt": n})
			return nil
		}
		if a.giveUp(n, err) {
			return err
		}

		delay := a.delay(n, err)
		if a.cfg.OnRetry != nil {
			a.cfg.OnRetry(n, err, delay)
		}
		a.warn("retrying operation", map[string]interface{}{
			"attempt":      n,
			"error":        err.Error(),
			"delay_ms":     delay.Milliseconds(),
			"max_attempts": a.cfg.MaxAttempts,
		})

		if werr := a.sleep(a.ctx, delay); werr != nil {
			a.warn("retry cancelled", map[string]interface{}{"attempt": n, "reason": werr.Error()})
			return fmt.Errorf("retry cancelled: %w", errors.Join(werr, err))
		}
	}
}

// attempter is a Config with every default resolved.
type attempter struct {
	cfg     *Config
	ctx     context.Context
	retryIf func(error) bool
	sleep   func(context.Context, time.Duration) error
	backoff BackoffStrategy
}

func newAttempter(cfg *Config) *attempter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	a := &attempter{cfg: cfg, ctx: cfg.Context, retryIf: cfg.RetryIf, sleep: cfg.Sleep, backoff: cfg.Backoff}
	if a.ctx == nil {
		a.ctx = context.Background()
	}
	if a.retryIf == nil {
		a.retryIf = DefaultRetryIf
	}
	if a.sleep == nil {
		a.sleep = Wait
	}
	if a.backoff == nil {
		a.backoff = DefaultExponentialBackoff()
	}
	return a
}

func (a *attempter) giveUp(n int, err error) bool {
	if !a.retryIf(err) {
		a.debug("error is not retryable", true, map[string]interface{}{
			"error":      err.Error(),
			"error_type": string(errs.TypeOf(err)),
		})
		return true
	}
	if a.cfg.MaxAttempts > 0 && n >= a.cfg.MaxAttempts {
		if a.cfg.Logger != nil {
			a.cfg.Logger.ErrorWithFields("max retry attempts exceeded", map[string]interface{}{
				"attempts":   n,
				"last_error": err.Error(),
			})
		}
		return true
	}
	return false
}

func (a *attempter) delay(n int, err error) time.Duration {
	if eb, ok := a.backoff.(ErrorAwareBackoff); ok {
		return eb.NextDelayFor(n, err)
	}
	return a.backoff.NextDelay(n)
}

func (a *attempter) debug(msg string, when bool, fields map[string]interface{}) {
	if when && a.cfg.Logger != nil {
		a.cfg.Logger.DebugWithFields(msg, fields)
	}
}

func (a *attempter) warn(msg string, fields map[string]interface{}) {
	if a.cfg.Logger != nil {
		a.cfg.Logger.WarnWithFields(msg, fields)
	}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](op OperationWithResult[T], cfg *Config) (T, error) {
	var result T

	err := Do(func() error {
		var opErr error
		result, opErr = op()
		return opErr
	}, cfg)

	return result, err
}
