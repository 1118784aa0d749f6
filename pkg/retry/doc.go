// Package retry provides exponential backoff and retry logic for handling
// transient failures in provider calls and object-store uploads.
//
// Features:
//   - Exponential backoff with additive jitter (base * 2^n + [1s, 3s))
//   - Longer schedules for rate-limit failures via ErrorTypeBackoff
//   - Classified retry: not-found, auth and staging failures are never retried
//   - Context support for cancellation
//   - Injectable Sleep so callers can observe waits without blocking
//
// Basic usage:
//
//	err := retry.Do(func() error {
//		rec, err = provider.FetchProfile(ctx, sess, "nasa")
//		return err
//	}, retry.DefaultConfig().WithContext(ctx))
//
// When every attempt fails, Do returns the last error exactly as the
// operation produced it.
package retry
