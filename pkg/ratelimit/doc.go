// Package ratelimit paces outgoing provider calls.
//
// A Pacer is consulted before every provider request. Four policies exist:
//
//   - random: uniform delay in [min, max) plus sub-second jitter (default 2-7s)
//   - adaptive: the random policy scaled up after rate-limit responses
//   - token_bucket / sliding_window: hard request budgets per minute
//   - disabled: no waiting, for tests and local development
//
// Policies are selected from config.PacingConfig with New. The instagram
// package wraps a provider with a Pacer so call sites never sleep directly.
package ratelimit
