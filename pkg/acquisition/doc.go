// Package acquisition drives one entity through the pipeline:
//
//	START -> SESSION_READY -> PROFILE_FETCHED -> STAGED -> SYNCED
//
// Any step may end the run in FAILED, carrying the error that caused it.
// A failed upload ends in SYNC_FAILED instead: the entity is complete in the
// staging area and only the remote copy is missing or partial.
//
// Profile lookups and avatar downloads run under the retry executor, so
// transient network and rate-limit failures back off while a missing profile
// fails at once. Sessions are never created here; a missing session fails
// the run and the operator bootstraps one with "igsync login".
package acquisition
