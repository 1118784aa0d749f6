package acquisition

import (
	"context"
	"errors"
	"fmt"

	"igsync/pkg/metadata"
	"igsync/pkg/retry"
	"igsync/pkg/session"
)

// ProfileFetcher is the part of the provider a session check needs.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, sess *session.Session, username string) (*metadata.ProfileRecord, error)
}

// CheckAttempt is the outcome of fetching one well-known profile.
type CheckAttempt struct {
	Profile string
	Record  *metadata.ProfileRecord
	Err     error
}

// CheckSession fetches profiles in order with sess, retrying each one per
// cfg, and stops at the first success. The error joins every failure when
// no profile could be fetched.
func CheckSession(ctx context.Context, fetcher ProfileFetcher, sess *session.Session, profiles []string, cfg *retry.Config) ([]CheckAttempt, error) {
	cfg = cfg.WithContext(ctx)

	var (
		attempts []CheckAttempt
		failures []error
	)
	for _, profile := range profiles {
		rec, err := retry.DoWithResult(func() (*metadata.ProfileRecord, error) {
			return fetcher.FetchProfile(ctx, sess, profile)
		}, cfg)
		attempts = append(attempts, CheckAttempt{Profile: profile, Record: rec, Err: err})
		if err == nil {
			return attempts, nil
		}
		failures = append(failures, fmt.Errorf("%s: %w", profile, err))
		if ctx.Err() != nil {
			break
		}
	}
	if len(failures) == 0 {
		return attempts, errors.New("no profiles to check")
	}
	return attempts, errors.Join(failures...)
}
