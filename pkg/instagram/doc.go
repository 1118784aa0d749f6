// Package instagram implements the profile provider against Instagram's web
// API: the login handshake, the web_profile_info lookup and the avatar
// download.
//
// Failures are classified with pkg/errors so callers can decide whether to
// retry:
//
//	rec, err := client.FetchProfile(ctx, sess, "nasa")
//	switch errors.TypeOf(err) {
//	case errors.ErrorTypeNotFound:
//	    // the profile does not exist
//	case errors.ErrorTypeRateLimit, errors.ErrorTypeNetwork:
//	    // transient, retry with backoff
//	}
//
// Wrap the client in a PacedProvider so every request waits on the
// configured pacing policy first.
package instagram
