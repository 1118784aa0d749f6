package instagram

import (
	"context"
	"sync"

	"igsync/pkg/logger"
	"igsync/pkg/metadata"
	"igsync/pkg/ratelimit"
	"igsync/pkg/session"
)

// Provider is the remote profile source.
type Provider interface {
	Authenticate(ctx context.Context, identity, secret string) (*session.Session, error)
	FetchProfile(ctx context.Context, sess *session.Session, username string) (*metadata.ProfileRecord, error)
	DownloadAvatar(ctx context.Context, sess *session.Session, rec *metadata.ProfileRecord, dir string) (string, error)
}

// PacedProvider brackets every call to the wrapped provider with the pacer.
// Calls are serialized: only one request is in flight per PacedProvider.
type PacedProvider struct {
	inner  Provider
	pacer  ratelimit.Pacer
	logger logger.Logger
	mu     sync.Mutex
}

// NewPacedProvider wraps inner. A nil pacer disables pacing.
func NewPacedProvider(inner Provider, pacer ratelimit.Pacer, log logger.Logger) *PacedProvider {
	if pacer == nil {
		pacer = ratelimit.Disabled{}
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &PacedProvider{inner: inner, pacer: pacer, logger: log.WithField("component", "pacing")}
}

func (p *PacedProvider) call(ctx context.Context, op string, fn func() error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger.DebugWithFields("pacing provider call", map[string]interface{}{"operation": op})
	if err := p.pacer.Pace(ctx); err != nil {
		return err
	}

	err := fn()
	if o, ok := p.pacer.(ratelimit.Observer); ok {
		o.Observe(err)
	}
	return err
}

func (p *PacedProvider) Authenticate(ctx context.Context, identity, secret string) (*session.Session, error) {
	var sess *session.Session
	err := p.call(ctx, "authenticate", func() (err error) {
		sess, err = p.inner.Authenticate(ctx, identity, secret)
		return err
	})
	return sess, err
}

func (p *PacedProvider) FetchProfile(ctx context.Context, sess *session.Session, username string) (*metadata.ProfileRecord, error) {
	var rec *metadata.ProfileRecord
	err := p.call(ctx, "fetch_profile", func() (err error) {
		rec, err = p.inner.FetchProfile(ctx, sess, username)
		return err
	})
	return rec, err
}

func (p *PacedProvider) DownloadAvatar(ctx context.Context, sess *session.Session, rec *metadata.ProfileRecord, dir string) (string, error) {
	var path string
	err := p.call(ctx, "download_avatar", func() (err error) {
		path, err = p.inner.DownloadAvatar(ctx, sess, rec, dir)
		return err
	})
	return path, err
}
