package instagram

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "igsync/pkg/errors"
	"igsync/pkg/logger"
	"igsync/pkg/metadata"
	"igsync/pkg/session"
)

type countingPacer struct {
	paced    int32
	observed []error
	mu       sync.Mutex
	err      error
}

func (p *countingPacer) Pace(ctx context.Context) error {
	atomic.AddInt32(&p.paced, 1)
	return p.err
}

func (p *countingPacer) Observe(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observed = append(p.observed, err)
}

type slowProvider struct {
	inFlight int32
	maxSeen  int32
	fetchErr error
}

func (s *slowProvider) enter() {
	n := atomic.AddInt32(&s.inFlight, 1)
	for {
		m := atomic.LoadInt32(&s.maxSeen)
		if n <= m || atomic.CompareAndSwapInt32(&s.maxSeen, m, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	atomic.AddInt32(&s.inFlight, -1)
}

func (s *slowProvider) Authenticate(ctx context.Context, identity, secret string) (*session.Session, error) {
	s.enter()
	return &session.Session{Username: identity}, nil
}

func (s *slowProvider) FetchProfile(ctx context.Context, sess *session.Session, username string) (*metadata.ProfileRecord, error) {
	s.enter()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return &metadata.ProfileRecord{Username: username}, nil
}

func (s *slowProvider) DownloadAvatar(ctx context.Context, sess *session.Session, rec *metadata.ProfileRecord, dir string) (string, error) {
	s.enter()
	return dir + "/avatar.jpg", nil
}

func TestPacedProviderPacesEveryCall(t *testing.T) {
	pacer := &countingPacer{}
	p := NewPacedProvider(&slowProvider{}, pacer, logger.NewTestLogger())
	ctx := context.Background()

	_, err := p.Authenticate(ctx, "operator", "pw")
	require.NoError(t, err)
	rec, err := p.FetchProfile(ctx, nil, "nasa")
	require.NoError(t, err)
	_, err = p.DownloadAvatar(ctx, nil, rec, "/tmp")
	require.NoError(t, err)

	assert.Equal(t, int32(3), atomic.LoadInt32(&pacer.paced))
	assert.Len(t, pacer.observed, 3)
}

func TestPacedProviderObservesFailures(t *testing.T) {
	pacer := &countingPacer{}
	rateLimited := &errs.Error{Type: errs.ErrorTypeRateLimit, Message: "slow down"}
	p := NewPacedProvider(&slowProvider{fetchErr: rateLimited}, pacer, nil)

	_, err := p.FetchProfile(context.Background(), nil, "nasa")
	assert.Same(t, rateLimited, err)
	require.Len(t, pacer.observed, 1)
	assert.Same(t, rateLimited, pacer.observed[0])
}

func TestPacedProviderStopsWhenPacingFails(t *testing.T) {
	inner := &slowProvider{}
	pacer := &countingPacer{err: context.Canceled}
	p := NewPacedProvider(inner, pacer, nil)

	_, err := p.FetchProfile(context.Background(), nil, "nasa")
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int32(0), atomic.LoadInt32(&inner.maxSeen), "provider must not be called")
}

func TestPacedProviderSerializesCalls(t *testing.T) {
	inner := &slowProvider{}
	p := NewPacedProvider(inner, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.FetchProfile(context.Background(), nil, "nasa")
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.maxSeen))
}
