package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igsync/pkg/config"
	"igsync/pkg/logger"
)

// fakeS3 answers the handful of path-style S3 calls S3Store makes.
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]map[string]string
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{buckets: map[string]map[string]string{}, types: map[string]string{}}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	bucket := parts[0]
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	notFound := func(code string) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		if r.Method != http.MethodHead {
			fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>missing</Message></Error>`, code)
		}
	}

	switch {
	case key == "" && r.Method == http.MethodHead:
		if _, ok := f.buckets[bucket]; !ok {
			notFound("NotFound")
			return
		}
		w.WriteHeader(http.StatusOK)
	case key == "" && r.Method == http.MethodPut:
		if _, ok := f.buckets[bucket]; !ok {
			f.buckets[bucket] = map[string]string{}
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		b, ok := f.buckets[bucket]
		if !ok {
			notFound("NoSuchBucket")
			return
		}
		body, _ := io.ReadAll(r.Body)
		b[key] = string(body)
		f.types[bucket+"/"+key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete:
		delete(f.buckets[bucket], key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestS3Store(t *testing.T) (*S3Store, *fakeS3) {
	t.Helper()
	fake := newFakeS3()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := NewS3Store(context.Background(), config.StorageConfig{
		Endpoint:       srv.URL,
		Region:         "us-east-1",
		AccessKey:      "test",
		SecretKey:      "test",
		ForcePathStyle: true,
	}, logger.NewTestLogger())
	require.NoError(t, err)
	return store, fake
}

func TestS3StoreBucketLifecycle(t *testing.T) {
	store, _ := newTestS3Store(t)
	ctx := context.Background()

	exists, err := store.BucketExists(ctx, "instagram-profiles")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.CreateBucket(ctx, "instagram-profiles"))

	exists, err = store.BucketExists(ctx, "instagram-profiles")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestS3StorePutAndDelete(t *testing.T) {
	store, fake := newTestS3Store(t)
	ctx := context.Background()
	require.NoError(t, store.CreateBucket(ctx, "b"))

	path := filepath.Join(t.TempDir(), "profile_info.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"username":"nasa"}`), 0644))

	require.NoError(t, store.PutObject(ctx, "b", "nasa/profile_info.json", path, "application/json"))

	fake.mu.Lock()
	assert.Contains(t, fake.buckets["b"]["nasa/profile_info.json"], `{"username":"nasa"}`)
	assert.Equal(t, "application/json", fake.types["b/nasa/profile_info.json"])
	fake.mu.Unlock()

	require.NoError(t, store.DeleteObject(ctx, "b", "nasa/profile_info.json"))
}

func TestS3StorePutMissingFile(t *testing.T) {
	store, _ := newTestS3Store(t)
	err := store.PutObject(context.Background(), "b", "k", filepath.Join(t.TempDir(), "nope"), "image/jpeg")
	assert.Error(t, err)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&smithy.GenericAPIError{Code: "NoSuchKey"}))
	assert.True(t, isNotFound(fmt.Errorf("wrapped: %w", &smithy.GenericAPIError{Code: "NoSuchBucket"})))
	assert.False(t, isNotFound(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isNotFound(errors.New("boom")))
}
