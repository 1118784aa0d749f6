package objectstore

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
)

// Object is one stored object in a MemoryStore.
type Object struct {
	Data        []byte
	ContentType string
}

// MemoryStore is an in-process ObjectStore.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]map[string]Object

	// PutHook, when set, runs before every put; a non-nil error fails the put.
	PutHook func(bucket, key string) error

	puts    int
	deletes int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]map[string]Object)}
}

func (m *MemoryStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.buckets[bucket]
	return ok, nil
}

func (m *MemoryStore) CreateBucket(ctx context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[bucket]; !ok {
		m.buckets[bucket] = make(map[string]Object)
	}
	return nil
}

func (m *MemoryStore) DeleteObject(ctx context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	b, ok := m.buckets[bucket]
	if !ok {
		return ErrNotFound
	}
	if _, ok := b[key]; !ok {
		return ErrNotFound
	}
	delete(b, key)
	return nil
}

func (m *MemoryStore) PutObject(ctx context.Context, bucket, key, localPath, contentType string) error {
	if m.PutHook != nil {
		if err := m.PutHook(bucket, key); err != nil {
			return err
		}
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	b, ok := m.buckets[bucket]
	if !ok {
		return fmt.Errorf("bucket %s: %w", bucket, ErrNotFound)
	}
	b[key] = Object{Data: data, ContentType: contentType}
	return nil
}

// Get returns a stored object.
func (m *MemoryStore) Get(bucket, key string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.buckets[bucket][key]
	return obj, ok
}

// Keys lists the keys in bucket, sorted.
func (m *MemoryStore) Keys(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.buckets[bucket]))
	for k := range m.buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Calls returns the number of put and delete calls seen.
func (m *MemoryStore) Calls() (puts, deletes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts, m.deletes
}
