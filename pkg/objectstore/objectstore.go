// Package objectstore abstracts the remote bucket the staging area is synced
// to. S3Store talks to S3 or any S3-compatible endpoint; MemoryStore keeps
// objects in memory for tests and dry runs.
package objectstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a bucket or object does not exist.
var ErrNotFound = errors.New("object store: not found")

// ObjectStore is the remote storage capability used by the sync client.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	CreateBucket(ctx context.Context, bucket string) error
	// DeleteObject removes key. A missing object is reported as ErrNotFound.
	DeleteObject(ctx context.Context, bucket, key string) error
	PutObject(ctx context.Context, bucket, key, localPath, contentType string) error
}
