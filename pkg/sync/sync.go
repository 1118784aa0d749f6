// Package syncer mirrors a staging directory into an object-store bucket.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	errs "igsync/pkg/errors"
	"igsync/pkg/logger"
	"igsync/pkg/objectstore"
	"igsync/pkg/retry"
	"igsync/pkg/storage"
)

// MemberError records one member that could not be uploaded.
type MemberError struct {
	Key string
	Err error
}

// Report is the per-member outcome of a SyncDirectory call.
type Report struct {
	Uploaded []string
	Failed   []MemberError
}

// OK reports whether every member was uploaded.
func (r *Report) OK() bool {
	return r != nil && len(r.Failed) == 0
}

// Client uploads staged files to an ObjectStore.
type Client struct {
	store  objectstore.ObjectStore
	retry  *retry.Config
	logger logger.Logger
}

// NewClient creates a sync client. Each member upload runs under its own
// retry loop configured by retryCfg.
func NewClient(store objectstore.ObjectStore, retryCfg *retry.Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	cp := *retryCfg
	cp.Logger = log
	return &Client{store: store, retry: &cp, logger: log.WithField("component", "sync")}
}

// ContentTypeFor returns the media type recorded for a staged file.
func ContentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/json"
	}
}

// ObjectKey joins prefix and a member name with '/'.
func ObjectKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// EnsureBucket creates bucket if it does not exist.
func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := c.store.BucketExists(ctx, bucket)
	if err != nil {
		return errs.Sync(err, "failed to check bucket")
	}
	if exists {
		return nil
	}

	c.logger.InfoWithFields("creating bucket", map[string]interface{}{"bucket": bucket})
	if err := c.store.CreateBucket(ctx, bucket); err != nil {
		return errs.Sync(err, "failed to create bucket")
	}
	return nil
}

// SyncDirectory uploads every regular file directly inside dir to
// {prefix}/{name}. Each member is deleted (missing objects ignored) and then
// put, with its own retries. The returned error joins the failures of all
// members that could not be uploaded; members already uploaded stay in place.
func (c *Client) SyncDirectory(ctx context.Context, dir, bucket, prefix string) (*Report, error) {
	files, err := storage.Members(dir)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	var failures []error

	for _, file := range files {
		name := filepath.Base(file)
		key := ObjectKey(prefix, name)
		contentType := ContentTypeFor(name)

		err := retry.Do(func() error {
			return c.upload(ctx, bucket, key, file, contentType)
		}, c.retry.WithContext(ctx))

		if err != nil {
			c.logger.ErrorWithFields("member upload failed", map[string]interface{}{
				"bucket": bucket,
				"key":    key,
				"error":  err.Error(),
			})
			report.Failed = append(report.Failed, MemberError{Key: key, Err: err})
			failures = append(failures, fmt.Errorf("%s: %w", key, err))
			continue
		}

		c.logger.InfoWithFields("member uploaded", map[string]interface{}{
			"bucket":       bucket,
			"key":          key,
			"content_type": contentType,
		})
		report.Uploaded = append(report.Uploaded, key)
	}

	if len(failures) > 0 {
		return report, errs.Sync(errors.Join(failures...), fmt.Sprintf("%d of %d members failed to sync", len(failures), len(files)))
	}
	return report, nil
}

// upload performs the delete-then-put step for one member.
func (c *Client) upload(ctx context.Context, bucket, key, file, contentType string) error {
	if err := c.store.DeleteObject(ctx, bucket, key); err != nil && !errors.Is(err, objectstore.ErrNotFound) {
		c.logger.DebugWithFields("ignoring delete failure", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}

	if err := c.store.PutObject(ctx, bucket, key, file, contentType); err != nil {
		return errs.Sync(err, "put failed")
	}
	return nil
}
