package acquisition

import (
	"context"

	"igsync/pkg/checkpoint"
	"igsync/pkg/metadata"
	"igsync/pkg/session"
	syncer "igsync/pkg/sync"
)

// SessionLoader returns the stored session for an account identity.
type SessionLoader interface {
	LoadOrFail(identity string) (*session.Session, error)
}

// ProfileProvider is the subset of the remote provider a run needs.
type ProfileProvider interface {
	FetchProfile(ctx context.Context, sess *session.Session, username string) (*metadata.ProfileRecord, error)
	DownloadAvatar(ctx context.Context, sess *session.Session, rec *metadata.ProfileRecord, dir string) (string, error)
}

// Syncer pushes a staging directory to remote storage.
type Syncer interface {
	EnsureBucket(ctx context.Context, bucket string) error
	SyncDirectory(ctx context.Context, dir, bucket, prefix string) (*syncer.Report, error)
}

// Journal records the outcome of each run.
type Journal interface {
	Record(entry *checkpoint.Entry) error
}
