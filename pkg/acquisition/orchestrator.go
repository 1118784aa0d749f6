package acquisition

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"igsync/pkg/checkpoint"
	errs "igsync/pkg/errors"
	"igsync/pkg/logger"
	"igsync/pkg/metadata"
	"igsync/pkg/retry"
	"igsync/pkg/storage"
	syncer "igsync/pkg/sync"
)

// Options configures an Orchestrator.
type Options struct {
	// Identity is the account whose stored session is used.
	Identity      string
	// Bucket receives synced entities when UploadEnabled is set.
	Bucket        string
	UploadEnabled bool
	// Retry wraps the profile fetch and avatar download. Nil means
	// retry.DefaultConfig.
	Retry         *retry.Config
}

// Deps are the collaborators a run drives.
type Deps struct {
	Sessions SessionLoader
	Provider ProfileProvider
	Staging  *storage.Manager
	// Sync may be nil when uploads are disabled.
	Sync     Syncer
	// Journal is optional.
	Journal  Journal
	Logger   logger.Logger
}

// Result is the outcome of one run.
type Result struct {
	RunID      string
	Entity     string
	State      State
	StagingDir string
	Record     *metadata.ProfileRecord
	// Avatar is the staged avatar, read before the entity lock is released.
	Avatar     []byte
	Sync       *syncer.Report
	// Err is the originating failure for FAILED and SYNC_FAILED runs.
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Success reports whether the run reached its terminal success state.
func (r *Result) Success() bool {
	return r.State == StateSynced || r.State == StateStaged
}

// LocallyComplete reports whether the entity is fully staged, whatever
// happened to the upload.
func (r *Result) LocallyComplete() bool {
	return r.Success() || r.State == StateSyncFailed
}

// AvatarPath returns the staged avatar for a locally complete run.
func (r *Result) AvatarPath() string {
	if r.StagingDir == "" {
		return ""
	}
	return filepath.Join(r.StagingDir, storage.AvatarFileName)
}

// Orchestrator runs the acquisition pipeline. Distinct entities run
// concurrently; runs for the same normalized entity wait for each other.
type Orchestrator struct {
	opts   Options
	deps   Deps
	logger logger.Logger
	locks  *entityLocks
	newID  func() string
	now    func() time.Time
}

// New validates opts and deps and returns an orchestrator.
func New(opts Options, deps Deps) (*Orchestrator, error) {
	var problems []error
	if deps.Sessions == nil {
		problems = append(problems, errors.New("session loader is required"))
	}
	if deps.Provider == nil {
		problems = append(problems, errors.New("profile provider is required"))
	}
	if deps.Staging == nil {
		problems = append(problems, errors.New("staging manager is required"))
	}
	if opts.UploadEnabled {
		if deps.Sync == nil {
			problems = append(problems, errors.New("sync client is required when upload is enabled"))
		}
		if opts.Bucket == "" {
			problems = append(problems, errors.New("bucket is required when upload is enabled"))
		}
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid orchestrator setup: %w", errors.Join(problems...))
	}

	if opts.Retry == nil {
		opts.Retry = retry.DefaultConfig()
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Orchestrator{
		opts:   opts,
		deps:   deps,
		logger: log.WithField("component", "acquisition"),
		locks:  newEntityLocks(),
		newID:  uuid.NewString,
		now:    time.Now,
	}, nil
}

// run carries the mutable state of one Run call.
type run struct {
	result *Result
	logger logger.Logger
}

func (r *run) transition(to State) {
	from := r.result.State
	r.result.State = to
	r.logger.InfoWithFields("state transition", map[string]interface{}{
		"from":  from.String(),
		"state": to.String(),
	})
}

func (r *run) fail(state State, err error) {
	r.result.Err = err
	r.result.State = state
	r.logger.ErrorWithFields("run failed", map[string]interface{}{
		"state":      state.String(),
		"error":      err.Error(),
		"error_type": string(errs.TypeOf(err)),
	})
}

// Run acquires entity: load the session, fetch the profile, stage metadata
// and avatar, then sync when uploads are enabled. The returned error is the
// originating failure of a FAILED run; a SYNC_FAILED run returns a nil error
// and carries the sync failure in Result.Err.
func (o *Orchestrator) Run(ctx context.Context, entity string) (*Result, error) {
	entity = metadata.NormalizeIdentifier(entity)
	result := &Result{
		RunID:     o.newID(),
		Entity:    entity,
		State:     StateStart,
		StartedAt: o.now(),
	}
	r := &run{
		result: result,
		logger: o.logger.WithFields(map[string]interface{}{
			"entity": entity,
			"run_id": result.RunID,
		}),
	}
	r.logger.InfoWithFields("state transition", map[string]interface{}{"state": StateStart.String()})

	if entity != "" {
		release, err := o.locks.acquire(ctx, entity)
		if err != nil {
			r.fail(StateFailed, err)
			result.FinishedAt = o.now()
			return result, err
		}
		defer release()
	}

	o.execute(ctx, r)

	result.FinishedAt = o.now()
	o.journal(result)

	if result.State == StateFailed {
		return result, result.Err
	}
	return result, nil
}

func (o *Orchestrator) execute(ctx context.Context, r *run) {
	entity := r.result.Entity
	if entity == "" {
		r.fail(StateFailed, errs.NotFound("entity name is empty"))
		return
	}

	sess, err := o.deps.Sessions.LoadOrFail(o.opts.Identity)
	if err != nil {
		r.fail(StateFailed, err)
		return
	}
	r.transition(StateSessionReady)

	retryCfg := o.retryConfig(ctx, r.logger)

	rec, err := retry.DoWithResult(func() (*metadata.ProfileRecord, error) {
		return o.deps.Provider.FetchProfile(ctx, sess, entity)
	}, retryCfg)
	if err != nil {
		r.fail(StateFailed, err)
		return
	}
	r.result.Record = rec
	r.transition(StateProfileFetched)

	dir, err := o.deps.Staging.Prepare(entity)
	if err != nil {
		r.fail(StateFailed, err)
		return
	}
	r.result.StagingDir = dir

	if _, err := o.deps.Staging.WriteMetadata(dir, rec); err != nil {
		r.fail(StateFailed, err)
		return
	}

	tempPath, err := retry.DoWithResult(func() (string, error) {
		return o.deps.Provider.DownloadAvatar(ctx, sess, rec, dir)
	}, retryCfg)
	if err != nil {
		r.fail(StateFailed, err)
		return
	}

	avatarPath, err := o.deps.Staging.StoreAsset(tempPath, dir)
	if err != nil {
		r.fail(StateFailed, err)
		return
	}
	// later runs for this entity clear the directory
	if r.result.Avatar, err = os.ReadFile(avatarPath); err != nil {
		r.fail(StateFailed, errs.StagingIO(err, "failed to read staged avatar"))
		return
	}
	r.transition(StateStaged)

	if !o.opts.UploadEnabled {
		r.logger.Info("upload disabled, run complete after staging")
		return
	}

	if err := o.deps.Sync.EnsureBucket(ctx, o.opts.Bucket); err != nil {
		r.fail(StateSyncFailed, err)
		return
	}

	report, err := o.deps.Sync.SyncDirectory(ctx, dir, o.opts.Bucket, entity)
	r.result.Sync = report
	if err != nil {
		r.fail(StateSyncFailed, err)
		return
	}
	r.transition(StateSynced)
}

func (o *Orchestrator) retryConfig(ctx context.Context, log logger.Logger) *retry.Config {
	cfg := o.opts.Retry.WithContext(ctx)
	cfg.Logger = log
	return cfg
}

func (o *Orchestrator) journal(result *Result) {
	if o.deps.Journal == nil {
		return
	}

	entry := &checkpoint.Entry{
		Entity:     result.Entity,
		RunID:      result.RunID,
		State:      result.State.String(),
		StagingDir: result.StagingDir,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
	}
	if result.Err != nil {
		entry.Error = result.Err.Error()
		entry.ErrorType = string(errs.TypeOf(result.Err))
	}
	if result.Sync != nil {
		entry.Uploaded = result.Sync.Uploaded
	}

	if err := o.deps.Journal.Record(entry); err != nil {
		o.logger.WarnWithFields("failed to journal run", map[string]interface{}{
			"entity": result.Entity,
			"error":  err.Error(),
		})
	}
}
