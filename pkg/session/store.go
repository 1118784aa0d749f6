package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/otiai10/copy"

	errs "igsync/pkg/errors"
	"igsync/pkg/logger"
)

// Authenticator performs an interactive login against the provider.
type Authenticator interface {
	Authenticate(ctx context.Context, identity, secret string) (*Session, error)
}

// ErrInvalidIdentity rejects account names that would escape the session
// directory.
var ErrInvalidIdentity = errors.New("invalid account identity")

// ValidateIdentity accepts names usable as a single file name component.
func ValidateIdentity(identity string) error {
	if identity == "" || identity == "." || identity == ".." || strings.ContainsAny(identity, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentity, identity)
	}
	return nil
}

// FileStore persists sessions as JSON files named {identity}_session inside
// dir, each with a {identity}_session.backup copy.
type FileStore struct {
	dir    string
	logger logger.Logger
}

// NewFileStore creates a session store rooted at dir.
func NewFileStore(dir string, log logger.Logger) *FileStore {
	if dir == "" {
		dir = "."
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &FileStore{dir: dir, logger: log.WithField("component", "session")}
}

// Path returns the primary session file path for identity.
func (s *FileStore) Path(identity string) string {
	return filepath.Join(s.dir, identity+"_session")
}

// BackupPath returns the backup session file path for identity.
func (s *FileStore) BackupPath(identity string) string {
	return s.Path(identity) + ".backup"
}

// LoadOrFail loads the stored session for identity. It returns an error
// matching errs.ErrSessionNotFound when no session file exists. A primary
// file that cannot be decoded falls back to the backup copy.
func (s *FileStore) LoadOrFail(identity string) (*Session, error) {
	if identity == "" {
		return nil, errs.New(errs.ErrorTypeSessionNotFound, "no account identity configured")
	}
	if err := ValidateIdentity(identity); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeSessionNotFound, err, "cannot load session")
	}

	primary := s.Path(identity)
	sess, err := readSession(primary)
	if err == nil {
		return sess, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeSessionNotFound,
			Message: fmt.Sprintf("session file not found: %s", primary),
		}
	}

	s.logger.WarnWithFields("primary session unreadable, trying backup", map[string]interface{}{
		"path":  primary,
		"error": err.Error(),
	})

	sess, berr := readSession(s.BackupPath(identity))
	if berr != nil {
		return nil, errs.Wrap(errs.ErrorTypeSessionNotFound, errors.Join(err, berr),
			fmt.Sprintf("session for %s is corrupt and has no usable backup", identity))
	}
	return sess, nil
}

func readSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", path, err)
	}
	if sess.Username == "" {
		return nil, fmt.Errorf("session %s has no username", path)
	}
	return &sess, nil
}

// Persist writes the session atomically and refreshes its backup copy.
func (s *FileStore) Persist(sess *Session) error {
	if sess == nil || sess.Username == "" {
		return errors.New("cannot persist session without username")
	}
	if err := ValidateIdentity(sess.Username); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	sess.UpdatedAt = time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = sess.UpdatedAt
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	primary := s.Path(sess.Username)
	tempFile := primary + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := os.Rename(tempFile, primary); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to save session: %w", err)
	}

	if err := copy.Copy(primary, s.BackupPath(sess.Username), copy.Options{PreserveTimes: true, Sync: true}); err != nil {
		return fmt.Errorf("failed to write session backup: %w", err)
	}

	s.logger.InfoWithFields("session saved", map[string]interface{}{
		"username": sess.Username,
		"path":     primary,
		"cookies":  len(sess.Cookies),
	})
	return nil
}

// CreateViaLogin authenticates identity with secret and persists the result.
// Invalid credentials and two-factor challenges are returned unchanged from
// the authenticator.
func (s *FileStore) CreateViaLogin(ctx context.Context, auth Authenticator, identity, secret string) (*Session, error) {
	if err := ValidateIdentity(identity); err != nil {
		return nil, err
	}
	s.logger.InfoWithFields("logging in", map[string]interface{}{"username": identity})

	sess, err := auth.Authenticate(ctx, identity, secret)
	if err != nil {
		s.logger.WithError(err).WithField("username", identity).Error("login failed")
		return nil, err
	}
	if sess.Username == "" {
		sess.Username = identity
	}

	if err := s.Persist(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Delete removes both the primary and backup session files.
func (s *FileStore) Delete(identity string) error {
	if err := ValidateIdentity(identity); err != nil {
		return err
	}
	var errList []error
	for _, p := range []string{s.Path(identity), s.BackupPath(identity)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}
