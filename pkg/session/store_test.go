package session

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "igsync/pkg/errors"
	"igsync/pkg/logger"
)

type stubAuthenticator struct {
	sess *Session
	err  error
}

func (a *stubAuthenticator) Authenticate(ctx context.Context, identity, secret string) (*Session, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.sess, nil
}

func newSession(user string) *Session {
	return &Session{
		Username: user,
		Source:   SourceLogin,
		Cookies: []Cookie{
			{Name: "sessionid", Value: "abc123", Domain: ".instagram.com", Path: "/", Secure: true, HTTPOnly: true},
			{Name: "csrftoken", Value: "tok", Domain: ".instagram.com", Path: "/", Secure: true},
		},
	}
}

func TestLoadOrFailMissing(t *testing.T) {
	store := NewFileStore(t.TempDir(), logger.NewNopLogger())

	_, err := store.LoadOrFail("collector")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrSessionNotFound)
}

func TestPersistWritesPrimaryAndBackup(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, logger.NewNopLogger())

	require.NoError(t, store.Persist(newSession("collector")))

	assert.Equal(t, filepath.Join(dir, "collector_session"), store.Path("collector"))
	primary, err := os.ReadFile(store.Path("collector"))
	require.NoError(t, err)
	backup, err := os.ReadFile(store.BackupPath("collector"))
	require.NoError(t, err)
	assert.Equal(t, primary, backup)

	info, err := os.Stat(store.Path("collector"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := store.LoadOrFail("collector")
	require.NoError(t, err)
	assert.Equal(t, "abc123", loaded.Cookie("sessionid"))
	assert.Equal(t, "tok", loaded.CSRFToken())
}

func TestLoadFallsBackToBackup(t *testing.T) {
	store := NewFileStore(t.TempDir(), logger.NewNopLogger())
	require.NoError(t, store.Persist(newSession("collector")))

	require.NoError(t, os.WriteFile(store.Path("collector"), []byte("garbage"), 0600))

	loaded, err := store.LoadOrFail("collector")
	require.NoError(t, err)
	assert.Equal(t, "abc123", loaded.Cookie("sessionid"))
}

func TestLoadCorruptWithoutBackup(t *testing.T) {
	store := NewFileStore(t.TempDir(), logger.NewNopLogger())
	require.NoError(t, os.WriteFile(store.Path("collector"), []byte("{"), 0600))

	_, err := store.LoadOrFail("collector")
	assert.ErrorIs(t, err, errs.ErrSessionNotFound)
}

func TestCreateViaLogin(t *testing.T) {
	store := NewFileStore(t.TempDir(), logger.NewNopLogger())
	auth := &stubAuthenticator{sess: newSession("")}

	sess, err := store.CreateViaLogin(context.Background(), auth, "collector", "pw")
	require.NoError(t, err)
	assert.Equal(t, "collector", sess.Username)

	_, err = store.LoadOrFail("collector")
	assert.NoError(t, err)
}

func TestCreateViaLoginFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"invalid credentials", &errs.Error{Type: errs.ErrorTypeInvalidCredentials, Message: "bad password"}, errs.ErrInvalidCredentials},
		{"two factor", &errs.Error{Type: errs.ErrorTypeTwoFactor, Message: "code required"}, errs.ErrTwoFactorRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewFileStore(t.TempDir(), logger.NewNopLogger())
			_, err := store.CreateViaLogin(context.Background(), &stubAuthenticator{err: tt.err}, "collector", "pw")
			assert.ErrorIs(t, err, tt.want)

			_, statErr := os.Stat(store.Path("collector"))
			assert.True(t, errors.Is(statErr, os.ErrNotExist), "failed login must not leave a session file")
		})
	}
}

func TestDelete(t *testing.T) {
	store := NewFileStore(t.TempDir(), logger.NewNopLogger())
	require.NoError(t, store.Persist(newSession("collector")))

	require.NoError(t, store.Delete("collector"))
	require.NoError(t, store.Delete("collector"), "deleting twice is not an error")

	_, err := store.LoadOrFail("collector")
	assert.ErrorIs(t, err, errs.ErrSessionNotFound)
}

func TestJarIsolatedPerCall(t *testing.T) {
	sess := newSession("collector")

	jar1, err := sess.Jar()
	require.NoError(t, err)
	jar2, err := sess.Jar()
	require.NoError(t, err)

	u, _ := url.Parse("https://www.instagram.com/api/v1/users/web_profile_info/")
	assert.Len(t, jar1.Cookies(u), 2)

	jar1.SetCookies(u, []*http.Cookie{{Name: "rur", Value: "x"}})
	assert.Len(t, jar1.Cookies(u), 3)
	assert.Len(t, jar2.Cookies(u), 2)
}

func TestExpired(t *testing.T) {
	sess := newSession("collector")
	now := time.Now()
	assert.False(t, sess.Expired(now))

	sess.Cookies[0].Expires = now.Add(-time.Hour)
	assert.True(t, sess.Expired(now))
}

const cookieExport = `[
  {"domain": ".instagram.com", "expirationDate": 1767225600.5, "hostOnly": false, "httpOnly": true,
   "name": "sessionid", "path": "/", "secure": true, "session": false, "value": "s3ss"},
  {"domain": ".instagram.com", "httpOnly": false, "name": "csrftoken", "path": "", "secure": true, "value": "csrf"}
]`

func TestParseCookies(t *testing.T) {
	sess, err := ParseCookies("collector", strings.NewReader(cookieExport))
	require.NoError(t, err)

	require.Len(t, sess.Cookies, 2)
	sid := sess.Cookies[0]
	assert.Equal(t, "sessionid", sid.Name)
	assert.Equal(t, "s3ss", sid.Value)
	assert.Equal(t, ".instagram.com", sid.Domain)
	assert.True(t, sid.Secure)
	assert.True(t, sid.HTTPOnly)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), sid.Expires)

	csrf := sess.Cookies[1]
	assert.Equal(t, "/", csrf.Path)
	assert.True(t, csrf.Expires.IsZero())
	assert.Equal(t, SourceCookies, sess.Source)
}

func TestParseCookiesRejectsEmpty(t *testing.T) {
	_, err := ParseCookies("collector", strings.NewReader("[]"))
	assert.Error(t, err)

	_, err = ParseCookies("collector", strings.NewReader("{"))
	assert.Error(t, err)
}

func TestImportCookiesPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cookies.json")
	require.NoError(t, os.WriteFile(path, []byte(cookieExport), 0600))

	store := NewFileStore(dir, logger.NewNopLogger())
	_, err := store.ImportCookies("collector", path)
	require.NoError(t, err)

	loaded, err := store.LoadOrFail("collector")
	require.NoError(t, err)
	assert.Equal(t, "s3ss", loaded.Cookie("sessionid"))
	assert.FileExists(t, store.BackupPath("collector"))
}

func TestIdentityCannotEscapeSessionDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "sessions")
	store := NewFileStore(dir, logger.NewNopLogger())

	for _, identity := range []string{"../x", `..\x`, "a/b", "..", "."} {
		t.Run(identity, func(t *testing.T) {
			assert.ErrorIs(t, store.Persist(newSession(identity)), ErrInvalidIdentity)
			assert.ErrorIs(t, store.Delete(identity), ErrInvalidIdentity)

			_, err := store.LoadOrFail(identity)
			assert.ErrorIs(t, err, ErrInvalidIdentity)
			assert.ErrorIs(t, err, errs.ErrSessionNotFound)

			auth := &stubAuthenticator{sess: newSession("collector")}
			_, err = store.CreateViaLogin(context.Background(), auth, identity, "pw")
			assert.ErrorIs(t, err, ErrInvalidIdentity)

			_, err = store.ImportCookies(identity, filepath.Join(root, "cookies.json"))
			assert.ErrorIs(t, err, ErrInvalidIdentity)
		})
	}

	_, err := os.Stat(filepath.Join(root, "x_session"))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, ValidateIdentity("collector.backup_01"))
}
