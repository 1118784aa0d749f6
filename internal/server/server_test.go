package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igsync/pkg/acquisition"
	errs "igsync/pkg/errors"
	"igsync/pkg/logger"
	"igsync/pkg/session"
	"igsync/pkg/storage"
)

var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

type fakeAcquirer struct {
	dir      string
	state    acquisition.State
	err      error
	entities []string
}

func (f *fakeAcquirer) Run(ctx context.Context, entity string) (*acquisition.Result, error) {
	f.entities = append(f.entities, entity)
	if f.err != nil {
		return &acquisition.Result{Entity: entity, State: acquisition.StateFailed, Err: f.err}, f.err
	}

	stagingDir := filepath.Join(f.dir, entity)
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(stagingDir, storage.AvatarFileName), jpegBytes, 0644); err != nil {
		return nil, err
	}
	res := &acquisition.Result{Entity: entity, State: f.state, StagingDir: stagingDir}
	if f.state == acquisition.StateSyncFailed {
		res.Err = errs.Sync(errors.New("bucket unreachable"), "sync failed")
	}
	return res, nil
}

type fakeSessions struct {
	stored   bool
	loginErr error
	logins   int
}

func (f *fakeSessions) LoadOrFail(identity string) (*session.Session, error) {
	if !f.stored {
		return nil, errs.New(errs.ErrorTypeSessionNotFound, "no session for "+identity)
	}
	return &session.Session{Username: identity}, nil
}

func (f *fakeSessions) CreateViaLogin(ctx context.Context, auth session.Authenticator, identity, secret string) (*session.Session, error) {
	f.logins++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	f.stored = true
	return &session.Session{Username: identity}, nil
}

type nopAuthenticator struct{}

func (nopAuthenticator) Authenticate(ctx context.Context, identity, secret string) (*session.Session, error) {
	return &session.Session{Username: identity}, nil
}

func newTestRouter(acq Acquirer, sessions SessionBootstrapper, opts Options) *gin.Engine {
	return New(acq, sessions, opts, logger.NewTestLogger()).Router(gin.TestMode)
}

func postProfile(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/get_instagram_profile", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestGetProfileReturnsAvatar(t *testing.T) {
	acq := &fakeAcquirer{dir: t.TempDir(), state: acquisition.StateSynced}
	router := newTestRouter(acq, &fakeSessions{stored: true}, Options{})

	rec := postProfile(t, router, `{"username": "@nasa"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, jpegBytes, rec.Body.Bytes())
	assert.Equal(t, []string{"nasa"}, acq.entities)
}

func TestGetProfileServesAvatarWhenSyncFails(t *testing.T) {
	acq := &fakeAcquirer{dir: t.TempDir(), state: acquisition.StateSyncFailed}
	router := newTestRouter(acq, &fakeSessions{stored: true}, Options{})

	rec := postProfile(t, router, `{"username": "nasa"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, jpegBytes, rec.Body.Bytes())
}

func TestGetProfileErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", errs.NotFound("profile doesnotexist123456 not found"), http.StatusNotFound},
		{"invalid credentials", errs.New(errs.ErrorTypeInvalidCredentials, "bad password"), http.StatusUnauthorized},
		{"two factor", errs.New(errs.ErrorTypeTwoFactor, "code required"), http.StatusForbidden},
		{"auth", errs.New(errs.ErrorTypeAuth, "checkpoint"), http.StatusInternalServerError},
		{"network", errs.Network(errors.New("connection refused"), "request failed"), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acq := &fakeAcquirer{dir: t.TempDir(), err: tt.err}
			router := newTestRouter(acq, &fakeSessions{stored: true}, Options{})

			rec := postProfile(t, router, `{"username": "doesnotexist123456"}`)

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
			body := decodeError(t, rec)
			assert.NotEmpty(t, body["error"])
			assert.Equal(t, string(errs.TypeOf(tt.err)), body["type"])
		})
	}
}

func TestGetProfileRejectsBadRequests(t *testing.T) {
	acq := &fakeAcquirer{dir: t.TempDir(), state: acquisition.StateSynced}
	router := newTestRouter(acq, &fakeSessions{stored: true}, Options{})

	for _, body := range []string{`{}`, `not json`, `{"username": "@"}`, `{"username": "../etc"}`} {
		rec := postProfile(t, router, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
	}
	assert.Empty(t, acq.entities)
}

func TestGetProfileLogsInWhenSessionMissing(t *testing.T) {
	acq := &fakeAcquirer{dir: t.TempDir(), state: acquisition.StateSynced}
	sessions := &fakeSessions{}
	router := newTestRouter(acq, sessions, Options{
		Identity:      "operator",
		Secret:        "hunter2",
		Authenticator: nopAuthenticator{},
	})

	rec := postProfile(t, router, `{"username": "nasa"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postProfile(t, router, `{"username": "nasa"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1, sessions.logins, "a stored session must be reused")
}

func TestGetProfileLoginFailures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid credentials", errs.New(errs.ErrorTypeInvalidCredentials, "bad password"), http.StatusUnauthorized},
		{"two factor", errs.New(errs.ErrorTypeTwoFactor, "code required"), http.StatusForbidden},
		{"other", errs.New(errs.ErrorTypeAuth, "login failed"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acq := &fakeAcquirer{dir: t.TempDir(), state: acquisition.StateSynced}
			router := newTestRouter(acq, &fakeSessions{loginErr: tt.err}, Options{
				Identity:      "operator",
				Secret:        "hunter2",
				Authenticator: nopAuthenticator{},
			})

			rec := postProfile(t, router, `{"username": "nasa"}`)

			assert.Equal(t, tt.status, rec.Code)
			assert.Empty(t, acq.entities, "acquisition must not run after a failed login")
		})
	}
}

func TestGetProfileWithoutCredentialsSkipsLogin(t *testing.T) {
	sessionErr := errs.New(errs.ErrorTypeSessionNotFound, "no session for operator")
	acq := &fakeAcquirer{dir: t.TempDir(), err: sessionErr}
	sessions := &fakeSessions{}
	router := newTestRouter(acq, sessions, Options{Identity: "operator"})

	rec := postProfile(t, router, `{"username": "nasa"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 0, sessions.logins)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(&fakeAcquirer{}, nil, Options{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestStatusFor(t *testing.T) {
	status, _ := StatusFor(errs.NotFound("x"))
	assert.Equal(t, http.StatusNotFound, status)

	wrapped := errs.Wrap(errs.ErrorTypeUnknown, errs.New(errs.ErrorTypeTwoFactor, "2fa"), "login")
	status, _ = StatusFor(wrapped)
	assert.Equal(t, http.StatusForbidden, status)
}
