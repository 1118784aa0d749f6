package server

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igsync/internal/testutil"
	"igsync/pkg/acquisition"
	"igsync/pkg/config"
	"igsync/pkg/instagram"
	"igsync/pkg/logger"
	"igsync/pkg/ratelimit"
	"igsync/pkg/retry"
	"igsync/pkg/session"
	"igsync/pkg/storage"
)

func newLiveRouter(t *testing.T, mock *testutil.MockInstagramServer, secret string) (*gin.Engine, *session.FileStore) {
	t.Helper()
	log := logger.NewTestLogger()

	cfg := config.DefaultConfig()
	cfg.Provider.BaseURL = mock.URL()
	provider := instagram.NewPacedProvider(instagram.NewClient(cfg.Provider, log), ratelimit.Disabled{}, log)

	sessions := session.NewFileStore(t.TempDir(), log)
	staging, err := storage.NewManager(filepath.Join(t.TempDir(), "dados"), log)
	require.NoError(t, err)

	retryCfg := retry.FromSettings(cfg.Retry, log)
	retryCfg.Sleep = func(ctx context.Context, d time.Duration) error { return nil }

	orch, err := acquisition.New(acquisition.Options{
		Identity: "operator",
		Retry:    retryCfg,
	}, acquisition.Deps{
		Sessions: sessions,
		Provider: provider,
		Staging:  staging,
		Logger:   log,
	})
	require.NoError(t, err)

	srv := New(orch, sessions, Options{
		Identity:      "operator",
		Secret:        secret,
		Authenticator: provider,
	}, log)
	return srv.Router(gin.TestMode), sessions
}

func TestLiveLoginThenAvatar(t *testing.T) {
	mock := testutil.NewMockInstagramServer("hunter2")
	defer mock.Close()
	mock.AddProfile(testutil.Profile{Username: "nasa", FullName: "NASA", Followers: 10})

	router, sessions := newLiveRouter(t, mock, "hunter2")

	rec := postProfile(t, router, `{"username": "nasa"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, testutil.JPEG, rec.Body.Bytes())

	sess, err := sessions.LoadOrFail("operator")
	require.NoError(t, err)
	assert.Equal(t, testutil.SessionID, sess.Cookie("sessionid"))

	rec = postProfile(t, router, `{"username": "nasa"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, mock.LoginCount())
}

func TestLiveLoginStatusCodes(t *testing.T) {
	t.Run("wrong password", func(t *testing.T) {
		mock := testutil.NewMockInstagramServer("hunter2")
		defer mock.Close()
		router, _ := newLiveRouter(t, mock, "wrong")

		rec := postProfile(t, router, `{"username": "nasa"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("two factor", func(t *testing.T) {
		mock := testutil.NewMockInstagramServer("hunter2")
		defer mock.Close()
		mock.RequireTwoFactor(true)
		router, _ := newLiveRouter(t, mock, "hunter2")

		rec := postProfile(t, router, `{"username": "nasa"}`)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestLiveMissingProfile(t *testing.T) {
	mock := testutil.NewMockInstagramServer("hunter2")
	defer mock.Close()
	router, _ := newLiveRouter(t, mock, "hunter2")

	rec := postProfile(t, router, `{"username": "doesnotexist123456"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "not_found", body["type"])
}
