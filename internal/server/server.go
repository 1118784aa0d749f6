package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"igsync/pkg/acquisition"
	errs "igsync/pkg/errors"
	"igsync/pkg/logger"
	"igsync/pkg/metadata"
	"igsync/pkg/session"
)

// Acquirer runs the acquisition pipeline for one entity.
type Acquirer interface {
	Run(ctx context.Context, entity string) (*acquisition.Result, error)
}

// SessionBootstrapper loads the stored session and, when it is missing,
// creates one through a login handshake.
type SessionBootstrapper interface {
	LoadOrFail(identity string) (*session.Session, error)
	CreateViaLogin(ctx context.Context, auth session.Authenticator, identity, secret string) (*session.Session, error)
}

// Options configures the internal login attempted when no session is stored.
// Login is skipped when Secret or Authenticator is empty.
type Options struct {
	Identity      string
	Secret        string
	Authenticator session.Authenticator
}

// Server exposes the acquisition pipeline over HTTP.
type Server struct {
	acquirer Acquirer
	sessions SessionBootstrapper
	opts     Options
	logger   logger.Logger

	// login serializes bootstrap attempts so concurrent requests do not
	// all hit the provider's login endpoint.
	login sync.Mutex
}

// ProfileRequest is the body of POST /api/get_instagram_profile.
type ProfileRequest struct {
	Username string `json:"username" binding:"required"`
}

// New creates a Server.
func New(acquirer Acquirer, sessions SessionBootstrapper, opts Options, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Server{
		acquirer: acquirer,
		sessions: sessions,
		opts:     opts,
		logger:   log.WithField("component", "server"),
	}
}

// Router builds the gin engine serving the API.
func (s *Server) Router(mode string) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(s.logger))

	router.GET("/healthz", s.health)
	api := router.Group("/api")
	{
		api.POST("/get_instagram_profile", s.getProfile)
	}
	return router
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr, mode string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router(mode)}

	errCh := make(chan error, 1)
	go func() {
		logger.LogComponentStart(s.logger, "http", map[string]interface{}{
			"addr":     addr,
			"mode":     mode,
			"identity": s.opts.Identity,
		})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server")
		return srv.Shutdown(context.Background())
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "igsync",
	})
}

// getProfile handles POST /api/get_instagram_profile
func (s *Server) getProfile(c *gin.Context) {
	ctx := c.Request.Context()

	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": "username is required",
		})
		return
	}
	entity := metadata.NormalizeIdentifier(req.Username)
	if entity == "" || strings.ContainsAny(entity, `/\`) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": "username is invalid",
		})
		return
	}

	if err := s.ensureSession(ctx); err != nil {
		s.fail(c, entity, err)
		return
	}

	result, err := s.acquirer.Run(ctx, entity)
	if err != nil {
		s.fail(c, entity, err)
		return
	}
	if !result.LocallyComplete() {
		s.fail(c, entity, result.Err)
		return
	}
	if result.State == acquisition.StateSyncFailed {
		s.logger.WithError(result.Err).WithField("entity", entity).Warn("Serving avatar that failed to sync")
	}

	data := result.Avatar
	if len(data) == 0 {
		if data, err = os.ReadFile(result.AvatarPath()); err != nil {
			s.fail(c, entity, errs.StagingIO(err, "failed to read staged avatar"))
			return
		}
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}

// ensureSession logs in once when no session is stored and credentials are
// configured. Without credentials the run itself reports the missing session.
func (s *Server) ensureSession(ctx context.Context) error {
	if s.opts.Secret == "" || s.opts.Authenticator == nil || s.sessions == nil {
		return nil
	}

	s.login.Lock()
	defer s.login.Unlock()

	_, err := s.sessions.LoadOrFail(s.opts.Identity)
	if err == nil || !errors.Is(err, errs.ErrSessionNotFound) {
		return nil
	}

	s.logger.InfoWithFields("No stored session, attempting login", map[string]interface{}{
		"username": s.opts.Identity,
	})
	_, err = s.sessions.CreateViaLogin(ctx, s.opts.Authenticator, s.opts.Identity, s.opts.Secret)
	return err
}

func (s *Server) fail(c *gin.Context, entity string, err error) {
	if err == nil {
		err = errs.New(errs.ErrorTypeUnknown, "acquisition failed")
	}
	status, msg := StatusFor(err)

	s.logger.WithError(err).WithFields(map[string]interface{}{
		"entity": entity,
		"status": status,
	}).Error("Profile request failed")

	c.JSON(status, gin.H{
		"error":   msg,
		"type":    string(errs.TypeOf(err)),
		"details": err.Error(),
	})
}

// StatusFor maps a pipeline failure to an HTTP status and a short message.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "Profile not found"
	case errors.Is(err, errs.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, errs.ErrTwoFactorRequired):
		return http.StatusForbidden, "Two-factor authentication required"
	case errors.Is(err, errs.ErrSessionNotFound), errs.IsAuthFailure(err):
		return http.StatusInternalServerError, "Authentication failed"
	case errors.Is(err, errs.ErrNetwork), errors.Is(err, errs.ErrRateLimited):
		return http.StatusInternalServerError, "Connection to provider failed"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}
