package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"igsync/pkg/config"
	errs "igsync/pkg/errors"
	"igsync/pkg/logger"
	"igsync/pkg/metadata"
	"igsync/pkg/session"
)

// Client talks to Instagram's web API. It implements Provider.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	logger     logger.Logger
	now        func() time.Time
}

// NewClient creates a new Instagram API client
func NewClient(cfg config.ProviderConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	base := cfg.BaseURL
	if base == "" {
		base = BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	headers := map[string]string{
		"Accept":          "*/*",
		"Accept-Language": "en-US,en;q=0.9",
		"Cache-Control":   "no-cache",
		"Pragma":          "no-cache",
	}
	if cfg.UserAgent != "" {
		headers["User-Agent"] = cfg.UserAgent
	}
	if cfg.AppID != "" {
		headers["X-IG-App-ID"] = cfg.AppID
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		headers:    headers,
		baseURL:    strings.TrimRight(base, "/"),
		logger:     log.WithField("component", "instagram"),
		now:        time.Now,
	}
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// clientFor returns an HTTP client carrying the session's cookies. Each call
// gets its own jar so concurrent sessions never share cookie state.
func (c *Client) clientFor(sess *session.Session) (*http.Client, error) {
	if sess == nil {
		return c.httpClient, nil
	}
	jar, err := sess.Jar()
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeAuth, err, "invalid session cookies")
	}
	return &http.Client{
		Transport: c.httpClient.Transport,
		Timeout:   c.httpClient.Timeout,
		Jar:       jar,
	}, nil
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(hc *http.Client, req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := hc.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errs.Network(err, "request failed")
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// checkResponseStatus maps an HTTP status to the error taxonomy
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    resp.Request.URL.String(),
	}

	t := errs.FromStatusCode(resp.StatusCode)
	switch t {
	case errs.ErrorTypeAuth:
		c.logger.WarnWithFields("authentication error", fields)
		return &errs.Error{Type: t, Message: "authentication required", Code: resp.StatusCode}
	case errs.ErrorTypeNotFound:
		c.logger.WarnWithFields("resource not found", fields)
		return &errs.Error{Type: t, Message: "resource not found", Code: resp.StatusCode}
	case errs.ErrorTypeRateLimit:
		c.logger.WarnWithFields("rate limit exceeded", fields)
		return &errs.Error{Type: t, Message: "rate limit exceeded", Code: resp.StatusCode}
	case errs.ErrorTypeServerError:
		c.logger.ErrorWithFields("server error", fields)
		return &errs.Error{Type: t, Message: "server error", Code: resp.StatusCode}
	default:
		c.logger.ErrorWithFields("unexpected API error", fields)
		return &errs.Error{Type: errs.ErrorTypeUnknown, Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode), Code: resp.StatusCode}
	}
}

// getJSON performs a GET request and decodes the JSON response
func (c *Client) getJSON(ctx context.Context, hc *http.Client, rawURL string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create request")
	}

	resp, err := c.doRequest(hc, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errs.Error{Type: errs.ErrorTypeNetwork, Message: "failed to read response body", Code: resp.StatusCode, Err: err}
	}

	if statusErr := c.checkResponseStatus(resp); statusErr != nil {
		// Instagram answers some auth failures with a JSON body on 4xx
		var probe profileResponse
		if json.Unmarshal(body, &probe) == nil && probe.RequiresToLogin {
			return &errs.Error{Type: errs.ErrorTypeAuth, Message: "login required", Code: resp.StatusCode}
		}
		return statusErr
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          rawURL,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return &errs.Error{Type: errs.ErrorTypeParsing, Message: "failed to parse JSON", Code: resp.StatusCode, Err: err}
	}

	return nil
}

// FetchProfile fetches the public metadata of username using sess.
func (c *Client) FetchProfile(ctx context.Context, sess *session.Session, username string) (*metadata.ProfileRecord, error) {
	if !IsValidUsername(username) {
		return nil, errs.NotFound(fmt.Sprintf("%q is not a valid profile name", username))
	}

	hc, err := c.clientFor(sess)
	if err != nil {
		return nil, err
	}

	profileURL := ProfileURL(c.baseURL, username)
	c.logger.DebugWithFields("fetching user profile", map[string]interface{}{
		"username": username,
		"url":      profileURL,
	})

	var response profileResponse
	if err := c.getJSON(ctx, hc, profileURL, &response); err != nil {
		c.logger.ErrorWithFields("failed to fetch user profile", map[string]interface{}{
			"username": username,
			"error":    err.Error(),
		})
		return nil, err
	}

	if response.RequiresToLogin {
		c.logger.WarnWithFields("authentication required for profile", map[string]interface{}{
			"username": username,
		})
		return nil, &errs.Error{Type: errs.ErrorTypeAuth, Message: "Instagram requires authentication to view this profile", Code: http.StatusUnauthorized}
	}

	if response.Data.User == nil {
		return nil, errs.NotFound(fmt.Sprintf("profile %s does not exist", username))
	}

	rec := response.Data.User.Record(c.now())
	if rec.Username == "" {
		rec.Username = username
	}

	c.logger.DebugWithFields("successfully fetched user profile", map[string]interface{}{
		"username":  username,
		"followers": rec.Followers,
	})
	return rec, nil
}

// avatarTempName is the name the avatar is first downloaded under, before
// staging renames it.
func avatarTempName(capturedAt time.Time) string {
	return capturedAt.UTC().Format("2006-01-02_15-04-05") + "_UTC_profile_pic.jpg"
}

// DownloadAvatar downloads rec's avatar into dir and returns the file path.
func (c *Client) DownloadAvatar(ctx context.Context, sess *session.Session, rec *metadata.ProfileRecord, dir string) (string, error) {
	if rec == nil || rec.ProfilePicURL == "" {
		return "", errs.New(errs.ErrorTypeParsing, "profile has no avatar URL")
	}

	hc, err := c.clientFor(sess)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rec.ProfilePicURL, nil)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeParsing, err, "invalid avatar URL")
	}

	c.logger.DebugWithFields("downloading avatar", map[string]interface{}{
		"username": rec.Username,
		"url":      rec.ProfilePicURL,
	})

	resp, err := c.doRequest(hc, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return "", err
	}

	path := filepath.Join(dir, avatarTempName(rec.CapturedAt))
	f, err := os.Create(path)
	if err != nil {
		return "", errs.StagingIO(err, "failed to create avatar file")
	}

	n, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if copyErr != nil {
		_ = os.Remove(path)
		return "", errs.Network(copyErr, "failed to download avatar")
	}
	if closeErr != nil {
		_ = os.Remove(path)
		return "", errs.StagingIO(closeErr, "failed to write avatar file")
	}

	c.logger.DebugWithFields("successfully downloaded avatar", map[string]interface{}{
		"username": rec.Username,
		"size":     n,
	})
	return path, nil
}

// Authenticate performs the web login handshake and returns the resulting
// session. Provider-reported failures map to invalid_credentials,
// two_factor or auth errors.
func (c *Client) Authenticate(ctx context.Context, identity, secret string) (*session.Session, error) {
	cookies := make(map[string]*http.Cookie)
	collect := func(resp *http.Response) {
		for _, ck := range resp.Cookies() {
			cookies[ck.Name] = ck
		}
	}

	pageReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+LoginPageEndpoint, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create request")
	}
	pageResp, err := c.doRequest(c.httpClient, pageReq)
	if err != nil {
		return nil, err
	}
	_, _ = io.Copy(io.Discard, pageResp.Body)
	pageResp.Body.Close()
	if err := c.checkResponseStatus(pageResp); err != nil {
		return nil, err
	}
	collect(pageResp)

	csrf := ""
	if ck, ok := cookies["csrftoken"]; ok {
		csrf = ck.Value
	}

	form := url.Values{}
	form.Set("username", identity)
	form.Set("enc_password", fmt.Sprintf("#PWD_INSTAGRAM_BROWSER:0:%d:%s", c.now().Unix(), secret))
	form.Set("queryParams", "{}")
	form.Set("optIntoOneTap", "false")

	loginReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+LoginEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create request")
	}
	for _, ck := range cookies {
		loginReq.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}

	resp, err := c.doRequest(c.httpClient, withLoginHeaders(loginReq, csrf, c.baseURL))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	collect(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Network(err, "failed to read login response")
	}

	var lr loginResponse
	if jsonErr := json.Unmarshal(body, &lr); jsonErr != nil {
		if statusErr := c.checkResponseStatus(resp); statusErr != nil {
			return nil, statusErr
		}
		return nil, &errs.Error{Type: errs.ErrorTypeParsing, Message: "failed to parse login response", Code: resp.StatusCode, Err: jsonErr}
	}

	switch {
	case lr.TwoFactorRequired:
		c.logger.WarnWithFields("two-factor authentication required", map[string]interface{}{"username": identity})
		return nil, &errs.Error{Type: errs.ErrorTypeTwoFactor, Message: "two-factor authentication required", Code: resp.StatusCode}
	case lr.CheckpointURL != "" || lr.Message == "checkpoint_required":
		return nil, &errs.Error{Type: errs.ErrorTypeAuth, Message: "login checkpoint required: " + lr.CheckpointURL, Code: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &errs.Error{Type: errs.ErrorTypeRateLimit, Message: "login rate limited", Code: resp.StatusCode}
	case lr.Status == "fail":
		msg := lr.Message
		if msg == "" {
			msg = "login failed"
		}
		return nil, &errs.Error{Type: errs.ErrorTypeAuth, Message: msg, Code: resp.StatusCode}
	case !lr.Authenticated:
		msg := "wrong password"
		if !lr.User {
			msg = fmt.Sprintf("login error: user %s does not exist", identity)
		}
		c.logger.WarnWithFields("login rejected", map[string]interface{}{"username": identity})
		return nil, &errs.Error{Type: errs.ErrorTypeInvalidCredentials, Message: msg, Code: resp.StatusCode}
	}

	if _, ok := cookies["sessionid"]; !ok {
		return nil, errs.New(errs.ErrorTypeAuth, "login succeeded but no session cookie was issued")
	}

	list := make([]*http.Cookie, 0, len(cookies))
	for _, ck := range cookies {
		list = append(list, ck)
	}
	sess := session.FromHTTPCookies(identity, list, cookieDomain(c.baseURL))
	if strings.HasPrefix(c.baseURL, "https://") {
		for i := range sess.Cookies {
			sess.Cookies[i].Secure = true
		}
	}

	c.logger.InfoWithFields("login succeeded", map[string]interface{}{
		"username": identity,
		"cookies":  len(sess.Cookies),
	})
	return sess, nil
}

func withLoginHeaders(req *http.Request, csrf, base string) *http.Request {
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Referer", base+LoginPageEndpoint)
	if csrf != "" {
		req.Header.Set("X-CSRFToken", csrf)
	}
	return req
}

// cookieDomain is the domain recorded for cookies the login exchange set
// without one: ".instagram.com" for the real site, the bare host otherwise.
func cookieDomain(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return host
	}
	return "." + strings.TrimPrefix(host, "www.")
}
