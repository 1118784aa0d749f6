package session

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Cookie is the persisted form of one provider cookie.
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Secure   bool      `json:"secure"`
	HTTPOnly bool      `json:"http_only"`
	Expires  time.Time `json:"expires,omitempty"`
}

// Session is the authenticated state for one account identity.
type Session struct {
	Username  string    `json:"username"`
	Cookies   []Cookie  `json:"cookies"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Session sources
const (
	SourceLogin   = "login"
	SourceCookies = "cookies"
)

// Cookie returns the value of the named cookie, or "".
func (s *Session) Cookie(name string) string {
	for _, c := range s.Cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// CSRFToken returns the csrftoken cookie value.
func (s *Session) CSRFToken() string {
	return s.Cookie("csrftoken")
}

// Expired reports whether the sessionid cookie has passed its expiry.
func (s *Session) Expired(now time.Time) bool {
	for _, c := range s.Cookies {
		if c.Name == "sessionid" {
			return !c.Expires.IsZero() && now.After(c.Expires)
		}
	}
	return false
}

// HTTPCookies converts the session cookies to net/http cookies.
func (s *Session) HTTPCookies() []*http.Cookie {
	out := make([]*http.Cookie, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		out = append(out, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
			Expires:  c.Expires,
		})
	}
	return out
}

// Jar builds a fresh cookie jar seeded with the session cookies. Each call
// returns an independent jar so concurrent runs never share cookie state.
func (s *Session) Jar() (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	byOrigin := make(map[string][]*http.Cookie)
	for _, c := range s.HTTPCookies() {
		host := strings.TrimPrefix(c.Domain, ".")
		if host == "" {
			continue
		}
		scheme := "http"
		if c.Secure {
			scheme = "https"
		}
		origin := scheme + "://" + host
		byOrigin[origin] = append(byOrigin[origin], c)
	}

	for origin, cookies := range byOrigin {
		u, err := url.Parse(origin + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid cookie domain %q: %w", origin, err)
		}
		jar.SetCookies(u, cookies)
	}
	return jar, nil
}

// FromHTTPCookies builds a session from cookies returned by a login exchange.
func FromHTTPCookies(username string, cookies []*http.Cookie, defaultDomain string) *Session {
	now := time.Now().UTC()
	s := &Session{Username: username, Source: SourceLogin, CreatedAt: now, UpdatedAt: now}
	for _, c := range cookies {
		domain := c.Domain
		if domain == "" {
			domain = defaultDomain
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		s.Cookies = append(s.Cookies, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   domain,
			Path:     path,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
			Expires:  c.Expires.UTC(),
		})
	}
	return s
}
