package session

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"
)

// browserCookie matches the JSON produced by common browser cookie-export
// extensions.
type browserCookie struct {
	Name           string   `json:"name"`
	Value          string   `json:"value"`
	Domain         string   `json:"domain"`
	Path           string   `json:"path"`
	Secure         bool     `json:"secure"`
	HTTPOnly       bool     `json:"httpOnly"`
	ExpirationDate *float64 `json:"expirationDate,omitempty"`
}

// ParseCookies decodes a browser cookie export into a session for identity.
func ParseCookies(identity string, r io.Reader) (*Session, error) {
	var exported []browserCookie
	if err := json.NewDecoder(r).Decode(&exported); err != nil {
		return nil, fmt.Errorf("failed to decode cookie export: %w", err)
	}
	if len(exported) == 0 {
		return nil, fmt.Errorf("cookie export is empty")
	}

	now := time.Now().UTC()
	sess := &Session{Username: identity, Source: SourceCookies, CreatedAt: now, UpdatedAt: now}
	for _, bc := range exported {
		c := Cookie{
			Name:     bc.Name,
			Value:    bc.Value,
			Domain:   bc.Domain,
			Path:     bc.Path,
			Secure:   bc.Secure,
			HTTPOnly: bc.HTTPOnly,
		}
		if c.Path == "" {
			c.Path = "/"
		}
		if bc.ExpirationDate != nil && *bc.ExpirationDate > 0 {
			sec, frac := math.Modf(*bc.ExpirationDate)
			c.Expires = time.Unix(int64(sec), int64(frac*1e9)).UTC().Truncate(time.Second)
		}
		sess.Cookies = append(sess.Cookies, c)
	}
	return sess, nil
}

// ImportCookies reads a browser cookie export from path and persists it as
// the session for identity.
func (s *FileStore) ImportCookies(identity, path string) (*Session, error) {
	if err := ValidateIdentity(identity); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cookie file: %w", err)
	}
	defer f.Close()

	sess, err := ParseCookies(identity, f)
	if err != nil {
		return nil, err
	}
	if sess.Cookie("sessionid") == "" {
		s.logger.WarnWithFields("cookie export has no sessionid, requests will be anonymous", map[string]interface{}{
			"path": path,
		})
	}

	if err := s.Persist(sess); err != nil {
		return nil, err
	}
	return sess, nil
}
