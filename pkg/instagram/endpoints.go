package instagram

import (
	"net/url"
	"regexp"
	"strings"
)

// BaseURL is the production web origin. Tests point the client elsewhere
// through config.ProviderConfig.BaseURL.
const BaseURL = "https://www.instagram.com"

// Paths on the web origin. The login page is fetched first so the origin
// sets a csrftoken cookie that the login form must echo back.
const (
	LoginPageEndpoint = "/accounts/login/"
	LoginEndpoint     = "/accounts/login/ajax/"
	ProfileEndpoint   = "/api/v1/users/web_profile_info/"
)

// usernamePattern mirrors the handle rules the site enforces at sign-up.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._]{1,30}$`)

// ProfileURL is the JSON profile lookup for username on base.
func ProfileURL(base, username string) string {
	return strings.TrimRight(base, "/") + ProfileEndpoint + "?" + url.Values{"username": {username}}.Encode()
}

// UserProfileURL is the human-facing page for username, or "" without one.
func UserProfileURL(base, username string) string {
	if username == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" + username + "/"
}

func IsValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}
