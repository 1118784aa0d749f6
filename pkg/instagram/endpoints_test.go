package instagram

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileURL(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		username string
		expected string
	}{
		{"simple username", BaseURL, "testuser", BaseURL + ProfileEndpoint + "?username=testuser"},
		{"username with dots", BaseURL, "test.user", BaseURL + ProfileEndpoint + "?username=test.user"},
		{"trailing slash base", "http://localhost:9000/", "nasa", "http://localhost:9000" + ProfileEndpoint + "?username=nasa"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ProfileURL(tt.base, tt.username)
			assert.Equal(t, tt.expected, result)

			_, err := url.Parse(result)
			require.NoError(t, err)
		})
	}
}

func TestUserProfileURL(t *testing.T) {
	assert.Equal(t, "https://www.instagram.com/nasa/", UserProfileURL(BaseURL, "nasa"))
	assert.Empty(t, UserProfileURL(BaseURL, ""))
}

func TestIsValidUsername(t *testing.T) {
	valid := []string{"nasa", "test_user", "test.user", "user123", "a", "abcdefghijklmnopqrstuvwxyz1234"}
	invalid := []string{"", "user-name", "user name", "user@name", "abcdefghijklmnopqrstuvwxyz12345", "usér"}

	for _, u := range valid {
		assert.True(t, IsValidUsername(u), "expected %q to be valid", u)
	}
	for _, u := range invalid {
		assert.False(t, IsValidUsername(u), "expected %q to be invalid", u)
	}
}
