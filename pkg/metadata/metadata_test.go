package metadata

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() *ProfileRecord {
	return &ProfileRecord{
		Username:      "nasa",
		FullName:      "NASA",
		Biography:     "Explore the universe & discover our home planet 🌍 São Paulo",
		MediaCount:    4200,
		Followers:     90000000,
		Followees:     80,
		IsPrivate:     false,
		IsVerified:    true,
		ProfilePicURL: "https://cdn.example.com/nasa.jpg?a=1&b=2",
		CapturedAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	rec := sampleRecord()

	require.NoError(t, rec.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, rec, loaded)
}

func TestEncodePreservesNonASCIIAndOrder(t *testing.T) {
	data, err := sampleRecord().Marshal()
	require.NoError(t, err)
	doc := string(data)

	assert.Contains(t, doc, "São Paulo")
	assert.Contains(t, doc, "🌍")
	assert.Contains(t, doc, "&b=2", "ampersands must not be escaped")
	assert.NotContains(t, doc, `\u`)
	assert.True(t, strings.HasPrefix(doc, "{\n  \"username\""), "document is indented with username first")

	keys := []string{"username", "full_name", "biography", "mediacount", "followers",
		"followees", "is_private", "is_verified", "profile_pic_url", "captured_at"}
	last := -1
	for _, k := range keys {
		idx := strings.Index(doc, `"`+k+`"`)
		require.Greater(t, idx, last, "key %s out of order", k)
		last = idx
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestNormalizeIdentifier(t *testing.T) {
	tests := map[string]string{
		"nasa":    "nasa",
		"@nasa":   "nasa",
		" @nasa ": "nasa",
		"nasa/":   "nasa",
		"":        "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeIdentifier(in), "input %q", in)
	}
}
