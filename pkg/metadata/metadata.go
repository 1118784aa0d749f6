package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// FileName is the fixed name of the metadata document inside a staging directory.
const FileName = "profile_info.json"

// ProfileRecord is a snapshot of one profile's public metadata at capture time.
// Field order here is the key order of the written document.
type ProfileRecord struct {
	Username      string    `json:"username"`
	FullName      string    `json:"full_name"`
	Biography     string    `json:"biography"`
	MediaCount    int       `json:"mediacount"`
	Followers     int       `json:"followers"`
	Followees     int       `json:"followees"`
	IsPrivate     bool      `json:"is_private"`
	IsVerified    bool      `json:"is_verified"`
	ProfilePicURL string    `json:"profile_pic_url"`
	CapturedAt    time.Time `json:"captured_at"`
}

// NormalizeIdentifier strips a leading '@' and surrounding whitespace or
// trailing slashes from an entity identifier.
func NormalizeIdentifier(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "@")
	return strings.TrimRight(id, "/ ")
}

// Encode writes the record as indented UTF-8 JSON. Non-ASCII text and
// characters such as '&' in bios are written verbatim.
func (r *ProfileRecord) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to marshal profile record: %w", err)
	}
	return nil
}

// Marshal returns the encoded document.
func (r *ProfileRecord) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the record to path.
func (r *ProfileRecord) Save(path string) error {
	data, err := r.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// Load reads a record from path.
func Load(path string) (*ProfileRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	var rec ProfileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return &rec, nil
}
