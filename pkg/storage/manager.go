package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	errs "igsync/pkg/errors"
	"igsync/pkg/logger"
	"igsync/pkg/metadata"
)

// AvatarFileName is the final name of the avatar inside a staging directory.
const AvatarFileName = "profile_pic.jpg"

// Manager owns the staging root. Each entity gets root/{entity}; distinct
// entities never share a directory, so runs for different entities may
// stage concurrently.
type Manager struct {
	root   string
	logger logger.Logger
}

// NewManager creates a new staging manager rooted at root
func NewManager(root string, log logger.Logger) (*Manager, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errs.StagingIO(err, "failed to create staging root")
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Manager{root: root, logger: log.WithField("component", "staging")}, nil
}

// Root returns the staging root directory
func (m *Manager) Root() string {
	return m.root
}

// Dir returns the staging directory for entity without touching the disk.
func (m *Manager) Dir(entity string) string {
	return filepath.Join(m.root, entity)
}

// Exists reports whether entity has a staging directory.
func (m *Manager) Exists(entity string) bool {
	info, err := os.Stat(m.Dir(entity))
	return err == nil && info.IsDir()
}

// Prepare returns an empty staging directory for entity, removing whatever a
// previous run left behind.
func (m *Manager) Prepare(entity string) (string, error) {
	if entity == "" || strings.ContainsAny(entity, `/\`) || entity == "." || entity == ".." {
		return "", errs.StagingIO(nil, fmt.Sprintf("invalid entity name %q", entity))
	}

	dir := m.Dir(entity)
	if err := os.RemoveAll(dir); err != nil {
		return "", errs.StagingIO(err, "failed to clear staging directory")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errs.StagingIO(err, "failed to create staging directory")
	}

	m.logger.DebugWithFields("staging directory prepared", map[string]interface{}{
		"entity": entity,
		"dir":    dir,
	})
	return dir, nil
}

// WriteMetadata writes rec as dir/profile_info.json through a temporary file
// and rename.
func (m *Manager) WriteMetadata(dir string, rec *metadata.ProfileRecord) (string, error) {
	filename := filepath.Join(dir, metadata.FileName)
	tempFile := filename + ".tmp"

	out, err := os.Create(tempFile)
	if err != nil {
		return "", errs.StagingIO(err, "failed to create metadata file")
	}

	err = rec.Encode(out)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", errs.StagingIO(err, "failed to write metadata")
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return "", errs.StagingIO(closeErr, "failed to close metadata file")
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", errs.StagingIO(err, "failed to rename metadata file")
	}

	return filename, nil
}

// StoreAsset moves a downloaded avatar to dir/profile_pic.jpg. A missing
// source file is a staging failure. Content that does not sniff as an image
// is kept but logged.
func (m *Manager) StoreAsset(tempPath, dir string) (string, error) {
	if _, err := os.Stat(tempPath); err != nil {
		return "", errs.StagingIO(err, "downloaded avatar is missing")
	}

	target := filepath.Join(dir, AvatarFileName)
	if err := os.Rename(tempPath, target); err != nil {
		return "", errs.StagingIO(err, "failed to rename avatar")
	}

	if mt, err := mimetype.DetectFile(target); err == nil && !strings.HasPrefix(mt.String(), "image/") {
		m.logger.WarnWithFields("avatar does not look like an image", map[string]interface{}{
			"path": target,
			"mime": mt.String(),
		})
	}

	return target, nil
}

// Members lists the regular files directly inside dir, sorted by name.
func Members(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.StagingIO(err, "failed to read staging directory")
	}

	var files []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files, nil
}

// Discard removes entity's staging directory.
func (m *Manager) Discard(entity string) error {
	if err := os.RemoveAll(m.Dir(entity)); err != nil {
		return errs.StagingIO(err, "failed to remove staging directory")
	}
	return nil
}
