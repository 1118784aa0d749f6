package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"igsync/pkg/logger"
)

const journalSuffix = ".run.json"

// Entry is the journaled outcome of the latest acquisition run for an entity.
type Entry struct {
	Entity     string    `json:"entity"`
	RunID      string    `json:"run_id"`
	State      string    `json:"state"`
	Error      string    `json:"error,omitempty"`
	ErrorType  string    `json:"error_type,omitempty"`
	StagingDir string    `json:"staging_dir,omitempty"`
	Uploaded   []string  `json:"uploaded,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	// Runs counts every run recorded for the entity, this one included.
	Runs    int `json:"runs"`
	Version int `json:"version"`
}

// Duration returns how long the run took.
func (e *Entry) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// Manager keeps one journal file per entity inside dir.
type Manager struct {
	dir    string
	logger logger.Logger
}

// NewManager creates a journal in dir. An empty dir selects the platform
// data directory.
func NewManager(dir string, log logger.Logger) (*Manager, error) {
	if dir == "" {
		dataDir, err := getDataDirectory()
		if err != nil {
			return nil, fmt.Errorf("failed to get data directory: %w", err)
		}
		dir = filepath.Join(dataDir, "runs")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Manager{dir: dir, logger: log.WithField("component", "journal")}, nil
}

// Path returns the journal file for entity.
func (m *Manager) Path(entity string) string {
	return filepath.Join(m.dir, entity+journalSuffix)
}

// Load returns the journaled entry for entity, or nil when none exists.
func (m *Manager) Load(entity string) (*Entry, error) {
	file, err := os.Open(m.Path(entity))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}
	defer file.Close()

	var entry Entry
	if err := json.NewDecoder(file).Decode(&entry); err != nil {
		return nil, fmt.Errorf("failed to decode journal entry: %w", err)
	}
	return &entry, nil
}

// Record replaces the entity's entry atomically, carrying the run count over.
func (m *Manager) Record(entry *Entry) error {
	if entry.Entity == "" {
		return fmt.Errorf("journal entry has no entity")
	}

	prev, err := m.Load(entry.Entity)
	if err != nil {
		m.logger.WarnWithFields("discarding unreadable journal entry", map[string]interface{}{
			"entity": entry.Entity,
			"error":  err.Error(),
		})
	}
	entry.Runs = 1
	if prev != nil {
		entry.Runs = prev.Runs + 1
	}
	entry.Version = 1

	path := m.Path(entry.Entity)
	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary journal file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(entry); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync journal file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close journal file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace journal file: %w", err)
	}

	m.logger.DebugWithFields("run journaled", map[string]interface{}{
		"entity": entry.Entity,
		"run_id": entry.RunID,
		"state":  entry.State,
	})
	return nil
}

// List returns every journaled entry sorted by entity.
func (m *Manager) List() ([]*Entry, error) {
	dirEntries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal directory: %w", err)
	}

	var entries []*Entry
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, journalSuffix) {
			continue
		}
		e, err := m.Load(strings.TrimSuffix(name, journalSuffix))
		if err != nil || e == nil {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Entity < entries[j].Entity })
	return entries, nil
}

// Delete removes the entity's entry
func (m *Manager) Delete(entity string) error {
	if err := os.Remove(m.Path(entity)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete journal entry: %w", err)
	}
	return nil
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "igsync")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "igsync")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "igsync")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "igsync")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}
