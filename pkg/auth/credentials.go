package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidAccount      = errors.New("invalid account")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)

// Account is the login secret for one provider account. It is only needed to
// bootstrap a session; regular runs reuse the persisted session.
type Account struct {
	Username     string    `json:"username"`
	Password     string    `json:"password"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is one place secrets can live.
type CredentialStore interface {
	Name() string
	Store(account *Account) error
	Retrieve(username string) (*Account, error)
	List() ([]*Account, error)
	Delete(username string) error
}

// Manager layers stores by preference. Writes go to the first store that
// accepts them, reads come from the first store that has the account.
type Manager struct {
	stores []CredentialStore
}

// NewManager layers the system keyring (when reachable), an encrypted file
// under the user config dir and the environment.
func NewManager() (*Manager, error) {
	dir, err := credentialDir()
	if err != nil {
		return nil, err
	}
	file, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"), "")
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}

	var stores []CredentialStore
	if kr, err := NewKeyringStore(); err == nil {
		stores = append(stores, kr)
	}
	return NewManagerWithStores(append(stores, file, NewEnvironmentStore())...), nil
}

func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store stamps the account and returns the name of the store that took it.
func (m *Manager) Store(account *Account) (string, error) {
	switch {
	case account == nil || account.Username == "":
		return "", errors.New("username is required")
	case account.Password == "":
		return "", errors.New("password is required")
	}
	account.LastModified = time.Now()

	var failures []error
	for _, s := range m.stores {
		err := s.Store(account)
		if err == nil {
			return s.Name(), nil
		}
		failures = append(failures, fmt.Errorf("%s: %w", s.Name(), err))
	}
	if len(failures) == 0 {
		return "", ErrStoreUnavailable
	}
	return "", fmt.Errorf("failed to store credentials: %w", errors.Join(failures...))
}

func (m *Manager) Retrieve(username string) (*Account, error) {
	for _, s := range m.stores {
		if acc, err := s.Retrieve(username); err == nil && acc != nil {
			return acc, nil
		}
	}
	return nil, fmt.Errorf("%w for user: %s", ErrCredentialsNotFound, username)
}

// List merges every store, keeping the most recently modified entry per
// username. Stores that fail to list are skipped.
func (m *Manager) List() ([]*Account, error) {
	newest := make(map[string]*Account)
	for _, s := range m.stores {
		accounts, err := s.List()
		if err != nil {
			continue
		}
		for _, acc := range accounts {
			if cur, ok := newest[acc.Username]; !ok || acc.LastModified.After(cur.LastModified) {
				newest[acc.Username] = acc
			}
		}
	}

	out := make([]*Account, 0, len(newest))
	for _, acc := range newest {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// Delete removes username from every store that holds it.
func (m *Manager) Delete(username string) error {
	removed := 0
	for _, s := range m.stores {
		if s.Delete(username) == nil {
			removed++
		}
	}
	if removed == 0 {
		return fmt.Errorf("%w for user: %s", ErrCredentialsNotFound, username)
	}
	return nil
}

// credentialDir honours XDG_CONFIG_HOME and falls back to the platform
// config directory.
func credentialDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		var err error
		if base, err = os.UserConfigDir(); err != nil {
			return "", fmt.Errorf("failed to get config directory: %w", err)
		}
	}
	dir := filepath.Join(base, "igsync")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// SanitizeAccount returns a copy safe to print.
func SanitizeAccount(account *Account) *Account {
	if account == nil {
		return nil
	}
	clean := *account
	clean.Password = "********"
	return &clean
}
