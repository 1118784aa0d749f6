package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "igsync"

func keyringKey(username string) string { return "account_" + username }

// KeyringStore keeps each account as a JSON blob under the igsync service
// in the system keychain.
type KeyringStore struct{}

// NewKeyringStore probes the keychain with a throwaway entry and fails when
// no keychain daemon is reachable (headless Linux, containers).
func NewKeyringStore() (*KeyringStore, error) {
	const probe = "availability_probe"
	if err := keyring.Set(keyringService, probe, "1"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, probe)
	return &KeyringStore{}, nil
}

func (k *KeyringStore) Name() string { return "keyring" }

func (k *KeyringStore) Store(account *Account) error {
	if account == nil || account.Username == "" {
		return ErrInvalidAccount
	}
	blob, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	return keyringErr("store", keyring.Set(keyringService, keyringKey(account.Username), string(blob)))
}

func (k *KeyringStore) Retrieve(username string) (*Account, error) {
	if username == "" {
		return nil, ErrInvalidAccount
	}
	blob, err := keyring.Get(keyringService, keyringKey(username))
	if err != nil {
		return nil, keyringErr("retrieve", err)
	}

	account := &Account{}
	if err := json.Unmarshal([]byte(blob), account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return account, nil
}

// List always reports nothing: go-keyring cannot enumerate a service.
func (k *KeyringStore) List() ([]*Account, error) {
	return nil, nil
}

func (k *KeyringStore) Delete(username string) error {
	if username == "" {
		return ErrInvalidAccount
	}
	return keyringErr("delete", keyring.Delete(keyringService, keyringKey(username)))
}

func keyringErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, keyring.ErrNotFound):
		return ErrCredentialsNotFound
	default:
		return fmt.Errorf("keyring %s: %w", op, err)
	}
}
