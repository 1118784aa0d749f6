package auth

import "os"

// envPairs lists the username/password variables consulted, most specific first.
var envPairs = [][2]string{
	{"IGSYNC_USERNAME", "IGSYNC_PASSWORD"},
	{"INSTAGRAM_USERNAME", "INSTAGRAM_PASSWORD"},
	{"IG_USERNAME", "IG_PASSWORD"},
}

// EnvironmentStore exposes a single account taken from the environment.
// It cannot be written to.
type EnvironmentStore struct {
	getenv func(string) string
}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{getenv: os.Getenv}
}

func (e *EnvironmentStore) Name() string { return "environment" }

func (e *EnvironmentStore) account() *Account {
	for _, pair := range envPairs {
		user, pass := e.getenv(pair[0]), e.getenv(pair[1])
		if user != "" && pass != "" {
			return &Account{Username: user, Password: pass}
		}
	}
	return nil
}

// Retrieve matches any username when called with "".
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	acc := e.account()
	if acc == nil || (username != "" && username != acc.Username) {
		return nil, ErrCredentialsNotFound
	}
	return acc, nil
}

func (e *EnvironmentStore) List() ([]*Account, error) {
	if acc := e.account(); acc != nil {
		return []*Account{acc}, nil
	}
	return nil, nil
}

func (e *EnvironmentStore) Store(*Account) error { return ErrStoreUnavailable }

func (e *EnvironmentStore) Delete(string) error { return ErrStoreUnavailable }
