package auth

import (
	"os"
	"strings"
	"time"
)

// EnvironmentStore reads credentials from environment variables, as a last
// resort for CI and one-off runs.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store.
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables.
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from MEDIAGRAB_COOKIE, optionally scoped by
// MEDIAGRAB_PLATFORM.
func (e *EnvironmentStore) Retrieve(platform string) (*Account, error) {
	cookie := os.Getenv("MEDIAGRAB_COOKIE")
	if cookie == "" {
		return nil, ErrCredentialsNotFound
	}

	envPlatform := os.Getenv("MEDIAGRAB_PLATFORM")
	if envPlatform != "" && platform != "" && !strings.EqualFold(envPlatform, platform) {
		return nil, ErrCredentialsNotFound
	}
	if platform == "" {
		platform = envPlatform
	}

	return &Account{
		Platform:     platform,
		CookieHeader: cookie,
		UserAgent:    os.Getenv("MEDIAGRAB_USER_AGENT"),
		LastModified: time.Now(),
	}, nil
}

// List returns the single environment account when one is set.
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables.
func (e *EnvironmentStore) Delete(platform string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist.
func (e *EnvironmentStore) Exists(platform string) bool {
	return os.Getenv("MEDIAGRAB_COOKIE") != ""
}
