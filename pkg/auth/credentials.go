// Package auth stores platform session cookies. Backends are tried in
// order: system keychain, encrypted file, environment variables.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Account holds one platform's session credentials. The cookie header is
// the raw "k=v; k2=v2" string a browser sends.
type Account struct {
	Platform     string    `json:"platform"`
	CookieHeader string    `json:"cookie_header"`
	UserAgent    string    `json:"user_agent,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is one storage backend for platform credentials.
type CredentialStore interface {
	Store(account *Account) error
	Retrieve(platform string) (*Account, error)
	List() ([]*Account, error)
	Delete(platform string) error
	Exists(platform string) bool
}

// Manager layers credential stores with fallback: writes go to the first
// backend that accepts them, reads to the first that answers.
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a manager with the available backends.
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// Store saves an account using the first available backend.
func (m *Manager) Store(account *Account) error {
	if account.Platform == "" {
		return errors.New("platform is required")
	}
	if account.CookieHeader == "" {
		return errors.New("cookie header is required")
	}

	account.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(account); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets the account for a platform from the first backend that has
// it.
func (m *Manager) Retrieve(platform string) (*Account, error) {
	for _, store := range m.stores {
		if account, err := store.Retrieve(platform); err == nil && account != nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("credentials not found for platform: %s", platform)
}

// List returns all stored accounts across backends, most recently modified
// version per platform.
func (m *Manager) List() ([]*Account, error) {
	accountMap := make(map[string]*Account)

	for _, store := range m.stores {
		accounts, err := store.List()
		if err != nil {
			continue
		}
		for _, account := range accounts {
			if existing, ok := accountMap[account.Platform]; !ok || account.LastModified.After(existing.LastModified) {
				accountMap[account.Platform] = account
			}
		}
	}

	var result []*Account
	for _, account := range accountMap {
		result = append(result, account)
	}
	return result, nil
}

// Delete removes a platform's credentials from every backend.
func (m *Manager) Delete(platform string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(platform); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("credentials not found for platform: %s", platform)
	}
	return nil
}

// getConfigDir returns the per-user configuration directory.
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "mediagrab")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "mediagrab")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "mediagrab")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "mediagrab")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// SanitizeAccount returns a copy with the cookie header masked for display.
func SanitizeAccount(account *Account) *Account {
	if account == nil {
		return nil
	}
	return &Account{
		Platform:     account.Platform,
		CookieHeader: maskString(account.CookieHeader),
		UserAgent:    account.UserAgent,
		LastModified: account.LastModified,
	}
}

func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
