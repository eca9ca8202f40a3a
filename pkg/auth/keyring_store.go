package auth

import (
	"encoding/json"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "mediagrab"
	keyringPrefix  = "cookies_"
)

// KeyringStore keeps credentials in the system keychain.
type KeyringStore struct{}

// NewKeyringStore probes the keychain and fails fast when it is
// unavailable (headless hosts, locked sessions).
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "test_availability"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

// Store saves an account to the keychain.
func (k *KeyringStore) Store(account *Account) error {
	if account == nil || account.Platform == "" {
		return ErrInvalidCredentials
	}

	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	key := keyringPrefix + account.Platform
	if err := keyring.Set(keyringService, key, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

// Retrieve gets an account from the keychain.
func (k *KeyringStore) Retrieve(platform string) (*Account, error) {
	if platform == "" {
		return nil, ErrInvalidCredentials
	}

	data, err := keyring.Get(keyringService, keyringPrefix+platform)
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var account Account
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return &account, nil
}

// List returns nothing; the keyring API cannot enumerate keys portably.
func (k *KeyringStore) List() ([]*Account, error) {
	return []*Account{}, nil
}

// Delete removes an account from the keychain.
func (k *KeyringStore) Delete(platform string) error {
	if platform == "" {
		return ErrInvalidCredentials
	}

	if err := keyring.Delete(keyringService, keyringPrefix+platform); err != nil {
		if err == keyring.ErrNotFound {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

// Exists checks whether an account is present in the keychain.
func (k *KeyringStore) Exists(platform string) bool {
	if platform == "" {
		return false
	}
	_, err := keyring.Get(keyringService, keyringPrefix+platform)
	return err == nil
}
