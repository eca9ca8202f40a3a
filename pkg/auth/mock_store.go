package auth

import (
	"fmt"
	"sync"
)

// MockStore implements CredentialStore for testing purposes.
type MockStore struct {
	accounts map[string]*Account
	mu       sync.RWMutex

	// Error injection for testing
	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMockStore creates a new mock credential store.
func NewMockStore() *MockStore {
	return &MockStore{
		accounts: make(map[string]*Account),
	}
}

// Store saves credentials to the mock store.
func (m *MockStore) Store(account *Account) error {
	if m.StoreError != nil {
		return m.StoreError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if account == nil || account.Platform == "" {
		return ErrInvalidCredentials
	}

	accountCopy := *account
	m.accounts[account.Platform] = &accountCopy
	return nil
}

// Retrieve gets credentials from the mock store.
func (m *MockStore) Retrieve(platform string) (*Account, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if platform == "" {
		return nil, ErrInvalidCredentials
	}

	account, exists := m.accounts[platform]
	if !exists {
		return nil, ErrCredentialsNotFound
	}

	accountCopy := *account
	return &accountCopy, nil
}

// List returns all stored accounts from the mock store.
func (m *MockStore) List() ([]*Account, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var accounts []*Account
	for _, account := range m.accounts {
		accountCopy := *account
		accounts = append(accounts, &accountCopy)
	}
	return accounts, nil
}

// Delete removes credentials from the mock store.
func (m *MockStore) Delete(platform string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if platform == "" {
		return ErrInvalidCredentials
	}

	if _, exists := m.accounts[platform]; !exists {
		return ErrCredentialsNotFound
	}

	delete(m.accounts, platform)
	return nil
}

// Exists checks if credentials exist in the mock store.
func (m *MockStore) Exists(platform string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.accounts[platform]
	return exists
}

// Clear removes all accounts from the mock store.
func (m *MockStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.accounts = make(map[string]*Account)
}

// Count returns the number of accounts in the mock store.
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.accounts)
}

// NewMockManager creates a Manager with a mock store for testing.
func NewMockManager() (*Manager, *MockStore) {
	mockStore := NewMockStore()
	manager := &Manager{
		stores: []CredentialStore{mockStore},
	}
	return manager, mockStore
}

// NewMockManagerWithStores creates a Manager with the given stores.
func NewMockManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{
		stores: stores,
	}
}

// GetAccount returns a copy of the stored account for inspection.
func (m *MockStore) GetAccount(platform string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	account, exists := m.accounts[platform]
	if !exists {
		return nil, fmt.Errorf("account not found: %s", platform)
	}

	accountCopy := *account
	return &accountCopy, nil
}
