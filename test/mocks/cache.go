package mocks

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// MockCache is an in-memory mock implementation of the Cache interface
// Used for testing without requiring a real Redis instance
type MockCache struct {
	data map[string]string
	ttls map[string]time.Duration
	mu   sync.RWMutex

	// GetErr and SetErr, when set, are returned by Get and Set.
	GetErr error
	SetErr error

	Gets int
	Sets int
}

// NewMockCache creates a new mock cache instance
func NewMockCache() *MockCache {
	return &MockCache{
		data: make(map[string]string),
		ttls: make(map[string]time.Duration),
	}
}

// Get retrieves a value from the mock cache
func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Gets++
	if m.GetErr != nil {
		return "", m.GetErr
	}
	return m.data[key], nil // "" for non-existent keys, like Redis
}

// Set stores a value in the mock cache
func (m *MockCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.set(key, value, expiration)
}

func (m *MockCache) set(key string, value interface{}, expiration time.Duration) error {
	m.Sets++
	if m.SetErr != nil {
		return m.SetErr
	}

	switch v := value.(type) {
	case string:
		m.data[key] = v
	case []byte:
		m.data[key] = string(v)
	default:
		m.data[key] = fmt.Sprintf("%v", v)
	}
	// Expiration is recorded but never enforced.
	m.ttls[key] = expiration
	return nil
}

// Del deletes keys from the mock cache
func (m *MockCache) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.data, key)
		delete(m.ttls, key)
	}
	return nil
}

// Incr increments the integer stored at key.
func (m *MockCache) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, _ := strconv.ParseInt(m.data[key], 10, 64)
	n++
	m.data[key] = strconv.FormatInt(n, 10)
	return n, nil
}

// SetIfUnchanged stores value only while guardKey holds guardValue.
func (m *MockCache) SetIfUnchanged(ctx context.Context, guardKey, guardValue, key string, value interface{}, expiration time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data[guardKey] != guardValue {
		return false, nil
	}
	if err := m.set(key, value, expiration); err != nil {
		return false, err
	}
	return true, nil
}

// Has reports whether key is stored.
func (m *MockCache) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.data[key]
	return ok
}

// TTL returns the expiration the key was stored with.
func (m *MockCache) TTL(key string) time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.ttls[key]
}

// Health always returns nil for mock
func (m *MockCache) Health(ctx context.Context) error {
	return nil
}

// Close is a no-op for mock
func (m *MockCache) Close() error {
	return nil
}

// Clear resets the mock cache (useful for tests)
func (m *MockCache) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = make(map[string]string)
	m.ttls = make(map[string]time.Duration)
}
