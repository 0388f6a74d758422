// Package kv provides the string-only key-value persistence primitive the
// local data layer is built on.
//
// Two implementations are provided:
//   - SQLite: durable storage in a single database file (WAL mode)
//   - Memory: in-process map, used in tests
//
// Values are always strings; callers serialize collections to JSON (and,
// for archives, compress) before storing.
package kv

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// KV is the persistence primitive: async string-only key-value access.
type KV interface {
	// GetItem returns the value for key. The second result is false when
	// the key does not exist.
	GetItem(ctx context.Context, key string) (string, bool, error)

	// SetItem stores value under key, replacing any existing value.
	SetItem(ctx context.Context, key, value string) error

	// RemoveItem deletes key. Removing a missing key is a no-op.
	RemoveItem(ctx context.Context, key string) error

	// Keys returns all keys with the given prefix in lexical order.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases underlying resources.
	Close() error
}

// Memory is an in-process KV implementation.
type Memory struct {
	mu   sync.Mutex
	data map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

// GetItem implements KV.GetItem.
func (m *Memory) GetItem(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// SetItem implements KV.SetItem.
func (m *Memory) SetItem(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// RemoveItem implements KV.RemoveItem.
func (m *Memory) RemoveItem(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Keys implements KV.Keys.
func (m *Memory) Keys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close implements KV.Close.
func (m *Memory) Close() error {
	return nil
}
