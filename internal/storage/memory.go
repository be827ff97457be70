package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStorage is a process-local StorageInterface, used for the "memory"
// backend and in tests
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// Ensure MemoryStorage implements StorageInterface
var _ StorageInterface = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory store
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

func (m *MemoryStorage) Store(_ context.Context, filename string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)
	m.data[filename] = buf
	return nil
}

func (m *MemoryStorage) Retrieve(_ context.Context, filename string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, exists := m.data[filename]
	if !exists {
		return nil, fmt.Errorf("%s: %w", filename, ErrBlobNotFound)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

// List returns matching names in lexical order
func (m *MemoryStorage) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var files []string
	for filename := range m.data {
		if strings.HasPrefix(filename, prefix) {
			files = append(files, filename)
		}
	}
	sort.Strings(files)
	return files, nil
}
