package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process ImageStore for local runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	baseURL string
	objects map[string][]byte
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{baseURL: baseURL, objects: map[string][]byte{}}
}

func (m *MemoryStore) Upload(_ context.Context, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyFile
	}
	if _, err := ValidateImage(filename, data); err != nil {
		return "", err
	}
	key := ObjectKey(filename, time.Now())

	m.mu.Lock()
	m.objects[key] = append([]byte(nil), data...)
	m.mu.Unlock()
	return joinURL(m.baseURL, key), nil
}

func (m *MemoryStore) DeleteByURL(_ context.Context, url string) error {
	key, ok := keyFromURL(m.baseURL, url)
	if !ok {
		return ErrForeignURL
	}
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Exists(_ context.Context, url string) (bool, error) {
	key, ok := keyFromURL(m.baseURL, url)
	if !ok {
		return false, ErrForeignURL
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, found := m.objects[key]
	return found, nil
}

// Len reports the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
