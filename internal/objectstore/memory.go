package objectstore

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"weighbridge/internal/weighment"
)

// MemoryStore is an in-memory implementation of weighment.ObjectStore.
// It is useful for testing and for terminals that do not keep snapshots.
// This implementation is safe for concurrent use.
type MemoryStore struct {
	baseURL string
	objects map[string]memoryObject
	mu      sync.RWMutex
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemoryStore creates an empty store. Public URLs are baseURL/key, or
// memory://key when baseURL is empty.
func NewMemoryStore(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = "memory://"
	}
	return &MemoryStore{
		baseURL: baseURL,
		objects: make(map[string]memoryObject),
	}
}

// Put stores the object under key, replacing any previous object.
func (m *MemoryStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = memoryObject{data: data, contentType: contentType}
	return nil
}

// Get returns a stored object's bytes and content type.
func (m *MemoryStore) Get(key string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, "", false
	}
	return append([]byte(nil), obj.data...), obj.contentType, true
}

// Keys lists stored keys in order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *MemoryStore) PublicURL(key string) string {
	if m.baseURL == "memory://" {
		return m.baseURL + key
	}
	return joinURL(m.baseURL, key)
}

// ValidateSetup always succeeds for the in-memory store.
func (m *MemoryStore) ValidateSetup(ctx context.Context) error {
	return nil
}

var _ weighment.ObjectStore = (*MemoryStore)(nil)
