package rulestorage

import (
	"context"
	"sort"
	"sync"

	"github.com/arxos/graphrules/internal/grerr"
)

// MemorySourceStore is a SourceStore used by tests.
type MemorySourceStore struct {
	mu      sync.Mutex
	sources map[string]string
}

func NewMemorySourceStore() *MemorySourceStore {
	return &MemorySourceStore{sources: map[string]string{}}
}

func (m *MemorySourceStore) PutSource(_ context.Context, key, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[key] = source
	return nil
}

func (m *MemorySourceStore) GetSource(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.sources[key]
	if !ok {
		return "", grerr.NotFoundf("DSL source %q", key)
	}
	return src, nil
}

func (m *MemorySourceStore) ListSources(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.sources))
	for k := range m.sources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
