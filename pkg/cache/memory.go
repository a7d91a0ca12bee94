package cache

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps generations in process memory.
// Contents are lost when the process exits.
type MemoryStore struct {
	mu          sync.RWMutex
	generations map[string]map[string]*Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		generations: make(map[string]map[string]*Entry),
	}
}

func (m *MemoryStore) Open(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.generations[name]; !ok {
		m.generations[name] = make(map[string]*Entry)
	}
	return nil
}

func (m *MemoryStore) Names(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.generations))
	for name := range m.generations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStore) Delete(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.generations[name]
	delete(m.generations, name)
	if ok {
		GenerationsDeleted.Inc()
	}
	return ok, nil
}

func (m *MemoryStore) Match(_ context.Context, name string, key Key) (*Entry, error) {
	m.mu.RLock()
	entry, ok := m.generations[name][key.String()]
	m.mu.RUnlock()
	if !ok {
		observeMatch(name, ErrCacheMiss)
		return nil, ErrCacheMiss
	}
	observeMatch(name, nil)
	// copy so callers cannot mutate stored state
	clone := *entry
	clone.Header = entry.Header.Clone()
	return &clone, nil
}

func (m *MemoryStore) Put(_ context.Context, name string, key Key, entry *Entry) error {
	if entry == nil {
		return ErrInvalidEntry
	}
	clone := *entry
	clone.Header = entry.Header.Clone()
	clone.Body = append([]byte(nil), entry.Body...)

	m.mu.Lock()
	defer m.mu.Unlock()
	gen, ok := m.generations[name]
	if !ok {
		gen = make(map[string]*Entry)
		m.generations[name] = gen
	}
	gen[key.String()] = &clone
	return nil
}

func (m *MemoryStore) Keys(_ context.Context, name string) ([]Key, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]Key, 0, len(m.generations[name]))
	for raw := range m.generations[name] {
		if k, ok := ParseKey(raw); ok {
			keys = append(keys, k)
		}
	}
	sortKeys(keys)
	return keys, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
}
