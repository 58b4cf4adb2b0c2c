package engine

import (
	"maps"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// MemStore is the in-process session store.
// Every mutation is written through to the persister (when one is set) before
// the call returns, so a cleared token is gone from disk once Delete succeeds.
type MemStore struct {
	mu sync.RWMutex
	// Structure: [profile][key]value
	data      map[string]map[string]string
	persister *Persistence
	logger    *zap.Logger
}

// NewMemStore initializes a store.
// It accepts existing data (from LoadAll) and an optional persister.
func NewMemStore(initialData map[string]map[string]string, p *Persistence) *MemStore {
	if initialData == nil {
		initialData = make(map[string]map[string]string)
	}
	return &MemStore{
		data:      initialData,
		persister: p,
		logger:    zap.NewNop(),
	}
}

func (m *MemStore) Get(profile, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	kv, ok := m.data[profile]
	if !ok {
		return "", ErrKeyNotFound
	}
	val, ok := kv[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return val, nil
}

func (m *MemStore) Set(profile, key, val string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data[profile] == nil {
		m.data[profile] = make(map[string]string)
	}
	m.data[profile][key] = val
	return m.persistLocked(profile)
}

func (m *MemStore) Delete(profile string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kv, ok := m.data[profile]
	if !ok {
		return nil
	}
	changed := false
	for _, k := range keys {
		if _, ok := kv[k]; ok {
			delete(kv, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return m.persistLocked(profile)
}

// persistLocked writes a profile to disk. It MUST be called while holding m.mu.Lock.
func (m *MemStore) persistLocked(profile string) error {
	if m.persister == nil {
		return nil
	}
	return m.persister.SaveProfile(profile, maps.Clone(m.data[profile]))
}

func (m *MemStore) Profiles() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]string, 0, len(m.data))
	for id := range m.data {
		list = append(list, id)
	}
	sort.Strings(list)
	return list, nil
}

func (m *MemStore) Dump(profile string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	kv, ok := m.data[profile]
	if !ok {
		return nil, ErrProfileNotFound
	}
	// Return a copy to prevent external mutation of the internal map
	return maps.Clone(kv), nil
}

// Reload re-reads a profile from disk, replacing the in-memory copy.
// It reports whether the contents changed.
func (m *MemStore) Reload(profile string) (bool, error) {
	if m.persister == nil {
		return false, nil
	}
	fresh, err := m.persister.LoadProfile(profile)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if maps.Equal(m.data[profile], fresh) {
		return false, nil
	}
	m.data[profile] = fresh
	return true, nil
}

func (m *MemStore) Close() error {
	return nil
}
